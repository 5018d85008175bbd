// Package hashutil computes the content digests chunks are addressed by.
// Clients hash each chunk before upload; the server recomputes the digest on
// every write so bytes are never stored under a wrong key.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
)

const HexLength = 64

var hexDigestPattern = regexp.MustCompile("^[0-9a-f]{64}$")

// SumBytes returns the lowercase hex SHA-256 digest of b.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SumReader hashes r incrementally. For the same bytes it returns exactly
// what SumBytes returns for the in-memory form.
func SumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsValidDigest reports whether s looks like a digest this package produced.
func IsValidDigest(s string) bool {
	return hexDigestPattern.MatchString(s)
}
