package hashutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumBytes_KnownVector(t *testing.T) {
	// sha256("abc")
	digest := SumBytes([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", digest)
}

func TestSumBytes_Empty(t *testing.T) {
	digest := SumBytes(nil)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", digest)
}

func TestSumReader_MatchesSumBytes(t *testing.T) {
	data := bytes.Repeat([]byte("chunkvault"), 100000)

	fromReader, err := SumReader(bytes.NewReader(data))
	assert.NoError(t, err)
	assert.Equal(t, SumBytes(data), fromReader)
}

func TestIsValidDigest(t *testing.T) {
	assert.True(t, IsValidDigest(SumBytes([]byte("x"))))
	assert.False(t, IsValidDigest(""))
	assert.False(t, IsValidDigest(strings.Repeat("g", 64)))
	assert.False(t, IsValidDigest(strings.ToUpper(SumBytes([]byte("x")))))
	assert.False(t, IsValidDigest(SumBytes([]byte("x"))[:63]))
}
