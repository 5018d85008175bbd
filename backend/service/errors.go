package service

import (
	"errors"
	"fmt"
)

// Failure taxonomy of the chunk pipeline. Handlers map these onto HTTP
// statuses; everything else surfaces as an internal error.
var (
	ErrEmptyManifest   = errors.New("chunk hash manifest is empty")
	ErrBadManifest     = errors.New("chunk hash manifest is malformed")
	ErrTokenInvalid    = errors.New("upload token is missing, expired or bound to another chunk")
	ErrHashMismatch    = errors.New("chunk bytes do not match the claimed hash")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileNotReady    = errors.New("file is not complete yet")
	ErrNodeUnavailable = errors.New("storage node unavailable")
)

// MissingChunksError names the manifest hashes that failed verification at
// completion time. The caller only needs to re-upload these, not the whole
// file.
type MissingChunksError struct {
	Missing []string
}

func (e *MissingChunksError) Error() string {
	return fmt.Sprintf("%d chunk(s) missing or unverified", len(e.Missing))
}
