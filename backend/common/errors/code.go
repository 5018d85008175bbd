package errors

// Generic error codes
const (
	ErrInternalServer = "ERR_INTERNAL_SERVER"
	ErrInvalidParam   = "ERR_INVALID_PARAM"
)

// Upload pipeline error codes
const (
	ErrEmptyManifest   = "ERR_EMPTY_MANIFEST"
	ErrBadManifest     = "ERR_BAD_MANIFEST"
	ErrTokenInvalid    = "ERR_TOKEN_INVALID"
	ErrHashMismatch    = "ERR_HASH_MISMATCH"
	ErrChunksMissing   = "ERR_CHUNKS_MISSING"
	ErrFileNotFound    = "ERR_FILE_NOT_FOUND"
	ErrFileNotReady    = "ERR_FILE_NOT_READY"
	ErrNodeUnavailable = "ERR_NODE_UNAVAILABLE"
)

// Download error codes
const (
	ErrBadRange      = "ERR_BAD_RANGE"
	ErrChunkNotFound = "ERR_CHUNK_NOT_FOUND"
)
