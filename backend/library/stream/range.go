// Package stream turns a file's ordered chunk manifest back into one byte
// stream: it computes which chunks intersect a requested range and merges the
// per-chunk streams in manifest order.
package stream

import (
	"errors"
	"fmt"
)

var ErrInvalidRange = errors.New("stream: invalid byte range")

// ChunkSpan names one chunk and the sub-range of it (inclusive bounds,
// relative to the chunk's own start) needed to satisfy a request.
type ChunkSpan struct {
	Index int
	Hash  string
	Start int64
	End   int64
}

func (s ChunkSpan) Length() int64 {
	return s.End - s.Start + 1
}

// ResolveRange walks the manifest and emits a span for every chunk whose
// interval intersects [start, end]. Chunk i covers bytes
// [i*chunkSize, i*chunkSize+len) of the file, where len is chunkSize for all
// chunks except possibly the last. Offsets are monotonic, so the walk stops
// at the first chunk starting past end.
func ResolveRange(hashes []string, fileSize int64, chunkSize int64, start int64, end int64) ([]ChunkSpan, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidRange, chunkSize)
	}
	if start < 0 || end < start || end >= fileSize {
		return nil, fmt.Errorf("%w: [%d, %d] of %d bytes", ErrInvalidRange, start, end, fileSize)
	}

	var spans []ChunkSpan
	for i, hash := range hashes {
		offset := int64(i) * chunkSize
		if offset > end {
			break
		}
		length := chunkSize
		if remaining := fileSize - offset; remaining < length {
			length = remaining
		}
		if length <= 0 {
			break
		}
		chunkEnd := offset + length - 1
		if chunkEnd < start {
			continue
		}

		subStart := int64(0)
		if start > offset {
			subStart = start - offset
		}
		subEnd := length - 1
		if end < chunkEnd {
			subEnd = end - offset
		}
		spans = append(spans, ChunkSpan{Index: i, Hash: hash, Start: subStart, End: subEnd})
	}
	return spans, nil
}
