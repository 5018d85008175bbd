package stream

import (
	"context"
	"io"
)

// OpenFunc opens the stream for the i-th span of a resolved range.
type OpenFunc func(ctx context.Context, i int) (io.ReadCloser, error)

// mergedReader concatenates per-chunk streams in order. Stream i+1 is not
// opened until stream i is drained, so at most one underlying stream is ever
// open and bytes come out in manifest order without buffering.
//
// Any underlying failure poisons the reader: every later Read returns the
// same error, never a truncated-but-successful EOF.
type mergedReader struct {
	ctx     context.Context
	open    OpenFunc
	count   int
	next    int
	current io.ReadCloser
	err     error
}

// NewMergedReader returns a reader over count streams opened lazily through
// open. Cancelling ctx aborts the merge and closes whichever stream is open.
func NewMergedReader(ctx context.Context, count int, open OpenFunc) io.ReadCloser {
	return &mergedReader{ctx: ctx, open: open, count: count}
}

func (m *mergedReader) Read(p []byte) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if err := m.ctx.Err(); err != nil {
		m.fail(err)
		return 0, err
	}

	for {
		if m.current == nil {
			if m.next >= m.count {
				m.err = io.EOF
				return 0, io.EOF
			}
			rc, err := m.open(m.ctx, m.next)
			if err != nil {
				m.fail(err)
				return 0, err
			}
			m.current = rc
			m.next++
		}

		n, err := m.current.Read(p)
		if err == io.EOF {
			closeErr := m.current.Close()
			m.current = nil
			if closeErr != nil {
				m.fail(closeErr)
				return n, closeErr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			m.fail(err)
			return n, err
		}
		return n, nil
	}
}

func (m *mergedReader) Close() error {
	if m.current != nil {
		err := m.current.Close()
		m.current = nil
		if m.err == nil {
			m.err = io.ErrClosedPipe
		}
		return err
	}
	if m.err == nil {
		m.err = io.ErrClosedPipe
	}
	return nil
}

func (m *mergedReader) fail(err error) {
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.err = err
}
