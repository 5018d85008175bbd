package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore implements ObjectStore on a local directory. The two key segments
// become one directory level plus the file name, so a chunk of file F with
// hash H lives at <base>/F/H.
type DiskStore struct {
	basePath string
}

func NewDiskStore(basePath string) (*DiskStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", basePath, err)
	}
	return &DiskStore{basePath: basePath}, nil
}

// resolve rejects keys that would escape the base directory. Keys are always
// built from hex identifiers, so anything with a dot or separator inside a
// segment is hostile input.
func (s *DiskStore) resolve(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		return "", ErrInvalidKey
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", ErrInvalidKey
		}
	}
	return filepath.Join(s.basePath, parts[0], parts[1]), nil
}

func (s *DiskStore) PutObject(ctx context.Context, key string, r io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	// Write to a temp file first so a failed write never leaves a partial
	// object at the final key.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close object %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize object %s: %w", key, err)
	}
	return nil
}

func (s *DiskStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return f, nil
}

func (s *DiskStore) GetObjectRange(ctx context.Context, key string, offset int64, length int64) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek object %s to %d: %w", key, offset, err)
	}
	if length < 0 {
		return f, nil
	}
	return &limitedReadCloser{Reader: io.LimitReader(f, length), closer: f}, nil
}

func (s *DiskStore) StatObject(ctx context.Context, key string) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrObjectNotFound
		}
		return 0, fmt.Errorf("stat object %s: %w", key, err)
	}
	return info.Size(), nil
}

func (s *DiskStore) DeleteObject(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}
