package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]ObjectStore {
	disk, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return map[string]ObjectStore{
		"disk":   disk,
		"memory": NewMemoryStore(),
	}
}

func TestObjectStore_PutGetStatDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := ChunkKey("file1", "abcd")

			err := store.PutObject(ctx, key, strings.NewReader("hello chunk"))
			require.NoError(t, err)

			size, err := store.StatObject(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, int64(11), size)

			rc, err := store.GetObject(ctx, key)
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			rc.Close()
			assert.NoError(t, err)
			assert.Equal(t, "hello chunk", string(data))

			assert.NoError(t, store.DeleteObject(ctx, key))
			_, err = store.StatObject(ctx, key)
			assert.ErrorIs(t, err, ErrObjectNotFound)
			// Deleting again is not an error.
			assert.NoError(t, store.DeleteObject(ctx, key))
		})
	}
}

func TestObjectStore_GetObjectRange(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := ChunkKey("file1", "abcd")
			require.NoError(t, store.PutObject(ctx, key, strings.NewReader("0123456789")))

			rc, err := store.GetObjectRange(ctx, key, 3, 4)
			require.NoError(t, err)
			data, _ := io.ReadAll(rc)
			rc.Close()
			assert.Equal(t, "3456", string(data))

			// Negative length reads to the end.
			rc, err = store.GetObjectRange(ctx, key, 7, -1)
			require.NoError(t, err)
			data, _ = io.ReadAll(rc)
			rc.Close()
			assert.Equal(t, "789", string(data))
		})
	}
}

func TestObjectStore_PutOverwriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := ChunkKey("file1", "abcd")
			require.NoError(t, store.PutObject(ctx, key, strings.NewReader("same bytes")))
			require.NoError(t, store.PutObject(ctx, key, strings.NewReader("same bytes")))

			size, err := store.StatObject(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, int64(10), size)
		})
	}
}

func TestDiskStore_RejectsHostileKeys(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "no-slash", "a/b/c", "../x/y", "a/..", "./a", "a/"} {
		_, err := disk.GetObject(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestRegistry_ResolveThenSelect(t *testing.T) {
	nodes := []*Node{
		{ID: "n1", Region: "eu", Writable: true, Store: NewMemoryStore()},
		{ID: "n2", Region: "us", Writable: true, Store: NewMemoryStore()},
	}
	reg, err := NewRegistry(nodes)
	require.NoError(t, err)

	n, ok := reg.Resolve("n2")
	assert.True(t, ok)
	assert.Equal(t, "us", n.Region)

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)

	// Round-robin alternates over writable nodes.
	first, err := reg.Select()
	require.NoError(t, err)
	second, err := reg.Select()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegistry_SelectSkipsUnwritable(t *testing.T) {
	reg, err := NewRegistry([]*Node{
		{ID: "ro", Writable: false, Store: NewMemoryStore()},
		{ID: "rw", Writable: true, Store: NewMemoryStore()},
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		n, err := reg.Select()
		require.NoError(t, err)
		assert.Equal(t, "rw", n.ID)
	}
}

func TestRegistry_NoWritableNode(t *testing.T) {
	reg, err := NewRegistry([]*Node{{ID: "ro", Writable: false, Store: NewMemoryStore()}})
	require.NoError(t, err)

	_, err = reg.Select()
	assert.ErrorIs(t, err, ErrNoWritableNode)
}

func TestNewRegistryFromConfig(t *testing.T) {
	reg, err := NewRegistryFromConfig("n1@local, n2@eu-west", t.TempDir())
	require.NoError(t, err)
	assert.Len(t, reg.Nodes(), 2)

	n, ok := reg.Resolve("n2")
	require.True(t, ok)
	assert.Equal(t, "eu-west", n.Region)
	assert.True(t, n.Writable)
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry([]*Node{
		{ID: "dup", Store: NewMemoryStore()},
		{ID: "dup", Store: NewMemoryStore()},
	})
	assert.Error(t, err)
}
