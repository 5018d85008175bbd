package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
)

var ErrNoWritableNode = errors.New("storage: no writable node available")

// Node is one backing store endpoint. A file is pinned to a node at
// registration time and every one of its chunks is written there; the
// assignment never changes except through explicit migration.
type Node struct {
	ID       string
	Region   string
	Writable bool
	Store    ObjectStore
}

// Registry holds the configured nodes. Resolution by id and selection for a
// new file are deliberately separate operations: callers first Resolve the
// recorded assignment and only Select when no assignment exists yet.
type Registry struct {
	nodes []*Node
	byID  map[string]*Node
	next  atomic.Uint64
}

func NewRegistry(nodes []*Node) (*Registry, error) {
	if len(nodes) == 0 {
		return nil, errors.New("storage: at least one node is required")
	}
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, errors.New("storage: node id must not be empty")
		}
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("storage: duplicate node id %q", n.ID)
		}
		byID[n.ID] = n
	}
	return &Registry{nodes: nodes, byID: byID}, nil
}

// NewRegistryFromConfig parses a comma separated "id@region" spec and creates
// a disk-backed node per entry under root.
func NewRegistryFromConfig(spec string, root string) (*Registry, error) {
	var nodes []*Node
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, region := entry, ""
		if at := strings.IndexByte(entry, '@'); at >= 0 {
			id, region = entry[:at], entry[at+1:]
		}
		store, err := NewDiskStore(filepath.Join(root, id))
		if err != nil {
			return nil, fmt.Errorf("init node %s: %w", id, err)
		}
		nodes = append(nodes, &Node{ID: id, Region: region, Writable: true, Store: store})
	}
	return NewRegistry(nodes)
}

// Resolve returns the node with the given id, if configured.
func (r *Registry) Resolve(id string) (*Node, bool) {
	n, ok := r.byID[id]
	return n, ok
}

// Select picks a writable node for a new file, round-robin.
func (r *Registry) Select() (*Node, error) {
	for range r.nodes {
		idx := int(r.next.Add(1)-1) % len(r.nodes)
		if r.nodes[idx].Writable {
			return r.nodes[idx], nil
		}
	}
	return nil, ErrNoWritableNode
}

// Nodes returns the configured node list in declaration order.
func (r *Registry) Nodes() []*Node {
	return r.nodes
}
