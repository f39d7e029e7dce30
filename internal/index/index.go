// Package index holds the in-memory tree built from an archive's entry
// table and the per-file buffers that serve reads from it.
package index

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Index maps slash separated archive paths to nodes.
type Index struct {
	root        *Node
	defaultTime time.Time
	nodes       int
}

// New returns an index holding only the root directory. Directories that
// are created implicitly get defaultTime as their timestamps.
func New(defaultTime time.Time) *Index {
	return &Index{
		root:        newNode("", nil, RootIndex, syntheticDir(defaultTime)),
		defaultTime: defaultTime,
		nodes:       1,
	}
}

func (ix *Index) Root() *Node { return ix.root }

// Len returns the number of nodes, root included.
func (ix *Index) Len() int { return ix.nodes }

// SplitPath breaks p into its non-empty segments. Leading, trailing and
// repeated separators are ignored, so "a/b/" and "/a//b" both give
// ["a", "b"]. "." and ".." are kept as ordinary names.
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	segments := parts[:0]
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Insert creates the node for segments, adding missing parent directories
// on the way. If the leaf already exists with the same kind it is returned
// unchanged. Walking through a file or changing the kind of an existing
// leaf fails with ErrPathConflict.
func (ix *Index) Insert(segments []string, dir bool) (*Node, error) {
	if len(segments) == 0 {
		if !dir {
			return nil, errors.Wrap(ErrPathConflict, "root is a directory")
		}
		return ix.root, nil
	}

	cur := ix.root
	last := len(segments) - 1
	for i, name := range segments[:last] {
		child, ok := cur.Child(name)
		if !ok {
			child = newNode(name, cur, SyntheticIndex, syntheticDir(ix.defaultTime))
			cur.addChild(child)
			ix.nodes++
		} else if !child.IsDir() {
			return nil, errors.Wrapf(ErrPathConflict, "%s is a file", strings.Join(segments[:i+1], "/"))
		}
		cur = child
	}

	name := segments[last]
	if child, ok := cur.Child(name); ok {
		if child.IsDir() != dir {
			return nil, errors.Wrapf(ErrPathConflict, "%s exists as a %s", strings.Join(segments, "/"), kindName(child.IsDir()))
		}
		return child, nil
	}

	meta := Metadata{Dir: dir}
	if dir {
		meta = syntheticDir(ix.defaultTime)
	}
	child := newNode(name, cur, SyntheticIndex, meta)
	cur.addChild(child)
	ix.nodes++
	return child, nil
}

func kindName(dir bool) string {
	if dir {
		return "directory"
	}
	return "file"
}

// Find resolves a path. "" and "/" return the root.
func (ix *Index) Find(path string) (*Node, error) {
	return ix.FindSegments(SplitPath(path))
}

// FindSegments resolves an already split path.
func (ix *Index) FindSegments(segments []string) (*Node, error) {
	cur := ix.root
	for _, name := range segments {
		child, ok := cur.Child(name)
		if !ok {
			return nil, ErrNotFound
		}
		cur = child
	}
	return cur, nil
}

// Walk calls fn for every node, parents before children.
func (ix *Index) Walk(fn func(*Node)) {
	ix.root.walk(fn)
}

// Close releases every materialization buffer still attached to the tree
// and returns how many were dropped. Nodes must not be opened afterwards.
func (ix *Index) Close() int {
	released := 0
	ix.Walk(func(n *Node) {
		if n.release() {
			released++
		}
	})
	return released
}
