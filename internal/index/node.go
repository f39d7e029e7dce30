package index

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// RootIndex is the archive index of the root node.
	RootIndex = -1
	// SyntheticIndex marks directories that have no entry of their own.
	SyntheticIndex = -2
)

var lastInode atomic.Uint64

func nextInode() uint64 {
	return lastInode.Add(1)
}

// Node is one file or directory of the tree. The tree is built once by
// Build and never changes afterwards, so the structural accessors need no
// locking. Only the materialization buffer is guarded by mu.
type Node struct {
	name         string
	archiveIndex int
	meta         Metadata
	inode        uint64
	parent       *Node
	children     map[string]*Node

	mu    sync.RWMutex
	buf   []byte
	opens int
}

func newNode(name string, parent *Node, archiveIndex int, meta Metadata) *Node {
	n := &Node{
		name:         name,
		archiveIndex: archiveIndex,
		meta:         meta,
		inode:        nextInode(),
		parent:       parent,
	}
	if meta.Dir {
		n.children = make(map[string]*Node)
	}
	return n
}

func (n *Node) Name() string { return n.name }

// ArchiveIndex returns the entry position in the archive, RootIndex, or
// SyntheticIndex.
func (n *Node) ArchiveIndex() int { return n.archiveIndex }

func (n *Node) IsDir() bool { return n.meta.Dir }

func (n *Node) IsRoot() bool { return n.parent == nil }

// Size is the uncompressed size of a file; zero for directories.
func (n *Node) Size() uint64 { return n.meta.Size }

// Metadata returns the synthesized attributes, including the three
// timestamps.
func (n *Node) Metadata() Metadata { return n.meta }

func (n *Node) Inode() uint64 { return n.inode }

// Parent returns nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Child returns the direct child called name.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// NumChildren returns the number of direct children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// Children returns the direct children sorted by name.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].name < out[j].name
	})
	return out
}

// Path returns the slash separated path from the root. The root's path is
// the empty string.
func (n *Node) Path() string {
	var names []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

func (n *Node) addChild(c *Node) {
	n.children[c.name] = c
}

// walk calls fn for n and every node below it, parents first.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
