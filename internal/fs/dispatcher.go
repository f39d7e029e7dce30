package fs

import (
	"context"
	"os"
	"time"

	"archivefs/internal/archive"
	"archivefs/internal/index"
	"archivefs/internal/logging"
)

const (
	blockSize = 512

	dirMode  = os.ModeDir | 0755
	fileMode = 0644
)

// Attributes are the synthesized stat values of a node.
type Attributes struct {
	Inode     uint64
	Mode      os.FileMode
	Nlink     uint32
	Size      uint64
	Blocks    uint64
	BlockSize uint32
	Uid       uint32
	Gid       uint32
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
}

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name  string
	Inode uint64
	Dir   bool
}

// Dispatcher answers path based filesystem requests from the index. It
// keeps no per-request state; open files are represented by their node.
type Dispatcher struct {
	index     *index.Index
	extractor archive.Extractor
	uid       uint32
	gid       uint32
	maxBuffer int64
	log       *logging.Logger
}

// NewDispatcher creates a dispatcher over a built index.
func NewDispatcher(ix *index.Index, ex archive.Extractor, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Dispatcher{
		index:     ix,
		extractor: ex,
		uid:       opts.Uid,
		gid:       opts.Gid,
		maxBuffer: opts.MaxBuffer,
		log:       log.WithPrefix("dispatch"),
	}
}

func (d *Dispatcher) resolve(op, path string) (*index.Node, error) {
	n, err := d.index.Find(path)
	if err != nil {
		d.log.Trace("%s %q: not found", op, path)
		return nil, NewFSError(op, path, err)
	}
	return n, nil
}

// Getattr returns the attributes of the node at path.
func (d *Dispatcher) Getattr(path string) (Attributes, error) {
	n, err := d.resolve(OpGetattr, path)
	if err != nil {
		return Attributes{}, err
	}
	return d.Attributes(n), nil
}

// Attributes synthesizes stat values for n. Directories report their child
// count as size and 2+children links; files report one link.
func (d *Dispatcher) Attributes(n *index.Node) Attributes {
	meta := n.Metadata()
	a := Attributes{
		Inode:     n.Inode(),
		BlockSize: blockSize,
		Uid:       d.uid,
		Gid:       d.gid,
		Atime:     meta.Atime,
		Mtime:     meta.Mtime,
		Ctime:     meta.Ctime,
	}
	if n.IsDir() {
		children := n.NumChildren()
		a.Mode = dirMode
		a.Nlink = safeIntToUint32(2 + children)
		a.Size = uint64(children)
	} else {
		a.Mode = fileMode
		a.Nlink = 1
		a.Size = n.Size()
	}
	a.Blocks = (a.Size + blockSize - 1) / blockSize
	return a
}

// ReadDir lists the directory at path: ".", "..", then the children in
// name order.
func (d *Dispatcher) ReadDir(path string) ([]DirEntry, error) {
	n, err := d.resolve(OpReadDir, path)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, NewFSError(OpReadDir, path, index.ErrNotDirectory)
	}

	parent := n.Parent()
	if parent == nil {
		parent = n
	}

	children := n.Children()
	entries := make([]DirEntry, 0, len(children)+2)
	entries = append(entries,
		DirEntry{Name: ".", Inode: n.Inode(), Dir: true},
		DirEntry{Name: "..", Inode: parent.Inode(), Dir: true},
	)
	for _, c := range children {
		entries = append(entries, DirEntry{Name: c.Name(), Inode: c.Inode(), Dir: c.IsDir()})
	}
	d.log.Trace("readdir %q: %d entries", path, len(entries))
	return entries, nil
}

// Open materializes the file at path and returns its node as the handle.
// The call blocks until the whole entry is decompressed.
func (d *Dispatcher) Open(ctx context.Context, path string) (*index.Node, error) {
	n, err := d.resolve(OpOpen, path)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, NewFSError(OpOpen, path, index.ErrIsDirectory)
	}

	if !n.IsOpen() {
		d.log.Debug("Extracting %q (%d bytes)", path, n.Size())
	}
	if err := n.Open(ctx, d.extractor, d.maxBuffer); err != nil {
		d.log.Error("Failed to open %q: %v", path, err)
		return nil, NewFSError(OpOpen, path, err)
	}
	return n, nil
}

// Read copies up to len(dst) bytes at off from an open handle.
func (d *Dispatcher) Read(h *index.Node, dst []byte, off int64) (int, error) {
	n, err := h.ReadAt(dst, off)
	if err != nil {
		return 0, NewFSError(OpRead, h.Path(), err)
	}
	return n, nil
}

// Release closes one open of the handle.
func (d *Dispatcher) Release(h *index.Node) error {
	if err := h.Close(); err != nil {
		return NewFSError(OpRelease, h.Path(), err)
	}
	if !h.IsOpen() {
		d.log.Debug("Released buffer of %q", h.Path())
	}
	return nil
}

// Reject answers a mutating request. Nothing is changed.
func (d *Dispatcher) Reject(op, path string) error {
	d.log.Debug("Rejected %s on %q: read-only filesystem", op, path)
	return NewFSError(op, path, ErrNotSupported)
}
