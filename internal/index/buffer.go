package index

import (
	"context"
	"math"

	"archivefs/internal/archive"

	"github.com/pkg/errors"
)

// Open materializes the file: the first open allocates a buffer of Size()
// bytes and has ex decompress the entry into it. Further opens share that
// buffer and only raise the open count. limit caps the allocation; zero
// means no cap beyond what the platform can address.
//
// Extraction is not interruptible. ctx is only checked before it starts.
func (n *Node) Open(ctx context.Context, ex archive.Extractor, limit int64) error {
	if n.IsDir() {
		return ErrIsDirectory
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.opens > 0 {
		n.opens++
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	size := n.meta.Size
	if size > math.MaxInt || (limit > 0 && size > uint64(limit)) {
		return errors.Wrapf(ErrOutOfMemory, "%s needs %d bytes", n.Path(), size)
	}

	buf := make([]byte, int(size))
	if err := ex.Extract(n.archiveIndex, buf); err != nil {
		return &ExtractError{Path: n.Path(), Index: n.archiveIndex, Err: err}
	}

	n.buf = buf
	n.opens = 1
	return nil
}

// ReadAt copies bytes starting at off into p and returns the count. Reads
// are clamped to the buffer: at or past the end nothing is copied. Unlike
// io.ReaderAt, a short read is not an error.
func (n *Node) ReadAt(p []byte, off int64) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.opens == 0 {
		return 0, ErrNotOpen
	}
	if off < 0 {
		return 0, errors.Wrapf(ErrInvalidRange, "offset %d", off)
	}
	if off >= int64(len(n.buf)) {
		return 0, nil
	}
	return copy(p, n.buf[off:]), nil
}

// Close drops one open reference and frees the buffer with the last one.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.opens == 0 {
		return ErrNotOpen
	}
	n.opens--
	if n.opens == 0 {
		n.buf = nil
	}
	return nil
}

// IsOpen reports whether a buffer is attached.
func (n *Node) IsOpen() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.opens > 0
}

// OpenCount returns the number of outstanding opens.
func (n *Node) OpenCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.opens
}

// release frees the buffer regardless of the open count.
func (n *Node) release() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	had := n.opens > 0
	n.buf = nil
	n.opens = 0
	return had
}
