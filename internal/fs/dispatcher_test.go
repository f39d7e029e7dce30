package fs

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"testing"

	"archivefs/internal/archive/archivetest"
	"archivefs/internal/index"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherGetattr(t *testing.T) {
	afs, _, cleanup := setupTestFS(t)
	defer cleanup()
	d := afs.Dispatcher()

	root, err := d.Getattr("")
	require.NoError(t, err)
	assert.Equal(t, os.ModeDir|0755, root.Mode)
	assert.Equal(t, uint32(5), root.Nlink)
	assert.Equal(t, uint64(3), root.Size)

	slash, err := d.Getattr("/")
	require.NoError(t, err)
	assert.Equal(t, root, slash)

	file, err := d.Getattr("/dir1/file2.txt")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), file.Mode)
	assert.Equal(t, uint32(1), file.Nlink)
	assert.Equal(t, uint64(len("second file")), file.Size)
	assert.Equal(t, uint32(testUID), file.Uid)
	assert.Equal(t, uint32(testGID), file.Gid)
	assert.Equal(t, testTime, file.Mtime, "entries without times fall back to the default")

	_, err = d.Getattr("nonexistent")
	assert.ErrorIs(t, err, index.ErrNotFound)
	assert.Equal(t, syscall.ENOENT, Errno(err))

	var fsErr *Error
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, OpGetattr, fsErr.Op)
	assert.Equal(t, "nonexistent", fsErr.Path)
}

func TestDispatcherBlocks(t *testing.T) {
	afs, _, cleanup := setupTestFS(t,
		archivetest.File{Path: "zero", Content: []byte{}},
		archivetest.File{Path: "one", Content: make([]byte, 512)},
		archivetest.File{Path: "two", Content: make([]byte, 513)},
	)
	defer cleanup()
	d := afs.Dispatcher()

	for name, want := range map[string]uint64{"zero": 0, "one": 1, "two": 2} {
		a, err := d.Getattr(name)
		require.NoError(t, err)
		assert.Equal(t, want, a.Blocks, name)
	}
}

func TestDispatcherReadDir(t *testing.T) {
	afs, _, cleanup := setupTestFS(t)
	defer cleanup()
	d := afs.Dispatcher()

	entries, err := d.ReadDir("dir1")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{".", "..", "dir2", "file2.txt"}, names)
	assert.True(t, entries[2].Dir)
	assert.False(t, entries[3].Dir)

	_, err = d.ReadDir("file1.txt")
	assert.ErrorIs(t, err, index.ErrNotDirectory)
	assert.Equal(t, syscall.ENOTDIR, Errno(err))

	_, err = d.ReadDir("missing")
	assert.Equal(t, syscall.ENOENT, Errno(err))
}

func TestDispatcherOpenReadRelease(t *testing.T) {
	afs, _, cleanup := setupTestFS(t)
	defer cleanup()
	d := afs.Dispatcher()
	ctx := context.Background()

	_, err := d.Open(ctx, "dir1")
	assert.ErrorIs(t, err, index.ErrIsDirectory)
	assert.Equal(t, syscall.EISDIR, Errno(err))

	_, err = d.Open(ctx, "missing.txt")
	assert.Equal(t, syscall.ENOENT, Errno(err))

	h, err := d.Open(ctx, "/file1.txt")
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := d.Read(h, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(buf[:n]))

	_, err = d.Read(h, buf, -1)
	assert.Equal(t, syscall.EINVAL, Errno(err))

	require.NoError(t, d.Release(h))
	err = d.Release(h)
	assert.Equal(t, syscall.EBADF, Errno(err))
}

func TestDispatcherReject(t *testing.T) {
	afs, _, cleanup := setupTestFS(t)
	defer cleanup()
	d := afs.Dispatcher()

	before, err := d.Getattr("dir1")
	require.NoError(t, err)
	listing, err := d.ReadDir("")
	require.NoError(t, err)

	for _, op := range []string{OpWrite, OpCreate, OpRemove, OpMkdir, OpRename, OpSetattr, OpSymlink, OpLink, OpMknod, OpSetxattr, OpRemovexattr} {
		err := d.Reject(op, "/dir1")
		assert.ErrorIs(t, err, ErrNotSupported, op)
		assert.Equal(t, syscall.ENOTSUP, Errno(err), op)
	}

	after, err := d.Getattr("dir1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	listingAfter, err := d.ReadDir("")
	require.NoError(t, err)
	assert.Equal(t, listing, listingAfter)
}

func TestDispatcherConcurrentReads(t *testing.T) {
	var files []archivetest.File
	for i := 0; i < 6; i++ {
		files = append(files, archivetest.File{
			Path:    fmt.Sprintf("data/%d.bin", i),
			Content: []byte(fmt.Sprintf("content of file number %d", i)),
		})
	}
	afs, _, cleanup := setupTestFS(t, files...)
	defer cleanup()
	d := afs.Dispatcher()
	ctx := context.Background()

	var wg conc.WaitGroup
	for round := 0; round < 5; round++ {
		for _, f := range files {
			wg.Go(func() {
				h, err := d.Open(ctx, f.Path)
				if !assert.NoError(t, err) {
					return
				}
				defer d.Release(h)

				buf := make([]byte, len(f.Content)+10)
				n, err := d.Read(h, buf, 0)
				assert.NoError(t, err)
				assert.Equal(t, f.Content, buf[:n])
			})
		}
	}
	wg.Wait()

	for _, f := range files {
		n, err := afs.index.Find(f.Path)
		require.NoError(t, err)
		assert.False(t, n.IsOpen(), f.Path)
	}
}

func TestErrno(t *testing.T) {
	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{index.ErrNotFound, syscall.ENOENT},
		{NewFSError(OpOpen, "x", index.ErrOutOfMemory), syscall.ENOMEM},
		{&index.ExtractError{Path: "x", Err: errors.New("bad crc")}, syscall.EIO},
		{errors.Wrap(index.ErrInvalidRange, "offset -1"), syscall.EINVAL},
		{os.ErrPermission, syscall.EACCES},
		{syscall.EROFS, syscall.EROFS},
		{errors.New("something else"), syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, Errno(tt.err))
		})
	}

	assert.NoError(t, ToFuseError(nil))
}
