package fs

import (
	"context"

	"archivefs/internal/index"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

// File is a regular file of the archive tree.
type File struct {
	fs   *ArchiveFS
	path *VirtualPath
}

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	attrs, err := f.fs.dispatch.Getattr(f.path.Relative())
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(a, attrs)
	return nil
}

// Open implements the NodeOpener interface. The whole entry is decompressed
// before Open returns.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	if !req.Flags.IsReadOnly() {
		f.fs.log.Debug("Write access to %q refused", f.path.String())
		return nil, ToFuseError(f.fs.dispatch.Reject(OpOpen, f.path.String()))
	}

	node, err := f.fs.dispatch.Open(ctx, f.path.Relative())
	if err != nil {
		return nil, ToFuseError(err)
	}

	// Content never changes, so the page cache stays valid across opens.
	resp.Flags |= fuse.OpenKeepCache
	return &FileHandle{fs: f.fs, node: node}, nil
}

// Fsync implements the NodeFsyncer interface. There is nothing to flush.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	return nil
}

// Access implements the NodeAccesser interface.
func (f *File) Access(_ context.Context, _ *fuse.AccessRequest) error {
	return nil
}

// Setattr implements the NodeSetattrer interface; it covers truncate.
func (f *File) Setattr(_ context.Context, _ *fuse.SetattrRequest, _ *fuse.SetattrResponse) error {
	return ToFuseError(f.fs.dispatch.Reject(OpSetattr, f.path.String()))
}

// Getxattr implements the NodeGetxattrer interface.
func (f *File) Getxattr(_ context.Context, _ *fuse.GetxattrRequest, _ *fuse.GetxattrResponse) error {
	return ToFuseError(f.fs.dispatch.Reject(OpGetxattr, f.path.String()))
}

// Setxattr implements the NodeSetxattrer interface.
func (f *File) Setxattr(_ context.Context, _ *fuse.SetxattrRequest) error {
	return ToFuseError(f.fs.dispatch.Reject(OpSetxattr, f.path.String()))
}

// Listxattr implements the NodeListxattrer interface.
func (f *File) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, _ *fuse.ListxattrResponse) error {
	return ToFuseError(f.fs.dispatch.Reject(OpListxattr, f.path.String()))
}

// Removexattr implements the NodeRemovexattrer interface.
func (f *File) Removexattr(_ context.Context, _ *fuse.RemovexattrRequest) error {
	return ToFuseError(f.fs.dispatch.Reject(OpRemovexattr, f.path.String()))
}

// FileHandle is an open file. Handles of the same file share the node's
// buffer.
type FileHandle struct {
	fs   *ArchiveFS
	node *index.Node
}

// Read implements the HandleReader interface, reading data from the buffer.
func (fh *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, readSize(req.Size))
	n, err := fh.fs.dispatch.Read(fh.node, buf, req.Offset)
	if err != nil {
		return ToFuseError(err)
	}
	resp.Data = buf[:n]
	return nil
}

// Write implements the HandleWriter interface.
func (fh *FileHandle) Write(_ context.Context, _ *fuse.WriteRequest, _ *fuse.WriteResponse) error {
	return ToFuseError(fh.fs.dispatch.Reject(OpWrite, fh.node.Path()))
}

// Flush implements the HandleFlusher interface.
func (fh *FileHandle) Flush(_ context.Context, _ *fuse.FlushRequest) error {
	return nil
}

// Release implements the HandleReleaser interface, dropping the buffer
// reference.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	return ToFuseError(fh.fs.dispatch.Release(fh.node))
}
