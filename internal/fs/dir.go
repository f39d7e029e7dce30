package fs

import (
	"context"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

// Dir is a directory of the archive tree. It only carries its path; every
// request is resolved through the dispatcher.
type Dir struct {
	fs   *ArchiveFS
	path *VirtualPath
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	attrs, err := d.fs.dispatch.Getattr(d.path.Relative())
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(a, attrs)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	childPath := d.path.Child(name)
	d.fs.log.Trace("Looking up %q in directory %q", name, d.path.String())

	attrs, err := d.fs.dispatch.Getattr(childPath.Relative())
	if err != nil {
		return nil, ToFuseError(err)
	}
	if attrs.Mode.IsDir() {
		return &Dir{fs: d.fs, path: childPath}, nil
	}
	return &File{fs: d.fs, path: childPath}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.dispatch.ReadDir(d.path.Relative())
	if err != nil {
		return nil, ToFuseError(err)
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.Dir {
			typ = fuse.DT_Dir
		}
		dirents = append(dirents, fuse.Dirent{Inode: e.Inode, Name: e.Name, Type: typ})
	}
	return dirents, nil
}

// Access implements the NodeAccesser interface. Permission checks are left
// to the kernel.
func (d *Dir) Access(_ context.Context, _ *fuse.AccessRequest) error {
	return nil
}

func (d *Dir) reject(op, name string) error {
	return ToFuseError(d.fs.dispatch.Reject(op, d.path.Child(name).String()))
}

// Mkdir implements the NodeMkdirer interface.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	return nil, d.reject(OpMkdir, req.Name)
}

// Create implements the NodeCreater interface.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, _ *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	return nil, nil, d.reject(OpCreate, req.Name)
}

// Remove implements the NodeRemover interface; it covers unlink and rmdir.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	return d.reject(OpRemove, req.Name)
}

// Rename implements the NodeRenamer interface.
func (d *Dir) Rename(_ context.Context, req *fuse.RenameRequest, _ fusefs.Node) error {
	return d.reject(OpRename, req.OldName)
}

// Symlink implements the NodeSymlinker interface.
func (d *Dir) Symlink(_ context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	return nil, d.reject(OpSymlink, req.NewName)
}

// Link implements the NodeLinker interface.
func (d *Dir) Link(_ context.Context, req *fuse.LinkRequest, _ fusefs.Node) (fusefs.Node, error) {
	return nil, d.reject(OpLink, req.NewName)
}

// Mknod implements the NodeMknoder interface.
func (d *Dir) Mknod(_ context.Context, req *fuse.MknodRequest) (fusefs.Node, error) {
	return nil, d.reject(OpMknod, req.Name)
}

// Setattr implements the NodeSetattrer interface.
func (d *Dir) Setattr(_ context.Context, _ *fuse.SetattrRequest, _ *fuse.SetattrResponse) error {
	return ToFuseError(d.fs.dispatch.Reject(OpSetattr, d.path.String()))
}

// Setxattr implements the NodeSetxattrer interface.
func (d *Dir) Setxattr(_ context.Context, _ *fuse.SetxattrRequest) error {
	return ToFuseError(d.fs.dispatch.Reject(OpSetxattr, d.path.String()))
}

// Getxattr implements the NodeGetxattrer interface. Archives carry no
// extended attributes.
func (d *Dir) Getxattr(_ context.Context, _ *fuse.GetxattrRequest, _ *fuse.GetxattrResponse) error {
	return ToFuseError(d.fs.dispatch.Reject(OpGetxattr, d.path.String()))
}

// Listxattr implements the NodeListxattrer interface.
func (d *Dir) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, _ *fuse.ListxattrResponse) error {
	return ToFuseError(d.fs.dispatch.Reject(OpListxattr, d.path.String()))
}

// Removexattr implements the NodeRemovexattrer interface.
func (d *Dir) Removexattr(_ context.Context, _ *fuse.RemovexattrRequest) error {
	return ToFuseError(d.fs.dispatch.Reject(OpRemovexattr, d.path.String()))
}

func fillAttr(a *fuse.Attr, attrs Attributes) {
	a.Valid = cacheValidity
	a.Inode = attrs.Inode
	a.Mode = attrs.Mode
	a.Nlink = attrs.Nlink
	a.Size = attrs.Size
	a.Blocks = attrs.Blocks
	a.BlockSize = attrs.BlockSize
	a.Uid = attrs.Uid
	a.Gid = attrs.Gid
	a.Atime = attrs.Atime
	a.Mtime = attrs.Mtime
	a.Ctime = attrs.Ctime
}
