package fs

import (
	"context"
	"os"
	"time"

	"archivefs/internal/archive"
	"archivefs/internal/index"
	"archivefs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	maxNameLength = 255

	// The tree never changes, so the kernel may cache attributes and
	// lookups for a long time.
	cacheValidity = time.Hour
)

// Options configures an ArchiveFS.
type Options struct {
	Logger *logging.Logger
	// Uid and Gid own every node.
	Uid uint32
	Gid uint32
	// MaxBuffer caps the size of a single materialized file. Zero means
	// no cap.
	MaxBuffer int64
	// FSName is shown as the mount source, usually the archive path.
	FSName string
	// AllowOther lets users other than the mounting one access the tree.
	AllowOther bool
	// StatDir is the directory whose free space Statfs reports. Defaults
	// to the working directory at creation time.
	StatDir string
}

// ArchiveFS is the bazil.org/fuse filesystem over an archive index.
type ArchiveFS struct {
	dispatch *Dispatcher
	index    *index.Index
	opts     Options
	log      *logging.Logger

	conn *fuse.Conn
	done chan error
}

// New creates the filesystem for a built index. ex is used to materialize
// files on open.
func New(ix *index.Index, ex archive.Extractor, opts Options) (*ArchiveFS, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.FSName == "" {
		opts.FSName = "archivefs"
	}
	if opts.StatDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get working directory")
		}
		opts.StatDir = wd
	}

	log := opts.Logger.WithPrefix("fs")
	log.Debug("UID: %d, GID: %d, max buffer: %d", opts.Uid, opts.Gid, opts.MaxBuffer)

	return &ArchiveFS{
		dispatch: NewDispatcher(ix, ex, opts),
		index:    ix,
		opts:     opts,
		log:      log,
	}, nil
}

// Dispatcher returns the path based request handler behind the FUSE nodes.
func (afs *ArchiveFS) Dispatcher() *Dispatcher {
	return afs.dispatch
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (afs *ArchiveFS) Root() (fusefs.Node, error) {
	return &Dir{fs: afs, path: NewVirtualPath("/")}, nil
}

// Statfs reports the free space of the filesystem holding StatDir, in
// one-byte blocks, and the number of nodes as the file count.
func (afs *ArchiveFS) Statfs(_ context.Context, _ *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	var st unix.Statfs_t
	if err := unix.Statfs(afs.opts.StatDir, &st); err != nil {
		afs.log.Warn("statfs %s: %v", afs.opts.StatDir, err)
		return ToFuseError(err)
	}

	free := uint64(st.Bavail) * uint64(st.Frsize)
	resp.Bsize = 1
	resp.Frsize = 1
	resp.Blocks = free
	resp.Bfree = free
	resp.Bavail = free
	resp.Files = safeIntToUint64(afs.index.Len() - 1)
	resp.Ffree = 0
	resp.Namelen = maxNameLength
	return nil
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("mount point not available after 3 seconds")
}

func (afs *ArchiveFS) mountOptions() []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName(afs.opts.FSName),
		fuse.Subtype("archivefs"),
		fuse.ReadOnly(),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
		fuse.AllowNonEmptyMount(),
	}
	if afs.opts.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	return opts
}

// Mount mounts the filesystem read-only and starts serving requests in the
// background. Wait blocks until serving stops.
func (afs *ArchiveFS) Mount(mountPoint string) error {
	afs.log.Info("Mounting %s on %s", afs.opts.FSName, mountPoint)

	c, err := fuse.Mount(mountPoint, afs.mountOptions()...)
	if err != nil {
		return errors.Wrap(err, "mount failed")
	}
	afs.conn = c
	afs.done = make(chan error, 1)

	go func() {
		err := fusefs.Serve(c, afs)
		if err != nil {
			afs.log.Error("FUSE server error: %v", err)
		}
		afs.done <- err
	}()

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		return errors.Wrap(err, "mount point failed to initialize")
	}

	afs.log.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the FUSE server returns, which happens after the
// filesystem is unmounted.
func (afs *ArchiveFS) Wait() error {
	if afs.done == nil {
		return nil
	}
	return <-afs.done
}

// Unmount cleanly unmounts the filesystem.
func (afs *ArchiveFS) Unmount(mountPoint string) error {
	if afs.conn == nil {
		return nil
	}
	afs.log.Info("Unmounting filesystem from: %s", mountPoint)
	if err := fuse.Unmount(mountPoint); err != nil {
		return errors.Wrap(err, "unmount failed")
	}
	return nil
}

// Close releases the FUSE connection.
func (afs *ArchiveFS) Close() error {
	if afs.conn == nil {
		return nil
	}
	return afs.conn.Close()
}
