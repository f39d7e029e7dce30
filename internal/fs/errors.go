// Package fs serves an archive index over FUSE.
//
// This file contains error types and the mapping to FUSE status codes.
package fs

import (
	"fmt"
	"os"
	"syscall"

	"archivefs/internal/index"

	"bazil.org/fuse"
	"github.com/pkg/errors"
)

// ErrNotSupported is returned for every request that would modify the
// filesystem.
var ErrNotSupported = errors.New("operation not supported on a read-only archive")

// Error wraps filesystem errors with the operation and path that failed.
type Error struct {
	Op   string // Operation that failed (e.g., "lookup", "readdir")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewFSError creates a new Error with the given operation, path, and underlying error
func NewFSError(op string, path string, err error) *Error {
	return &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

var errnoTable = []struct {
	err   error
	errno syscall.Errno
}{
	{index.ErrNotFound, syscall.ENOENT},
	{index.ErrNotDirectory, syscall.ENOTDIR},
	{index.ErrIsDirectory, syscall.EISDIR},
	{ErrNotSupported, syscall.ENOTSUP},
	{index.ErrOutOfMemory, syscall.ENOMEM},
	{index.ErrExtractionFailed, syscall.EIO},
	{index.ErrInvalidRange, syscall.EINVAL},
	{index.ErrNotOpen, syscall.EBADF},
	{os.ErrNotExist, syscall.ENOENT},
	{os.ErrPermission, syscall.EACCES},
}

// Errno returns the status code for err. Unknown errors become EIO.
func Errno(err error) syscall.Errno {
	for _, m := range errnoTable {
		if errors.Is(err, m.err) {
			return m.errno
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}

// ToFuseError converts an error into the value handed back to bazil.org/fuse.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}
	return fuse.Errno(Errno(err))
}

// Common operation names for consistent logging and error reporting
const (
	OpLookup      = "lookup"  // Looking up a path
	OpReadDir     = "readdir" // Reading directory contents
	OpOpen        = "open"    // Opening a file
	OpRead        = "read"    // Reading from a file
	OpRelease     = "release"
	OpGetattr     = "getattr" // Getting file attributes
	OpWrite       = "write"
	OpCreate      = "create" // Creating a new file
	OpMkdir       = "mkdir"  // Creating a new directory
	OpRemove      = "remove" // Removing a file or directory
	OpRename      = "rename" // Renaming/moving a file or directory
	OpSetattr     = "setattr"
	OpSymlink     = "symlink"
	OpLink        = "link"
	OpMknod       = "mknod"
	OpSetxattr    = "setxattr"
	OpGetxattr    = "getxattr"
	OpListxattr   = "listxattr"
	OpRemovexattr = "removexattr"
)
