package index

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound indicates a path that is not in the index
	ErrNotFound = errors.New("no such file or directory")

	// ErrNotDirectory indicates a directory operation on a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory indicates a file operation on a directory
	ErrIsDirectory = errors.New("is a directory")

	// ErrOutOfMemory indicates a file too large to materialize
	ErrOutOfMemory = errors.New("cannot allocate buffer")

	// ErrExtractionFailed indicates the archive could not decompress an entry
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrInvalidRange indicates a read at a negative offset
	ErrInvalidRange = errors.New("invalid read range")

	// ErrNotOpen indicates a read or close on a node without an open buffer
	ErrNotOpen = errors.New("file is not open")

	// ErrPathConflict indicates an archive path that is both a file and a directory
	ErrPathConflict = errors.New("path conflicts with an existing entry")

	// ErrDuplicateEntry indicates an archive listing the same path twice
	ErrDuplicateEntry = errors.New("duplicate archive entry")
)

// ExtractError reports a failed decompression. It matches
// ErrExtractionFailed under errors.Is and unwraps to the archive's error.
type ExtractError struct {
	Path  string
	Index int
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extracting %s (entry %d): %v", e.Path, e.Index, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

func (e *ExtractError) Is(target error) bool {
	return target == ErrExtractionFailed
}
