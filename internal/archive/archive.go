// Package archive reads the entry table of compressed archives and
// decompresses single entries on demand. It is the only part of archivefs
// that knows about container formats.
package archive

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sort"
	"strings"

	"archivefs/internal/filetime"
	"archivefs/internal/logging"

	"github.com/pkg/errors"
)

// Kind tells whether an entry is a file or a directory, when the format
// records it.
type Kind int

const (
	// KindUnknown means the format has no directory flag for the entry;
	// callers infer it from a trailing separator.
	KindUnknown Kind = iota
	KindFile
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Entry describes one record of the archive's entry table.
type Entry struct {
	// Path is slash separated, relative to the archive root.
	Path  string
	Kind  Kind
	Size  uint64
	ATime filetime.Ticks
	MTime filetime.Ticks
	CTime filetime.Ticks
	// Index is the entry's position in the table, used for Extract.
	Index int
}

// Extractor decompresses one entry into a caller-sized buffer.
type Extractor interface {
	// Extract fills dst with the full content of entry index. dst must be
	// exactly the entry's uncompressed size.
	Extract(index int, dst []byte) error
}

// Archive is an opened archive.
type Archive interface {
	Extractor
	// Entries returns the whole entry table, read eagerly.
	Entries() ([]Entry, error)
	// Format names the detected container, e.g. "zip" or "tar.zst".
	Format() string
	Close() error
}

var (
	// ErrUnknownFormat is returned when no backend recognizes the file.
	ErrUnknownFormat = errors.New("unrecognized archive format")

	// ErrNoSuchEntry is returned by Extract for an out-of-range index.
	ErrNoSuchEntry = errors.New("no such archive entry")

	// ErrNotRegular is returned by Extract for directory entries.
	ErrNotRegular = errors.New("archive entry has no content")

	// ErrSizeMismatch is returned when the decompressed content does not
	// match the destination size.
	ErrSizeMismatch = errors.New("decompressed size does not match entry size")
)

type opener func(path string, log *logging.Logger) (Archive, error)

type format struct {
	name   string
	magic  []byte
	offset int
	open   opener
}

// formats is checked in order; plain tar is matched last through the ustar
// marker inside the first header block.
var formats = []format{
	{name: "zip", magic: []byte("PK\x03\x04"), open: openZip},
	{name: "zip", magic: []byte("PK\x05\x06"), open: openZip},
	{name: "7z", magic: []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}, open: openSevenZip},
	{name: "tar.gz", magic: []byte{0x1F, 0x8B}, open: tarOpener(compressionGzip)},
	{name: "tar.zst", magic: []byte{0x28, 0xB5, 0x2F, 0xFD}, open: tarOpener(compressionZstd)},
	{name: "tar.lz4", magic: []byte{0x04, 0x22, 0x4D, 0x18}, open: tarOpener(compressionLZ4)},
	{name: "tar.sz", magic: []byte("\xff\x06\x00\x00sNaPpY"), open: tarOpener(compressionSnappy)},
	{name: "tar.bz2", magic: []byte("BZh"), open: tarOpener(compressionBzip2)},
	{name: "tar", magic: []byte("ustar"), offset: 257, open: tarOpener(compressionNone)},
}

// Formats lists the names of the supported container formats.
func Formats() []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range formats {
		if !seen[f.name] {
			seen[f.name] = true
			names = append(names, f.name)
		}
	}
	sort.Strings(names)
	return names
}

// Open detects the format of the file at path from its leading bytes and
// opens it with the matching backend.
func Open(path string, log *logging.Logger) (Archive, error) {
	log = log.WithPrefix("archive")

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive")
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(bufio.NewReader(f), head)
	f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrap(err, "failed to read archive header")
	}
	head = head[:n]

	for _, fm := range formats {
		end := fm.offset + len(fm.magic)
		if end > len(head) || !bytes.Equal(head[fm.offset:end], fm.magic) {
			continue
		}
		log.Debug("Detected %s archive: %s", fm.name, path)
		a, err := fm.open(path, log)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s archive %s", fm.name, path)
		}
		return a, nil
	}

	return nil, errors.Wrapf(ErrUnknownFormat, "%s", path)
}

// cleanName strips the "./" prefix that "tar -C dir ." and similar tools
// put on every member name. An empty result names the archive root, which
// backends skip.
func cleanName(name string) string {
	for strings.HasPrefix(name, "./") {
		name = name[2:]
	}
	if name == "." {
		return ""
	}
	return name
}

// fill reads exactly len(dst) bytes from r and verifies that r is drained.
func fill(r io.Reader, dst []byte) error {
	if _, err := io.ReadFull(r, dst); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return ErrSizeMismatch
		}
		return err
	}
	// Read on to EOF so that checksumming readers get to verify the stream.
	var extra [1]byte
	for {
		n, err := r.Read(extra[:])
		if n > 0 {
			return ErrSizeMismatch
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
