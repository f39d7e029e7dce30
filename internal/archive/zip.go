package archive

import (
	"encoding/binary"

	"archivefs/internal/filetime"
	"archivefs/internal/logging"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Creator host systems from the zip "version made by" field.
const (
	zipCreatorFAT    = 0
	zipCreatorUnix   = 3
	zipCreatorNTFS   = 11
	zipCreatorVFAT   = 14
	zipCreatorMacOSX = 19

	msdosDir = 0x10

	unixTypeMask = 0xF000
	unixDir      = 0x4000
	unixRegular  = 0x8000

	ntfsExtraID    = 0x000a
	ntfsTimeTag    = 0x0001
	ntfsTimeLength = 24
)

type zipArchive struct {
	rc  *zip.ReadCloser
	log *logging.Logger
}

func openZip(path string, log *logging.Logger) (Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	rc.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())

	return &zipArchive{rc: rc, log: log.WithPrefix("zip")}, nil
}

func (z *zipArchive) Format() string {
	return "zip"
}

func (z *zipArchive) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(z.rc.File))
	for i, f := range z.rc.File {
		name := cleanName(f.Name)
		if name == "" {
			continue
		}
		e := Entry{
			Path:  name,
			Kind:  zipKind(&f.FileHeader),
			Size:  f.UncompressedSize64,
			Index: i,
		}

		if m, a, c, ok := ntfsTimes(f.Extra); ok {
			e.MTime, e.ATime, e.CTime = m, a, c
		} else {
			// Only the modification time is recorded; use it for all three.
			mtime := filetime.FromTime(f.Modified)
			e.MTime, e.ATime, e.CTime = mtime, mtime, mtime
		}

		z.log.Trace("Entry %d: %q (%s, %d bytes)", i, e.Path, e.Kind, e.Size)
		entries = append(entries, e)
	}
	return entries, nil
}

func (z *zipArchive) Extract(index int, dst []byte) error {
	if index < 0 || index >= len(z.rc.File) {
		return errors.Wrapf(ErrNoSuchEntry, "index %d", index)
	}
	f := z.rc.File[index]
	if zipKind(&f.FileHeader) == KindDir {
		return errors.Wrapf(ErrNotRegular, "%s", f.Name)
	}

	r, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open zip entry %s", f.Name)
	}
	defer r.Close()

	if err := fill(r, dst); err != nil {
		return errors.Wrapf(err, "failed to decompress zip entry %s", f.Name)
	}
	return nil
}

func (z *zipArchive) Close() error {
	return z.rc.Close()
}

// zipKind reads the directory flag from the external attributes. Entries
// whose attributes carry no type information are reported as KindUnknown.
func zipKind(fh *zip.FileHeader) Kind {
	switch fh.CreatorVersion >> 8 {
	case zipCreatorUnix, zipCreatorMacOSX:
		mode := fh.ExternalAttrs >> 16
		switch mode & unixTypeMask {
		case unixDir:
			return KindDir
		case unixRegular:
			return KindFile
		}
		if fh.ExternalAttrs&msdosDir != 0 {
			return KindDir
		}
	case zipCreatorFAT, zipCreatorNTFS, zipCreatorVFAT:
		if fh.ExternalAttrs&msdosDir != 0 {
			return KindDir
		}
	}
	return KindUnknown
}

// ntfsTimes extracts the raw FILETIME values from the NTFS extra field
// (tag 0x000a, attribute 0x0001).
func ntfsTimes(extra []byte) (mtime, atime, ctime filetime.Ticks, ok bool) {
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return 0, 0, 0, false
		}
		field := extra[:size]
		extra = extra[size:]

		if tag != ntfsExtraID || len(field) < 4 {
			continue
		}

		// Four reserved bytes, then tagged attributes.
		attrs := field[4:]
		for len(attrs) >= 4 {
			attrTag := binary.LittleEndian.Uint16(attrs[0:2])
			attrSize := int(binary.LittleEndian.Uint16(attrs[2:4]))
			attrs = attrs[4:]
			if attrSize > len(attrs) {
				break
			}
			if attrTag == ntfsTimeTag && attrSize >= ntfsTimeLength {
				mtime = filetime.Ticks(binary.LittleEndian.Uint64(attrs[0:8]))
				atime = filetime.Ticks(binary.LittleEndian.Uint64(attrs[8:16]))
				ctime = filetime.Ticks(binary.LittleEndian.Uint64(attrs[16:24]))
				return mtime, atime, ctime, true
			}
			attrs = attrs[attrSize:]
		}
	}
	return 0, 0, 0, false
}
