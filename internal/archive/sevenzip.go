package archive

import (
	"sync"

	"archivefs/internal/filetime"
	"archivefs/internal/logging"

	"github.com/bodgit/sevenzip"
	"github.com/pkg/errors"
)

type sevenZipArchive struct {
	rc  *sevenzip.ReadCloser
	log *logging.Logger

	// Extraction from solid blocks is serialized.
	mu sync.Mutex
}

func openSevenZip(path string, log *logging.Logger) (Archive, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &sevenZipArchive{rc: rc, log: log.WithPrefix("7z")}, nil
}

func (s *sevenZipArchive) Format() string {
	return "7z"
}

func (s *sevenZipArchive) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(s.rc.File))
	for i, f := range s.rc.File {
		name := cleanName(f.Name)
		if name == "" {
			continue
		}
		kind := KindFile
		if f.FileInfo().IsDir() {
			kind = KindDir
		}

		// The library has already decoded the FILETIME values; convert them
		// back so every backend hands out the same representation.
		mtime := filetime.FromTime(f.Modified)
		e := Entry{
			Path:  name,
			Kind:  kind,
			MTime: mtime,
			ATime: orTicks(filetime.FromTime(f.Accessed), mtime),
			CTime: orTicks(filetime.FromTime(f.Created), mtime),
			Index: i,
		}
		if kind == KindFile {
			e.Size = f.UncompressedSize
		}

		s.log.Trace("Entry %d: %q (%s, %d bytes)", i, e.Path, e.Kind, e.Size)
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *sevenZipArchive) Extract(index int, dst []byte) error {
	if index < 0 || index >= len(s.rc.File) {
		return errors.Wrapf(ErrNoSuchEntry, "index %d", index)
	}
	f := s.rc.File[index]
	if f.FileInfo().IsDir() {
		return errors.Wrapf(ErrNotRegular, "%s", f.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open 7z entry %s", f.Name)
	}
	defer r.Close()

	if err := fill(r, dst); err != nil {
		return errors.Wrapf(err, "failed to decompress 7z entry %s", f.Name)
	}
	return nil
}

func (s *sevenZipArchive) Close() error {
	return s.rc.Close()
}
