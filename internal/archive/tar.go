package archive

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"io"
	"os"

	"archivefs/internal/filetime"
	"archivefs/internal/logging"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionZstd
	compressionLZ4
	compressionSnappy
	compressionBzip2
)

func (c compression) String() string {
	switch c {
	case compressionGzip:
		return "tar.gz"
	case compressionZstd:
		return "tar.zst"
	case compressionLZ4:
		return "tar.lz4"
	case compressionSnappy:
		return "tar.sz"
	case compressionBzip2:
		return "tar.bz2"
	default:
		return "tar"
	}
}

// decompress wraps r in the stream decoder for c.
func decompress(c compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case compressionGzip:
		return gzip.NewReader(r)
	case compressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case compressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case compressionSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case compressionBzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// tarArchive re-reads the stream from the start for every extraction, since
// compressed tar streams cannot seek. Each Extract uses its own file handle.
type tarArchive struct {
	path    string
	comp    compression
	entries []Entry
	log     *logging.Logger
}

func tarOpener(c compression) opener {
	return func(path string, log *logging.Logger) (Archive, error) {
		return openTar(path, c, log)
	}
}

func openTar(path string, c compression, log *logging.Logger) (*tarArchive, error) {
	t := &tarArchive{
		path: path,
		comp: c,
		log:  log.WithPrefix("tar"),
	}
	if err := t.scan(); err != nil {
		return nil, err
	}
	return t, nil
}

// stream opens the archive and returns a tar reader positioned at the first
// header, plus a function releasing everything.
func (t *tarArchive) stream() (*tar.Reader, func(), error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, nil, err
	}
	rc, err := decompress(t.comp, bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "failed to start %s decoder", t.comp)
	}
	release := func() {
		rc.Close()
		f.Close()
	}
	return tar.NewReader(rc), release, nil
}

func (t *tarArchive) scan() error {
	tr, release, err := t.stream()
	if err != nil {
		return err
	}
	defer release()

	for ordinal := 0; ; ordinal++ {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read tar header %d", ordinal)
		}

		name := cleanName(hdr.Name)
		if name == "" {
			continue
		}

		var kind Kind
		switch hdr.Typeflag {
		case tar.TypeDir:
			kind = KindDir
		case tar.TypeReg:
			kind = KindFile
		default:
			t.log.Debug("Skipping %q: unsupported tar entry type %q", hdr.Name, hdr.Typeflag)
			continue
		}

		mtime := filetime.FromTime(hdr.ModTime)
		e := Entry{
			Path:  name,
			Kind:  kind,
			MTime: mtime,
			ATime: orTicks(filetime.FromTime(hdr.AccessTime), mtime),
			CTime: orTicks(filetime.FromTime(hdr.ChangeTime), mtime),
			Index: ordinal,
		}
		if kind == KindFile && hdr.Size > 0 {
			e.Size = uint64(hdr.Size)
		}
		t.entries = append(t.entries, e)
	}
}

func orTicks(v, fallback filetime.Ticks) filetime.Ticks {
	if v.IsZero() {
		return fallback
	}
	return v
}

func (t *tarArchive) Format() string {
	return t.comp.String()
}

func (t *tarArchive) Entries() ([]Entry, error) {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out, nil
}

func (t *tarArchive) Extract(index int, dst []byte) error {
	if index < 0 {
		return errors.Wrapf(ErrNoSuchEntry, "index %d", index)
	}
	tr, release, err := t.stream()
	if err != nil {
		return err
	}
	defer release()

	for ordinal := 0; ; ordinal++ {
		hdr, err := tr.Next()
		if err == io.EOF {
			return errors.Wrapf(ErrNoSuchEntry, "index %d", index)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read tar header %d", ordinal)
		}
		if ordinal < index {
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			return errors.Wrapf(ErrNotRegular, "%s", hdr.Name)
		}
		if hdr.Size != int64(len(dst)) {
			return errors.Wrapf(ErrSizeMismatch, "%s: header says %d, buffer is %d", hdr.Name, hdr.Size, len(dst))
		}
		if err := fill(tr, dst); err != nil {
			return errors.Wrapf(err, "failed to decompress tar entry %s", hdr.Name)
		}
		return nil
	}
}

func (t *tarArchive) Close() error {
	return nil
}
