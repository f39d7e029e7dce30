package index

import (
	"strings"
	"time"

	"archivefs/internal/archive"
	"archivefs/internal/filetime"
)

// Metadata holds the normalized attributes of a node.
type Metadata struct {
	Dir   bool
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// Synthesize converts an archive entry into node metadata. Timestamps the
// archive did not record are replaced by fallback. Directories always have
// size zero.
func Synthesize(e archive.Entry, fallback time.Time) Metadata {
	m := Metadata{
		Atime: ticksOr(e.ATime, fallback),
		Mtime: ticksOr(e.MTime, fallback),
		Ctime: ticksOr(e.CTime, fallback),
	}

	switch e.Kind {
	case archive.KindDir:
		m.Dir = true
	case archive.KindFile:
		m.Dir = false
	default:
		m.Dir = strings.HasSuffix(e.Path, "/")
	}

	if !m.Dir {
		m.Size = e.Size
	}
	return m
}

func ticksOr(t filetime.Ticks, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.Time()
}

func syntheticDir(at time.Time) Metadata {
	return Metadata{Dir: true, Atime: at, Mtime: at, Ctime: at}
}
