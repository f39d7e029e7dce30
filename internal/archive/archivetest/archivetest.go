// Package archivetest provides an in-memory archive for tests.
package archivetest

import (
	"strings"
	"sync"
	"sync/atomic"

	"archivefs/internal/archive"
	"archivefs/internal/filetime"

	"github.com/pkg/errors"
)

// File is one entry of a Memory archive. A Path ending in "/" is a
// directory.
type File struct {
	Path    string
	Content []byte
	Kind    archive.Kind
	MTime   filetime.Ticks
	ATime   filetime.Ticks
	CTime   filetime.Ticks
}

// Memory is an archive.Archive over a fixed list of files.
type Memory struct {
	files []File

	// FailExtract, when set, is returned by every Extract call.
	FailExtract error

	mu       sync.Mutex
	extracts map[int]int
	active   atomic.Int32
	overlap  atomic.Bool
}

// New builds a Memory archive. Entry indexes follow the argument order.
func New(files ...File) *Memory {
	return &Memory{files: files, extracts: make(map[int]int)}
}

func (m *Memory) Format() string { return "memory" }

func (m *Memory) Close() error { return nil }

func (m *Memory) Entries() ([]archive.Entry, error) {
	entries := make([]archive.Entry, 0, len(m.files))
	for i, f := range m.files {
		e := archive.Entry{
			Path:  f.Path,
			Kind:  f.Kind,
			ATime: f.ATime,
			MTime: f.MTime,
			CTime: f.CTime,
			Index: i,
		}
		if !strings.HasSuffix(f.Path, "/") && f.Kind != archive.KindDir {
			e.Size = uint64(len(f.Content))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *Memory) Extract(index int, dst []byte) error {
	if m.active.Add(1) > 1 {
		m.overlap.Store(true)
	}
	defer m.active.Add(-1)

	m.mu.Lock()
	m.extracts[index]++
	m.mu.Unlock()

	if m.FailExtract != nil {
		return m.FailExtract
	}
	if index < 0 || index >= len(m.files) {
		return errors.Wrapf(archive.ErrNoSuchEntry, "index %d", index)
	}
	content := m.files[index].Content
	if len(content) != len(dst) {
		return archive.ErrSizeMismatch
	}
	copy(dst, content)
	return nil
}

// Extractions returns how often entry index was extracted.
func (m *Memory) Extractions(index int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extracts[index]
}

// Overlapped reports whether two Extract calls ever ran at the same time.
func (m *Memory) Overlapped() bool {
	return m.overlap.Load()
}
