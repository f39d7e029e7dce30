package index

import (
	"context"
	"time"

	"archivefs/internal/archive"
	"archivefs/internal/logging"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

const progressInterval = 10000

// BuildOptions controls index construction.
type BuildOptions struct {
	Logger *logging.Logger
	// DefaultTime stands in for timestamps the archive does not record and
	// for directories that only exist implicitly. Usually the archive
	// file's own modification time.
	DefaultTime time.Time
	// StrictDuplicates makes a path listed twice fail the build instead of
	// keeping the first entry.
	StrictDuplicates bool
}

// BuildStats summarizes a finished build.
type BuildStats struct {
	Entries    int
	Dirs       int
	Files      int
	Duplicates int
	Skipped    int
	TotalBytes uint64
}

// Build creates the index for entries. Every entry becomes a node, with
// missing parent directories added along the way. A directory entry seen
// after one of its children attaches to the implicit directory created for
// that child.
func Build(ctx context.Context, entries []archive.Entry, opts BuildOptions) (*Index, BuildStats, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithPrefix("index")

	ix := New(opts.DefaultTime)
	var stats BuildStats

	log.Info("Indexing %d archive entries", len(entries))
	started := time.Now()

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, stats, errors.Wrap(err, "index build interrupted")
		}
		if i > 0 && i%progressInterval == 0 {
			log.Info("Indexed %d of %d entries", i, len(entries))
		}
		stats.Entries++

		segments := SplitPath(e.Path)
		if len(segments) == 0 {
			log.Warn("Skipping entry %d with empty path %q", e.Index, e.Path)
			stats.Skipped++
			continue
		}

		meta := Synthesize(e, opts.DefaultTime)
		node, err := ix.Insert(segments, meta.Dir)
		if err != nil {
			return nil, stats, errors.Wrapf(err, "failed to index entry %d", e.Index)
		}

		if node.archiveIndex != SyntheticIndex {
			stats.Duplicates++
			if opts.StrictDuplicates {
				return nil, stats, errors.Wrapf(ErrDuplicateEntry, "%s listed as entries %d and %d", e.Path, node.archiveIndex, e.Index)
			}
			log.Warn("Duplicate entry %d for %q, keeping entry %d", e.Index, e.Path, node.archiveIndex)
			continue
		}

		node.archiveIndex = e.Index
		node.meta = meta
		if log.Enabled(logging.LevelTrace) {
			log.Trace("Indexed %q as %s (inode %d)", node.Path(), kindName(meta.Dir), node.inode)
		}
	}

	ix.Walk(func(n *Node) {
		switch {
		case n.IsRoot():
		case n.IsDir():
			stats.Dirs++
		default:
			stats.Files++
			stats.TotalBytes += n.Size()
		}
	})

	log.Info("Indexed %d entries: %d directories, %d files, %s in %s",
		stats.Entries, stats.Dirs, stats.Files, humanize.IBytes(stats.TotalBytes),
		time.Since(started).Round(time.Millisecond))
	if stats.Duplicates > 0 {
		log.Warn("Archive lists %d duplicate paths", stats.Duplicates)
	}
	return ix, stats, nil
}
