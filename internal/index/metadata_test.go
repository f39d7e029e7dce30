package index

import (
	"math"
	"testing"
	"time"

	"archivefs/internal/archive"
	"archivefs/internal/filetime"

	"github.com/stretchr/testify/assert"
)

func TestSynthesize(t *testing.T) {
	// 2000-02-29 12:30:15.1234567 UTC
	leapDay := filetime.Ticks(125963010151234567)
	leapTime := time.Date(2000, time.February, 29, 12, 30, 15, 123456700, time.UTC)

	tests := []struct {
		name  string
		entry archive.Entry
		want  Metadata
	}{
		{
			name:  "file with all times",
			entry: archive.Entry{Path: "f", Kind: archive.KindFile, Size: 99, ATime: leapDay, MTime: leapDay, CTime: leapDay},
			want:  Metadata{Size: 99, Atime: leapTime, Mtime: leapTime, Ctime: leapTime},
		},
		{
			name:  "directory flag wins over missing slash",
			entry: archive.Entry{Path: "d", Kind: archive.KindDir, Size: 4096, MTime: leapDay},
			want:  Metadata{Dir: true, Atime: defaultTime, Mtime: leapTime, Ctime: defaultTime},
		},
		{
			name:  "unknown kind with trailing slash",
			entry: archive.Entry{Path: "d/", Kind: archive.KindUnknown},
			want:  Metadata{Dir: true, Atime: defaultTime, Mtime: defaultTime, Ctime: defaultTime},
		},
		{
			name:  "unknown kind without trailing slash",
			entry: archive.Entry{Path: "f", Kind: archive.KindUnknown, Size: 5},
			want:  Metadata{Size: 5, Atime: defaultTime, Mtime: defaultTime, Ctime: defaultTime},
		},
		{
			name:  "file flag wins over trailing slash",
			entry: archive.Entry{Path: "odd/", Kind: archive.KindFile, Size: 1},
			want:  Metadata{Size: 1, Atime: defaultTime, Mtime: defaultTime, Ctime: defaultTime},
		},
		{
			name:  "corrupt times beyond int64",
			entry: archive.Entry{Path: "f", Kind: archive.KindFile, MTime: math.MaxUint64, ATime: math.MaxInt64 + 1, CTime: leapDay},
			want:  Metadata{Atime: defaultTime, Mtime: defaultTime, Ctime: leapTime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Synthesize(tt.entry, defaultTime))
		})
	}
}

func TestSynthesizeEpoch(t *testing.T) {
	m := Synthesize(archive.Entry{Path: "f", Kind: archive.KindFile, MTime: filetime.Ticks(filetime.EpochOffset)}, defaultTime)
	assert.Equal(t, int64(0), m.Mtime.Unix())
	assert.Equal(t, 0, m.Mtime.Nanosecond())
}
