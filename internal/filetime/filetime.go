// Package filetime converts archive timestamps between the Windows FILETIME
// representation (100ns ticks since 1601-01-01 UTC) used by 7z and the NTFS
// zip extra field, and Unix time.
package filetime

import (
	"math"
	"time"
)

// Ticks counts 100-nanosecond intervals since 1601-01-01 00:00:00 UTC.
// The zero value means the archive did not record the timestamp.
type Ticks uint64

const (
	// TicksPerSecond is the FILETIME resolution.
	TicksPerSecond = 10_000_000

	nanosPerTick  = 100
	secondsPerDay = 24 * 60 * 60

	epochYear = 1601
	unixYear  = 1970
)

// EpochOffset is the number of ticks between the FILETIME epoch and the
// Unix epoch (116444736000000000).
var EpochOffset = computeEpochOffset()

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// daysBetween counts whole days from Jan 1 of from to Jan 1 of to.
func daysBetween(from, to int) int64 {
	var days int64
	for y := from; y < to; y++ {
		days += 365
		if isLeap(y) {
			days++
		}
	}
	return days
}

func computeEpochOffset() int64 {
	return daysBetween(epochYear, unixYear) * secondsPerDay * TicksPerSecond
}

// Unix splits t into Unix seconds and nanoseconds. The nanosecond part is
// always in [0, 1e9), so instants before 1970 borrow from the seconds.
func (t Ticks) Unix() (sec, nsec int64) {
	if t > math.MaxInt64 {
		t = math.MaxInt64
	}
	rel := int64(t) - EpochOffset
	sec = rel / TicksPerSecond
	rem := rel % TicksPerSecond
	if rem < 0 {
		sec--
		rem += TicksPerSecond
	}
	return sec, rem * nanosPerTick
}

// Time returns t as a UTC time.Time.
func (t Ticks) Time() time.Time {
	sec, nsec := t.Unix()
	return time.Unix(sec, nsec).UTC()
}

// IsZero reports whether the timestamp is absent. Values past the int64
// range cannot be converted and count as absent too.
func (t Ticks) IsZero() bool {
	return t == 0 || t > math.MaxInt64
}

// FromTime converts tm to ticks, truncating to the FILETIME resolution.
// Instants before 1601 and the zero time.Time map to 0.
func FromTime(tm time.Time) Ticks {
	if tm.IsZero() {
		return 0
	}
	rel := tm.Unix()*TicksPerSecond + int64(tm.Nanosecond())/nanosPerTick
	if rel+EpochOffset <= 0 {
		return 0
	}
	return Ticks(rel + EpochOffset)
}
