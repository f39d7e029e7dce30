package fs

import "math"

func safeIntToUint64(n int) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// readSize bounds a kernel read request to something allocatable.
func readSize(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
