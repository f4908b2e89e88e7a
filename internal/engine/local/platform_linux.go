//go:build linux

package local

import (
	"golang.org/x/sys/unix"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// mmapFlags asks the kernel to prefault the whole mapping when the cache is
// unlimited.
func mmapFlags(flags uint32) int {
	if flags&engine.CacheUnlimited != 0 {
		return unix.MAP_POPULATE
	}
	return 0
}

// checkWritable reports whether the process may write path.
func checkWritable(path string) error {
	return unix.Access(path, unix.W_OK)
}
