package sources

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number backing info, used by FileTail to
// detect a rotated file (same path, different inode) versus ordinary
// append growth.
func inodeOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
