//go:build linux

package source

import (
	"os"

	"golang.org/x/sys/unix"
)

func querySectorSize(file *os.File) (int, error) {
	return unix.IoctlGetInt(int(file.Fd()), unix.BLKSSZGET)
}

// IsBlockDevice reports whether info describes a block device node.
func IsBlockDevice(info os.FileInfo) bool {
	mode := info.Mode()
	return mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
}
