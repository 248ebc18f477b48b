//go:build !linux

package source

import "os"

// defaultSectorSize is assumed where the platform geometry query is not wired.
const defaultSectorSize = 512

func querySectorSize(file *os.File) (int, error) {
	return defaultSectorSize, nil
}

// IsBlockDevice reports whether info describes a block device node.
func IsBlockDevice(info os.FileInfo) bool {
	mode := info.Mode()
	return mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
}
