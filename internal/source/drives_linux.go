//go:build linux

package source

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfs always reports block device sizes in 512-byte units.
const sysfsSectorSize = 512

// ListDrives enumerates the block devices the kernel knows about.
func ListDrives() ([]Drive, error) {
	return listDrives("/sys/block", "/dev")
}

func listDrives(sysBlock string, devDir string) ([]Drive, error) {
	entries, err := os.ReadDir(sysBlock)
	if err != nil {
		return nil, err
	}

	var drives []Drive

	for _, entry := range entries {
		name := entry.Name()

		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(sysBlock, name, "size"))
		if err != nil {
			continue
		}

		sectors, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil || sectors == 0 {
			continue
		}

		drive := Drive{
			Path: filepath.Join(devDir, name),
			Size: sectors * sysfsSectorSize,
		}

		if model, err := os.ReadFile(filepath.Join(sysBlock, name, "device", "model")); err == nil {
			drive.Model = strings.TrimSpace(string(model))
		}

		drives = append(drives, drive)
	}

	return drives, nil
}
