//go:build !linux

package source

import "errors"

// ListDrives is only implemented for Linux.
func ListDrives() ([]Drive, error) {
	return nil, errors.New("drive listing is only supported on linux")
}
