package infrastructure

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// FreeSpace returns the bytes available on the filesystem holding path
func FreeSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read disk usage of %s: %w", path, err)
	}
	return usage.Free, nil
}
