//go:build openbsd

package checks

import (
	"path/filepath"
	"syscall"
)

// CheckDiskSpace reports disk usage on OpenBSD, whose Statfs_t uses
// F_-prefixed field names instead of Blocks/Bsize/Bavail.
func CheckDiskSpace(path string) *DiskSpaceCheck {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return &DiskSpaceCheck{Path: absPath, Critical: true, Sufficient: false}
	}

	totalBytes := uint64(stat.F_blocks) * uint64(stat.F_bsize)
	availableBytes := uint64(stat.F_bavail) * uint64(stat.F_bsize)
	usedBytes := totalBytes - availableBytes
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	check := &DiskSpaceCheck{
		Path:           absPath,
		TotalBytes:     totalBytes,
		AvailableBytes: availableBytes,
		UsedBytes:      usedBytes,
		UsedPercent:    usedPercent,
	}
	check.Critical = usedPercent >= 95
	check.Warning = usedPercent >= 80 && !check.Critical
	check.Sufficient = !check.Critical && !check.Warning
	return check
}

// CheckDiskSpaceForRequired mirrors disk_check.go's variant for OpenBSD.
func CheckDiskSpaceForRequired(path string, requiredBytes uint64) *DiskSpaceCheck {
	check := CheckDiskSpace(path)
	if check.AvailableBytes < requiredBytes {
		check.Critical = true
		check.Sufficient = false
		check.Warning = false
	} else if check.AvailableBytes < requiredBytes*2 {
		check.Warning = true
		check.Sufficient = false
	}
	return check
}
