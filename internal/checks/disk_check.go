//go:build !windows && !openbsd && !netbsd

package checks

import (
	"path/filepath"
	"syscall"
)

// CheckDiskSpace reports disk usage for the filesystem backing path.
func CheckDiskSpace(path string) *DiskSpaceCheck {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return &DiskSpaceCheck{Path: absPath, Critical: true, Sufficient: false}
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	availableBytes := stat.Bavail * uint64(stat.Bsize)
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

// CheckDiskSpaceForRequired checks path against a caller-computed byte
// requirement (the Restorer's summed chain size, or a Backup's
// estimated artifact size), rather than guessing a multiplier off an
// archive's compressed size the way a database dump tool would.
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
