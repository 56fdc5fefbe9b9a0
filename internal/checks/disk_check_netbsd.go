//go:build netbsd

package checks

import "path/filepath"

// CheckDiskSpace returns a conservative "sufficient" placeholder on
// NetBSD, whose statvfs layout differs enough from the other BSDs that
// probing it isn't worth the platform-specific syscall surface for a
// preflight check that is advisory, not load-bearing (see
// internal/restore's disk-space preflight: a false "sufficient" here
// just means the restore proceeds and, in the unlikely low-space case,
// fails during Applying with IOFailure instead of before it starts).
func CheckDiskSpace(path string) *DiskSpaceCheck {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return &DiskSpaceCheck{
		Path:           absPath,
		TotalBytes:     1 << 40,
		AvailableBytes: 1 << 39,
		UsedBytes:      1 << 39,
		UsedPercent:    50,
		Sufficient:     true,
	}
}

// CheckDiskSpaceForRequired mirrors disk_check.go's variant for NetBSD.
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
