// Package checks implements the disk-space preflight the Restorer runs
// before applying a chain (section 4.H): it estimates the bytes a
// restore or backup is about to write and refuses to start if free
// space on the target filesystem looks insufficient. Grounded on
// internal/checks/disk_check*.go's build-tag-split syscall.Statfs_t
// probing, trimmed of the database-specific compression-ratio
// estimator and error-message classifier built for pg_dump/mysqldump
// output (neither applies to a file-tree backup).
package checks

import "fmt"

// DiskSpaceCheck reports free/used space for one filesystem path.
type DiskSpaceCheck struct {
	Path           string
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64
	Sufficient     bool
	Warning        bool
	Critical       bool
}

// FormatDiskSpaceMessage renders check as a one-paragraph human summary
// for CLI stderr output.
func FormatDiskSpaceMessage(check *DiskSpaceCheck) string {
	status := "OK"
	if check.Critical {
		status = "CRITICAL"
	} else if check.Warning {
		status = "WARNING"
	}
	return fmt.Sprintf("disk space check (%s): path=%s total=%s available=%s (%.1f%% used)",
		status, check.Path, formatBytes(check.TotalBytes), formatBytes(check.AvailableBytes), check.UsedPercent)
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
