//go:build windows

package checks

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// CheckDiskSpace reports disk usage via GetDiskFreeSpaceExW.
func CheckDiskSpace(path string) *DiskSpaceCheck {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	vol := filepath.VolumeName(absPath)
	if vol == "" {
		vol = "."
	}

	var freeBytesAvailable, totalNumberOfBytes, totalNumberOfFreeBytes uint64
	pathPtr, _ := syscall.UTF16PtrFromString(vol)
	ret, _, _ := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalNumberOfBytes)),
		uintptr(unsafe.Pointer(&totalNumberOfFreeBytes)))
	if ret == 0 {
		return &DiskSpaceCheck{Path: absPath, Critical: true, Sufficient: false}
	}

	usedBytes := totalNumberOfBytes - totalNumberOfFreeBytes
	usedPercent := float64(usedBytes) / float64(totalNumberOfBytes) * 100

	check := &DiskSpaceCheck{
		Path:           absPath,
		TotalBytes:     totalNumberOfBytes,
		AvailableBytes: freeBytesAvailable,
		UsedBytes:      usedBytes,
		UsedPercent:    usedPercent,
	}
	check.Critical = usedPercent >= 95
	check.Warning = usedPercent >= 80 && !check.Critical
	check.Sufficient = !check.Critical && !check.Warning
	return check
}

// CheckDiskSpaceForRequired mirrors disk_check.go's variant for Windows.
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
