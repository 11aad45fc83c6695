//go:build windows

package store

import (
	"os"
	"syscall"
	"unsafe"
)

var (
	kernel32    = syscall.NewLazyDLL("kernel32.dll")
	moveFileExW = kernel32.NewProc("MoveFileExW")
)

// MoveFileExW flags. os.Rename cannot replace an existing destination on
// Windows, so the rename goes through the API directly.
const (
	moveFileReplaceExisting = 0x1
	moveFileWriteThrough    = 0x8
)

func renameOver(tmp, dst string) error {
	from, err := syscall.UTF16PtrFromString(tmp)
	if err != nil {
		return err
	}
	to, err := syscall.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}
	r1, _, callErr := moveFileExW.Call(
		uintptr(unsafe.Pointer(from)),
		uintptr(unsafe.Pointer(to)),
		uintptr(moveFileReplaceExisting|moveFileWriteThrough),
	)
	if r1 == 0 {
		if errno, ok := callErr.(syscall.Errno); ok && errno != 0 {
			return os.NewSyscallError("MoveFileExW", errno)
		}
		return syscall.EINVAL
	}
	return nil
}
