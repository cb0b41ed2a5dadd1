//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	shell32               = windows.NewLazySystemDLL("shell32.dll")
	procSetAppUserModelID = shell32.NewProc("SetCurrentProcessExplicitAppUserModelID")
)

// IsLegacyWindows 是否运行在 Windows 7（内核版本 6.1）
//
// Windows 7 上 WebView 的 GPU 加速不稳定，调用方据此关闭硬件加速。
func IsLegacyWindows() bool {
	v := windows.RtlGetVersion()
	return v.MajorVersion == 6 && v.MinorVersion == 1
}

// SetAppUserModelID 设置进程的 AppUserModelID，用于任务栏分组和通知
//
// Parameters: id - 应用标识
// Returns: 系统调用失败时返回错误
func SetAppUserModelID(id string) error {
	ptr, err := windows.UTF16PtrFromString(id)
	if err != nil {
		return err
	}
	if err := procSetAppUserModelID.Find(); err != nil {
		return fmt.Errorf("SetCurrentProcessExplicitAppUserModelID unavailable: %w", err)
	}

	hr, _, _ := procSetAppUserModelID.Call(uintptr(unsafe.Pointer(ptr)))
	if hr != 0 {
		return fmt.Errorf("SetCurrentProcessExplicitAppUserModelID: HRESULT 0x%08x", uint32(hr))
	}
	return nil
}
