//go:build !windows

package platform

// IsLegacyWindows 非 Windows 平台始终为 false
func IsLegacyWindows() bool {
	return false
}

// SetAppUserModelID 非 Windows 平台不需要设置
func SetAppUserModelID(id string) error {
	return nil
}
