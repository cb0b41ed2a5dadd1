//go:build !darwin

package platform

// KeepsAliveWithoutWindows 所有窗口关闭后进程是否保持运行
func KeepsAliveWithoutWindows() bool {
	return false
}
