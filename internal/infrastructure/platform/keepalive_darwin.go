//go:build darwin

package platform

// KeepsAliveWithoutWindows 所有窗口关闭后进程是否保持运行
//
// macOS 的惯例是应用在关闭全部窗口后继续驻留，直到用户显式退出。
func KeepsAliveWithoutWindows() bool {
	return true
}
