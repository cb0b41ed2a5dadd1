package wailsshell

import (
	"fmt"
	"os"
	"os/exec"
)

// 辅助窗口子进程使用的命令行参数
const (
	FlagWindowRole = "window-role"
	FlagFragment   = "fragment"
	FlagWindowID   = "window-id"
	FlagConfig     = "config"
)

/**
 * Child 已启动的子进程
 */
type Child interface {
	// Pid 进程号
	Pid() int

	// Wait 等待进程退出
	Wait() error

	// Kill 结束进程
	Kill() error
}

/**
 * Launcher 启动辅助窗口子进程
 */
type Launcher interface {
	Launch(args []string) (Child, error)
}

/**
 * ExecLauncher 以 os/exec 启动当前可执行文件
 */
type ExecLauncher struct {
	// Path 可执行文件路径，为空时使用 os.Executable
	Path string

	// ExtraArgs 追加在每个子进程参数前面的参数（例如 --config）
	ExtraArgs []string
}

// Launch 启动子进程，标准输出和错误输出继承自父进程
func (l ExecLauncher) Launch(args []string) (Child, error) {
	path := l.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		path = exe
	}

	cmd := exec.Command(path, append(append([]string{}, l.ExtraArgs...), args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start auxiliary window process: %w", err)
	}
	return &execChild{cmd: cmd}, nil
}

type execChild struct {
	cmd *exec.Cmd
}

func (c *execChild) Pid() int    { return c.cmd.Process.Pid }
func (c *execChild) Wait() error { return c.cmd.Wait() }
func (c *execChild) Kill() error { return c.cmd.Process.Kill() }

/**
 * AuxiliaryArgs 辅助窗口子进程参数
 *
 * Parameters:
 *   - windowID: 父进程分配的窗口 ID
 *   - fragment: 渲染进程路由片段
 */
func AuxiliaryArgs(windowID, fragment string) []string {
	return []string{
		"--" + FlagWindowRole + "=auxiliary",
		"--" + FlagWindowID + "=" + windowID,
		"--" + FlagFragment + "=" + fragment,
	}
}
