package wailsshell

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/nacker/vue3-desktop-shell/internal/shell"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

/**
 * primaryWindow Wails 主窗口
 *
 * 资源服务器已经提供入口页面，加载内容只需要同步路由片段
 */
type primaryWindow struct {
	sys  *System
	id   string
	opts shell.WindowOptions

	mu          sync.Mutex
	url         string
	closed      bool
	openHandler func(rawURL string) shell.Decision
}

func (w *primaryWindow) ID() string             { return w.id }
func (w *primaryWindow) Role() shell.WindowRole { return shell.RolePrimary }

func (w *primaryWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

// LoadURL 记录内容地址并同步片段
func (w *primaryWindow) LoadURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse content url: %w", err)
	}
	return w.load(rawURL, u.Fragment)
}

// LoadFile 记录本地入口文件并同步片段
func (w *primaryWindow) LoadFile(path, hash string) error {
	return w.load(shell.FileURL(path, hash), hash)
}

func (w *primaryWindow) load(address, fragment string) error {
	w.mu.Lock()
	w.url = address
	w.mu.Unlock()

	if fragment != "" {
		w.sys.execJS(HashScript(fragment))
	}
	w.sys.contentLoaded(w)
	return nil
}

func (w *primaryWindow) IsMinimized() bool {
	if w.isClosed() {
		return false
	}
	return w.sys.isMinimised()
}

func (w *primaryWindow) Restore() {
	if w.isClosed() {
		return
	}
	w.sys.unminimise()
}

// Focus 已关闭的句柄不再显示 Wails 主窗口
func (w *primaryWindow) Focus() {
	if w.isClosed() {
		logger.Debug("主窗口已关闭，忽略聚焦", zap.String("window_id", w.id))
		return
	}
	w.sys.show()
}

func (w *primaryWindow) markClosed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *primaryWindow) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// OpenDevTools 检查器由启动参数 Debug.OpenInspectorOnStartup 控制
func (w *primaryWindow) OpenDevTools() {
	logger.Debug("开发者工具随窗口启动打开", zap.String("window_id", w.id))
}

func (w *primaryWindow) SetWindowOpenHandler(handler func(rawURL string) shell.Decision) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.openHandler = handler
}

func (w *primaryWindow) handler() func(rawURL string) shell.Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.openHandler
}

/**
 * auxWindow 辅助窗口
 *
 * 内容加载时启动子进程，子进程退出即窗口关闭
 */
type auxWindow struct {
	sys  *System
	id   string
	opts shell.WindowOptions

	mu    sync.Mutex
	url   string
	child Child
}

func (w *auxWindow) ID() string             { return w.id }
func (w *auxWindow) Role() shell.WindowRole { return shell.RoleAuxiliary }

func (w *auxWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *auxWindow) LoadURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse content url: %w", err)
	}
	return w.launch(rawURL, u.Fragment)
}

func (w *auxWindow) LoadFile(path, hash string) error {
	return w.launch(shell.FileURL(path, hash), hash)
}

func (w *auxWindow) launch(address, fragment string) error {
	w.mu.Lock()
	if w.child != nil {
		w.mu.Unlock()
		return fmt.Errorf("auxiliary window %s already loaded", w.id)
	}
	w.mu.Unlock()

	child, err := w.sys.launcher.Launch(AuxiliaryArgs(w.id, fragment))
	if err != nil {
		w.sys.removeWindow(w.id)
		return err
	}

	w.mu.Lock()
	w.url = address
	w.child = child
	w.mu.Unlock()

	logger.Info("辅助窗口进程已启动",
		zap.String("window_id", w.id),
		zap.Int("pid", child.Pid()),
		zap.String("fragment", fragment),
	)

	go func() {
		err := child.Wait()
		logger.Info("辅助窗口进程已退出", zap.String("window_id", w.id), zap.Error(err))
		w.sys.windowClosed(w.id)
	}()
	return nil
}

// 子进程窗口不受父进程控制，以下操作只记录日志
func (w *auxWindow) IsMinimized() bool { return false }
func (w *auxWindow) Restore()          {}

func (w *auxWindow) Focus() {
	logger.Debug("辅助窗口由子进程管理，忽略聚焦", zap.String("window_id", w.id))
}

func (w *auxWindow) OpenDevTools() {}

func (w *auxWindow) SetWindowOpenHandler(func(rawURL string) shell.Decision) {}

// Close 结束子进程
func (w *auxWindow) Close() error {
	w.mu.Lock()
	child := w.child
	w.mu.Unlock()

	if child == nil {
		w.sys.removeWindow(w.id)
		return nil
	}
	return child.Kill()
}

// HashScript 设置页面路由片段的脚本
func HashScript(fragment string) string {
	quoted, _ := json.Marshal(fragment)
	return fmt.Sprintf("window.location.hash = %s;", quoted)
}
