package wailsshell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/nacker/vue3-desktop-shell/internal/shell"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted Wails 运行时尚未启动
	ErrNotStarted = errors.New("wails runtime is not started")

	// ErrPrimaryOpen 主窗口已经打开
	ErrPrimaryOpen = errors.New("primary window is already open")

	// ErrWindowNotFound 窗口不存在或已关闭
	ErrWindowNotFound = errors.New("window not found")
)

/**
 * System Wails 窗口系统
 *
 * 实现 shell.WindowSystem、shell.MessageChannel、shell.ExternalOpener
 * 和 shell.Process。Startup、DomReady、BeforeClose、Shutdown 需要挂到
 * options.App 的对应回调上。
 */
type System struct {
	rt       Runtime
	launcher Launcher
	exit     func(code int)

	mu       sync.Mutex
	ctx      context.Context
	ready    bool
	domReady bool
	quitting bool

	// windows 仍然存在的窗口，按创建顺序排列
	windows []shell.Window
	primary *primaryWindow
	loaded  bool

	onReady      func()
	onActivate   func()
	onAllClosed  func()
	onFinishLoad func(windowID string)

	listeners map[string][]func(optionalData ...interface{})
}

// Option System 配置选项
type Option func(*System)

// WithLauncher 设置辅助窗口启动器
func WithLauncher(launcher Launcher) Option {
	return func(s *System) {
		s.launcher = launcher
	}
}

// WithExit 设置进程退出函数
func WithExit(exit func(code int)) Option {
	return func(s *System) {
		s.exit = exit
	}
}

/**
 * New 创建 Wails 窗口系统
 *
 * Parameters:
 *   - rt: Wails 运行时，通常为 NewRuntime()
 *   - opts: 配置选项
 */
func New(rt Runtime, opts ...Option) *System {
	s := &System{
		rt:        rt,
		launcher:  ExecLauncher{},
		exit:      os.Exit,
		listeners: make(map[string][]func(optionalData ...interface{})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== Wails 回调 ==========

/**
 * Startup 对应 options.App.OnStartup
 *
 * 保存运行时上下文、注册前端事件监听，然后发出就绪信号
 */
func (s *System) Startup(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.ready = true
	listeners := s.listeners
	s.listeners = make(map[string][]func(optionalData ...interface{}))
	fn := s.onReady
	s.mu.Unlock()

	for name, callbacks := range listeners {
		for _, callback := range callbacks {
			s.rt.EventsOn(ctx, name, callback)
		}
	}

	logger.Info("Wails 运行时已启动")
	if fn != nil {
		fn()
	}
}

/**
 * DomReady 对应 options.App.OnDomReady
 *
 * 主窗口内容已加载时转换为 did-finish-load
 */
func (s *System) DomReady(ctx context.Context) {
	s.mu.Lock()
	s.domReady = true
	fn := s.onFinishLoad
	var windowID string
	if s.primary != nil && s.loaded {
		windowID = s.primary.id
	}
	s.mu.Unlock()

	if fn != nil && windowID != "" {
		fn(windowID)
	}
}

/**
 * BeforeClose 对应 options.App.OnBeforeClose
 *
 * 退出流程之外的关闭只隐藏主窗口并视为窗口关闭
 *
 * Returns:
 *   - bool: true 表示阻止关闭
 */
func (s *System) BeforeClose(ctx context.Context) bool {
	s.mu.Lock()
	quitting := s.quitting
	primary := s.primary
	s.mu.Unlock()

	if quitting {
		return false
	}

	s.rt.WindowHide(ctx)
	if primary != nil {
		logger.Info("主窗口已关闭", zap.String("window_id", primary.id))
		s.windowClosed(primary.id)
	}
	return true
}

/**
 * Shutdown 对应 options.App.OnShutdown
 *
 * 结束所有辅助窗口进程
 */
func (s *System) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.quitting = true
	var aux []*auxWindow
	for _, w := range s.windows {
		if a, ok := w.(*auxWindow); ok {
			aux = append(aux, a)
		}
	}
	s.mu.Unlock()

	for _, w := range aux {
		if err := w.Close(); err != nil {
			logger.Warn("结束辅助窗口进程失败", zap.String("window_id", w.id), zap.Error(err))
		}
	}
}

// Activate 应用被重新激活（菜单、打开地址或文件）
func (s *System) Activate() {
	s.mu.Lock()
	fn := s.onActivate
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

/**
 * RequestWindowOpen 页面请求打开新窗口
 *
 * 交给主窗口上设置的处理函数；没有处理函数时按默认策略处理
 */
func (s *System) RequestWindowOpen(rawURL string) shell.Decision {
	s.mu.Lock()
	primary := s.primary
	s.mu.Unlock()

	if primary != nil {
		if handler := primary.handler(); handler != nil {
			return handler(rawURL)
		}
	}
	logger.Debug("没有窗口打开处理函数，使用默认策略", zap.String("url", rawURL))
	return shell.EvaluateWindowOpen(rawURL, s)
}

/**
 * Listen 监听前端事件
 *
 * 运行时启动前注册的监听在 Startup 时生效
 */
func (s *System) Listen(eventName string, callback func(optionalData ...interface{})) {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil {
		s.listeners[eventName] = append(s.listeners[eventName], callback)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.rt.EventsOn(ctx, eventName, callback)
}

// ========== shell.WindowSystem ==========

// CreateWindow 创建窗口
func (s *System) CreateWindow(opts shell.WindowOptions) (shell.Window, error) {
	if opts.Role == shell.RoleAuxiliary {
		return s.createAuxiliary(opts), nil
	}

	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if s.primary != nil {
		s.mu.Unlock()
		return nil, ErrPrimaryOpen
	}
	w := &primaryWindow{sys: s, id: uuid.NewString(), opts: opts}
	s.primary = w
	s.loaded = false
	s.windows = append(s.windows, w)
	s.mu.Unlock()

	if opts.Title != "" {
		s.rt.WindowSetTitle(ctx, opts.Title)
	}
	if opts.Width > 0 && opts.Height > 0 {
		s.rt.WindowSetSize(ctx, opts.Width, opts.Height)
		s.rt.WindowCenter(ctx)
	}
	s.rt.WindowShow(ctx)

	return w, nil
}

func (s *System) createAuxiliary(opts shell.WindowOptions) *auxWindow {
	w := &auxWindow{sys: s, id: uuid.NewString(), opts: opts}

	s.mu.Lock()
	s.windows = append(s.windows, w)
	s.mu.Unlock()
	return w
}

// AllWindows 仍然存在的窗口
func (s *System) AllWindows() []shell.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shell.Window(nil), s.windows...)
}

// OnReady 注册就绪回调；已就绪时立即调用
func (s *System) OnReady(fn func()) {
	s.mu.Lock()
	s.onReady = fn
	ready := s.ready
	s.mu.Unlock()

	if ready {
		fn()
	}
}

func (s *System) OnActivate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onActivate = fn
}

func (s *System) OnAllWindowsClosed(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAllClosed = fn
}

func (s *System) OnDidFinishLoad(fn func(windowID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinishLoad = fn
}

// ========== shell.MessageChannel / ExternalOpener / Process ==========

// Send 向主窗口推送事件
func (s *System) Send(windowID, channel string, payload ...interface{}) error {
	s.mu.Lock()
	ctx := s.ctx
	primary := s.primary
	s.mu.Unlock()

	if ctx == nil {
		return ErrNotStarted
	}
	if primary == nil || primary.id != windowID {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, windowID)
	}

	s.rt.EventsEmit(ctx, channel, payload...)
	return nil
}

/**
 * Broadcast 向前端广播事件
 *
 * 与 Send 不同，不要求主窗口仍然打开
 */
func (s *System) Broadcast(eventName string, payload ...interface{}) error {
	ctx := s.runtimeContext()
	if ctx == nil {
		return ErrNotStarted
	}
	s.rt.EventsEmit(ctx, eventName, payload...)
	return nil
}

// OpenExternal 用系统浏览器打开地址
func (s *System) OpenExternal(rawURL string) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		return ErrNotStarted
	}
	s.rt.BrowserOpenURL(ctx, rawURL)
	return nil
}

/**
 * Quit 退出应用
 *
 * 异步调用 runtime.Quit，调用方不会等待 OnShutdown
 */
func (s *System) Quit() {
	s.mu.Lock()
	s.quitting = true
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		return
	}
	go s.rt.Quit(ctx)
}

// Exit 立即结束进程
func (s *System) Exit(code int) {
	s.exit(code)
}

// ========== 内部 ==========

// windowClosed 移除窗口，最后一个窗口关闭时发出 window-all-closed
func (s *System) windowClosed(windowID string) {
	s.mu.Lock()
	removed := s.remove(windowID)
	empty := len(s.windows) == 0
	quitting := s.quitting
	fn := s.onAllClosed
	s.mu.Unlock()

	if removed && empty && !quitting && fn != nil {
		fn()
	}
}

// removeWindow 移除窗口，不发出关闭信号
func (s *System) removeWindow(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(windowID)
}

// remove 必须持有锁
func (s *System) remove(windowID string) bool {
	for i, w := range s.windows {
		if w.ID() != windowID {
			continue
		}
		s.windows = append(s.windows[:i:i], s.windows[i+1:]...)
		if s.primary != nil && s.primary.id == windowID {
			s.primary.markClosed()
			s.primary = nil
			s.loaded = false
		}
		return true
	}
	return false
}

// contentLoaded 主窗口内容就绪；页面已加载时立即发出 did-finish-load
func (s *System) contentLoaded(w *primaryWindow) {
	s.mu.Lock()
	if s.primary != w {
		s.mu.Unlock()
		return
	}
	s.loaded = true
	domReady := s.domReady
	fn := s.onFinishLoad
	s.mu.Unlock()

	if domReady && fn != nil {
		fn(w.id)
	}
}

func (s *System) runtimeContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *System) execJS(js string) {
	if ctx := s.runtimeContext(); ctx != nil {
		s.rt.WindowExecJS(ctx, js)
	}
}

func (s *System) isMinimised() bool {
	if ctx := s.runtimeContext(); ctx != nil {
		return s.rt.WindowIsMinimised(ctx)
	}
	return false
}

func (s *System) unminimise() {
	if ctx := s.runtimeContext(); ctx != nil {
		s.rt.WindowUnminimise(ctx)
	}
}

func (s *System) show() {
	if ctx := s.runtimeContext(); ctx != nil {
		s.rt.WindowShow(ctx)
	}
}

var (
	_ shell.WindowSystem   = (*System)(nil)
	_ shell.MessageChannel = (*System)(nil)
	_ shell.ExternalOpener = (*System)(nil)
	_ shell.Process        = (*System)(nil)
)
