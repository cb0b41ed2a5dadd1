package shell

import (
	"errors"
	"fmt"
	"sync"
)

// fakeWindow 测试用窗口
type fakeWindow struct {
	mu sync.Mutex

	id   string
	opts WindowOptions
	sys  *fakeWindowSystem

	url         string
	loadedFile  string
	loadedHash  string
	minimized   bool
	focusCount  int
	restoreCnt  int
	devTools    bool
	openHandler func(rawURL string) Decision
}

func (w *fakeWindow) ID() string       { return w.id }
func (w *fakeWindow) Role() WindowRole { return w.opts.Role }

func (w *fakeWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *fakeWindow) LoadURL(rawURL string) error {
	if w.sys.loadErr != nil {
		return w.sys.loadErr
	}
	w.mu.Lock()
	w.url = rawURL
	w.mu.Unlock()
	w.sys.finishLoad(w.id)
	return nil
}

func (w *fakeWindow) LoadFile(path, hash string) error {
	if w.sys.loadErr != nil {
		return w.sys.loadErr
	}
	w.mu.Lock()
	w.loadedFile = path
	w.loadedHash = hash
	w.url = FileURL(path, hash)
	w.mu.Unlock()
	w.sys.finishLoad(w.id)
	return nil
}

func (w *fakeWindow) IsMinimized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minimized
}

func (w *fakeWindow) Restore() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minimized = false
	w.restoreCnt++
}

func (w *fakeWindow) Focus() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focusCount++
}

func (w *fakeWindow) OpenDevTools() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.devTools = true
}

func (w *fakeWindow) SetWindowOpenHandler(handler func(rawURL string) Decision) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.openHandler = handler
}

func (w *fakeWindow) minimize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minimized = true
}

func (w *fakeWindow) focused() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focusCount
}

// fakeWindowSystem 测试用窗口系统
type fakeWindowSystem struct {
	mu sync.Mutex

	created []*fakeWindow
	alive   []*fakeWindow

	createErr error
	loadErr   error

	// autoFinishLoad 加载后立即触发 did-finish-load
	autoFinishLoad bool

	onReady       func()
	onActivate    func()
	onAllClosed   func()
	onFinishLoad  func(windowID string)
	registrations int
}

func newFakeWindowSystem() *fakeWindowSystem {
	return &fakeWindowSystem{}
}

func (s *fakeWindowSystem) CreateWindow(opts WindowOptions) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}
	w := &fakeWindow{
		id:   fmt.Sprintf("w-%d", len(s.created)+1),
		opts: opts,
		sys:  s,
	}
	s.created = append(s.created, w)
	s.alive = append(s.alive, w)
	return w, nil
}

func (s *fakeWindowSystem) AllWindows() []Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows := make([]Window, 0, len(s.alive))
	for _, w := range s.alive {
		windows = append(windows, w)
	}
	return windows
}

func (s *fakeWindowSystem) OnReady(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReady = fn
	s.registrations++
}

func (s *fakeWindowSystem) OnActivate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onActivate = fn
	s.registrations++
}

func (s *fakeWindowSystem) OnAllWindowsClosed(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAllClosed = fn
	s.registrations++
}

func (s *fakeWindowSystem) OnDidFinishLoad(fn func(windowID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinishLoad = fn
	s.registrations++
}

func (s *fakeWindowSystem) finishLoad(windowID string) {
	s.mu.Lock()
	fn := s.onFinishLoad
	auto := s.autoFinishLoad
	s.mu.Unlock()

	if auto && fn != nil {
		fn(windowID)
	}
}

// ready 模拟平台就绪信号
func (s *fakeWindowSystem) ready() {
	s.mu.Lock()
	fn := s.onReady
	s.mu.Unlock()
	fn()
}

// activate 模拟激活信号
func (s *fakeWindowSystem) activate() {
	s.mu.Lock()
	fn := s.onActivate
	s.mu.Unlock()
	fn()
}

// closeAll 关闭所有窗口并触发 window-all-closed
func (s *fakeWindowSystem) closeAll() {
	s.mu.Lock()
	s.alive = nil
	fn := s.onAllClosed
	s.mu.Unlock()
	fn()
}

// closeWindow 关闭单个窗口，其他窗口仍在时不触发 window-all-closed
func (s *fakeWindowSystem) closeWindow(target *fakeWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.alive {
		if w == target {
			s.alive = append(s.alive[:i:i], s.alive[i+1:]...)
			return
		}
	}
}

func (s *fakeWindowSystem) createdByRole(role WindowRole) []*fakeWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*fakeWindow
	for _, w := range s.created {
		if w.opts.Role == role {
			list = append(list, w)
		}
	}
	return list
}

func (s *fakeWindowSystem) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// sentMessage 记录一次消息推送
type sentMessage struct {
	windowID string
	channel  string
	payload  []interface{}
}

type fakeMessages struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *fakeMessages) Send(windowID, channel string, payload ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{windowID: windowID, channel: channel, payload: payload})
	return nil
}

func (m *fakeMessages) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *fakeOpener) OpenExternal(rawURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, rawURL)
	return o.err
}

func (o *fakeOpener) urls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type fakeProcess struct {
	mu        sync.Mutex
	quits     int
	exitCodes []int
}

func (p *fakeProcess) Quit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quits++
}

func (p *fakeProcess) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitCodes = append(p.exitCodes, code)
}

func (p *fakeProcess) quitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quits
}

func (p *fakeProcess) exits() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.exitCodes...)
}

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	err      error
	handler  func(args []string)
	released bool
}

func (l *fakeLock) Acquire() (bool, error) {
	return l.acquired, l.err
}

func (l *fakeLock) OnSecondInstance(fn func(args []string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

func (l *fakeLock) Release() error {
	l.released = true
	return nil
}

// launch 模拟第二个实例启动
func (l *fakeLock) launch(args ...string) {
	l.mu.Lock()
	fn := l.handler
	l.mu.Unlock()
	fn(args)
}

var errFakeCreate = errors.New("window resources exhausted")
