package app

import (
	"context"
	"sync"

	"github.com/nacker/vue3-desktop-shell/internal/shell/wailsshell"
)

// stubRuntime 记录 Wails 运行时调用
type stubRuntime struct {
	mu        sync.Mutex
	emits     map[string][]interface{}
	opened    []string
	listeners map[string]func(optionalData ...interface{})
}

func newStubRuntime() *stubRuntime {
	return &stubRuntime{
		emits:     make(map[string][]interface{}),
		listeners: make(map[string]func(optionalData ...interface{})),
	}
}

func (r *stubRuntime) WindowShow(context.Context)              {}
func (r *stubRuntime) WindowHide(context.Context)              {}
func (r *stubRuntime) WindowSetTitle(context.Context, string)  {}
func (r *stubRuntime) WindowSetSize(context.Context, int, int) {}
func (r *stubRuntime) WindowCenter(context.Context)            {}
func (r *stubRuntime) WindowIsMinimised(context.Context) bool  { return false }
func (r *stubRuntime) WindowUnminimise(context.Context)        {}
func (r *stubRuntime) WindowExecJS(context.Context, string)    {}
func (r *stubRuntime) Quit(context.Context)                    {}

func (r *stubRuntime) EventsEmit(ctx context.Context, eventName string, optionalData ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits[eventName] = append(r.emits[eventName], optionalData...)
}

func (r *stubRuntime) EventsOn(ctx context.Context, eventName string, callback func(optionalData ...interface{})) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventName] = callback
	return func() {}
}

func (r *stubRuntime) BrowserOpenURL(ctx context.Context, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, url)
}

func (r *stubRuntime) emitted(eventName string) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.emits[eventName]...)
}

func (r *stubRuntime) openedURLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

func (r *stubRuntime) fire(eventName string, data ...interface{}) {
	r.mu.Lock()
	callback := r.listeners[eventName]
	r.mu.Unlock()
	if callback != nil {
		callback(data...)
	}
}

// stubChild 不会自行退出的子进程
type stubChild struct {
	done chan struct{}
	once sync.Once
}

func (c *stubChild) Pid() int { return 4242 }

func (c *stubChild) Wait() error {
	<-c.done
	return nil
}

func (c *stubChild) Kill() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type stubLauncher struct {
	mu   sync.Mutex
	args [][]string
}

func (l *stubLauncher) Launch(args []string) (wailsshell.Child, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.args = append(l.args, args)
	return &stubChild{done: make(chan struct{})}, nil
}

// stubLock 单实例锁
type stubLock struct {
	mu       sync.Mutex
	acquired bool
	released bool
	handler  func(args []string)
}

func (l *stubLock) Acquire() (bool, error) { return l.acquired, nil }

func (l *stubLock) OnSecondInstance(fn func(args []string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

func (l *stubLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

func (l *stubLock) isReleased() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}
