package wailsshell

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// emitted 记录一次 EventsEmit
type emitted struct {
	name string
	data []interface{}
}

// fakeRuntime 记录所有运行时调用
type fakeRuntime struct {
	mu sync.Mutex

	calls     []string
	minimised bool
	emits     []emitted
	opened    []string
	scripts   []string
	listeners map[string]func(optionalData ...interface{})
	quit      chan struct{}
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		listeners: make(map[string]func(optionalData ...interface{})),
		quit:      make(chan struct{}, 1),
	}
}

func (r *fakeRuntime) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *fakeRuntime) WindowShow(ctx context.Context) { r.record("show") }
func (r *fakeRuntime) WindowHide(ctx context.Context) { r.record("hide") }

func (r *fakeRuntime) WindowSetTitle(ctx context.Context, title string) {
	r.record("title:" + title)
}

func (r *fakeRuntime) WindowSetSize(ctx context.Context, width, height int) {
	r.record(fmt.Sprintf("size:%dx%d", width, height))
}

func (r *fakeRuntime) WindowCenter(ctx context.Context) { r.record("center") }

func (r *fakeRuntime) WindowIsMinimised(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minimised
}

func (r *fakeRuntime) WindowUnminimise(ctx context.Context) {
	r.mu.Lock()
	r.minimised = false
	r.mu.Unlock()
	r.record("unminimise")
}

func (r *fakeRuntime) WindowExecJS(ctx context.Context, js string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = append(r.scripts, js)
}

func (r *fakeRuntime) EventsEmit(ctx context.Context, eventName string, optionalData ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, emitted{name: eventName, data: optionalData})
}

func (r *fakeRuntime) EventsOn(ctx context.Context, eventName string, callback func(optionalData ...interface{})) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventName] = callback
	return func() {}
}

func (r *fakeRuntime) BrowserOpenURL(ctx context.Context, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, url)
}

func (r *fakeRuntime) Quit(ctx context.Context) {
	r.record("quit")
	r.quit <- struct{}{}
}

func (r *fakeRuntime) callList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRuntime) openedURLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// fire 模拟前端发出事件
func (r *fakeRuntime) fire(eventName string, data ...interface{}) bool {
	r.mu.Lock()
	callback, ok := r.listeners[eventName]
	r.mu.Unlock()
	if ok {
		callback(data...)
	}
	return ok
}

// fakeChild 测试用子进程
type fakeChild struct {
	pid    int
	exited chan struct{}
	once   sync.Once
	killed bool
	mu     sync.Mutex
}

func (c *fakeChild) Pid() int { return c.pid }

func (c *fakeChild) Wait() error {
	<-c.exited
	return nil
}

func (c *fakeChild) Kill() error {
	c.mu.Lock()
	c.killed = true
	c.mu.Unlock()
	c.exit()
	return nil
}

func (c *fakeChild) exit() {
	c.once.Do(func() { close(c.exited) })
}

func (c *fakeChild) wasKilled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.killed
}

// fakeLauncher 记录启动参数
type fakeLauncher struct {
	mu       sync.Mutex
	launches [][]string
	children []*fakeChild
	err      error
}

func (l *fakeLauncher) Launch(args []string) (Child, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	child := &fakeChild{pid: 1000 + len(l.children), exited: make(chan struct{})}
	l.launches = append(l.launches, args)
	l.children = append(l.children, child)
	return child, nil
}

func (l *fakeLauncher) child(i int) *fakeChild {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.children[i]
}

var errLaunch = errors.New("exec format error")
