/**
 * Package wailsshell 基于 Wails v2 运行时实现壳层的窗口系统
 *
 * 主窗口就是 Wails 主窗口（隐藏启动，创建时显示）；
 * 辅助窗口是以 --window-role=auxiliary 启动的同一可执行文件的子进程。
 */

package wailsshell

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

/**
 * Runtime Wails 运行时调用
 *
 * 测试中替换为假实现
 */
type Runtime interface {
	WindowShow(ctx context.Context)
	WindowHide(ctx context.Context)
	WindowSetTitle(ctx context.Context, title string)
	WindowSetSize(ctx context.Context, width, height int)
	WindowCenter(ctx context.Context)
	WindowIsMinimised(ctx context.Context) bool
	WindowUnminimise(ctx context.Context)
	WindowExecJS(ctx context.Context, js string)
	EventsEmit(ctx context.Context, eventName string, optionalData ...interface{})
	EventsOn(ctx context.Context, eventName string, callback func(optionalData ...interface{})) func()
	BrowserOpenURL(ctx context.Context, url string)
	Quit(ctx context.Context)
}

// wailsRuntime 直接转发到 runtime 包
type wailsRuntime struct{}

// NewRuntime 返回真实的 Wails 运行时
func NewRuntime() Runtime {
	return wailsRuntime{}
}

func (wailsRuntime) WindowShow(ctx context.Context) { runtime.WindowShow(ctx) }
func (wailsRuntime) WindowHide(ctx context.Context) { runtime.WindowHide(ctx) }

func (wailsRuntime) WindowSetTitle(ctx context.Context, title string) {
	runtime.WindowSetTitle(ctx, title)
}

func (wailsRuntime) WindowSetSize(ctx context.Context, width, height int) {
	runtime.WindowSetSize(ctx, width, height)
}

func (wailsRuntime) WindowCenter(ctx context.Context) { runtime.WindowCenter(ctx) }

func (wailsRuntime) WindowIsMinimised(ctx context.Context) bool {
	return runtime.WindowIsMinimised(ctx)
}

func (wailsRuntime) WindowUnminimise(ctx context.Context) { runtime.WindowUnminimise(ctx) }

func (wailsRuntime) WindowExecJS(ctx context.Context, js string) {
	runtime.WindowExecJS(ctx, js)
}

func (wailsRuntime) EventsEmit(ctx context.Context, eventName string, optionalData ...interface{}) {
	runtime.EventsEmit(ctx, eventName, optionalData...)
}

func (wailsRuntime) EventsOn(ctx context.Context, eventName string, callback func(optionalData ...interface{})) func() {
	return runtime.EventsOn(ctx, eventName, callback)
}

func (wailsRuntime) BrowserOpenURL(ctx context.Context, url string) {
	runtime.BrowserOpenURL(ctx, url)
}

func (wailsRuntime) Quit(ctx context.Context) { runtime.Quit(ctx) }
