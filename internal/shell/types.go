/**
 * Package shell 实现桌面壳层的生命周期协调
 *
 * 协调器负责：
 * - 单实例锁
 * - 主窗口的创建、聚焦与清理
 * - 辅助窗口请求（open-win）
 * - 页面内打开新窗口的策略
 *
 * 窗口系统、消息通道、外部打开器、进程控制都通过接口注入，
 * 测试中使用假实现替代真实的窗口系统。
 */

package shell

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// ErrStopped 协调器已停止
	ErrStopped = errors.New("coordinator is stopped")

	// ErrNoWindowSystem 未注入窗口系统
	ErrNoWindowSystem = errors.New("no window system configured")

	// ErrNotPrimaryInstance 其他实例已持有单实例锁
	ErrNotPrimaryInstance = errors.New("another instance holds the single-instance lock")
)

/**
 * WindowRole 窗口角色
 */
type WindowRole string

const (
	// RolePrimary 主窗口，同一时刻最多跟踪一个
	RolePrimary WindowRole = "primary"

	// RoleAuxiliary 辅助窗口，创建后不再跟踪
	RoleAuxiliary WindowRole = "auxiliary"
)

/**
 * Decision 页面内打开新窗口请求的处理结果
 */
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

/**
 * WebPreferences 窗口内容的安全配置
 */
type WebPreferences struct {
	// Preload 预加载脚本路径
	Preload string `json:"preload,omitempty"`

	// NodeIntegration 是否允许页面脚本直接访问宿主能力
	NodeIntegration bool `json:"nodeIntegration"`

	// ContextIsolation 是否隔离预加载脚本与页面上下文
	ContextIsolation bool `json:"contextIsolation"`
}

/**
 * WindowOptions 创建窗口的参数
 */
type WindowOptions struct {
	// Role 窗口角色
	Role WindowRole `json:"role"`

	// Title 窗口标题
	Title string `json:"title"`

	// Width 窗口宽度（像素）
	Width int `json:"width"`

	// Height 窗口高度（像素）
	Height int `json:"height"`

	// Icon 图标文件路径
	Icon string `json:"icon,omitempty"`

	// WebPreferences 内容安全配置
	WebPreferences WebPreferences `json:"webPreferences"`
}

/**
 * WindowHandle 返回给调用方的窗口描述
 *
 * 可序列化为 JSON，作为 open-win 请求的返回值
 */
type WindowHandle struct {
	// ID 窗口唯一标识
	ID string `json:"id"`

	// Role 窗口角色
	Role WindowRole `json:"role"`

	// URL 窗口加载的内容地址
	URL string `json:"url"`
}

/**
 * Window 窗口能力
 */
type Window interface {
	// ID 窗口唯一标识
	ID() string

	// Role 窗口角色
	Role() WindowRole

	// URL 当前加载的内容地址，未加载时为空
	URL() string

	// LoadURL 加载网络地址
	LoadURL(rawURL string) error

	// LoadFile 加载本地文件，hash 作为片段标识
	LoadFile(path, hash string) error

	// IsMinimized 窗口是否最小化
	IsMinimized() bool

	// Restore 从最小化恢复
	Restore()

	// Focus 将窗口置于前台并获取输入焦点
	Focus()

	// OpenDevTools 打开开发者工具
	OpenDevTools()

	// SetWindowOpenHandler 设置页面内打开新窗口请求的处理函数
	SetWindowOpenHandler(handler func(rawURL string) Decision)
}

/**
 * WindowSystem 窗口系统
 *
 * 负责创建窗口，并把平台生命周期信号交给注册的回调。
 * 回调可能在任意 goroutine 中被调用。
 */
type WindowSystem interface {
	// CreateWindow 创建窗口
	CreateWindow(opts WindowOptions) (Window, error)

	// AllWindows 平台层面仍然存在的窗口，按创建顺序排列
	AllWindows() []Window

	// OnReady 平台就绪（只触发一次）
	OnReady(fn func())

	// OnActivate 应用被重新激活
	OnActivate(fn func())

	// OnAllWindowsClosed 最后一个窗口关闭
	OnAllWindowsClosed(fn func())

	// OnDidFinishLoad 窗口内容加载完成
	OnDidFinishLoad(fn func(windowID string))
}

// MessageChannel 主进程向窗口发送消息
type MessageChannel interface {
	Send(windowID, channel string, payload ...interface{}) error
}

// ExternalOpener 用系统默认程序打开地址
type ExternalOpener interface {
	OpenExternal(rawURL string) error
}

// Process 进程控制
type Process interface {
	// Quit 按平台流程退出应用
	Quit()

	// Exit 立即以指定退出码结束进程
	Exit(code int)
}

/**
 * InstanceLock 单实例锁
 */
type InstanceLock interface {
	// Acquire 尝试获取锁，返回 false 表示其他实例已持有
	Acquire() (bool, error)

	// OnSecondInstance 注册第二个实例启动时的回调
	OnSecondInstance(fn func(args []string))

	// Release 释放锁
	Release() error
}

/**
 * FileURL 构造本地文件地址
 *
 * Parameters:
 *   - path: 文件路径
 *   - hash: 片段标识，为空时不附加
 *
 * Returns:
 *   - string: file:// 地址
 */
func FileURL(path, hash string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		Fragment: hash,
	}
	return u.String()
}
