/**
 * Package app 提供 Wails App 层的实现
 *
 * App 层职责：
 * - 组装配置、日志、单实例锁、事件总线、生命周期日志和协调器
 * - 作为前后端通信的桥梁（open-win、窗口打开请求、生命周期查询）
 * - 把 Wails 回调转交给窗口系统适配层
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/config"
	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/platform"
	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/storage"
	"github.com/nacker/vue3-desktop-shell/internal/shell"
	"github.com/nacker/vue3-desktop-shell/internal/shell/wailsshell"
	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

// LifecycleChannel 转发给前端的生命周期事件名
const LifecycleChannel = "lifecycle"

var (
	// ErrAuxiliaryProcess 辅助窗口进程不处理 open-win
	ErrAuxiliaryProcess = errors.New("open-win is handled by the primary process")

	// ErrJournalDisabled 生命周期日志未启用
	ErrJournalDisabled = errors.New("lifecycle journal is disabled")
)

/**
 * App 是 Wails 应用的主结构体
 *
 * 导出方法通过 Bind 暴露给前端（window.go.app.App）
 */
type App struct {
	// ctx 是 Wails 运行时上下文
	ctx context.Context

	// cancel 停止协调器
	cancel context.CancelFunc

	// config 应用配置
	config *config.Config

	// role 当前进程的窗口角色
	role shell.WindowRole

	// eventBus 应用内部的事件传递
	eventBus *events.EventBus

	// system Wails 窗口系统
	system *wailsshell.System

	// coordinator 生命周期协调器，辅助窗口进程中为 nil
	coordinator *shell.Coordinator

	// journal 生命周期日志，未启用时为 nil
	journal *storage.Journal

	// lock 单实例锁
	lock shell.InstanceLock

	// forwardID 前端转发订阅
	forwardID string
}

/**
 * Dependencies App 的可替换依赖
 *
 * 零值字段使用默认实现
 */
type Dependencies struct {
	// System 窗口系统
	System *wailsshell.System

	// Lock 单实例锁，为 nil 时按配置创建
	Lock shell.InstanceLock
}

/**
 * New 创建主进程 App
 *
 * Parameters:
 *   - cfg: 应用配置
 *   - args: 当前进程参数，第二个实例启动时发送给主实例
 *   - deps: 可替换依赖
 *
 * Returns:
 *   - *App: 未启动的 App
 *   - error: 创建失败
 */
func New(cfg *config.Config, args []string, deps Dependencies) (*App, error) {
	eventBus := events.NewEventBus()
	eventBus.Use(events.RecoveryMiddleware())
	eventBus.Use(events.LoggingMiddleware(func(event events.Event) {
		logger.Debug("生命周期事件", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))
	}))

	system := deps.System
	if system == nil {
		system = wailsshell.New(wailsshell.NewRuntime())
	}

	app := &App{
		config:   cfg,
		role:     shell.RolePrimary,
		eventBus: eventBus,
		system:   system,
	}

	app.lock = deps.Lock
	if app.lock == nil {
		dir, err := platform.DefaultLockDir(cfg.Application.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve lock dir: %w", err)
		}
		app.lock = platform.NewInstanceLock(dir, args)
	}

	app.coordinator = shell.NewCoordinator(shell.Deps{
		Windows:  system,
		Messages: system,
		External: system,
		Process:  system,
		Lock:     app.lock,
		Bus:      eventBus,
	}, shell.Options{
		Content:                 contentSource(cfg),
		Primary:                 PrimaryWindowOptions(cfg),
		Auxiliary:               AuxiliaryWindowOptions(cfg),
		KeepAliveWithoutWindows: platform.KeepsAliveWithoutWindows(),
	})

	system.Listen(string(events.EventTypeRemoveLoading), app.onRemoveLoading)

	return app, nil
}

/**
 * start 获取单实例锁并启动协调器
 *
 * 必须在 wails.Run 之前调用，保证就绪信号晚于锁。
 * 获取锁之后才打开生命周期日志。
 *
 * Returns:
 *   - error: 其他实例已在运行时返回 shell.ErrNotPrimaryInstance
 */
func (a *App) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.coordinator.Start(ctx); err != nil {
		cancel()
		a.closeResources()
		return err
	}

	if a.config.Storage.SQLite.Enabled {
		journal, err := openJournal(a.config, a.eventBus)
		if err != nil {
			// 生命周期日志失败不影响窗口
			logger.Warn("打开生命周期日志失败", zap.Error(err))
		} else {
			a.journal = journal
		}
	}

	a.forwardID = a.eventBus.SubscribeWithFilter("*", a.forwardEvent, forwardThrottle().Filter())
	return nil
}

// ========== Wails 回调 ==========

// startup 对应 OnStartup
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.system.Startup(ctx)
}

// domReady 对应 OnDomReady
func (a *App) domReady(ctx context.Context) {
	a.system.DomReady(ctx)
}

// beforeClose 对应 OnBeforeClose
func (a *App) beforeClose(ctx context.Context) bool {
	return a.system.BeforeClose(ctx)
}

/**
 * shutdown 对应 OnShutdown
 *
 * 结束辅助窗口、停止协调器、写完生命周期日志并释放单实例锁
 */
func (a *App) shutdown(ctx context.Context) {
	a.system.Shutdown(ctx)

	if a.cancel != nil {
		a.cancel()
	}
	if a.coordinator != nil {
		a.coordinator.Stop()
	}
	if a.forwardID != "" {
		a.eventBus.Unsubscribe(a.forwardID)
	}

	a.closeResources()
	logger.Info("应用已关闭")
}

func (a *App) closeResources() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("关闭生命周期日志失败", zap.Error(err))
		}
	}
	if err := a.eventBus.Stop(2 * time.Second); err != nil {
		logger.Warn("停止事件总线超时", zap.Error(err))
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			logger.Warn("释放单实例锁失败", zap.Error(err))
		}
	}
}

// ========== 导出方法（前端可调用） ==========

/**
 * OpenWin 打开辅助窗口
 *
 * 对应渲染进程的 open-win 请求，窗口加载 <入口>#arg
 *
 * Parameters:
 *   - arg: 路由片段
 *
 * Returns:
 *   - shell.WindowHandle: 新窗口句柄
 *   - error: 创建或加载失败
 */
func (a *App) OpenWin(arg string) (shell.WindowHandle, error) {
	if a.coordinator == nil {
		return shell.WindowHandle{}, ErrAuxiliaryProcess
	}

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return a.coordinator.OpenWin(ctx, arg)
}

/**
 * OpenWindow 页面请求打开新窗口
 *
 * https 地址交给系统浏览器；结果总是 "deny"
 */
func (a *App) OpenWindow(url string) string {
	if a.coordinator == nil {
		return string(shell.EvaluateWindowOpen(url, a.system))
	}
	return string(a.system.RequestWindowOpen(url))
}

/**
 * RecentLifecycleEvents 查询最近的生命周期事件
 *
 * Parameters:
 *   - limit: 最大数量
 *
 * Returns:
 *   - []events.Event: 按时间从旧到新排列
 *   - error: 日志未启用或查询失败
 */
func (a *App) RecentLifecycleEvents(limit int) ([]events.Event, error) {
	if a.journal == nil {
		return nil, ErrJournalDisabled
	}
	return a.journal.Recent(limit)
}

// LifecycleEventsByType 按类型查询生命周期事件，最新的在前
func (a *App) LifecycleEventsByType(eventType string, limit int) ([]events.Event, error) {
	if a.journal == nil {
		return nil, ErrJournalDisabled
	}
	return a.journal.ByType(events.EventType(eventType), limit)
}

// WindowLifecycleEvents 查询某个窗口的生命周期事件
func (a *App) WindowLifecycleEvents(windowID string) ([]events.Event, error) {
	if a.journal == nil {
		return nil, ErrJournalDisabled
	}
	return a.journal.ByWindow(windowID)
}

// LifecycleStats 生命周期日志统计
func (a *App) LifecycleStats() (*storage.LifecycleStats, error) {
	if a.journal == nil {
		return nil, ErrJournalDisabled
	}
	return a.journal.Summary()
}

// WindowRole 当前进程的窗口角色（primary/auxiliary）
func (a *App) WindowRole() string {
	return string(a.role)
}

// ========== 私有方法 ==========

// onRemoveLoading 记录前端加载完成广播，不阻塞运行时回调
func (a *App) onRemoveLoading(optionalData ...interface{}) {
	event := events.NewEvent(events.EventTypeRemoveLoading, map[string]interface{}{
		"payload": string(events.EventTypeRemoveLoading),
	}).WithMetadata("source", "renderer")

	a.eventBus.PublishAsync(string(event.Type), *event)
}

// forwardEvent 将生命周期事件推送到前端
func (a *App) forwardEvent(event events.Event) error {
	if err := a.system.Broadcast(LifecycleChannel, event); err != nil && !errors.Is(err, wailsshell.ErrNotStarted) {
		return err
	}
	return nil
}

// forwardThrottle 推送给前端的事件节流，连续双击启动和反复激活只推送一次
func forwardThrottle() *events.Throttle {
	return events.NewThrottle(map[events.EventType]time.Duration{
		events.EventTypeSecondInstance:    500 * time.Millisecond,
		events.EventTypeActivate:          500 * time.Millisecond,
		events.EventTypeWindowOpenRequest: 200 * time.Millisecond,
	})
}

// openJournal 按配置打开生命周期日志
func openJournal(cfg *config.Config, bus *events.EventBus) (*storage.Journal, error) {
	interval, err := time.ParseDuration(cfg.Storage.SQLite.FlushInterval)
	if err != nil {
		logger.Warn("批量写入间隔无效，使用默认值",
			zap.String("flush_interval", cfg.Storage.SQLite.FlushInterval),
			zap.Error(err),
		)
		interval = 0
	}

	return storage.OpenJournal(storage.JournalConfig{
		Path:          cfg.Storage.SQLite.Path,
		BatchSize:     cfg.Storage.SQLite.BatchSize,
		FlushInterval: interval,
		RetentionDays: cfg.Storage.Retention.EventsDays,
	}, bus)
}
