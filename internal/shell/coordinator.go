package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

const (
	// MainProcessMessageChannel 主窗口首次加载完成后推送的消息通道
	MainProcessMessageChannel = "main-process-message"

	// TimestampLayout main-process-message 携带的时间格式
	TimestampLayout = "2006/1/2 15:04:05"
)

// eventSnapshot 读取协调器状态的内部请求，不发布到事件总线
const eventSnapshot events.EventType = "snapshot"

/**
 * Deps 协调器依赖的外部能力
 */
type Deps struct {
	// Windows 窗口系统（必需）
	Windows WindowSystem

	// Messages 主进程到窗口的消息通道
	Messages MessageChannel

	// External 外部打开器
	External ExternalOpener

	// Process 进程控制
	Process Process

	// Lock 单实例锁，为 nil 时不做单实例检查
	Lock InstanceLock

	// Bus 事件总线，为 nil 时不发布生命周期事件
	Bus *events.EventBus
}

/**
 * Options 协调器配置
 */
type Options struct {
	// Content 内容来源，启动时确定
	Content ContentSource

	// Primary 主窗口参数
	Primary WindowOptions

	// Auxiliary 辅助窗口参数
	Auxiliary WindowOptions

	// KeepAliveWithoutWindows 所有窗口关闭后是否保持进程运行
	KeepAliveWithoutWindows bool

	// Now 时钟，测试中可替换
	Now func() time.Time
}

/**
 * State 协调器状态快照
 */
type State struct {
	// Primary 当前跟踪的主窗口，没有时为 nil
	Primary *WindowHandle `json:"primary,omitempty"`

	// Notified 已推送过 main-process-message 的主窗口 ID
	Notified string `json:"notified,omitempty"`
}

type handlerFunc func(payload interface{}) (interface{}, error)

type result struct {
	value interface{}
	err   error
}

type task struct {
	event   events.EventType
	payload interface{}
	reply   chan result
}

/**
 * Coordinator 壳层生命周期协调器
 *
 * 所有触发器都投递到同一个调度 goroutine，按先进先出顺序逐个执行完毕。
 * 主窗口句柄只在调度 goroutine 中读写。
 */
type Coordinator struct {
	deps     Deps
	opts     Options
	handlers map[events.EventType]handlerFunc

	// 以下字段只在调度 goroutine 中访问
	primary  Window
	notified string

	mu      sync.Mutex
	pending []task
	wake    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}

	started atomic.Bool
	running atomic.Bool
	stopped atomic.Bool
}

/**
 * NewCoordinator 创建协调器
 *
 * Parameters:
 *   - deps: 外部能力
 *   - opts: 配置
 *
 * Returns:
 *   - *Coordinator: 未启动的协调器
 */
func NewCoordinator(deps Deps, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Primary.Role = RolePrimary
	opts.Auxiliary.Role = RoleAuxiliary

	c := &Coordinator{
		deps:   deps,
		opts:   opts,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	c.handlers = map[events.EventType]handlerFunc{
		events.EventTypeReady:           c.handleReady,
		events.EventTypeSecondInstance:  c.handleSecondInstance,
		events.EventTypeActivate:        c.handleActivate,
		events.EventTypeWindowAllClosed: c.handleAllWindowsClosed,
		events.EventTypeOpenWin:         c.handleOpenWin,
		events.EventTypeDidFinishLoad:   c.handleDidFinishLoad,
		eventSnapshot:                   c.handleSnapshot,
	}

	return c
}

/**
 * Start 获取单实例锁并启动调度
 *
 * 锁被其他实例持有时以退出码 0 结束进程，不创建任何窗口。
 * 平台回调在锁获取成功之后才注册，保证就绪信号不会早于锁。
 *
 * Parameters:
 *   - ctx: 取消时停止协调器
 *
 * Returns:
 *   - error: ErrNoWindowSystem、ErrNotPrimaryInstance
 */
func (c *Coordinator) Start(ctx context.Context) error {
	if c.deps.Windows == nil {
		return ErrNoWindowSystem
	}
	if c.stopped.Load() {
		return ErrStopped
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	if c.deps.Lock != nil {
		c.deps.Lock.OnSecondInstance(c.SecondInstance)

		ok, err := c.deps.Lock.Acquire()
		if err != nil || !ok {
			logger.Info("其他实例已在运行，当前进程退出", zap.Error(err))
			if c.deps.Process != nil {
				c.deps.Process.Exit(0)
			}
			if err != nil {
				return fmt.Errorf("%w: %v", ErrNotPrimaryInstance, err)
			}
			return ErrNotPrimaryInstance
		}
	}

	ws := c.deps.Windows
	ws.OnReady(c.Ready)
	ws.OnActivate(c.Activate)
	ws.OnAllWindowsClosed(c.AllWindowsClosed)
	ws.OnDidFinishLoad(c.DidFinishLoad)

	c.running.Store(true)
	go c.loop()

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.done:
		}
	}()

	logger.Info("生命周期协调器已启动",
		zap.Bool("dev_server", c.opts.Content.IsDev()),
		zap.Bool("keep_alive", c.opts.KeepAliveWithoutWindows),
	)
	return nil
}

/**
 * Stop 停止调度
 *
 * 未处理的请求返回 ErrStopped。可重复调用。
 */
func (c *Coordinator) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	close(c.stopCh)
	if c.running.Load() {
		<-c.done
	} else {
		close(c.done)
	}
	c.drain()
	logger.Info("生命周期协调器已停止")
}

// ========== 触发器 ==========

// Ready 平台就绪
func (c *Coordinator) Ready() {
	c.send(events.EventTypeReady, nil)
}

// SecondInstance 第二个实例启动
func (c *Coordinator) SecondInstance(args []string) {
	c.send(events.EventTypeSecondInstance, args)
}

// Activate 应用被重新激活
func (c *Coordinator) Activate() {
	c.send(events.EventTypeActivate, nil)
}

// AllWindowsClosed 最后一个窗口关闭
func (c *Coordinator) AllWindowsClosed() {
	c.send(events.EventTypeWindowAllClosed, nil)
}

// DidFinishLoad 窗口内容加载完成
func (c *Coordinator) DidFinishLoad(windowID string) {
	c.send(events.EventTypeDidFinishLoad, windowID)
}

/**
 * OpenWin 创建辅助窗口
 *
 * Parameters:
 *   - ctx: 等待结果的上下文
 *   - arg: 片段标识
 *
 * Returns:
 *   - WindowHandle: 新窗口的描述
 *   - error: 创建或加载失败、协调器停止、ctx 取消
 */
func (c *Coordinator) OpenWin(ctx context.Context, arg string) (WindowHandle, error) {
	value, err := c.call(ctx, events.EventTypeOpenWin, arg)
	if err != nil {
		return WindowHandle{}, err
	}
	return value.(WindowHandle), nil
}

/**
 * WindowOpenPolicy 页面内打开新窗口的策略
 *
 * 不读写协调器状态，可以在任意 goroutine 中调用。
 */
func (c *Coordinator) WindowOpenPolicy(rawURL string) Decision {
	decision := EvaluateWindowOpen(rawURL, c.deps.External)
	c.publish(events.EventTypeWindowOpenRequest, map[string]interface{}{
		"url":      rawURL,
		"decision": string(decision),
	}, nil)
	return decision
}

/**
 * Snapshot 读取协调器状态
 *
 * 在调度 goroutine 中执行，排在之前投递的触发器之后。
 */
func (c *Coordinator) Snapshot(ctx context.Context) (State, error) {
	value, err := c.call(ctx, eventSnapshot, nil)
	if err != nil {
		return State{}, err
	}
	return value.(State), nil
}

// ========== 处理函数 ==========

func (c *Coordinator) handleReady(_ interface{}) (interface{}, error) {
	c.publish(events.EventTypeReady, nil, nil)

	if primary := c.livePrimary(); primary != nil {
		logger.Debug("主窗口已存在，忽略就绪信号", zap.String("window_id", primary.ID()))
		return nil, nil
	}
	if _, err := c.createPrimary(); err != nil {
		logger.Error("创建主窗口失败", zap.Error(err))
		return nil, err
	}
	return nil, nil
}

func (c *Coordinator) handleSecondInstance(payload interface{}) (interface{}, error) {
	args, _ := payload.([]string)
	primary := c.livePrimary()
	c.publish(events.EventTypeSecondInstance, map[string]interface{}{"args": args}, primary)

	if primary == nil {
		logger.Debug("第二个实例启动，但没有主窗口", zap.Strings("args", args))
		return nil, nil
	}
	if primary.IsMinimized() {
		primary.Restore()
	}
	primary.Focus()
	return nil, nil
}

func (c *Coordinator) handleActivate(_ interface{}) (interface{}, error) {
	c.publish(events.EventTypeActivate, nil, nil)

	if windows := c.deps.Windows.AllWindows(); len(windows) > 0 {
		windows[0].Focus()
		return nil, nil
	}

	// 平台层面已没有窗口，跟踪的句柄已失效
	c.clearPrimary()
	if _, err := c.createPrimary(); err != nil {
		logger.Error("激活时创建主窗口失败", zap.Error(err))
		return nil, err
	}
	return nil, nil
}

func (c *Coordinator) handleAllWindowsClosed(_ interface{}) (interface{}, error) {
	c.publish(events.EventTypeWindowAllClosed, nil, c.primary)
	c.clearPrimary()

	if c.opts.KeepAliveWithoutWindows {
		logger.Debug("所有窗口已关闭，进程保持运行")
		return nil, nil
	}
	logger.Info("所有窗口已关闭，退出应用")
	if c.deps.Process != nil {
		c.deps.Process.Quit()
	}
	return nil, nil
}

func (c *Coordinator) handleOpenWin(payload interface{}) (interface{}, error) {
	arg, _ := payload.(string)

	w, err := c.deps.Windows.CreateWindow(c.opts.Auxiliary)
	if err != nil {
		return nil, fmt.Errorf("create auxiliary window: %w", err)
	}
	if err := c.opts.Content.Load(w, arg); err != nil {
		return nil, fmt.Errorf("load auxiliary window %s: %w", w.ID(), err)
	}

	handle := WindowHandle{ID: w.ID(), Role: RoleAuxiliary, URL: w.URL()}
	if handle.URL == "" {
		handle.URL = c.opts.Content.Address(arg)
	}

	c.publish(events.EventTypeOpenWin, map[string]interface{}{"arg": arg}, w)
	c.publish(events.EventTypeWindowCreated, map[string]interface{}{"url": handle.URL}, w)
	logger.Info("辅助窗口已创建", zap.String("window_id", handle.ID), zap.String("url", handle.URL))
	return handle, nil
}

func (c *Coordinator) handleDidFinishLoad(payload interface{}) (interface{}, error) {
	windowID, _ := payload.(string)
	c.publish(events.EventTypeDidFinishLoad, map[string]interface{}{"window_id": windowID}, nil)

	if c.primary == nil || c.primary.ID() != windowID || c.notified == windowID {
		return nil, nil
	}
	c.notified = windowID

	stamp := c.opts.Now().Format(TimestampLayout)
	if c.deps.Messages != nil {
		if err := c.deps.Messages.Send(windowID, MainProcessMessageChannel, stamp); err != nil {
			logger.Warn("推送 main-process-message 失败", zap.String("window_id", windowID), zap.Error(err))
			return nil, nil
		}
	}
	c.publish(events.EventTypeMainProcessMessage, map[string]interface{}{"timestamp": stamp}, c.primary)
	return nil, nil
}

func (c *Coordinator) handleSnapshot(_ interface{}) (interface{}, error) {
	primary := c.livePrimary()
	state := State{Notified: c.notified}
	if primary != nil {
		state.Primary = &WindowHandle{ID: primary.ID(), Role: RolePrimary, URL: primary.URL()}
	}
	return state, nil
}

/**
 * createPrimary 创建主窗口并加载内容
 *
 * 已跟踪主窗口时直接返回，保证同一时刻最多一个主窗口句柄。
 */
func (c *Coordinator) createPrimary() (Window, error) {
	if primary := c.livePrimary(); primary != nil {
		return primary, nil
	}

	w, err := c.deps.Windows.CreateWindow(c.opts.Primary)
	if err != nil {
		return nil, fmt.Errorf("create primary window: %w", err)
	}
	c.primary = w
	c.notified = ""

	w.SetWindowOpenHandler(c.WindowOpenPolicy)

	if err := c.opts.Content.Load(w, ""); err != nil {
		return w, fmt.Errorf("load primary window %s: %w", w.ID(), err)
	}
	if c.opts.Content.IsDev() {
		w.OpenDevTools()
	}

	c.publish(events.EventTypeWindowCreated, map[string]interface{}{"url": w.URL()}, w)
	logger.Info("主窗口已创建", zap.String("window_id", w.ID()), zap.String("url", w.URL()))
	return w, nil
}

/**
 * livePrimary 返回仍然存在的主窗口
 *
 * 主窗口可能在其他窗口仍然打开时被关闭，此时不会收到 window-all-closed。
 * 窗口系统已不再列出跟踪的句柄时清除它。
 */
func (c *Coordinator) livePrimary() Window {
	if c.primary == nil {
		return nil
	}
	id := c.primary.ID()
	for _, w := range c.deps.Windows.AllWindows() {
		if w.ID() == id {
			return c.primary
		}
	}
	logger.Debug("主窗口已关闭，清除句柄", zap.String("window_id", id))
	c.clearPrimary()
	return nil
}

func (c *Coordinator) clearPrimary() {
	c.primary = nil
	c.notified = ""
}

// ========== 调度 ==========

func (c *Coordinator) send(event events.EventType, payload interface{}) {
	if err := c.enqueue(task{event: event, payload: payload}); err != nil {
		logger.Debug("协调器已停止，丢弃触发器", zap.String("event_type", string(event)))
	}
}

func (c *Coordinator) call(ctx context.Context, event events.EventType, payload interface{}) (interface{}, error) {
	reply := make(chan result, 1)
	if err := c.enqueue(task{event: event, payload: payload, reply: reply}); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		select {
		case r := <-reply:
			return r.value, r.err
		default:
			return nil, ErrStopped
		}
	}
}

func (c *Coordinator) enqueue(t task) error {
	if c.stopped.Load() {
		return ErrStopped
	}

	c.mu.Lock()
	c.pending = append(c.pending, t)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Coordinator) next() (task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return task{}, false
	}
	t := c.pending[0]
	c.pending[0] = task{}
	c.pending = c.pending[1:]
	return t, true
}

func (c *Coordinator) loop() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.wake:
		}

		for {
			select {
			case <-c.stopCh:
				return
			default:
			}

			t, ok := c.next()
			if !ok {
				break
			}
			c.dispatch(t)
		}
	}
}

func (c *Coordinator) dispatch(t task) {
	value, err := c.invoke(t)
	if err != nil {
		c.publish(events.EventTypeError, map[string]interface{}{
			"trigger": string(t.event),
			"error":   err.Error(),
		}, nil)
	}
	if t.reply != nil {
		t.reply <- result{value: value, err: err}
	}
}

func (c *Coordinator) invoke(t task) (value interface{}, err error) {
	handler, ok := c.handlers[t.event]
	if !ok {
		return nil, fmt.Errorf("no handler for %s", t.event)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("处理触发器时发生 panic",
				zap.String("event_type", string(t.event)),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("panic handling %s: %v", t.event, r)
		}
	}()

	return handler(t.payload)
}

func (c *Coordinator) drain() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, t := range pending {
		if t.reply != nil {
			t.reply <- result{err: ErrStopped}
		}
	}
}

func (c *Coordinator) publish(eventType events.EventType, data map[string]interface{}, w Window) {
	if c.deps.Bus == nil {
		return
	}

	event := events.NewEvent(eventType, data).WithMetadata("source", "coordinator")
	if w != nil {
		event.WithWindow(w.ID(), string(w.Role()))
	}
	if err := c.deps.Bus.Publish(string(eventType), *event); err != nil && !errors.Is(err, events.ErrBusStopped) {
		logger.Warn("发布生命周期事件失败", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
