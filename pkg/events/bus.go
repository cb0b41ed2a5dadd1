/**
 * Package events 提供事件总线实现
 *
 * EventBus 是发布-订阅模式的核心实现，支持：
 * - 通配符订阅
 * - 异步事件处理（每个订阅者独立的 goroutine）
 * - 中间件链
 * - 优雅关闭
 */

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

// ErrBusStopped 事件总线已停止
var ErrBusStopped = errors.New("event bus is stopped")

/**
 * EventHandler 事件处理函数类型
 */
type EventHandler func(event Event) error

/**
 * EventFilter 事件过滤器函数类型
 *
 * 返回 true 表示事件应该被处理，false 表示跳过
 */
type EventFilter func(event Event) bool

/**
 * Middleware 中间件类型
 *
 * 中间件可以包装事件处理函数，添加日志、恢复、节流等功能
 */
type Middleware func(EventHandler) EventHandler

/**
 * Subscriber 订阅者信息
 */
type Subscriber struct {
	// ID 订阅者唯一标识
	ID string

	// Handler 事件处理函数
	Handler EventHandler

	// Filter 事件过滤器（可选）
	Filter EventFilter

	// Once 是否只触发一次
	Once bool

	// Chan 订阅者专用通道（用于异步交付）
	Chan chan Event

	// mu 保护 Chan 的发送和关闭
	mu sync.RWMutex

	// closed Chan 是否已关闭
	closed bool
}

/**
 * EventBus 事件总线
 */
type EventBus struct {
	// subscribers 订阅者映射：事件类型 -> 订阅者列表
	subscribers map[string][]*Subscriber

	// mutex 保护 subscribers 和 middleware 的读写锁
	mutex sync.RWMutex

	// wg 等待组，用于优雅关闭
	wg sync.WaitGroup

	// stopChan 停止信号通道
	stopChan chan struct{}

	// middleware 中间件链
	middleware []Middleware

	// stopped 原子标志，标记总线是否已停止
	stopped atomic.Bool

	// asyncEnabled 是否启用异步交付
	asyncEnabled bool

	// asyncBufferSize 异步事件缓冲区大小
	asyncBufferSize int
}

/**
 * NewEventBus 创建新的事件总线
 */
func NewEventBus(opts ...Option) *EventBus {
	bus := &EventBus{
		subscribers:     make(map[string][]*Subscriber),
		stopChan:        make(chan struct{}),
		middleware:      make([]Middleware, 0),
		asyncEnabled:    true,
		asyncBufferSize: 256,
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

/**
 * Option 配置选项类型
 */
type Option func(*EventBus)

/**
 * WithAsyncBufferSize 设置异步缓冲区大小
 */
func WithAsyncBufferSize(size int) Option {
	return func(bus *EventBus) {
		bus.asyncBufferSize = size
	}
}

/**
 * WithAsyncDisabled 禁用异步交付
 *
 * 禁用后 Publish 在调用方 goroutine 中直接执行处理函数
 */
func WithAsyncDisabled() Option {
	return func(bus *EventBus) {
		bus.asyncEnabled = false
	}
}

/**
 * Subscribe 订阅事件
 *
 * Parameters:
 *   - eventType: 事件类型，使用 "*" 订阅所有事件
 *   - handler: 事件处理函数
 *
 * Returns:
 *   - string: 订阅者 ID，用于取消订阅
 */
func (bus *EventBus) Subscribe(eventType string, handler EventHandler) string {
	return bus.subscribe(eventType, handler, nil, false)
}

/**
 * SubscribeWithFilter 带过滤器订阅事件
 */
func (bus *EventBus) SubscribeWithFilter(eventType string, handler EventHandler, filter EventFilter) string {
	return bus.subscribe(eventType, handler, filter, false)
}

/**
 * SubscribeOnce 订阅一次性事件
 *
 * 事件只会被处理一次，之后自动取消订阅
 */
func (bus *EventBus) SubscribeOnce(eventType string, handler EventHandler) string {
	return bus.subscribe(eventType, handler, nil, true)
}

func (bus *EventBus) subscribe(eventType string, handler EventHandler, filter EventFilter, once bool) string {
	subscriber := &Subscriber{
		ID:      "sub-" + uuid.NewString(),
		Handler: handler,
		Filter:  filter,
		Once:    once,
	}
	if bus.asyncEnabled {
		subscriber.Chan = make(chan Event, bus.asyncBufferSize)
	}

	bus.mutex.Lock()
	bus.subscribers[eventType] = append(bus.subscribers[eventType], subscriber)
	bus.mutex.Unlock()

	logger.Debug("订阅事件",
		zap.String("event_type", eventType),
		zap.String("subscriber_id", subscriber.ID),
	)

	if bus.asyncEnabled {
		bus.wg.Add(1)
		go bus.processSubscriber(subscriber)
	}

	return subscriber.ID
}

/**
 * Unsubscribe 取消订阅
 */
func (bus *EventBus) Unsubscribe(subscriberID string) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	for eventType, subscribers := range bus.subscribers {
		for i, sub := range subscribers {
			if sub.ID != subscriberID {
				continue
			}

			bus.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)

			logger.Debug("取消订阅",
				zap.String("event_type", eventType),
				zap.String("subscriber_id", subscriberID),
			)

			sub.mu.Lock()
			if sub.Chan != nil && !sub.closed {
				close(sub.Chan)
			}
			sub.closed = true
			sub.mu.Unlock()
			return
		}
	}

	logger.Debug("订阅者不存在，无法取消订阅", zap.String("subscriber_id", subscriberID))
}

/**
 * Publish 发布事件
 *
 * 异步模式下只负责投递到订阅者通道，缓冲区满时丢弃并记录警告
 *
 * Returns:
 *   - error: 总线已停止时返回 ErrBusStopped
 */
func (bus *EventBus) Publish(eventType string, event Event) error {
	if bus.stopped.Load() {
		logger.Warn("事件总线已停止，无法发布事件",
			zap.String("event_type", eventType),
		)
		return ErrBusStopped
	}

	bus.mutex.RLock()
	subscribers := bus.getSubscribers(eventType)
	bus.mutex.RUnlock()

	delivered := 0
	for _, subscriber := range subscribers {
		if subscriber.Filter != nil && !subscriber.Filter(event) {
			continue
		}

		if !bus.asyncEnabled {
			subscriber.mu.RLock()
			closed := subscriber.closed
			subscriber.mu.RUnlock()
			if closed {
				continue
			}
			bus.handle(subscriber, event)
			if subscriber.Once {
				bus.Unsubscribe(subscriber.ID)
			}
			delivered++
			continue
		}

		subscriber.mu.RLock()
		if !subscriber.closed {
			select {
			case subscriber.Chan <- event:
				delivered++
			default:
				logger.Warn("事件缓冲区满，丢弃事件",
					zap.String("subscriber_id", subscriber.ID),
					zap.String("event_type", eventType),
				)
			}
		}
		subscriber.mu.RUnlock()
	}

	logger.Debug("事件已发送",
		zap.String("event_type", eventType),
		zap.String("event_id", event.ID),
		zap.Int("subscriber_count", delivered),
	)

	return nil
}

/**
 * PublishAsync 异步发布事件
 *
 * 不等待投递完成，立即返回
 */
func (bus *EventBus) PublishAsync(eventType string, event Event) {
	go func() {
		_ = bus.Publish(eventType, event)
	}()
}

/**
 * Use 添加中间件
 *
 * 中间件按添加顺序执行
 */
func (bus *EventBus) Use(middleware Middleware) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.middleware = append(bus.middleware, middleware)
}

/**
 * Stop 优雅停止事件总线
 *
 * 等待所有订阅者处理器退出，超时返回错误
 */
func (bus *EventBus) Stop(timeout time.Duration) error {
	if !bus.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(bus.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		bus.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for event bus to stop")
	}
}

/**
 * processSubscriber 处理订阅者事件
 *
 * 在独立的 goroutine 中运行，从通道读取事件并处理
 */
func (bus *EventBus) processSubscriber(subscriber *Subscriber) {
	defer bus.wg.Done()

	for {
		select {
		case event, ok := <-subscriber.Chan:
			if !ok {
				return
			}

			bus.handle(subscriber, event)

			if subscriber.Once {
				bus.Unsubscribe(subscriber.ID)
				return
			}

		case <-bus.stopChan:
			return
		}
	}
}

// handle 经过中间件链执行订阅者的处理函数
func (bus *EventBus) handle(subscriber *Subscriber, event Event) {
	bus.mutex.RLock()
	handler := bus.applyMiddleware(subscriber.Handler)
	bus.mutex.RUnlock()

	if err := handler(event); err != nil {
		logger.Error("事件处理错误",
			zap.String("subscriber_id", subscriber.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

/**
 * getSubscribers 获取事件类型的所有订阅者（包括通配符订阅者）
 */
func (bus *EventBus) getSubscribers(eventType string) []*Subscriber {
	subscribers := make([]*Subscriber, 0)

	if subs, ok := bus.subscribers[eventType]; ok {
		subscribers = append(subscribers, subs...)
	}

	if eventType != "*" {
		if wildcardSubs, ok := bus.subscribers["*"]; ok {
			subscribers = append(subscribers, wildcardSubs...)
		}
	}

	return subscribers
}

/**
 * applyMiddleware 应用中间件链（洋葱模型）
 */
func (bus *EventBus) applyMiddleware(handler EventHandler) EventHandler {
	for i := len(bus.middleware) - 1; i >= 0; i-- {
		handler = bus.middleware[i](handler)
	}
	return handler
}

/**
 * RecoveryMiddleware 恢复中间件
 *
 * 防止事件处理函数中的 panic 导致程序崩溃
 */
func RecoveryMiddleware() Middleware {
	return func(next EventHandler) EventHandler {
		return func(event Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(event)
		}
	}
}

/**
 * LoggingMiddleware 日志中间件
 *
 * Parameters:
 *   - log: 日志函数（可选）
 */
func LoggingMiddleware(log func(event Event)) Middleware {
	return func(next EventHandler) EventHandler {
		return func(event Event) error {
			if log != nil {
				log(event)
			}
			return next(event)
		}
	}
}
