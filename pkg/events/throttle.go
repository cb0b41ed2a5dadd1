package events

import (
	"sync"
	"time"
)

// Throttle 按事件类型节流
//
// 同一事件类型两次通过之间至少间隔 MinInterval，用于避免
// 连续双击启动、反复激活等事件刷屏。没有规则的事件类型总是通过。
type Throttle struct {
	// rules 每种事件类型的最小间隔
	rules map[EventType]time.Duration

	// last 每种事件类型最后一次通过的时间
	last map[EventType]time.Time

	// now 时间来源（测试可替换）
	now func() time.Time

	mu sync.Mutex
}

// NewThrottle 创建节流器
//
// Parameters: rules - 事件类型到最小间隔的映射
func NewThrottle(rules map[EventType]time.Duration) *Throttle {
	copied := make(map[EventType]time.Duration, len(rules))
	for eventType, interval := range rules {
		copied[eventType] = interval
	}
	return &Throttle{
		rules: copied,
		last:  make(map[EventType]time.Time),
		now:   time.Now,
	}
}

// Allow 判断事件是否应该通过
//
// Returns: bool - true 表示通过，false 表示被节流
func (t *Throttle) Allow(eventType EventType) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	interval, ok := t.rules[eventType]
	if ok && interval > 0 {
		if last, seen := t.last[eventType]; seen && now.Sub(last) < interval {
			return false
		}
	}

	t.last[eventType] = now
	return true
}

// Filter 转换为订阅过滤器
//
// 节流状态属于单个订阅者，不要在多个订阅之间共享同一个 Throttle。
func (t *Throttle) Filter() EventFilter {
	return func(event Event) bool {
		return t.Allow(event.Type)
	}
}

