/**
 * Package events 提供事件系统的核心类型定义
 *
 * 事件系统是壳层的内部通信机制，用于：
 * - 生命周期协调器发布已处理的触发器
 * - 生命周期日志订阅并持久化事件
 * - 前端广播（removeLoading）进入主进程后的记录
 */

package events

import (
	"time"

	"github.com/google/uuid"
)

/**
 * EventType 事件类型枚举
 */
type EventType string

/**
 * 所有事件类型常量
 *
 * 名称与前端/平台侧的信号名保持一致
 */
const (
	// 生命周期触发器
	EventTypeReady           EventType = "ready"             // 平台就绪
	EventTypeSecondInstance  EventType = "second-instance"   // 第二个实例启动
	EventTypeActivate        EventType = "activate"          // 应用被激活
	EventTypeWindowAllClosed EventType = "window-all-closed" // 所有窗口已关闭
	EventTypeOpenWin         EventType = "open-win"          // 请求打开辅助窗口
	EventTypeDidFinishLoad   EventType = "did-finish-load"   // 窗口内容首次加载完成

	// 副作用
	EventTypeWindowCreated      EventType = "window-created"       // 窗口已创建
	EventTypeWindowOpenRequest  EventType = "window-open-request"  // 页面内请求打开新窗口
	EventTypeMainProcessMessage EventType = "main-process-message" // 主进程推送给窗口的消息

	// 前端广播
	EventTypeRemoveLoading EventType = "removeLoading"

	// 系统事件
	EventTypeError EventType = "error"
)

/**
 * Event 统一事件结构
 */
type Event struct {
	// ID 事件唯一标识符
	ID string `json:"id"`

	// Type 事件类型
	Type EventType `json:"type"`

	// Timestamp 事件发生时间
	Timestamp time.Time `json:"timestamp"`

	// Data 事件数据（类型特定的数据）
	Data map[string]interface{} `json:"data"`

	// Metadata 事件元数据（可选的额外信息）
	Metadata map[string]string `json:"metadata,omitempty"`

	// Window 事件关联的窗口（可选）
	Window *WindowRef `json:"window,omitempty"`
}

/**
 * WindowRef 事件关联的窗口
 */
type WindowRef struct {
	// ID 窗口 ID
	ID string `json:"id"`

	// Role 窗口角色（primary/auxiliary）
	Role string `json:"role"`
}

/**
 * NewEvent 创建新事件
 *
 * Parameters:
 *   - eventType: 事件类型
 *   - data: 事件数据
 *
 * Returns:
 *   - *Event: 新创建的事件
 */
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Metadata:  make(map[string]string),
	}
}

/**
 * WithWindow 设置事件关联的窗口
 *
 * Returns:
 *   - *Event: 返回自身，支持链式调用
 */
func (e *Event) WithWindow(id, role string) *Event {
	e.Window = &WindowRef{ID: id, Role: role}
	return e
}

/**
 * WithMetadata 添加元数据
 *
 * Returns:
 *   - *Event: 返回自身，支持链式调用
 */
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

/**
 * generateEventID 生成事件唯一 ID
 *
 * 使用 UUID v4 确保全局唯一性
 */
func generateEventID() string {
	return uuid.New().String()
}
