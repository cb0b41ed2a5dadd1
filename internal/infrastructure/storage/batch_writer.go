package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

/**
 * BatchSaver 批量保存接口
 *
 * LifecycleRepository 满足此接口
 */
type BatchSaver interface {
	SaveBatch(eventList []events.Event) error
}

/**
 * BatchWriterConfig 批量写入器配置
 */
type BatchWriterConfig struct {
	// BatchSize 批量大小（达到此数量时自动刷新）
	BatchSize int

	// FlushInterval 刷新间隔（定时刷新）
	FlushInterval time.Duration

	// EventBuffer 缓冲区大小（channel 容量）
	EventBuffer int
}

/**
 * DefaultBatchWriterConfig 默认配置
 */
func DefaultBatchWriterConfig() BatchWriterConfig {
	return BatchWriterConfig{
		BatchSize:     50,
		FlushInterval: 2 * time.Second,
		EventBuffer:   256,
	}
}

/**
 * BatchWriterStats 批量写入器统计信息
 */
type BatchWriterStats struct {
	// TotalEvents 接收的事件数
	TotalEvents int64 `json:"totalEvents"`

	// PersistedEvents 成功持久化的事件数
	PersistedEvents int64 `json:"persistedEvents"`

	// FailedEvents 写入失败的事件数
	FailedEvents int64 `json:"failedEvents"`

	// DroppedEvents 通道已满被丢弃的事件数
	DroppedEvents int64 `json:"droppedEvents"`
}

/**
 * BatchWriter 批量写入器
 *
 * 缓冲生命周期事件并批量写入数据库，事件总线的处理函数不会被磁盘 IO 阻塞
 */
type BatchWriter struct {
	repo   BatchSaver
	config BatchWriterConfig

	// 事件通道
	eventChan chan events.Event

	// 批量缓冲区
	buffer []events.Event

	// 统计信息
	total     atomic.Int64
	persisted atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	// 并发控制
	mu     sync.Mutex
	sendMu sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// 状态
	started bool
	closed  bool
}

/**
 * NewBatchWriter 创建批量写入器
 *
 * Parameters:
 *   - repo: 批量保存目标
 *   - config: 配置，非法值回退到默认配置
 *
 * Returns: *BatchWriter - 批量写入器实例
 */
func NewBatchWriter(repo BatchSaver, config BatchWriterConfig) *BatchWriter {
	defaults := DefaultBatchWriterConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaults.FlushInterval
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaults.EventBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &BatchWriter{
		repo:      repo,
		config:    config,
		eventChan: make(chan events.Event, config.EventBuffer),
		buffer:    make([]events.Event, 0, config.BatchSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

/**
 * Start 启动批量写入器
 *
 * 开始处理事件通道和定时刷新
 */
func (bw *BatchWriter) Start() {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.started || bw.closed {
		logger.Warn("批量写入器已经启动", zap.Any("config", bw.config))
		return
	}

	bw.started = true

	bw.wg.Add(2)
	go bw.processEvents()
	go bw.flushLoop()

	logger.Info("批量写入器已启动",
		zap.Int("batch_size", bw.config.BatchSize),
		zap.Duration("flush_interval", bw.config.FlushInterval),
		zap.Int("event_buffer", bw.config.EventBuffer),
	)
}

/**
 * Stop 停止批量写入器
 *
 * 停止接收新事件，写完通道和缓冲区中剩余的事件
 */
func (bw *BatchWriter) Stop() {
	bw.mu.Lock()
	if !bw.started {
		bw.mu.Unlock()
		return
	}
	bw.started = false
	bw.mu.Unlock()

	logger.Info("正在停止批量写入器...")

	bw.sendMu.Lock()
	bw.closed = true
	close(bw.eventChan)
	bw.sendMu.Unlock()

	// processEvents 读完通道后退出
	bw.cancel()
	bw.wg.Wait()

	bw.mu.Lock()
	bw.flush()
	bw.mu.Unlock()

	logger.Info("批量写入器已停止", zap.Any("stats", bw.GetStats()))
}

/**
 * Write 写入单个事件
 *
 * 非阻塞方法，将事件放入通道
 *
 * Returns: bool - 是否成功写入（通道满或已停止时返回 false）
 */
func (bw *BatchWriter) Write(event events.Event) bool {
	bw.sendMu.RLock()
	defer bw.sendMu.RUnlock()

	if bw.closed {
		return false
	}

	select {
	case bw.eventChan <- event:
		bw.total.Add(1)
		return true
	default:
		bw.dropped.Add(1)
		logger.Warn("批量写入器通道已满，事件丢弃",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		)
		return false
	}
}

/**
 * Handler 返回事件总线处理函数
 *
 * 订阅 "*" 后所有生命周期事件都会进入写入器
 */
func (bw *BatchWriter) Handler() events.EventHandler {
	return func(event events.Event) error {
		bw.Write(event)
		return nil
	}
}

/**
 * ForceFlush 强制刷新缓冲区
 *
 * 先把通道中已排队的事件移入缓冲区，再写入数据库
 */
func (bw *BatchWriter) ForceFlush() {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	for {
		select {
		case event, ok := <-bw.eventChan:
			if !ok {
				bw.flush()
				return
			}
			bw.buffer = append(bw.buffer, event)
		default:
			bw.flush()
			return
		}
	}
}

// processEvents 事件处理循环
func (bw *BatchWriter) processEvents() {
	defer bw.wg.Done()

	for event := range bw.eventChan {
		bw.mu.Lock()
		bw.buffer = append(bw.buffer, event)

		// 达到批量大小，立即刷新
		if len(bw.buffer) >= bw.config.BatchSize {
			bw.flush()
		}
		bw.mu.Unlock()
	}
}

// flushLoop 定时刷新循环
func (bw *BatchWriter) flushLoop() {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-ticker.C:
			bw.mu.Lock()
			bw.flush()
			bw.mu.Unlock()
		}
	}
}

/**
 * flush 刷新缓冲区到数据库
 *
 * 必须在持有锁的情况下调用；写入失败的批次被丢弃并计入统计
 */
func (bw *BatchWriter) flush() {
	if len(bw.buffer) == 0 {
		return
	}

	startTime := time.Now()
	eventCount := len(bw.buffer)

	batch := make([]events.Event, eventCount)
	copy(batch, bw.buffer)
	bw.buffer = bw.buffer[:0]

	if err := bw.repo.SaveBatch(batch); err != nil {
		bw.failed.Add(int64(eventCount))
		logger.Error("批量写入失败",
			zap.Int("count", eventCount),
			zap.Error(err),
		)
		return
	}
	bw.persisted.Add(int64(eventCount))

	logger.Debug("批量刷新完成",
		zap.Int("count", eventCount),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// GetBufferSize 获取当前缓冲区中的事件数量
func (bw *BatchWriter) GetBufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// IsStarted 检查批量写入器是否已启动
func (bw *BatchWriter) IsStarted() bool {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.started
}

/**
 * GetStats 获取统计信息快照
 */
func (bw *BatchWriter) GetStats() BatchWriterStats {
	return BatchWriterStats{
		TotalEvents:     bw.total.Load(),
		PersistedEvents: bw.persisted.Load(),
		FailedEvents:    bw.failed.Load(),
		DroppedEvents:   bw.dropped.Load(),
	}
}
