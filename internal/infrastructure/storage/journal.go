package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

/**
 * JournalConfig 生命周期日志配置
 */
type JournalConfig struct {
	// Path 数据库文件路径，MemoryPath 表示内存数据库
	Path string

	// BatchSize 批量写入大小
	BatchSize int

	// FlushInterval 批量写入间隔
	FlushInterval time.Duration

	// RetentionDays 保留天数，0 表示不清理
	RetentionDays int
}

/**
 * Journal 生命周期日志
 *
 * 订阅事件总线上的全部事件，通过 BatchWriter 写入 SQLite
 */
type Journal struct {
	db     *sql.DB
	repo   *SQLiteLifecycleRepository
	writer *BatchWriter

	bus   *events.EventBus
	subID string

	closeOnce sync.Once
	closeErr  error
}

/**
 * OpenJournal 打开生命周期日志
 *
 * 创建数据库目录、执行迁移、清理过期事件，然后订阅事件总线
 *
 * Parameters:
 *   - config: 日志配置
 *   - bus: 事件总线，为 nil 时只提供查询能力
 *
 * Returns: *Journal - 日志实例, error - 错误信息
 */
func OpenJournal(config JournalConfig, bus *events.EventBus) (*Journal, error) {
	if config.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := NewSQLiteDB(SQLiteConfig{
		Path:            config.Path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0,
	})
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("执行数据库迁移失败: %w", err)
	}

	repo := NewSQLiteLifecycleRepository(db)

	if config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -config.RetentionDays)
		if _, err := repo.DeleteOlderThan(cutoff); err != nil {
			logger.Warn("清理过期生命周期事件失败", zap.Error(err))
		}
	}

	writer := NewBatchWriter(repo, BatchWriterConfig{
		BatchSize:     config.BatchSize,
		FlushInterval: config.FlushInterval,
	})
	writer.Start()

	journal := &Journal{
		db:     db,
		repo:   repo,
		writer: writer,
		bus:    bus,
	}
	if bus != nil {
		journal.subID = bus.Subscribe("*", writer.Handler())
	}

	logger.Info("生命周期日志已打开",
		zap.String("path", config.Path),
		zap.Int("retention_days", config.RetentionDays),
	)
	return journal, nil
}

/**
 * Recent 查询最近的生命周期事件
 *
 * 先刷新已缓冲的事件，结果按时间从旧到新排列
 */
func (j *Journal) Recent(limit int) ([]events.Event, error) {
	if limit <= 0 {
		return []events.Event{}, nil
	}
	j.writer.ForceFlush()
	return j.repo.FindRecent(limit)
}

// ByType 按类型查询，按时间从新到旧排列
func (j *Journal) ByType(eventType events.EventType, limit int) ([]events.Event, error) {
	if limit <= 0 {
		return []events.Event{}, nil
	}
	j.writer.ForceFlush()
	return j.repo.FindByType(eventType, limit)
}

// ByWindow 查询某个窗口的全部事件，按时间从旧到新排列
func (j *Journal) ByWindow(windowID string) ([]events.Event, error) {
	j.writer.ForceFlush()
	return j.repo.FindByWindow(windowID)
}

// Summary 已持久化事件的统计
func (j *Journal) Summary() (*LifecycleStats, error) {
	j.writer.ForceFlush()
	return j.repo.GetStats()
}

// Stats 返回写入器统计信息
func (j *Journal) Stats() BatchWriterStats {
	return j.writer.GetStats()
}

/**
 * Close 关闭生命周期日志
 *
 * 取消订阅、写完剩余事件并关闭数据库，可重复调用
 */
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		if j.bus != nil && j.subID != "" {
			j.bus.Unsubscribe(j.subID)
		}
		j.writer.Stop()
		j.closeErr = j.db.Close()
		logger.Info("生命周期日志已关闭", zap.Any("stats", j.writer.GetStats()))
	})
	return j.closeErr
}
