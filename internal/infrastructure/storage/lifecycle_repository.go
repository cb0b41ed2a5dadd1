package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

/**
 * LifecycleRepository 生命周期事件存储接口
 */
type LifecycleRepository interface {
	// Save 保存单个事件
	Save(event events.Event) error

	// SaveBatch 批量保存事件
	SaveBatch(eventList []events.Event) error

	// FindRecent 查询最近的事件，按时间从旧到新返回
	FindRecent(limit int) ([]events.Event, error)

	// FindByType 按类型查询，按时间从新到旧返回
	FindByType(eventType events.EventType, limit int) ([]events.Event, error)

	// FindByWindow 查询某个窗口的事件，按时间从旧到新返回
	FindByWindow(windowID string) ([]events.Event, error)

	// DeleteOlderThan 删除旧数据
	DeleteOlderThan(cutoff time.Time) (int64, error)

	// GetStats 获取统计信息
	GetStats() (*LifecycleStats, error)
}

/**
 * LifecycleStats 生命周期事件统计
 */
type LifecycleStats struct {
	// TotalCount 总事件数
	TotalCount int64 `json:"totalCount"`

	// CountByType 按类型统计
	CountByType map[string]int64 `json:"countByType"`

	// WindowCount 出现过的窗口数
	WindowCount int64 `json:"windowCount"`
}

const selectLifecycleColumns = `
	SELECT uuid, type, timestamp, window_id, window_role, data, metadata
	FROM lifecycle_events
`

const insertLifecycleEvent = `
	INSERT OR IGNORE INTO lifecycle_events (uuid, type, timestamp, window_id, window_role, data, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

/**
 * SQLiteLifecycleRepository SQLite 生命周期事件仓储
 */
type SQLiteLifecycleRepository struct {
	db *sql.DB
}

/**
 * NewSQLiteLifecycleRepository 创建 SQLite 生命周期事件仓储
 *
 * Parameters:
 *   - db: 已执行迁移的数据库连接
 */
func NewSQLiteLifecycleRepository(db *sql.DB) *SQLiteLifecycleRepository {
	return &SQLiteLifecycleRepository{db: db}
}

/**
 * Save 保存单个事件
 *
 * 相同 uuid 的事件只保存一次
 */
func (r *SQLiteLifecycleRepository) Save(event events.Event) error {
	args, err := lifecycleArgs(event)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(insertLifecycleEvent, args...); err != nil {
		logger.Error("保存生命周期事件失败",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return fmt.Errorf("保存生命周期事件失败: %w", err)
	}
	return nil
}

/**
 * SaveBatch 批量保存事件
 *
 * 使用事务和预处理语句；无法序列化的事件跳过并记录日志
 */
func (r *SQLiteLifecycleRepository) SaveBatch(eventList []events.Event) error {
	if len(eventList) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertLifecycleEvent)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, event := range eventList {
		args, err := lifecycleArgs(event)
		if err != nil {
			logger.Error("序列化生命周期事件失败",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}

		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("插入生命周期事件 %s 失败: %w", event.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	logger.Debug("批量保存生命周期事件成功", zap.Int("count", len(eventList)))
	return nil
}

// FindRecent 查询最近的事件
func (r *SQLiteLifecycleRepository) FindRecent(limit int) ([]events.Event, error) {
	rows, err := r.db.Query(selectLifecycleColumns+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询最近事件失败: %w", err)
	}
	defer rows.Close()

	eventList, err := scanLifecycleEvents(rows)
	if err != nil {
		return nil, err
	}

	// 反转顺序（从旧到新）
	for i, j := 0, len(eventList)-1; i < j; i, j = i+1, j-1 {
		eventList[i], eventList[j] = eventList[j], eventList[i]
	}
	return eventList, nil
}

// FindByType 按类型查询事件
func (r *SQLiteLifecycleRepository) FindByType(eventType events.EventType, limit int) ([]events.Event, error) {
	rows, err := r.db.Query(selectLifecycleColumns+`
		WHERE type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, fmt.Errorf("按类型查询事件失败: %w", err)
	}
	defer rows.Close()

	return scanLifecycleEvents(rows)
}

// FindByWindow 查询某个窗口的全部事件
func (r *SQLiteLifecycleRepository) FindByWindow(windowID string) ([]events.Event, error) {
	rows, err := r.db.Query(selectLifecycleColumns+`
		WHERE window_id = ?
		ORDER BY timestamp ASC, id ASC
	`, windowID)
	if err != nil {
		return nil, fmt.Errorf("按窗口查询事件失败: %w", err)
	}
	defer rows.Close()

	return scanLifecycleEvents(rows)
}

/**
 * DeleteOlderThan 删除旧于指定时间的事件
 *
 * Returns: int64 - 删除的记录数, error - 错误信息
 */
func (r *SQLiteLifecycleRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM lifecycle_events WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("删除旧事件失败: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("获取删除行数失败: %w", err)
	}

	if count > 0 {
		logger.Info("删除旧生命周期事件",
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff),
		)
	}
	return count, nil
}

// GetStats 获取统计信息
func (r *SQLiteLifecycleRepository) GetStats() (*LifecycleStats, error) {
	stats := &LifecycleStats{
		CountByType: make(map[string]int64),
	}

	err := r.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT window_id) FROM lifecycle_events
	`).Scan(&stats.TotalCount, &stats.WindowCount)
	if err != nil {
		return nil, fmt.Errorf("查询总数失败: %w", err)
	}

	rows, err := r.db.Query("SELECT type, COUNT(*) FROM lifecycle_events GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("按类型统计失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("扫描类型统计失败: %w", err)
		}
		stats.CountByType[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历类型统计失败: %w", err)
	}

	return stats, nil
}

// lifecycleArgs 把事件转换为插入参数
func lifecycleArgs(event events.Event) ([]interface{}, error) {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("序列化事件数据失败: %w", err)
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, fmt.Errorf("序列化事件元数据失败: %w", err)
	}

	var windowID, windowRole sql.NullString
	if event.Window != nil {
		windowID = sql.NullString{String: event.Window.ID, Valid: true}
		windowRole = sql.NullString{String: event.Window.Role, Valid: true}
	}

	return []interface{}{
		event.ID,
		string(event.Type),
		event.Timestamp.UTC(),
		windowID,
		windowRole,
		string(dataJSON),
		string(metadataJSON),
	}, nil
}

// scanLifecycleEvents 扫描结果集
func scanLifecycleEvents(rows *sql.Rows) ([]events.Event, error) {
	var eventList []events.Event

	for rows.Next() {
		var event events.Event
		var eventType string
		var windowID, windowRole, dataJSON, metadataJSON sql.NullString

		if err := rows.Scan(
			&event.ID,
			&eventType,
			&event.Timestamp,
			&windowID,
			&windowRole,
			&dataJSON,
			&metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("扫描事件行失败: %w", err)
		}
		event.Type = events.EventType(eventType)

		event.Data = make(map[string]interface{})
		if dataJSON.Valid && dataJSON.String != "" {
			if err := json.Unmarshal([]byte(dataJSON.String), &event.Data); err != nil {
				logger.Error("反序列化事件数据失败",
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
			}
		}
		if event.Data == nil {
			event.Data = make(map[string]interface{})
		}

		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &event.Metadata); err != nil {
				logger.Error("反序列化事件元数据失败",
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
			}
		}

		if windowID.Valid {
			event.Window = &events.WindowRef{ID: windowID.String, Role: windowRole.String}
		}

		eventList = append(eventList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历事件行失败: %w", err)
	}
	return eventList, nil
}
