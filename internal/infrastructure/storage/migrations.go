package storage

import (
	"database/sql"
	"fmt"

	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

/**
 * Migration 数据库迁移
 */
type Migration struct {
	// Version 迁移版本号
	Version int

	// Name 迁移名称
	Name string

	// SQL 迁移 SQL 语句
	SQL string
}

// 所有迁移脚本（按版本号排序）
var migrations = []Migration{
	{
		Version: 1,
		Name:    "init_lifecycle_events_table",
		SQL: `
CREATE TABLE IF NOT EXISTS lifecycle_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    type TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    window_id TEXT,
    window_role TEXT,
    data JSON,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_lifecycle_events_timestamp ON lifecycle_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_lifecycle_events_type ON lifecycle_events(type);
`,
	},
	{
		Version: 2,
		Name:    "index_lifecycle_events_window",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_lifecycle_events_window ON lifecycle_events(window_id);
`,
	},
}

/**
 * RunMigrations 执行数据库迁移
 *
 * 所有未应用的迁移在同一个事务中执行
 *
 * Parameters:
 *   - db: 数据库连接
 *
 * Returns: error - 错误信息
 */
func RunMigrations(db *sql.DB) error {
	logger.Info("开始执行数据库迁移")

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		return fmt.Errorf("创建迁移记录表失败: %w", err)
	}

	appliedVersions, err := loadAppliedVersions(tx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if appliedVersions[migration.Version] {
			logger.Debug("跳过已应用的迁移",
				zap.Int("version", migration.Version),
				zap.String("name", migration.Name),
			)
			continue
		}

		logger.Info("应用迁移",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name),
		)

		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("执行迁移 %s 失败: %w", migration.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)",
			migration.Version,
		); err != nil {
			return fmt.Errorf("记录迁移版本失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交迁移事务失败: %w", err)
	}

	logger.Info("数据库迁移完成")
	return nil
}

// loadAppliedVersions 读取已应用的迁移版本
func loadAppliedVersions(tx *sql.Tx) (map[int]bool, error) {
	rows, err := tx.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("查询迁移版本失败: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("扫描迁移版本失败: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历迁移版本失败: %w", err)
	}
	return applied, nil
}
