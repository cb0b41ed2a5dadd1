/**
 * Package storage 提供数据持久化功能
 *
 * 负责把壳层的生命周期事件持久化到 SQLite，供调试和前端查询
 */

package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite 驱动
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

// MemoryPath 内存数据库路径
const MemoryPath = ":memory:"

/**
 * SQLiteConfig SQLite 配置
 */
type SQLiteConfig struct {
	// Path 数据库文件路径
	Path string

	// MaxOpenConns 最大打开连接数
	MaxOpenConns int

	// MaxIdleConns 最大空闲连接数
	MaxIdleConns int

	// ConnMaxLifetime 连接最大生命周期
	ConnMaxLifetime time.Duration
}

/**
 * NewSQLiteDB 创建 SQLite 数据库连接
 *
 * 文件数据库启用 WAL 模式；内存数据库使用共享缓存，
 * 保证连接池中的多个连接看到同一份数据
 *
 * Parameters:
 *   - config: SQLite 配置
 *
 * Returns: *sql.DB - 数据库连接实例, error - 错误信息
 */
func NewSQLiteDB(config SQLiteConfig) (*sql.DB, error) {
	logger.Info("创建 SQLite 数据库连接",
		zap.String("path", config.Path),
	)

	dataSourceName := config.Path
	if config.Path == MemoryPath {
		dataSourceName = "file::memory:?mode=memory&cache=shared"
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		logger.Error("打开数据库失败", zap.Error(err))
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if config.Path != MemoryPath {
		pragmas = append(pragmas,
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Error("配置数据库失败", zap.String("pragma", pragma), zap.Error(err))
			_ = db.Close()
			return nil, fmt.Errorf("配置数据库失败 (%s): %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		logger.Error("数据库连接验证失败", zap.Error(err))
		_ = db.Close()
		return nil, fmt.Errorf("数据库连接验证失败: %w", err)
	}

	logger.Info("SQLite 数据库连接成功")
	return db, nil
}
