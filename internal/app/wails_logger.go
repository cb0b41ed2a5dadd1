package app

import (
	"strings"

	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/config"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	wailslogger "github.com/wailsapp/wails/v2/pkg/logger"
	"go.uber.org/zap"
)

/**
 * wailsLogger 把 Wails 内部日志写入 zap
 */
type wailsLogger struct {
	log *zap.SugaredLogger
}

// NewWailsLogger 创建 Wails 日志适配器
func NewWailsLogger() wailslogger.Logger {
	return &wailsLogger{log: logger.GetSugaredLogger().With("component", "wails")}
}

func (l *wailsLogger) Print(message string)   { l.log.Info(message) }
func (l *wailsLogger) Trace(message string)   { l.log.Debug(message) }
func (l *wailsLogger) Debug(message string)   { l.log.Debug(message) }
func (l *wailsLogger) Info(message string)    { l.log.Info(message) }
func (l *wailsLogger) Warning(message string) { l.log.Warn(message) }
func (l *wailsLogger) Error(message string)   { l.log.Error(message) }
func (l *wailsLogger) Fatal(message string)   { l.log.Fatal(message) }

// wailsLogLevel 与 zap 日志级别对应的 Wails 日志级别
func wailsLogLevel(cfg *config.Config) wailslogger.LogLevel {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		return wailslogger.DEBUG
	case "warn", "warning":
		return wailslogger.WARNING
	case "error":
		return wailslogger.ERROR
	default:
		return wailslogger.INFO
	}
}
