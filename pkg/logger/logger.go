/**
 * Package logger 提供结构化日志功能
 *
 * 基于 uber-go/zap 实现的高性能结构化日志系统。
 * 支持开发环境和生产环境的不同配置，文件输出通过 lumberjack 滚动切割。
 */
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// logger 全局日志实例
	logger *zap.Logger

	// once 确保日志只初始化一次
	once sync.Once

	// sugar 全局 sugared logger 实例（更方便使用）
	sugar *zap.SugaredLogger

	// rotator 文件输出（未配置文件时为 nil）
	rotator *lumberjack.Logger
)

// Options 日志初始化选项
//
// 环境变量优先于这里的值：ENV、LOG_LEVEL、LOG_FILE。
type Options struct {
	// Env 环境类型（development/production）
	Env string

	// Level 日志级别（debug/info/warn/error）
	Level string

	// File 日志文件路径，为空表示只输出到控制台
	File string

	// MaxSizeMB 单个日志文件最大大小（MB）
	MaxSizeMB int

	// MaxBackups 保留的旧日志文件数
	MaxBackups int

	// MaxAgeDays 旧日志保留天数
	MaxAgeDays int

	// Compress 是否压缩旧日志
	Compress bool
}

// InitLogger 初始化日志系统
//
// 根据环境变量配置日志系统：
//   - 开发环境：控制台彩色输出，Debug 级别
//   - 生产环境：JSON 格式，Info 级别
//
// Returns: error - 初始化失败时返回错误
func InitLogger() error {
	return InitWithOptions(Options{})
}

// InitWithOptions 使用配置文件中的选项初始化日志系统
//
// 只有第一次调用生效，之后的调用直接返回。
//
// Parameters:
//   - opts: 日志选项
//
// Returns: error - 初始化失败时返回错误
func InitWithOptions(opts Options) error {
	var initErr error
	once.Do(func() {
		env := getEnv("ENV", opts.Env)
		if env == "" {
			env = "development"
		}
		opts.File = getEnv("LOG_FILE", opts.File)

		if env == "production" {
			opts.Level = getEnv("LOG_LEVEL", defaultString(opts.Level, "info"))
			logger, initErr = initProductionLogger(opts)
		} else {
			opts.Level = getEnv("LOG_LEVEL", defaultString(opts.Level, "debug"))
			logger, initErr = initDevelopmentLogger(opts)
		}

		if initErr != nil {
			return
		}

		sugar = logger.Sugar()
	})

	return initErr
}

// initDevelopmentLogger 初始化开发环境日志
//
// 开发环境配置：
//   - 控制台输出，彩色格式
//   - Debug 级别
//   - 友好的时间格式（2024-01-29 15:04:05.123）
//   - 配置了文件时额外写一份 JSON 到滚动文件
func initDevelopmentLogger(opts Options) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := parseLevel(opts.Level, zapcore.DebugLevel)

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stdout),
			level,
		),
	}

	if opts.File != "" {
		fileEncoder := zap.NewProductionEncoderConfig()
		fileEncoder.TimeKey = "timestamp"
		fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoder),
			zapcore.AddSync(newRotator(opts)),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.Development()), nil
}

// initProductionLogger 初始化生产环境日志
//
// 生产环境配置：
//   - JSON 格式（机器可解析）
//   - Info 级别
//   - 配置了文件时只输出到滚动文件
func initProductionLogger(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := parseLevel(opts.Level, zapcore.InfoLevel)

	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stdout)
	if opts.File != "" {
		sink = zapcore.AddSync(newRotator(opts))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(config.EncoderConfig),
		sink,
		level,
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// newRotator 创建滚动日志文件
func newRotator(opts Options) *lumberjack.Logger {
	rotator = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    defaultInt(opts.MaxSizeMB, 10),
		MaxBackups: defaultInt(opts.MaxBackups, 5),
		MaxAge:     defaultInt(opts.MaxAgeDays, 30),
		Compress:   opts.Compress,
	}
	return rotator
}

// GetLogger 获取全局 logger 实例
//
// 如果日志系统未初始化，会自动初始化（开发模式）。
func GetLogger() *zap.Logger {
	if logger == nil {
		_ = InitLogger()
	}
	return logger
}

// GetSugaredLogger 获取全局 sugared logger 实例
func GetSugaredLogger() *zap.SugaredLogger {
	if sugar == nil {
		_ = InitLogger()
	}
	return sugar
}

// Sync 刷新日志缓冲区并关闭日志文件
//
// 应用退出前应该调用此方法确保所有日志都已写入。
func Sync() error {
	var err error
	if logger != nil {
		err = logger.Sync()
	}
	if rotator != nil {
		if closeErr := rotator.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// Debug 记录 Debug 级别日志
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Info 记录 Info 级别日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Warn 记录 Warn 级别日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error 记录 Error 级别日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal 记录 Fatal 级别日志后退出程序
//
// 记录日志后会调用 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// With 创建带有预设字段的 logger
//
// 用于在日志中自动添加上下文信息（如窗口 ID、事件类型等）。
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// parseLevel 解析日志级别，失败时使用默认值
func parseLevel(level string, fallback zapcore.Level) zap.AtomicLevel {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = fallback
	}
	return zap.NewAtomicLevelAt(parsed)
}

// getEnv 获取环境变量
//
// 从系统环境变量中读取配置，如果不存在则返回默认值。
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
