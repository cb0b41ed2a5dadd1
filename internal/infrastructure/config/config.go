/**
 * Package config 提供配置管理功能
 *
 * 负责加载和管理壳层的配置信息：窗口默认值、内容来源、
 * 生命周期日志数据库和日志输出。
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DirName 用户配置目录名
	DirName = ".vue3-desktop-shell"

	// FileName 配置文件名
	FileName = "config.yaml"
)

/**
 * Config 应用配置结构体
 *
 * 包含应用的所有可配置参数
 */
type Config struct {
	// Application 应用基本配置
	Application ApplicationConfig `yaml:"application"`

	// Window 窗口配置
	Window WindowConfig `yaml:"window"`

	// Content 内容来源配置
	Content ContentConfig `yaml:"content"`

	// Storage 存储配置
	Storage StorageConfig `yaml:"storage"`

	// Logging 日志配置
	Logging LoggingConfig `yaml:"logging"`
}

/**
 * ApplicationConfig 应用基本配置
 */
type ApplicationConfig struct {
	/** 应用名称 */
	Name string `yaml:"name"`

	/** 应用标识，用于单实例锁目录和 Windows AppUserModelID */
	ID string `yaml:"id"`

	/** 应用版本 */
	Version string `yaml:"version"`

	/** 是否启用调试模式 */
	Debug bool `yaml:"debug"`
}

/**
 * WindowConfig 窗口配置
 */
type WindowConfig struct {
	/** 主窗口标题 */
	Title string `yaml:"title"`

	/** 窗口宽度 */
	Width int `yaml:"width"`

	/** 窗口高度 */
	Height int `yaml:"height"`

	/** 图标文件名，相对于公共资源目录 */
	Icon string `yaml:"icon"`

	/** 预加载脚本，相对于主进程构建目录 */
	Preload string `yaml:"preload"`
}

/**
 * ContentConfig 内容来源配置
 */
type ContentConfig struct {
	/** 开发服务器地址，为空时加载本地入口文件 */
	DevServerURL string `yaml:"dev_server_url"`

	/** 应用根目录 */
	AppRoot string `yaml:"app_root"`

	/** 主进程构建目录，相对于应用根目录 */
	MainDist string `yaml:"main_dist"`

	/** 渲染进程构建目录，相对于应用根目录 */
	RendererDist string `yaml:"renderer_dist"`

	/** 入口文件名 */
	IndexFile string `yaml:"index_file"`

	/** 公共资源目录，为空时按是否使用开发服务器推导 */
	PublicDir string `yaml:"public_dir"`
}

/**
 * StorageConfig 存储配置
 */
type StorageConfig struct {
	/** SQLite 配置 */
	SQLite SQLiteConfig `yaml:"sqlite"`

	/** 数据保留策略 */
	Retention RetentionConfig `yaml:"retention"`
}

/**
 * SQLiteConfig SQLite 配置
 */
type SQLiteConfig struct {
	/** 是否启用生命周期日志 */
	Enabled bool `yaml:"enabled"`

	/** 数据库文件路径 */
	Path string `yaml:"path"`

	/** 批量写入大小 */
	BatchSize int `yaml:"batch_size"`

	/** 批量写入间隔 */
	FlushInterval string `yaml:"flush_interval"`
}

/**
 * RetentionConfig 数据保留配置
 */
type RetentionConfig struct {
	/** 事件保留天数，0 表示不清理 */
	EventsDays int `yaml:"events_days"`
}

/**
 * LoggingConfig 日志配置
 */
type LoggingConfig struct {
	/** 日志级别 */
	Level string `yaml:"level"`

	/** 运行环境（development/production） */
	Env string `yaml:"env"`

	/** 文件配置 */
	File FileConfig `yaml:"file"`
}

/**
 * FileConfig 文件配置
 */
type FileConfig struct {
	/** 日志文件路径，为空只输出到控制台 */
	Path string `yaml:"path"`

	/** 最大文件大小（MB） */
	MaxSizeMB int `yaml:"max_size_mb"`

	/** 最大备份文件数 */
	MaxBackups int `yaml:"max_backups"`

	/** 最大保留天数 */
	MaxAgeDays int `yaml:"max_age_days"`

	/** 是否压缩 */
	Compress bool `yaml:"compress"`
}

/**
 * Load 加载配置文件
 *
 * 从 ~/.vue3-desktop-shell/config.yaml 加载，文件不存在时使用默认配置
 *
 * Returns:
 *   - *Config: 加载的配置
 *   - error: 错误信息
 */
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(homeDir, DirName, FileName))
}

/**
 * LoadFile 从指定路径加载配置
 *
 * 文件中未设置的字段保留默认值，然后应用环境变量覆盖
 *
 * Parameters:
 *   - path: 配置文件路径
 *
 * Returns:
 *   - *Config: 加载的配置
 *   - error: 读取或解析失败
 */
func LoadFile(path string) (*Config, error) {
	config, err := LoadDefault()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	expandEnvVars(config)
	applyEnvOverrides(config)

	return config, nil
}

/**
 * LoadDefault 加载默认配置
 *
 * 默认值沿用前端工程的目录约定：dist-electron、dist、public
 *
 * Returns:
 *   - *Config: 默认配置
 *   - error: 错误信息
 */
func LoadDefault() (*Config, error) {
	config := &Config{
		Application: ApplicationConfig{
			Name:    "vue3-desktop-shell",
			ID:      "com.nacker.vue3-desktop-shell",
			Version: "1.0.0",
		},
		Window: WindowConfig{
			Title:   "Main window",
			Width:   800,
			Height:  600,
			Icon:    "favicon.ico",
			Preload: filepath.Join("preload", "index.mjs"),
		},
		Content: ContentConfig{
			AppRoot:      defaultAppRoot(),
			MainDist:     "dist-electron",
			RendererDist: "dist",
			IndexFile:    "index.html",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Enabled:       true,
				Path:          filepath.Join("${HOME}", DirName, "lifecycle.db"),
				BatchSize:     50,
				FlushInterval: "2s",
			},
			Retention: RetentionConfig{
				EventsDays: 30,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	expandEnvVars(config)
	applyEnvOverrides(config)

	return config, nil
}

/**
 * IsDev 是否使用开发服务器
 */
func (c *Config) IsDev() bool {
	return c.Content.DevServerURL != ""
}

// MainDistDir 主进程构建目录
func (c *Config) MainDistDir() string {
	return c.resolve(c.Content.MainDist)
}

// RendererDistDir 渲染进程构建目录
func (c *Config) RendererDistDir() string {
	return c.resolve(c.Content.RendererDist)
}

// IndexHTML 本地入口文件路径
func (c *Config) IndexHTML() string {
	return filepath.Join(c.RendererDistDir(), c.Content.IndexFile)
}

/**
 * PublicDir 公共资源目录
 *
 * 未显式配置时：开发模式使用 <root>/public，否则使用渲染进程构建目录
 */
func (c *Config) PublicDir() string {
	if c.Content.PublicDir != "" {
		return c.resolve(c.Content.PublicDir)
	}
	if c.IsDev() {
		return filepath.Join(c.Content.AppRoot, "public")
	}
	return c.RendererDistDir()
}

// IconPath 窗口图标路径
func (c *Config) IconPath() string {
	return filepath.Join(c.PublicDir(), c.Window.Icon)
}

// PreloadPath 预加载脚本路径
func (c *Config) PreloadPath() string {
	return filepath.Join(c.MainDistDir(), c.Window.Preload)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Content.AppRoot, path)
}

/**
 * expandEnvVars 展开环境变量
 *
 * 替换路径字段中的 ${HOME} 等占位符；Windows 上 HOME 缺失时使用 USERPROFILE
 *
 * Parameters:
 *   - config: 配置对象
 */
func expandEnvVars(config *Config) {
	expand := func(value string) string {
		return os.Expand(value, func(key string) string {
			if v := os.Getenv(key); v != "" {
				return v
			}
			if key == "HOME" {
				return os.Getenv("USERPROFILE")
			}
			return ""
		})
	}

	config.Content.AppRoot = expand(config.Content.AppRoot)
	config.Content.PublicDir = expand(config.Content.PublicDir)
	config.Storage.SQLite.Path = expand(config.Storage.SQLite.Path)
	config.Logging.File.Path = expand(config.Logging.File.Path)
}

/**
 * applyEnvOverrides 应用环境变量覆盖
 *
 * VITE_DEV_SERVER_URL、APP_ROOT、VITE_PUBLIC 优先于配置文件
 */
func applyEnvOverrides(config *Config) {
	if v := strings.TrimSpace(os.Getenv("VITE_DEV_SERVER_URL")); v != "" {
		config.Content.DevServerURL = v
	}
	if v := os.Getenv("APP_ROOT"); v != "" {
		config.Content.AppRoot = v
	}
	if v := os.Getenv("VITE_PUBLIC"); v != "" {
		config.Content.PublicDir = v
	}
}

// defaultAppRoot 默认应用根目录：可执行文件所在目录
func defaultAppRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
