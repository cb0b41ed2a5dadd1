package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/config"
	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/platform"
	"github.com/nacker/vue3-desktop-shell/internal/shell"
	"github.com/nacker/vue3-desktop-shell/internal/shell/wailsshell"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

/**
 * Flags 进程内部参数
 *
 * 只用于主进程启动辅助窗口子进程，不面向用户
 */
type Flags struct {
	// Config 配置文件路径，为空时使用 ~/.vue3-desktop-shell/config.yaml
	Config string

	// WindowRole 当前进程的窗口角色
	WindowRole string

	// Fragment 辅助窗口的路由片段
	Fragment string

	// WindowID 主进程分配的窗口 ID
	WindowID string
}

/**
 * ParseFlags 解析命令行参数
 *
 * 跳过未知参数（例如 macOS 的 -psn_*），其后的内部参数照常解析
 */
func ParseFlags(args []string) Flags {
	var flags Flags

	fs := pflag.NewFlagSet("vue3-desktop-shell", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.StringVar(&flags.Config, wailsshell.FlagConfig, "", "config file path")
	fs.StringVar(&flags.WindowRole, wailsshell.FlagWindowRole, string(shell.RolePrimary), "window role: primary|auxiliary")
	fs.StringVar(&flags.Fragment, wailsshell.FlagFragment, "", "route fragment of an auxiliary window")
	fs.StringVar(&flags.WindowID, wailsshell.FlagWindowID, "", "window id assigned by the primary process")

	if err := fs.Parse(args); err != nil {
		logger.Debug("忽略无法解析的参数", zap.Strings("args", args), zap.Error(err))
	}
	return flags
}

// IsAuxiliary 是否为辅助窗口进程
func (f Flags) IsAuxiliary() bool {
	return f.WindowRole == string(shell.RoleAuxiliary)
}

/**
 * Run 启动应用
 *
 * Parameters:
 *   - args: 命令行参数（不含程序名）
 *   - assets: 内嵌的渲染进程构建产物
 *
 * Returns:
 *   - error: 启动失败；其他实例已在运行时返回 nil
 */
func Run(args []string, assets fs.FS) error {
	flags := ParseFlags(args)

	cfg, err := loadConfig(flags.Config)
	if err != nil {
		return err
	}

	if err := logger.InitWithOptions(logger.Options{
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File.Path,
		MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		MaxBackups: cfg.Logging.File.MaxBackups,
		MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		Compress:   cfg.Logging.File.Compress,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if flags.IsAuxiliary() {
		return runAuxiliary(cfg, flags, assets)
	}

	if err := platform.SetAppUserModelID(cfg.Application.ID); err != nil {
		logger.Warn("设置 AppUserModelID 失败", zap.Error(err))
	}

	system := wailsshell.New(wailsshell.NewRuntime(), wailsshell.WithLauncher(wailsshell.ExecLauncher{
		ExtraArgs: configArgs(flags.Config),
	}))

	app, err := New(cfg, args, Dependencies{System: system})
	if err != nil {
		return err
	}

	if err := app.start(); err != nil {
		if errors.Is(err, shell.ErrNotPrimaryInstance) {
			return nil
		}
		return err
	}

	appOptions, err := app.wailsOptions(assets)
	if err != nil {
		app.shutdown(context.Background())
		return fmt.Errorf("build wails options: %w", err)
	}

	logger.Info("启动主进程",
		zap.String("version", cfg.Application.Version),
		zap.Bool("dev_server", cfg.IsDev()),
		zap.String("index_html", cfg.IndexHTML()),
	)

	if err := wails.Run(appOptions); err != nil {
		return fmt.Errorf("wails application error: %w", err)
	}
	return nil
}

/**
 * runAuxiliary 辅助窗口进程
 *
 * 不参与单实例锁和生命周期协调，页面就绪后跳转到路由片段
 */
func runAuxiliary(cfg *config.Config, flags Flags, assets fs.FS) error {
	system := wailsshell.New(wailsshell.NewRuntime())
	app := &App{
		config: cfg,
		role:   shell.RoleAuxiliary,
		system: system,
	}

	assetServer, err := AssetServerOptions(cfg, assets)
	if err != nil {
		return fmt.Errorf("build asset server: %w", err)
	}

	opts := AuxiliaryWindowOptions(cfg)
	macOptions, windowsOptions, linuxOptions := platformOptions(cfg, func() {})

	logger.Info("启动辅助窗口进程",
		zap.String("window_id", flags.WindowID),
		zap.String("fragment", flags.Fragment),
	)

	err = wails.Run(&options.App{
		Title:            opts.Title,
		Width:            opts.Width,
		Height:           opts.Height,
		AssetServer:      assetServer,
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 255},
		Logger:           NewWailsLogger(),
		LogLevel:         wailsLogLevel(cfg),
		OnStartup: func(ctx context.Context) {
			app.ctx = ctx
			system.Startup(ctx)
		},
		OnDomReady: func(ctx context.Context) {
			if flags.Fragment != "" {
				runtime.WindowExecJS(ctx, wailsshell.HashScript(flags.Fragment))
			}
		},
		Bind: []interface{}{
			app,
		},
		Mac:     macOptions,
		Windows: windowsOptions,
		Linux:   linuxOptions,
	})
	if err != nil {
		return fmt.Errorf("wails application error: %w", err)
	}
	return nil
}

// loadConfig 加载配置，未指定路径时使用默认位置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// configArgs 子进程沿用主进程的配置文件
func configArgs(path string) []string {
	if path == "" {
		return nil
	}
	return []string{"--" + wailsshell.FlagConfig + "=" + path}
}
