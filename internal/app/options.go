package app

import (
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	goruntime "runtime"

	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/config"
	"github.com/nacker/vue3-desktop-shell/internal/infrastructure/platform"
	"github.com/nacker/vue3-desktop-shell/internal/shell"
	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	"go.uber.org/zap"
)

/**
 * PrimaryWindowOptions 主窗口参数
 *
 * 预加载脚本位于主进程构建目录，图标位于公共资源目录
 */
func PrimaryWindowOptions(cfg *config.Config) shell.WindowOptions {
	return shell.WindowOptions{
		Role:   shell.RolePrimary,
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Icon:   cfg.IconPath(),
		WebPreferences: shell.WebPreferences{
			Preload:          cfg.PreloadPath(),
			ContextIsolation: true,
		},
	}
}

/**
 * AuxiliaryWindowOptions 辅助窗口参数
 *
 * 页面脚本可以直接访问宿主能力，不隔离上下文
 */
func AuxiliaryWindowOptions(cfg *config.Config) shell.WindowOptions {
	return shell.WindowOptions{
		Role:   shell.RoleAuxiliary,
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Icon:   cfg.IconPath(),
		WebPreferences: shell.WebPreferences{
			Preload:          cfg.PreloadPath(),
			NodeIntegration:  true,
			ContextIsolation: false,
		},
	}
}

// contentSource 启动时确定的内容来源
func contentSource(cfg *config.Config) shell.ContentSource {
	return shell.ContentSource{
		DevServerURL: cfg.Content.DevServerURL,
		IndexHTML:    cfg.IndexHTML(),
	}
}

/**
 * AssetServerOptions 资源服务器配置
 *
 * 开发模式把所有请求反向代理到开发服务器；否则使用内嵌的渲染进程构建产物
 *
 * Parameters:
 *   - cfg: 应用配置
 *   - assets: 内嵌的 frontend/dist
 */
func AssetServerOptions(cfg *config.Config, assets fs.FS) (*assetserver.Options, error) {
	if cfg.IsDev() {
		target, err := url.Parse(cfg.Content.DevServerURL)
		if err != nil {
			return nil, err
		}
		return &assetserver.Options{
			Handler: newDevProxy(target),
		}, nil
	}

	return &assetserver.Options{
		Assets: assets,
	}, nil
}

// newDevProxy 开发服务器反向代理
func newDevProxy(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		logger.Warn("开发服务器请求失败", zap.String("path", req.URL.Path), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
	return proxy
}

/**
 * buildMenu 应用菜单
 *
 * Window > Main Window 在所有窗口关闭后重新激活应用
 */
func buildMenu(activate func()) *menu.Menu {
	appMenu := menu.NewMenu()
	if goruntime.GOOS == "darwin" {
		appMenu.Append(menu.AppMenu())
	}
	appMenu.Append(menu.EditMenu())

	windowMenu := appMenu.AddSubmenu("Window")
	windowMenu.AddText("Main Window", keys.CmdOrCtrl("0"), func(_ *menu.CallbackData) {
		activate()
	})
	return appMenu
}

/**
 * platformOptions 平台相关配置
 *
 * macOS 通过地址或文件打开应用视为激活；Windows 7 禁用 GPU 加速
 */
func platformOptions(cfg *config.Config, activate func()) (*mac.Options, *windows.Options, *linux.Options) {
	macOptions := &mac.Options{
		About: &mac.AboutInfo{
			Title:   cfg.Application.Name,
			Message: "Version " + cfg.Application.Version,
		},
		OnUrlOpen: func(url string) {
			logger.Info("通过地址打开应用", zap.String("url", url))
			activate()
		},
		OnFileOpen: func(filePath string) {
			logger.Info("通过文件打开应用", zap.String("path", filePath))
			activate()
		},
	}

	windowsOptions := &windows.Options{
		WebviewGpuIsDisabled: platform.IsLegacyWindows(),
	}

	linuxOptions := &linux.Options{
		ProgramName: cfg.Application.Name,
	}
	if icon, err := os.ReadFile(cfg.IconPath()); err == nil {
		linuxOptions.Icon = icon
	}

	return macOptions, windowsOptions, linuxOptions
}

/**
 * wailsOptions 主进程的 Wails 启动参数
 *
 * 主窗口隐藏启动，由协调器在就绪后创建（显示）
 */
func (a *App) wailsOptions(assets fs.FS) (*options.App, error) {
	assetServer, err := AssetServerOptions(a.config, assets)
	if err != nil {
		return nil, err
	}

	macOptions, windowsOptions, linuxOptions := platformOptions(a.config, a.system.Activate)

	return &options.App{
		Title:              a.config.Window.Title,
		Width:              a.config.Window.Width,
		Height:             a.config.Window.Height,
		StartHidden:        true,
		AssetServer:        assetServer,
		BackgroundColour:   &options.RGBA{R: 255, G: 255, B: 255, A: 255},
		Menu:               buildMenu(a.system.Activate),
		Logger:             NewWailsLogger(),
		LogLevel:           wailsLogLevel(a.config),
		LogLevelProduction: wailsLogLevel(a.config),
		OnStartup:          a.startup,
		OnDomReady:         a.domReady,
		OnBeforeClose:      a.beforeClose,
		OnShutdown:         a.shutdown,
		Bind: []interface{}{
			a,
		},
		Mac:     macOptions,
		Windows: windowsOptions,
		Linux:   linuxOptions,
		Debug: options.Debug{
			OpenInspectorOnStartup: a.config.IsDev(),
		},
	}, nil
}
