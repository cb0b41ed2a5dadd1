package shell

import (
	"strings"

	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

/**
 * EvaluateWindowOpen 处理页面内打开新窗口的请求
 *
 * https 地址交给系统默认程序打开；应用内打开一律拒绝。
 *
 * Parameters:
 *   - rawURL: 页面请求打开的地址
 *   - opener: 外部打开器，可以为 nil
 *
 * Returns:
 *   - Decision: 始终为 DecisionDeny
 */
func EvaluateWindowOpen(rawURL string, opener ExternalOpener) Decision {
	if isSecureWeb(rawURL) && opener != nil {
		if err := opener.OpenExternal(rawURL); err != nil {
			logger.Warn("外部打开地址失败", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return DecisionDeny
}

// isSecureWeb 地址是否以 https: 开头，区分大小写
func isSecureWeb(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https:")
}
