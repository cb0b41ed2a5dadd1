package shell

/**
 * ContentSource 窗口内容来源
 *
 * 启动时确定一次：配置了开发服务器地址时加载实时地址，
 * 否则加载打包后的本地入口文件。
 */
type ContentSource struct {
	// DevServerURL 开发服务器地址，为空表示使用本地入口文件
	DevServerURL string

	// IndexHTML 本地入口文件路径
	IndexHTML string
}

// IsDev 是否使用开发服务器
func (s ContentSource) IsDev() bool {
	return s.DevServerURL != ""
}

/**
 * Address 计算带片段标识的内容地址
 *
 * Parameters:
 *   - fragment: 片段标识，为空时返回根地址
 */
func (s ContentSource) Address(fragment string) string {
	if s.IsDev() {
		if fragment == "" {
			return s.DevServerURL
		}
		return s.DevServerURL + "#" + fragment
	}
	return FileURL(s.IndexHTML, fragment)
}

/**
 * Load 让窗口加载内容
 *
 * Parameters:
 *   - w: 目标窗口
 *   - fragment: 片段标识（辅助窗口使用 open-win 的参数）
 *
 * Returns:
 *   - error: 加载失败时返回错误
 */
func (s ContentSource) Load(w Window, fragment string) error {
	if s.IsDev() {
		return w.LoadURL(s.Address(fragment))
	}
	return w.LoadFile(s.IndexHTML, fragment)
}
