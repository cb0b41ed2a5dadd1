/**
 * vue3-desktop-shell 主入口文件
 *
 * 主进程和辅助窗口进程共用同一个可执行文件，
 * 由 --window-role 参数区分。
 */

package main

import (
	"embed"
	"io/fs"
	"log"
	"os"

	"github.com/nacker/vue3-desktop-shell/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	dist, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		log.Fatalf("Error: %s", err.Error())
	}

	if err := app.Run(os.Args[1:], dist); err != nil {
		log.Fatalf("Error: %s", err.Error())
	}
}
