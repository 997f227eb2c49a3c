package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  SeoScan 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 浏览器会话需要本地Chromium,找不到时rod会在首次运行时下载
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本地Chromium/Chrome - 首次运行会自动下载")
		fmt.Println("   也可以使用 --static 模式在没有浏览器的环境中扫描")
	}

	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		fmt.Println("正在下载依赖...")
		if err := exec.Command("go", "mod", "download").Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	fmt.Println()
	fmt.Println("检查项目结构...")
	required := []string{
		"cmd/seoscan",
		"internal/core",
		"internal/crawlers",
		"internal/report",
		"internal/utils",
		"internal/models",
		"configs/config.yaml",
	}
	for _, path := range required {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("✅ %s\n", path)
		} else {
			fmt.Printf("❌ %s 不存在\n", path)
			allOK = false
		}
	}

	// 种子文件和头部配置缺失时不算失败
	optional := map[string]string{
		"URL.txt":              "默认种子文件,也可以用 -f 或 -u 指定目标",
		"configs/headers.yaml": "首次运行时自动生成",
	}
	for path, hint := range optional {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("✅ %s\n", path)
		} else {
			fmt.Printf("⚠️  %s 不存在 - %s\n", path, hint)
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build -o seoscan ./cmd/seoscan' 构建")
		fmt.Println("  2. 运行 './seoscan config' 查看生效配置")
		fmt.Println("  3. 运行 './seoscan -u https://example.com --headless' 扫描")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
