package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/SeoScan/internal/core"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	headers    []string

	// 目标来源
	urlFile  string
	urls     []string
	baseURL  string
	keywords string

	// 报告输出
	outputFile   string
	sheetName    string
	reportFormat string

	// 扫描参数
	threads     int
	retries     int
	retryDelay  time.Duration
	navTimeout  time.Duration
	waitUntil   string
	postWait    time.Duration
	headless    bool
	ampValidate bool
	staticMode  bool
	metricsAddr string
)

// appConfig 合并命令行参数后的生效配置
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "seoscan",
	Short: "批量SEO与追踪元数据提取工具",
	Long: `SeoScan - 批量SEO与追踪元数据提取工具

对URL列表逐个打开真实浏览器会话,提取页面的SEO元数据、
社交卡片、结构化数据、Canonical/AMP一致性和第三方追踪信号,
结果逐行追加到xlsx或csv报告中。

使用示例:
  # 读取 URL.txt 扫描,报告写入默认xlsx
  seoscan

  # 指定目标,4个并发,无头模式
  seoscan -u https://example.com/news -u https://example.com/sports --threads 4 --headless

  # 从首页发现链接,同时做AMP校验,输出csv
  seoscan --base-url https://example.com --amp-validate -o report.csv

  # 附加自定义头部
  seoscan -f urls.txt -H "Cookie: consent=1" -H "User-Agent: MyBot/1.0"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		flags := buildCLIFlags(cmd)
		if err := ValidateFlags(flags); err != nil {
			return err
		}
		cfg.MergeCLIFlags(flags)

		logConfig := cfg.Logging.ToLogConfig()
		// config子命令只输出YAML
		logConfig.Quiet = cmd.Name() == configCmd.Name()
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context())
	},
}

// runScan 执行一次批量扫描
func runScan(parent context.Context) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			utils.Warn("收到中断信号, 等待进行中的目标结束并保存报告...")
		}
	}()

	headerManager, err := newHeaderManager(cfg)
	if err != nil {
		return err
	}

	metrics := core.NewMetrics()
	shutdownMetrics := startMetricsServer(cfg.Metrics.Addr, metrics)
	defer shutdownMetrics()

	scanner := core.NewScanner(cfg, headerManager, metrics)
	utils.Infof("运行ID: %s", scanner.RunID())
	if _, err := scanner.Run(ctx); err != nil {
		if core.IsReportError(err) {
			return fmt.Errorf("报告写入失败, 运行中止: %w", err)
		}
		return err
	}

	utils.Info("✨ 扫描任务完成!")
	return nil
}

// newHeaderManager 创建头部管理器并提前校验
func newHeaderManager(cfg *core.Config) (*core.HeaderManager, error) {
	headerManager, err := core.NewHeaderManager(cfg.Headers.File, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := headerManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("加载HTTP头部配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return nil, fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	utils.Debugf("生效的HTTP头部: %v", headerManager.GetSafeHeaders())
	return headerManager, nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	// 全局参数
	pf.StringVarP(&configFile, "config", "c", "", "配置文件路径")
	pf.BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	pf.StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	pf.StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	// 目标来源
	pf.StringVarP(&urlFile, "url-file", "f", "", "URL列表文件 (默认 URL.txt)")
	pf.StringArrayVarP(&urls, "url", "u", []string{}, "目标URL,可多次指定")
	pf.StringVar(&baseURL, "base-url", "", "从该页面发现同站链接作为目标")
	pf.StringVar(&keywords, "keywords", "", "链接发现时过滤的关键词,逗号分隔")

	// 报告输出
	pf.StringVarP(&outputFile, "output", "o", "", "报告文件 (默认 SeoAnalysisReport_Default.xlsx)")
	pf.StringVar(&sheetName, "sheet", "", "xlsx工作表名 (默认 SeoDataDefault)")
	pf.StringVar(&reportFormat, "format", "", "报告格式 (xlsx|csv),默认按扩展名判断")

	// 扫描参数
	pf.IntVar(&threads, "threads", 0, "并发会话数 (默认 1)")
	pf.IntVar(&retries, "retries", 0, "每个目标的最大尝试次数 (默认 3)")
	pf.DurationVar(&retryDelay, "retry-delay", 0, "重试间隔 (默认 2s)")
	pf.DurationVar(&navTimeout, "timeout", 0, "导航超时 (默认 90s)")
	pf.StringVar(&waitUntil, "wait-until", "", "导航等待策略 (load|domcontentloaded|networkidle)")
	pf.DurationVar(&postWait, "post-wait", 0, "加载后额外等待 (默认 5s)")
	pf.BoolVar(&headless, "headless", false, "无头浏览器模式")
	pf.BoolVar(&ampValidate, "amp-validate", false, "调用AMP校验服务")
	pf.BoolVar(&staticMode, "static", false, "静态抓取模式,不启动浏览器")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Prometheus指标监听地址 (例如 :9090)")

	rootCmd.AddCommand(discoverCmd, ampCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
