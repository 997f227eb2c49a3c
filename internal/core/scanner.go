package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/SeoScan/internal/crawlers"
	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/report"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// monitorInterval 资源监控采样间隔
const monitorInterval = 5 * time.Second

// Scanner 一次完整的扫描运行
type Scanner struct {
	cfg     *Config
	headers models.HeaderProvider
	metrics *Metrics
	runID   string

	attempter  Attempter
	linkSource LinkSource
	progress   bool
}

// ScannerOption 扫描器选项
type ScannerOption func(*Scanner)

// WithAttempter 替换默认的浏览器/静态会话
func WithAttempter(a Attempter) ScannerOption {
	return func(s *Scanner) { s.attempter = a }
}

// WithLinkSource 替换默认的链接发现
func WithLinkSource(src LinkSource) ScannerOption {
	return func(s *Scanner) { s.linkSource = src }
}

// WithProgress 是否显示进度条
func WithProgress(show bool) ScannerOption {
	return func(s *Scanner) { s.progress = show }
}

// NewScanner 创建扫描器
func NewScanner(cfg *Config, headers models.HeaderProvider, metrics *Metrics, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		cfg:      cfg,
		headers:  headers,
		metrics:  metrics,
		runID:    models.NewRunID(),
		progress: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID 本次运行ID
func (s *Scanner) RunID() string {
	return s.runID
}

// Run 收集目标、并发处理并写报告
// 报告写入失败时返回ReportIOError,其余失败都记录在行里
func (s *Scanner) Run(ctx context.Context) (*models.RunSummary, error) {
	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vendors, err := cfg.VendorTable()
	if err != nil {
		return nil, err
	}
	classifier := crawlers.NewClassifier(vendors)

	linkSource := s.linkSource
	if linkSource == nil {
		linkSource = crawlers.NewLinkDiscoverer(cfg.Input.StaticKeywords, cfg.Input.DiscoveryTimeout, s.headers)
	}
	targets, err := CollectTargets(ctx, cfg.Input, linkSource)
	if err != nil {
		return nil, err
	}

	attempter, monitor, cleanup, err := s.buildAttempter(classifier)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	sink, err := report.Open(cfg.Output.File, cfg.ReportFormat(), cfg.Output.Sheet)
	if err != nil {
		return nil, err
	}

	checkpoint := &models.Checkpoint{
		RunID:        s.runID,
		TotalTargets: len(targets),
		CreatedAt:    time.Now(),
		Config:       cfg.Scan,
	}
	aggregator := NewReportAggregator(sink, cfg.Scan.CheckpointEvery, models.CheckpointFilename(cfg.Output.File), checkpoint).
		WithColumns(models.Columns(vendors.Vendors()))
	if err := aggregator.Start(); err != nil {
		return nil, err
	}

	summary := models.NewRunSummary(s.runID, cfg.Output.File, cfg.Scan)
	loop := NewRetryLoop(attempter, cfg.Scan.MaxRetries, cfg.Scan.RetryDelay, classifier.Vendors(), s.metrics)

	opts := BatchOptions{
		Workers:         cfg.Scan.Threads,
		ShutdownTimeout: cfg.Scan.ShutdownTimeout,
		Progress:        s.progress,
	}
	if monitor != nil {
		opts.Monitor = monitor
	}
	scheduler := NewBatchScheduler(loop, opts)

	runErr := scheduler.Run(ctx, targets, func(row models.ReportRow) error {
		summary.Add(row)
		return aggregator.Add(row)
	})

	finishErr := aggregator.Finish()
	summary.Finish(aggregator.RowsWritten())

	if err := utils.NewReporter(cfg.Output.SummaryDir).GenerateReport(summary); err != nil {
		utils.Warnf("生成运行摘要失败: %v", err)
	}
	printSummary(summary)

	if runErr != nil {
		return summary, runErr
	}
	return summary, finishErr
}

// buildAttempter 按模式创建会话
// 浏览器模式同时启动资源监控
func (s *Scanner) buildAttempter(classifier *crawlers.Classifier) (Attempter, *crawlers.ResourceMonitor, func(), error) {
	noop := func() {}
	if s.attempter != nil {
		return s.attempter, nil, noop, nil
	}

	cfg := s.cfg
	var amp crawlers.AmpChecker
	if cfg.Scan.AmpValidate {
		validator, err := crawlers.NewAmpValidator(cfg.Amp)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("创建AMP校验器失败: %w", err)
		}
		amp = validator
	}
	analyzer := crawlers.NewPageAnalyzer(classifier, amp)

	if cfg.Scan.Static {
		utils.Info("使用静态抓取模式")
		return crawlers.NewStaticSession(classifier, analyzer, s.headers, cfg.Scan.NavigationTimeout), nil, noop, nil
	}

	engine := crawlers.NewBrowserEngine(cfg.Scan.Headless)
	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		MaxSessionsLimit: cfg.Scan.MaxSessionsLimit,
	})
	monitor.StartMonitoring(monitorInterval)

	controller := crawlers.NewSessionController(engine, classifier, analyzer, s.headers, crawlers.SessionOptions{
		WaitUntil:          cfg.Scan.WaitUntil,
		NavigationTimeout:  cfg.Scan.NavigationTimeout,
		PostNavigationWait: cfg.Scan.PostNavigationWait,
		BlockResources:     cfg.Scan.BlockResources,
	})

	cleanup := func() {
		monitor.StopMonitoring()
		engine.Close()
	}
	return controller, monitor, cleanup, nil
}

// printSummary 打印运行摘要
func printSummary(summary *models.RunSummary) {
	stats := summary.Stats
	utils.Info("==================================================")
	utils.Info("📊 扫描摘要")
	utils.Info("==================================================")
	utils.Infof("总目标数: %d", stats.TotalTargets)
	utils.Infof("✅ 成功: %d", stats.Succeeded)
	utils.Infof("❌ 失败: %d", stats.Failed)
	if stats.Cancelled > 0 {
		utils.Infof("⏹️  取消: %d", stats.Cancelled)
	}
	utils.Infof("🔁 重试过的目标: %d (共 %d 次尝试)", stats.Retried, stats.TotalAttempts)
	utils.Infof("📝 写入行数: %d → %s", stats.RowsWritten, summary.OutputFile)
	utils.Infof("⏱️  总耗时: %.2f秒", stats.Duration)
	utils.Info("==================================================")
}

// IsReportError 是否为报告写入失败
func IsReportError(err error) bool {
	var ioErr *ReportIOError
	return errors.As(err, &ioErr)
}
