package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/SeoScan/internal/core"
	"github.com/RecoveryAshes/SeoScan/internal/models"
)

// buildCLIFlags 收集命令行参数
// 只有显式给出的参数才覆盖配置,零值也可以显式设置
func buildCLIFlags(cmd *cobra.Command) core.CLIFlags {
	flags := cmd.Flags()
	f := core.CLIFlags{
		URLFile:     urlFile,
		URLs:        urls,
		BaseURL:     baseURL,
		Keywords:    keywords,
		Output:      outputFile,
		Sheet:       sheetName,
		Format:      reportFormat,
		Threads:     threads,
		Retries:     retries,
		Timeout:     navTimeout,
		WaitUntil:   waitUntil,
		MetricsAddr: metricsAddr,
		LogLevel:    logLevel,
		Verbose:     verbose,
	}

	if flags.Changed("retry-delay") {
		d := retryDelay
		f.RetryDelay = &d
	}
	if flags.Changed("post-wait") {
		d := postWait
		f.PostWait = &d
	}
	if flags.Changed("headless") {
		b := headless
		f.Headless = &b
	}
	if flags.Changed("amp-validate") {
		b := ampValidate
		f.AmpValidate = &b
	}
	if flags.Changed("static") {
		b := staticMode
		f.Static = &b
	}
	return f
}

// ValidateFlags 验证命令行标志
// 范围检查由合并后的Config.Validate完成,这里只拦截明显的格式错误
func ValidateFlags(f core.CLIFlags) error {
	for _, u := range f.URLs {
		if err := models.ValidateURL(strings.TrimSpace(u)); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if f.BaseURL != "" {
		if err := models.ValidateURL(f.BaseURL); err != nil {
			return fmt.Errorf("无效的base-url: %w", err)
		}
	}

	if f.Threads < 0 {
		return fmt.Errorf("并发数不能为负数,当前值: %d", f.Threads)
	}
	if f.Retries < 0 {
		return fmt.Errorf("尝试次数不能为负数,当前值: %d", f.Retries)
	}
	if f.Timeout < 0 {
		return fmt.Errorf("导航超时不能为负数,当前值: %s", f.Timeout)
	}
	if f.RetryDelay != nil && *f.RetryDelay < 0 {
		return fmt.Errorf("重试间隔不能为负数,当前值: %s", *f.RetryDelay)
	}
	if f.PostWait != nil && *f.PostWait < 0 {
		return fmt.Errorf("加载后等待不能为负数,当前值: %s", *f.PostWait)
	}

	if f.WaitUntil != "" {
		switch strings.ToLower(f.WaitUntil) {
		case models.WaitUntilLoad, models.WaitUntilDOMContentLoaded, models.WaitUntilNetworkIdle:
		default:
			return fmt.Errorf("无效的等待策略: %s (有效值: load, domcontentloaded, networkidle)", f.WaitUntil)
		}
	}

	if f.Format != "" {
		switch strings.ToLower(f.Format) {
		case core.FormatXLSX, core.FormatCSV:
		default:
			return fmt.Errorf("无效的报告格式: %s (有效值: xlsx, csv)", f.Format)
		}
	}

	return nil
}
