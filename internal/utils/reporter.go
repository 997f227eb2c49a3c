package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/SeoScan/internal/models"
)

// maxFailedRows Markdown摘要中最多列出的失败目标数
const maxFailedRows = 50

// Reporter 运行摘要生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建摘要生成器
func NewReporter(outputDir string) *Reporter {
	if outputDir == "" {
		outputDir = "."
	}
	return &Reporter{outputDir: outputDir}
}

// SummaryPaths 根据报告文件名生成摘要文件路径
func SummaryPaths(outputDir, outputFile string) (jsonPath, mdPath string) {
	base := strings.TrimSuffix(filepath.Base(outputFile), filepath.Ext(outputFile))
	jsonPath = filepath.Join(outputDir, fmt.Sprintf("run_summary_%s.json", base))
	mdPath = filepath.Join(outputDir, fmt.Sprintf("run_summary_%s.md", base))
	return jsonPath, mdPath
}

// GenerateReport 写出JSON和Markdown两份运行摘要
func (r *Reporter) GenerateReport(summary *models.RunSummary) error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("创建摘要目录失败: %w", err)
	}

	jsonPath, mdPath := SummaryPaths(r.outputDir, summary.OutputFile)

	if err := WriteJSON(jsonPath, summary); err != nil {
		return err
	}

	file, err := os.Create(mdPath)
	if err != nil {
		return fmt.Errorf("创建Markdown摘要失败: %w", err)
	}
	defer file.Close()

	if err := WriteMarkdownSummary(file, summary); err != nil {
		return fmt.Errorf("写入Markdown摘要失败: %w", err)
	}

	Infof("✅ 运行摘要已生成: %s", mdPath)
	return nil
}

// WriteMarkdownSummary 以Markdown格式输出运行摘要
func WriteMarkdownSummary(w io.Writer, summary *models.RunSummary) error {
	md := markdown.NewMarkdown(w)

	md.H1("SeoScan Run Summary")
	md.PlainText("")

	stats := summary.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + summary.RunID + "`"},
			{"Report", "`" + summary.OutputFile + "`"},
			{"Started", summary.StartTime.Format("2006-01-02 15:04:05 MST")},
			{"Duration", fmt.Sprintf("%.1fs", stats.Duration)},
			{"Targets", strconv.Itoa(stats.TotalTargets)},
			{"Succeeded", strconv.Itoa(stats.Succeeded)},
			{"Failed", strconv.Itoa(stats.Failed)},
			{"Retried", strconv.Itoa(stats.Retried)},
			{"Attempts", strconv.Itoa(stats.TotalAttempts)},
			{"Rows Written", strconv.Itoa(stats.RowsWritten)},
		},
	})
	md.PlainText("")

	switch {
	case stats.TotalTargets == 0:
		md.Note("No targets were processed.")
	case stats.Failed > 0:
		md.Warningf("%d of %d target(s) failed after retries.", stats.Failed, stats.TotalTargets)
	default:
		md.Tip("All targets were processed successfully.")
	}
	md.PlainText("")

	md.H2("Tracking Vendors")
	md.PlainText("")
	if len(summary.VendorHits) == 0 {
		md.PlainText("No tracking vendors detected.")
	} else {
		md.Table(markdown.TableSet{
			Header: []string{"Vendor", "Pages"},
			Rows:   countRows(summary.VendorHits),
		})
	}
	md.PlainText("")

	if stats.AmpValidated > 0 {
		amp := make(map[string]int, len(summary.AmpStatuses))
		for status, n := range summary.AmpStatuses {
			amp[string(status)] = n
		}
		md.H2("AMP Validation")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Status", "Pages"},
			Rows:   countRows(amp),
		})
		md.PlainText("")
	}

	if len(summary.FailedTargets) > 0 {
		md.H2("Failed Targets")
		md.PlainText("")

		failed := summary.FailedTargets
		if len(failed) > maxFailedRows {
			failed = failed[:maxFailedRows]
		}
		rows := make([][]string, len(failed))
		for i, f := range failed {
			rows[i] = []string{f.URL, strconv.Itoa(f.Attempts), truncateString(f.Error, 80)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Attempts", "Error"},
			Rows:   rows,
		})
		if n := len(summary.FailedTargets) - len(failed); n > 0 {
			md.PlainTextf("... and %d more", n)
		}
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by SeoScan*")

	return md.Build()
}

// countRows 按数量降序、名称升序生成表格行
func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, strconv.Itoa(counts[k])}
	}
	return rows
}

// truncateString 截断过长文本并去掉换行
func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// WriteJSON 将任意数据写为缩进JSON文件
func WriteJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	Debugf("已写入: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
