package core

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// testScanConfig 输出到临时目录的CSV配置
func testScanConfig(t *testing.T, urls ...string) *Config {
	t.Helper()
	cfg, err := LoadConfig(writeConfigFile(t, "{}\n"))
	if err != nil {
		t.Fatalf("LoadConfig() 错误: %v", err)
	}
	dir := t.TempDir()
	cfg.Input.ReadURLFile = false
	cfg.Input.URLs = urls
	cfg.Output.File = filepath.Join(dir, "report.csv")
	cfg.Output.SummaryDir = filepath.Join(dir, "reports")
	cfg.Scan.Threads = 2
	cfg.Scan.RetryDelay = 0
	cfg.Scan.CheckpointEvery = 2
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开报告失败: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	return records
}

func TestScanner_Run(t *testing.T) {
	cfg := testScanConfig(t, "https://a.com/", "https://b.com/", "https://a.com/")
	cfg.Input.BaseURL = "https://a.com/"

	attempter := newScriptedAttempter()
	attempter.script["https://b.com/"] = []error{navErr("x"), navErr("y"), navErr("z")}
	attempter.results["https://a.com/"] = map[string]string{
		models.FieldStatusCode: "200",
		models.FieldTitle:      "A",
		"chartbeat":            models.Yes,
	}
	links := &staticLinks{links: []string{"https://a.com/", "https://a.com/news/"}}

	scanner := NewScanner(cfg, nil, NewMetrics(), WithAttempter(attempter), WithLinkSource(links), WithProgress(false))
	summary, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	records := readCSV(t, cfg.Output.File)
	if len(records) != 4 {
		t.Fatalf("报告行数 = %d, want 4 (表头+3行)", len(records))
	}
	if records[0][0] != "URL" {
		t.Errorf("表头 = %v", records[0])
	}

	wantTargets := []string{"https://a.com/", "https://b.com/", "https://a.com/news/"}
	for i, want := range wantTargets {
		if records[i+1][0] != want {
			t.Errorf("第%d行 = %s, want %s", i+1, records[i+1][0], want)
		}
	}

	title := models.ColumnIndex("Title")
	chartbeat := models.ColumnIndex("Chartbeat")
	errCol := models.ColumnIndex("Processing Error")
	if records[1][title] != "A" || records[1][chartbeat] != models.Yes {
		t.Errorf("第1行 = %v", records[1])
	}
	if records[2][errCol] != "Browser Error: z" {
		t.Errorf("失败行Processing Error = %q", records[2][errCol])
	}

	if summary.Stats.TotalTargets != 3 || summary.Stats.Succeeded != 2 || summary.Stats.Failed != 1 {
		t.Errorf("Stats = %+v", summary.Stats)
	}
	if summary.Stats.RowsWritten != 3 || summary.VendorHits["chartbeat"] != 1 {
		t.Errorf("Summary = %+v", summary)
	}
	if summary.RunID != scanner.RunID() {
		t.Errorf("RunID不一致")
	}

	jsonPath, mdPath := utils.SummaryPaths(cfg.Output.SummaryDir, cfg.Output.File)
	for _, path := range []string{jsonPath, mdPath, models.CheckpointFilename(cfg.Output.File)} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("期望生成 %s: %v", path, err)
		}
	}
}

func TestScanner_AppendsToExistingReport(t *testing.T) {
	cfg := testScanConfig(t, "https://a.com/")
	attempter := newScriptedAttempter()

	for i := 0; i < 2; i++ {
		scanner := NewScanner(cfg, nil, nil, WithAttempter(attempter), WithProgress(false))
		if _, err := scanner.Run(context.Background()); err != nil {
			t.Fatalf("第%d次Run() 错误: %v", i+1, err)
		}
	}

	records := readCSV(t, cfg.Output.File)
	if len(records) != 3 {
		t.Errorf("两次运行后行数 = %d, want 3 (表头只写一次)", len(records))
	}
}

func TestScanner_Errors(t *testing.T) {
	t.Run("没有目标", func(t *testing.T) {
		cfg := testScanConfig(t)
		_, err := NewScanner(cfg, nil, nil, WithAttempter(newScriptedAttempter()), WithProgress(false)).Run(context.Background())
		if !errors.Is(err, ErrNoTargets) {
			t.Errorf("期望ErrNoTargets, 得到 %v", err)
		}
		if _, statErr := os.Stat(cfg.Output.File); !os.IsNotExist(statErr) {
			t.Error("没有目标时不应创建报告")
		}
	})

	t.Run("配置无效", func(t *testing.T) {
		cfg := testScanConfig(t, "https://a.com/")
		cfg.Scan.Threads = 0
		if _, err := NewScanner(cfg, nil, nil, WithProgress(false)).Run(context.Background()); err == nil {
			t.Error("期望返回配置错误")
		}
	})

	t.Run("报告路径不可写", func(t *testing.T) {
		cfg := testScanConfig(t, "https://a.com/")
		// 用已存在的文件作为目录
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg.Output.File = filepath.Join(blocker, "report.csv")

		_, err := NewScanner(cfg, nil, nil, WithAttempter(newScriptedAttempter()), WithProgress(false)).Run(context.Background())
		if err == nil {
			t.Error("期望返回报告错误")
		}
		if !IsReportError(err) {
			t.Errorf("期望ReportIOError, 得到 %T: %v", err, err)
		}
	})
}

func TestScanner_CustomVendorColumn(t *testing.T) {
	cfg := testScanConfig(t, "https://a.com/", "https://b.com/")
	cfg.Tracking.Vendors = map[string][]string{"parsely": {"cdn.parsely.com"}}

	attempter := newScriptedAttempter()
	attempter.results["https://a.com/"] = map[string]string{
		models.FieldStatusCode: "200",
		"parsely":              models.Yes,
	}

	scanner := NewScanner(cfg, nil, nil, WithAttempter(attempter), WithProgress(false))
	if _, err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	records := readCSV(t, cfg.Output.File)
	col := -1
	for i, name := range records[0] {
		if name == models.VendorColumnName("parsely") {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("表头缺少自定义厂商列: %v", records[0])
	}
	if records[1][col] != models.Yes {
		t.Errorf("a.com 的 parsely 列 = %q, want Yes", records[1][col])
	}
	if records[2][col] == models.Yes {
		t.Errorf("b.com 的 parsely 列不应为Yes")
	}
}

func TestScanner_ReservedVendorName(t *testing.T) {
	cfg := testScanConfig(t, "https://a.com/")
	cfg.Tracking.Vendors = map[string][]string{"title": {"example-cdn"}}

	attempter := newScriptedAttempter()
	scanner := NewScanner(cfg, nil, nil, WithAttempter(attempter), WithProgress(false))
	if _, err := scanner.Run(context.Background()); err == nil {
		t.Fatal("与结果字段重名的厂商应被拒绝")
	}
	if attempter.Calls("https://a.com/") != 0 {
		t.Error("配置错误时不应开始扫描")
	}
	if _, err := os.Stat(cfg.Output.File); !os.IsNotExist(err) {
		t.Error("配置错误时不应创建报告")
	}
}
