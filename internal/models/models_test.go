package models

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效HTTP URL", "http://example.com", false},
		{"有效HTTPS URL", "https://example.com/news/a.html", false},
		{"带查询参数", "https://example.com/page?amp=1", false},
		{"无协议", "example.com", true},
		{"无效协议", "ftp://example.com", true},
		{"空字符串", "", true},
		{"无主机名", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHasHTTPPrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"http", "http://a.com", true},
		{"https大写", "HTTPS://a.com", true},
		{"无协议", "www.a.com", false},
		{"注释行", "# http://a.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasHTTPPrefix(tt.in); got != tt.want {
				t.Errorf("HasHTTPPrefix(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func validScanConfig() ScanConfig {
	return ScanConfig{
		Threads:            2,
		MaxRetries:         3,
		RetryDelay:         2 * time.Second,
		NavigationTimeout:  90 * time.Second,
		WaitUntil:          WaitUntilDOMContentLoaded,
		PostNavigationWait: 5 * time.Second,
		CheckpointEvery:    50,
		ShutdownTimeout:    time.Hour,
	}
}

func TestScanConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ScanConfig)
		wantErr bool
	}{
		{"有效配置", func(c *ScanConfig) {}, false},
		{"并发数为0", func(c *ScanConfig) { c.Threads = 0 }, true},
		{"并发数过大", func(c *ScanConfig) { c.Threads = 65 }, true},
		{"尝试次数为0", func(c *ScanConfig) { c.MaxRetries = 0 }, true},
		{"尝试次数过大", func(c *ScanConfig) { c.MaxRetries = 11 }, true},
		{"负重试间隔", func(c *ScanConfig) { c.RetryDelay = -time.Second }, true},
		{"导航超时为0", func(c *ScanConfig) { c.NavigationTimeout = 0 }, true},
		{"导航超时过大", func(c *ScanConfig) { c.NavigationTimeout = 11 * time.Minute }, true},
		{"加载后等待过大", func(c *ScanConfig) { c.PostNavigationWait = 3 * time.Minute }, true},
		{"未知等待策略", func(c *ScanConfig) { c.WaitUntil = "commit" }, true},
		{"networkidle策略", func(c *ScanConfig) { c.WaitUntil = WaitUntilNetworkIdle }, false},
		{"检查点间隔为0", func(c *ScanConfig) { c.CheckpointEvery = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validScanConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewScanTask(t *testing.T) {
	task := NewScanTask(3, "https://news.example.com/a")

	if task.ID == "" {
		t.Error("任务ID不应为空")
	}
	if task.Index != 3 {
		t.Errorf("Index = %d, want 3", task.Index)
	}
	if task.Domain != "news.example.com" {
		t.Errorf("Domain = %q, want news.example.com", task.Domain)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("Status = %v, want %v", task.Status, TaskStatusPending)
	}

	task.Start()
	if task.Status != TaskStatusRunning || task.StartedAt == nil {
		t.Errorf("Start() 后状态异常: %v", task.Status)
	}

	failed := NewReportRow(task.TargetURL, NewExtractionResult(nil), nil,
		[]ProcessingAttempt{{Index: 1}, {Index: 2}}, "timeout")
	task.Finish(failed)
	if task.Status != TaskStatusFailed {
		t.Errorf("Status = %v, want %v", task.Status, TaskStatusFailed)
	}
	if task.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", task.Attempts)
	}
	if task.ErrorMessage != "timeout" {
		t.Errorf("ErrorMessage = %q, want timeout", task.ErrorMessage)
	}
}

func TestExtractionResult_Defaults(t *testing.T) {
	result := NewExtractionResult(map[string]string{
		FieldTitle:       "  标题  ",
		FieldDescription: "   ",
	})

	for _, key := range KnownFields {
		if result.Get(key) == "" {
			t.Errorf("字段 %s 不应为空字符串", key)
		}
	}

	if got := result.Get(FieldTitle); got != "标题" {
		t.Errorf("Title = %q, want 标题", got)
	}
	if got := result.Get(FieldDescription); got != NotFound {
		t.Errorf("空白Description = %q, want %q", got, NotFound)
	}
	if got := result.Get("no_such_field"); got != NotFound {
		t.Errorf("未知字段 = %q, want %q", got, NotFound)
	}
	if result.Has(FieldKeywords) {
		t.Error("未设置的字段Has()应为false")
	}

	var zero ExtractionResult
	if got := zero.Get(FieldTitle); got != NotFound {
		t.Errorf("零值结果Get = %q, want %q", got, NotFound)
	}
	if len(zero.Fields()) != len(KnownFields) {
		t.Errorf("零值结果Fields()长度 = %d, want %d", len(zero.Fields()), len(KnownFields))
	}
}

func TestExtractionResult_Immutable(t *testing.T) {
	original := NewExtractionResult(map[string]string{FieldTitle: "A"})
	updated := original.With(FieldTitle, "B").Merge(map[string]string{FieldKeywords: ""})

	if original.Get(FieldTitle) != "A" {
		t.Errorf("原结果被修改: %q", original.Get(FieldTitle))
	}
	if updated.Get(FieldTitle) != "B" {
		t.Errorf("With() = %q, want B", updated.Get(FieldTitle))
	}
	if updated.Get(FieldKeywords) != NotFound {
		t.Errorf("Merge空值 = %q, want %q", updated.Get(FieldKeywords), NotFound)
	}

	fields := updated.Fields()
	fields[FieldTitle] = "C"
	if updated.Get(FieldTitle) != "B" {
		t.Error("Fields() 返回的副本不应影响原结果")
	}
}

func TestExtractionResult_JSON(t *testing.T) {
	result := NewExtractionResult(map[string]string{FieldTitle: "首页", "lotame": Yes})

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded ExtractionResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Get(FieldTitle) != "首页" || decoded.Get("lotame") != Yes {
		t.Errorf("解码结果不匹配: %v", decoded.Fields())
	}
}

func TestTrackingSignals(t *testing.T) {
	signals := TrackingSignals{"lotame": false}
	signals.Merge(TrackingSignals{"chartbeat": true, "lotame": false})
	signals.Mark("lotame")
	signals.Merge(TrackingSignals{"lotame": false})

	if signals.Flag("lotame") != Yes {
		t.Error("已出现的厂商不应被后续false覆盖")
	}
	if signals.Flag("izooto") != No {
		t.Error("未观察到的厂商应为No")
	}
	present := signals.Present()
	if len(present) != 2 || present[0] != "chartbeat" || present[1] != "lotame" {
		t.Errorf("Present() = %v", present)
	}
}

func TestTrackingSnapshot_Fields(t *testing.T) {
	snap := TrackingSnapshot{
		Vendors:  TrackingSignals{"lotame": true, "vdo_io": false},
		TIDs:     []string{"G-ONE", "G-TWO"},
		Comscore: "c1=2, c2=9254297",
	}
	fields := snap.Fields()

	want := map[string]string{
		FieldTID:      "G-ONE, G-TWO",
		FieldPPID:     NotFound,
		FieldComscore: "c1=2, c2=9254297",
		"lotame":      Yes,
		"vdo_io":      No,
	}
	for key, value := range want {
		if fields[key] != value {
			t.Errorf("%s = %q, want %q", key, fields[key], value)
		}
	}
}

func TestReportColumns(t *testing.T) {
	names := ColumnNames()
	if names[0] != "URL" {
		t.Errorf("第一列 = %q, want URL", names[0])
	}
	if names[len(names)-1] != "Processing Error" {
		t.Errorf("最后一列 = %q, want Processing Error", names[len(names)-1])
	}

	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			t.Errorf("重复列: %s", name)
		}
		seen[name] = true
	}

	if ColumnIndex("Status Code") < 0 {
		t.Error("缺少 Status Code 列")
	}
	if ColumnIndex("不存在") != -1 {
		t.Error("未知列应返回-1")
	}
}

func TestColumns(t *testing.T) {
	t.Run("内置厂商", func(t *testing.T) {
		cols := Columns([]string{"vdo_io", "chartbeat", "izooto", "lotame"})
		if len(cols) != len(ReportColumns) {
			t.Fatalf("列数 = %d, want %d", len(cols), len(ReportColumns))
		}
		for i := range cols {
			if cols[i] != ReportColumns[i] {
				t.Errorf("cols[%d] = %v, want %v", i, cols[i], ReportColumns[i])
			}
		}
	})

	t.Run("追加厂商", func(t *testing.T) {
		cols := Columns([]string{"parsely", "lotame", "chartbeat", "izooto", "vdo_io", "comscore_x"})
		names := HeaderNames(cols)
		if len(names) != len(ReportColumns)+2 {
			t.Fatalf("列数 = %d, want %d", len(names), len(ReportColumns)+2)
		}
		vdo := -1
		for i, name := range names {
			if name == "VDO.AI" {
				vdo = i
			}
		}
		if vdo < 0 || names[vdo+1] != "Vendor:comscore_x" || names[vdo+2] != "Vendor:parsely" {
			t.Errorf("自定义厂商应按名称排在内置厂商之后: %v", names)
		}

		result := NewExtractionResult(map[string]string{"parsely": Yes})
		row := NewReportRow("https://a.com/", result, TrackingSignals{"parsely": true}, nil, "")
		values := row.ValuesFor(cols, nil)
		if values[vdo+2] != Yes {
			t.Errorf("parsely列 = %q, want Yes", values[vdo+2])
		}
		if values[0] != "https://a.com/" {
			t.Errorf("URL列 = %q", values[0])
		}
	})
}

func TestIsReservedVendorName(t *testing.T) {
	tests := []struct {
		name   string
		vendor string
		want   bool
	}{
		{"结果字段", FieldTitle, true},
		{"URL列键", "url", true},
		{"表头名称", "Meta Robots", true},
		{"大小写", " CANONICAL ", true},
		{"普通厂商", "parsely", false},
		{"内置厂商", "lotame", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReservedVendorName(tt.vendor); got != tt.want {
				t.Errorf("IsReservedVendorName(%q) = %v, want %v", tt.vendor, got, tt.want)
			}
		})
	}
}

func TestReportRow_Values(t *testing.T) {
	result := NewExtractionResult(map[string]string{
		FieldTitle:      "首页",
		FieldStatusCode: "200",
		"chartbeat":     Yes,
	})
	row := NewReportRow("https://a.com/", result, TrackingSignals{"chartbeat": true}, []ProcessingAttempt{{Index: 1, Outcome: OutcomeSuccess}}, "")

	if !row.Succeeded() {
		t.Error("空错误应视为成功")
	}
	if row.Result.Get(FieldProcessingError) != NA {
		t.Errorf("processing_error = %q, want %q", row.Result.Get(FieldProcessingError), NA)
	}

	t.Run("默认表头", func(t *testing.T) {
		values := row.Values(nil)
		if len(values) != len(ReportColumns) {
			t.Fatalf("列数 = %d, want %d", len(values), len(ReportColumns))
		}
		if values[0] != "https://a.com/" {
			t.Errorf("URL列 = %q", values[0])
		}
		if values[ColumnIndex("Title")] != "首页" {
			t.Errorf("Title列 = %q", values[ColumnIndex("Title")])
		}
		if values[ColumnIndex("Chartbeat")] != Yes {
			t.Errorf("Chartbeat列 = %q", values[ColumnIndex("Chartbeat")])
		}
		if values[ColumnIndex("Processing Error")] != NA {
			t.Errorf("Processing Error列 = %q", values[ColumnIndex("Processing Error")])
		}
	})

	t.Run("沿用已有表头", func(t *testing.T) {
		header := []string{"Status Code", "URL", "Legacy Column"}
		values := row.Values(header)
		want := []string{"200", "https://a.com/", NotFound}
		for i := range want {
			if values[i] != want[i] {
				t.Errorf("values[%d] = %q, want %q", i, values[i], want[i])
			}
		}
	})
}

func TestAmpValidationResult_Fields(t *testing.T) {
	tests := []struct {
		name       string
		result     AmpValidationResult
		wantStatus string
		wantErrors string
	}{
		{"未校验", NotValidated("https://a.com"), "Not Validated", NoError},
		{"通过", AmpValidationResult{Status: AmpPass, Summary: "PASS"}, "PASS", NoError},
		{
			"失败",
			AmpValidationResult{Status: AmpFail, Summary: "FAIL (2 errors)", Messages: []string{"L1 C2: a (X)", "L3 C4: b (Y)"}},
			"FAIL (2 errors)",
			"L1 C2: a (X); L3 C4: b (Y)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := tt.result.Fields()
			if fields[FieldAmpValidation] != tt.wantStatus {
				t.Errorf("amp_validation = %q, want %q", fields[FieldAmpValidation], tt.wantStatus)
			}
			if fields[FieldAmpValidationErrors] != tt.wantErrors {
				t.Errorf("amp_validation_errors = %q, want %q", fields[FieldAmpValidationErrors], tt.wantErrors)
			}
		})
	}
}

func TestCheckpoint_SaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	path := CheckpointFilename(filepath.Join(tempDir, "report.xlsx"))

	if filepath.Base(path) != "checkpoint_report.json" {
		t.Errorf("CheckpointFilename() = %s", path)
	}

	checkpoint := &Checkpoint{
		RunID:        NewRunID(),
		OutputFile:   "report.xlsx",
		TotalTargets: 2,
		CreatedAt:    time.Now(),
		Config:       validScanConfig(),
	}
	checkpoint.Record(NewReportRow("https://a.com", NewExtractionResult(nil), nil, nil, ""))
	checkpoint.Record(NewReportRow("https://b.com", NewExtractionResult(nil), nil, nil, "boom"))

	if err := checkpoint.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadCheckpointFromFile(path)
	if err != nil {
		t.Fatalf("LoadCheckpointFromFile() error = %v", err)
	}

	if loaded.RunID != checkpoint.RunID {
		t.Errorf("RunID不匹配: got %v, want %v", loaded.RunID, checkpoint.RunID)
	}
	if loaded.RowsWritten != 2 {
		t.Errorf("RowsWritten = %d, want 2", loaded.RowsWritten)
	}
	if len(loaded.CompletedTargets) != 2 || len(loaded.FailedTargets) != 1 {
		t.Errorf("目标记录不匹配: %v / %v", loaded.CompletedTargets, loaded.FailedTargets)
	}
	if loaded.Config.RetryDelay != 2*time.Second {
		t.Errorf("配置快照不匹配: %v", loaded.Config.RetryDelay)
	}
}

func TestRunSummary_Add(t *testing.T) {
	summary := NewRunSummary("run-1", "report.xlsx", validScanConfig())

	ok := NewReportRow("https://a.com",
		NewExtractionResult(map[string]string{FieldAmpValidation: "PASS"}),
		TrackingSignals{"lotame": true, "chartbeat": false},
		[]ProcessingAttempt{{Index: 1}, {Index: 2}}, "")
	failed := NewReportRow("https://b.com",
		NewExtractionResult(map[string]string{FieldAmpValidation: "Not Validated"}),
		nil,
		[]ProcessingAttempt{{Index: 1}, {Index: 2}, {Index: 3}}, "Failed after 3 retries.")
	ampFail := NewReportRow("https://c.com",
		NewExtractionResult(map[string]string{FieldAmpValidation: "FAIL (1 error)"}),
		TrackingSignals{"lotame": true},
		[]ProcessingAttempt{{Index: 1}}, "")

	summary.Add(ok)
	summary.Add(failed)
	summary.Add(ampFail)
	summary.Finish(3)

	if summary.Stats.TotalTargets != 3 || summary.Stats.Succeeded != 2 || summary.Stats.Failed != 1 {
		t.Errorf("统计不匹配: %+v", summary.Stats)
	}
	if summary.Stats.Retried != 2 {
		t.Errorf("Retried = %d, want 2", summary.Stats.Retried)
	}
	if summary.Stats.TotalAttempts != 6 {
		t.Errorf("TotalAttempts = %d, want 6", summary.Stats.TotalAttempts)
	}
	if summary.VendorHits["lotame"] != 2 || summary.VendorHits["chartbeat"] != 0 {
		t.Errorf("VendorHits = %v", summary.VendorHits)
	}
	if summary.Stats.AmpValidated != 2 || summary.AmpStatuses[AmpPass] != 1 || summary.AmpStatuses[AmpFail] != 1 {
		t.Errorf("AMP统计不匹配: %d %v", summary.Stats.AmpValidated, summary.AmpStatuses)
	}
	if len(summary.FailedTargets) != 1 || summary.FailedTargets[0].Attempts != 3 {
		t.Errorf("FailedTargets = %+v", summary.FailedTargets)
	}
	if summary.Stats.RowsWritten != 3 {
		t.Errorf("RowsWritten = %d, want 3", summary.Stats.RowsWritten)
	}
}

func TestRunSummary_AddCancelled(t *testing.T) {
	summary := NewRunSummary("run-1", "report.xlsx", validScanConfig())
	summary.Add(NewReportRow("https://a.com",
		NewExtractionResult(map[string]string{FieldStatusCode: "Cancelled"}),
		nil, nil, "Cancelled: context canceled"))

	if summary.Stats.Cancelled != 1 || summary.Stats.Failed != 0 {
		t.Errorf("Cancelled=%d Failed=%d, want 1 0", summary.Stats.Cancelled, summary.Stats.Failed)
	}
	if len(summary.FailedTargets) != 0 {
		t.Errorf("取消行不应出现在失败列表: %v", summary.FailedTargets)
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantName  string
		wantValue string
		wantErr   bool
	}{
		{"标准格式", []string{"X-Custom: value"}, "X-Custom", "value", false},
		{"名称前后空格", []string{"  X-Custom  : value"}, "X-Custom", "value", false},
		{"值中间空格保留", []string{"User-Agent: Mozilla/5.0 (X11)"}, "User-Agent", "Mozilla/5.0 (X11)", false},
		{"多个冒号按第一个分割", []string{"Authorization: Bearer: token"}, "Authorization", "Bearer: token", false},
		{"只有冒号没有值", []string{"X-Empty:"}, "X-Empty", "", false},
		{"缺少冒号", []string{"User-Agent Mozilla/5.0"}, "", "", true},
		{"缺少名称", []string{":value"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, err := CliHeaders(tt.input).Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := headers.Get(tt.wantName); got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantName, got, tt.wantValue)
			}
		})
	}
}
