package core

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/SeoScan/internal/models"
)

// memorySink 内存中的报告目的地
type memorySink struct {
	existing  []string
	header    []string
	rows      [][]string
	saved     int // 最近一次保存时的行数
	saves     int
	closed    bool
	appendErr error
	saveErr   error
}

func (s *memorySink) Prepare() ([]string, error) { return s.existing, nil }

func (s *memorySink) WriteHeader(header []string) error {
	s.header = header
	return nil
}

func (s *memorySink) Append(values []string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, values)
	return nil
}

func (s *memorySink) Save() error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.saved = len(s.rows)
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func (s *memorySink) Path() string { return "memory.xlsx" }

func TestReportAggregator_WritesHeaderAndRows(t *testing.T) {
	sink := &memorySink{}
	agg := NewReportAggregator(sink, 50, "", nil)
	if err := agg.Start(); err != nil {
		t.Fatalf("Start() 错误: %v", err)
	}

	if len(sink.header) != len(models.ColumnNames()) || sink.header[0] != "URL" {
		t.Fatalf("表头 = %v", sink.header)
	}

	for _, target := range []string{"https://a.com/", "https://b.com/"} {
		if err := agg.Add(okRow(target)); err != nil {
			t.Fatalf("Add() 错误: %v", err)
		}
	}
	if err := agg.Finish(); err != nil {
		t.Fatalf("Finish() 错误: %v", err)
	}

	if len(sink.rows) != 2 || sink.rows[0][0] != "https://a.com/" || sink.rows[1][0] != "https://b.com/" {
		t.Errorf("行顺序不匹配: %v", sink.rows)
	}
	last := sink.rows[0][len(sink.rows[0])-1]
	if last != models.NA {
		t.Errorf("Processing Error列 = %q, want N/A", last)
	}
	if !sink.closed || sink.saved != 2 {
		t.Errorf("Finish后应保存并关闭: saved=%d closed=%v", sink.saved, sink.closed)
	}
	if agg.RowsWritten() != 2 || len(agg.Rows()) != 2 {
		t.Errorf("RowsWritten() = %d", agg.RowsWritten())
	}
}

func TestReportAggregator_CheckpointCadence(t *testing.T) {
	sink := &memorySink{}
	checkpointPath := filepath.Join(t.TempDir(), "checkpoint_report.json")
	agg := NewReportAggregator(sink, 2, checkpointPath, &models.Checkpoint{RunID: "run-1", TotalTargets: 5})
	if err := agg.Start(); err != nil {
		t.Fatalf("Start() 错误: %v", err)
	}

	wantSaves := []int{0, 1, 1, 2, 2}
	for i, target := range makeTargets(5) {
		if err := agg.Add(okRow(target)); err != nil {
			t.Fatalf("Add() 错误: %v", err)
		}
		if sink.saves != wantSaves[i] {
			t.Errorf("第%d行后保存次数 = %d, want %d", i+1, sink.saves, wantSaves[i])
		}
	}
	if err := agg.Finish(); err != nil {
		t.Fatalf("Finish() 错误: %v", err)
	}
	if sink.saves != 3 || sink.saved != 5 {
		t.Errorf("Finish后保存次数 = %d, 已保存行 = %d", sink.saves, sink.saved)
	}

	cp, err := models.LoadCheckpointFromFile(checkpointPath)
	if err != nil {
		t.Fatalf("读取检查点失败: %v", err)
	}
	if cp.RunID != "run-1" || cp.RowsWritten != 5 || len(cp.CompletedTargets) != 5 {
		t.Errorf("检查点内容不匹配: %+v", cp)
	}
	if cp.OutputFile != "memory.xlsx" {
		t.Errorf("OutputFile = %q", cp.OutputFile)
	}
}

func TestReportAggregator_ExistingHeader(t *testing.T) {
	sink := &memorySink{existing: []string{"Title", "URL", "Unknown Column"}}
	agg := NewReportAggregator(sink, 10, "", nil)
	if err := agg.Start(); err != nil {
		t.Fatalf("Start() 错误: %v", err)
	}
	if sink.header != nil {
		t.Error("已有表头时不应重写表头")
	}

	row := models.NewReportRow("https://a.com/",
		models.NewExtractionResult(map[string]string{models.FieldTitle: "Home"}), nil,
		[]models.ProcessingAttempt{{Index: 1, Outcome: models.OutcomeSuccess}}, "")
	if err := agg.Add(row); err != nil {
		t.Fatalf("Add() 错误: %v", err)
	}

	want := []string{"Home", "https://a.com/", models.NotFound}
	for i, w := range want {
		if sink.rows[0][i] != w {
			t.Errorf("第%d列 = %q, want %q", i, sink.rows[0][i], w)
		}
	}
}

func TestReportAggregator_IOError(t *testing.T) {
	t.Run("追加失败", func(t *testing.T) {
		sink := &memorySink{appendErr: errors.New("sheet locked")}
		agg := NewReportAggregator(sink, 10, "", nil)
		if err := agg.Start(); err != nil {
			t.Fatalf("Start() 错误: %v", err)
		}

		err := agg.Add(okRow("https://a.com/"))
		var ioErr *ReportIOError
		if !errors.As(err, &ioErr) || ioErr.Op != "append" {
			t.Fatalf("期望append类型的ReportIOError, 得到 %v", err)
		}
		if !IsReportError(err) {
			t.Error("IsReportError() = false")
		}
		if !sink.closed || sink.saves != 1 {
			t.Errorf("失败后应尽力保存并关闭: saves=%d closed=%v", sink.saves, sink.closed)
		}

		// 后续调用返回同一个错误
		if err2 := agg.Add(okRow("https://b.com/")); !errors.Is(err2, sink.appendErr) {
			t.Errorf("后续Add() = %v", err2)
		}
		if err3 := agg.Finish(); !errors.Is(err3, sink.appendErr) {
			t.Errorf("Finish() = %v", err3)
		}
	})

	t.Run("保存失败", func(t *testing.T) {
		sink := &memorySink{saveErr: errors.New("disk full")}
		agg := NewReportAggregator(sink, 1, "", nil)
		if err := agg.Start(); err != nil {
			t.Fatalf("Start() 错误: %v", err)
		}

		err := agg.Add(okRow("https://a.com/"))
		var ioErr *ReportIOError
		if !errors.As(err, &ioErr) || ioErr.Op != "save" {
			t.Fatalf("期望save类型的ReportIOError, 得到 %v", err)
		}
	})
}
