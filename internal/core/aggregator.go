package core

import (
	"sync"
	"time"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/report"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// ReportAggregator 按提交顺序接收报告行并写入目的地
// 每checkpointEvery行保存一次,同时写JSON检查点
type ReportAggregator struct {
	mu sync.Mutex

	sink            report.Sink
	columns         []models.Column
	header          []string
	checkpointEvery int
	checkpointPath  string
	checkpoint      *models.Checkpoint

	rows     []models.ReportRow
	unsaved  int
	finished bool
	failed   error
}

// NewReportAggregator 创建聚合器
// checkpointPath为空时不写检查点
func NewReportAggregator(sink report.Sink, checkpointEvery int, checkpointPath string, checkpoint *models.Checkpoint) *ReportAggregator {
	if checkpointEvery < 1 {
		checkpointEvery = 1
	}
	if checkpoint == nil {
		checkpoint = &models.Checkpoint{CreatedAt: time.Now()}
	}
	checkpoint.OutputFile = sink.Path()
	return &ReportAggregator{
		sink:            sink,
		columns:         models.ReportColumns,
		checkpointEvery: checkpointEvery,
		checkpointPath:  checkpointPath,
		checkpoint:      checkpoint,
	}
}

// WithColumns 使用按厂商表生成的列
func (a *ReportAggregator) WithColumns(cols []models.Column) *ReportAggregator {
	if len(cols) > 0 {
		a.columns = cols
	}
	return a
}

// Start 准备目的地
// 已有表头时沿用其列顺序,否则写入默认表头
func (a *ReportAggregator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.sink.Prepare()
	if err != nil {
		return a.fail("prepare", err)
	}

	if len(existing) > 0 {
		a.header = existing
		if missing := missingColumns(a.columns, existing); len(missing) > 0 {
			utils.Warnf("已有表头缺少 %d 列, 这些字段不会写入: %v", len(missing), missing)
		}
		return nil
	}

	a.header = models.HeaderNames(a.columns)
	if err := a.sink.WriteHeader(a.header); err != nil {
		return a.fail("append", err)
	}
	return nil
}

// Add 追加一行,达到保存间隔时落盘
func (a *ReportAggregator) Add(row models.ReportRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed != nil {
		return a.failed
	}

	if err := a.sink.Append(row.ValuesFor(a.columns, a.header)); err != nil {
		return a.fail("append", err)
	}
	a.rows = append(a.rows, row)
	a.checkpoint.Record(row)
	a.unsaved++

	if a.unsaved >= a.checkpointEvery {
		if err := a.saveLocked(); err != nil {
			return a.fail("save", err)
		}
		utils.Infof("💾 已保存 %d 行到 %s", len(a.rows), a.sink.Path())
	}
	return nil
}

// Finish 最终保存并关闭目的地
func (a *ReportAggregator) Finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished {
		return a.failed
	}
	a.finished = true

	if a.failed != nil {
		return a.failed
	}

	if err := a.saveLocked(); err != nil {
		return a.fail("save", err)
	}
	if err := a.sink.Close(); err != nil {
		return &ReportIOError{Path: a.sink.Path(), Op: "close", Err: err}
	}
	return nil
}

// Rows 已写入的行,按提交顺序
func (a *ReportAggregator) Rows() []models.ReportRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := make([]models.ReportRow, len(a.rows))
	copy(rows, a.rows)
	return rows
}

// RowsWritten 已写入的行数
func (a *ReportAggregator) RowsWritten() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

// Header 生效表头
func (a *ReportAggregator) Header() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.header
}

func (a *ReportAggregator) saveLocked() error {
	if err := a.sink.Save(); err != nil {
		return err
	}
	a.unsaved = 0

	if a.checkpointPath != "" {
		a.checkpoint.UpdatedAt = time.Now()
		if err := a.checkpoint.SaveToFile(a.checkpointPath); err != nil {
			utils.Warnf("写入检查点失败: %v", err)
		}
	}
	return nil
}

// fail 尽力保存一次后关闭目的地,返回ReportIOError
func (a *ReportAggregator) fail(op string, err error) error {
	ioErr := &ReportIOError{Path: a.sink.Path(), Op: op, Err: err}
	a.failed = ioErr
	utils.Errorf("报告写入失败: %v", ioErr)

	if op != "save" && op != "prepare" {
		if saveErr := a.sink.Save(); saveErr != nil {
			utils.Errorf("尽力保存失败: %v", saveErr)
		}
	}
	if closeErr := a.sink.Close(); closeErr != nil {
		utils.Debugf("关闭目的地失败: %v", closeErr)
	}
	a.finished = true
	return ioErr
}

// missingColumns 生效列中已有表头没有的列
func missingColumns(cols []models.Column, header []string) []string {
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	var missing []string
	for _, name := range models.HeaderNames(cols) {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
