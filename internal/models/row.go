package models

import (
	"time"
)

// AttemptOutcome 单次尝试结果
type AttemptOutcome string

const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeTransientFailure AttemptOutcome = "transient_failure"
)

// ProcessingAttempt 单次处理尝试记录
type ProcessingAttempt struct {
	Index    int            `json:"index"`           // 尝试序号(从1开始)
	Outcome  AttemptOutcome `json:"outcome"`         // 结果
	Error    string         `json:"error,omitempty"` // 错误详情
	Duration float64        `json:"duration"`        // 耗时(秒)
}

// ReportRow 报告中的一行,每个目标恰好一行
type ReportRow struct {
	Target   string              `json:"target"`
	Result   ExtractionResult    `json:"result"`
	Signals  TrackingSignals     `json:"signals"`
	Attempts []ProcessingAttempt `json:"attempts"`
	Error    string              `json:"error"` // 终止错误,成功时为N/A

	CompletedAt time.Time `json:"completed_at"`
}

// NewReportRow 创建报告行,Error为空时记为N/A
func NewReportRow(target string, result ExtractionResult, signals TrackingSignals, attempts []ProcessingAttempt, errMsg string) ReportRow {
	if errMsg == "" {
		errMsg = NA
	}
	if signals == nil {
		signals = TrackingSignals{}
	}
	return ReportRow{
		Target:      target,
		Result:      result.With(FieldProcessingError, errMsg),
		Signals:     signals,
		Attempts:    attempts,
		Error:       errMsg,
		CompletedAt: time.Now(),
	}
}

// AttemptCount 尝试次数
func (r ReportRow) AttemptCount() int {
	return len(r.Attempts)
}

// Succeeded 是否成功
func (r ReportRow) Succeeded() bool {
	return r.Error == NA
}

// Values 按给定表头和默认列输出单元格
func (r ReportRow) Values(header []string) []string {
	return r.ValuesFor(ReportColumns, header)
}

// ValuesFor 按给定表头输出单元格,表头名称在cols中查找字段
// 表头为空时使用cols本身,未知列输出NotFound
func (r ReportRow) ValuesFor(cols []Column, header []string) []string {
	if len(header) == 0 {
		header = HeaderNames(cols)
	}
	values := make([]string, len(header))
	for i, name := range header {
		key, ok := columnKey(cols, name)
		switch {
		case !ok:
			values[i] = NotFound
		case key == ColumnKeyURL:
			values[i] = r.Target
		case key == FieldProcessingError:
			values[i] = r.Error
		default:
			values[i] = r.Result.Get(key)
		}
	}
	return values
}
