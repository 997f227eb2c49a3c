package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RunSummary 运行摘要
type RunSummary struct {
	// 运行信息
	RunID      string `json:"run_id"`
	OutputFile string `json:"output_file"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 追踪厂商命中数 vendor -> 页面数
	VendorHits map[string]int `json:"vendor_hits"`

	// AMP校验分布 status -> 数量
	AmpStatuses map[AmpStatus]int `json:"amp_statuses"`

	// 失败目标
	FailedTargets []FailedTarget `json:"failed_targets"`

	// 配置快照
	Config ScanConfig `json:"config"`
}

// FailedTarget 失败目标信息
type FailedTarget struct {
	URL      string `json:"url"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// NewRunSummary 创建运行摘要
func NewRunSummary(runID, outputFile string, config ScanConfig) *RunSummary {
	return &RunSummary{
		RunID:       runID,
		OutputFile:  outputFile,
		StartTime:   time.Now(),
		VendorHits:  make(map[string]int),
		AmpStatuses: make(map[AmpStatus]int),
		Config:      config,
	}
}

// Add 统计一行结果
func (s *RunSummary) Add(row ReportRow) {
	s.Stats.TotalTargets++
	s.Stats.TotalAttempts += row.AttemptCount()
	if row.AttemptCount() > 1 {
		s.Stats.Retried++
	}

	switch {
	case row.Succeeded():
		s.Stats.Succeeded++
	case row.AttemptCount() == 0:
		// 未开始即取消
		s.Stats.Cancelled++
	default:
		s.Stats.Failed++
		s.FailedTargets = append(s.FailedTargets, FailedTarget{
			URL:      row.Target,
			Error:    row.Error,
			Attempts: row.AttemptCount(),
		})
	}

	for _, vendor := range row.Signals.Present() {
		s.VendorHits[vendor]++
	}

	if status := row.Result.Get(FieldAmpValidation); status != NotFound && status != "Not Validated" {
		s.Stats.AmpValidated++
		s.AmpStatuses[ampStatusOf(status)]++
	}
}

// Finish 结束统计
func (s *RunSummary) Finish(rowsWritten int) {
	s.EndTime = time.Now()
	s.Stats.RowsWritten = rowsWritten
	s.Stats.Duration = s.EndTime.Sub(s.StartTime).Seconds()
}

// ampStatusOf 由摘要文本反推状态
func ampStatusOf(summary string) AmpStatus {
	switch {
	case summary == string(AmpPass):
		return AmpPass
	case strings.HasPrefix(summary, string(AmpFail)):
		return AmpFail
	case strings.HasPrefix(summary, "API Error"):
		return AmpAPIError
	case strings.HasPrefix(summary, "Invalid URL"):
		return AmpURLError
	default:
		return AmpNotValidated
	}
}

// ToJSON 序列化为JSON
func (s *RunSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON 从JSON反序列化
func (s *RunSummary) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}
