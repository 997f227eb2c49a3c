package models

import (
	"sort"
	"strings"
)

// TrackingSignals 厂商名 -> 是否出现
// 同一页面会话内只会从false变为true
type TrackingSignals map[string]bool

// Mark 标记厂商出现
func (s TrackingSignals) Mark(vendor string) {
	s[vendor] = true
}

// Merge 按OR合并另一组信号
func (s TrackingSignals) Merge(other TrackingSignals) {
	for vendor, present := range other {
		if present {
			s[vendor] = true
		} else if _, ok := s[vendor]; !ok {
			s[vendor] = false
		}
	}
}

// Flag 返回报告中使用的Yes/No
func (s TrackingSignals) Flag(vendor string) string {
	if s[vendor] {
		return Yes
	}
	return No
}

// Present 返回出现的厂商(按名称排序)
func (s TrackingSignals) Present() []string {
	vendors := make([]string, 0, len(s))
	for vendor, present := range s {
		if present {
			vendors = append(vendors, vendor)
		}
	}
	sort.Strings(vendors)
	return vendors
}

// Clone 复制
func (s TrackingSignals) Clone() TrackingSignals {
	out := make(TrackingSignals, len(s))
	for vendor, present := range s {
		out[vendor] = present
	}
	return out
}

// String 用于日志
func (s TrackingSignals) String() string {
	present := s.Present()
	if len(present) == 0 {
		return "-"
	}
	return strings.Join(present, ",")
}

// TrackingSnapshot 会话结束后读取的追踪数据快照
type TrackingSnapshot struct {
	Vendors  TrackingSignals `json:"vendors"`
	TIDs     []string        `json:"tids"`
	PPID     string          `json:"ppid"`
	Comscore string          `json:"comscore"`
}

// Fields 转换为结果字段
func (t TrackingSnapshot) Fields() map[string]string {
	fields := map[string]string{
		FieldTID:      NotFound,
		FieldPPID:     SafeValue(t.PPID),
		FieldComscore: SafeValue(t.Comscore),
	}
	if len(t.TIDs) > 0 {
		fields[FieldTID] = strings.Join(t.TIDs, ", ")
	}
	for vendor := range t.Vendors {
		fields[vendor] = t.Vendors.Flag(vendor)
	}
	return fields
}

// SignalsFromResult 从结果中的厂商字段还原信号
func SignalsFromResult(result ExtractionResult, vendors []string) TrackingSignals {
	signals := make(TrackingSignals, len(vendors))
	for _, vendor := range vendors {
		signals[vendor] = result.Get(vendor) == Yes
	}
	return signals
}
