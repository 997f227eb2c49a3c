package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/SeoScan/internal/crawlers"
)

// 错误类型定义
var (
	ErrNoTargets = errors.New("没有可处理的目标URL")
)

// ReportIOError 报告读写失败,对本次运行是致命错误
type ReportIOError struct {
	Path string
	Op   string // prepare/append/save
	Err  error
}

// Error 实现error接口
func (e *ReportIOError) Error() string {
	return fmt.Sprintf("报告%s失败 [%s]: %v", e.Op, e.Path, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *ReportIOError) Unwrap() error {
	return e.Err
}

// errorTypeLabel 错误分类,用作指标标签
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, crawlers.ErrBrowserCrashed) {
		return "browser_crashed"
	}
	if errors.Is(err, crawlers.ErrNoResponse) {
		return "no_response"
	}
	var statusErr *crawlers.StatusError
	if errors.As(err, &statusErr) {
		return "http_status"
	}
	var reportErr *ReportIOError
	if errors.As(err, &reportErr) {
		return "report_io"
	}
	if crawlers.IsRetryable(err) {
		return "navigation"
	}
	return "other"
}
