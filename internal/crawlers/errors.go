package crawlers

import (
	"errors"
	"fmt"
)

// 错误类型定义
var (
	ErrBrowserCrashed = errors.New("浏览器崩溃")
	ErrNoResponse     = errors.New("未收到主文档响应")
)

// StatusError 主文档返回非2xx状态
type StatusError struct {
	Code int
}

// Error 实现error接口
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP Status %d", e.Code)
}

// NavigationError 单次尝试中的可重试错误
type NavigationError struct {
	URL   string // 目标URL
	Stage string // 出错时的会话状态
	Err   error  // 底层错误
}

// Error 报告列中展示的错误文本,只保留第一行
func (e *NavigationError) Error() string {
	return "Browser Error: " + firstLine(e.Err.Error())
}

// Unwrap 支持errors.Is/As
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsRetryable 是否属于可重试的导航错误
func IsRetryable(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}
