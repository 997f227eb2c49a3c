// Package report 提供报告目的地的读写实现
package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Sink 报告目的地
// Prepare返回已有表头(新文件返回nil),随后写入表头或直接追加行
type Sink interface {
	// Prepare 打开或创建目的地,返回已有表头
	Prepare() ([]string, error)

	// WriteHeader 写入表头,仅在Prepare返回空表头时调用
	WriteHeader(header []string) error

	// Append 追加一行
	Append(values []string) error

	// Save 持久化已追加的行
	Save() error

	// Close 释放资源,不隐含Save
	Close() error

	// Path 目的地路径
	Path() string
}

// Open 按格式创建Sink
// sheet只对xlsx生效
func Open(path, format, sheet string) (Sink, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case "xlsx", "":
		return NewXLSXSink(path, sheet), nil
	case "csv":
		return NewCSVSink(path), nil
	default:
		return nil, fmt.Errorf("不支持的报告格式: %s", format)
	}
}
