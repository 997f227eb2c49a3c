package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// CSVSink CSV文件目的地
// 文件存在且非空时读取首行作为表头并追加
type CSVSink struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink 创建csv目的地
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path 目的地路径
func (s *CSVSink) Path() string {
	return s.path
}

// Prepare 打开文件并返回已有表头
func (s *CSVSink) Prepare() ([]string, error) {
	header, err := readCSVHeader(s.path)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建报告目录失败: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开CSV文件失败: %w", err)
	}
	s.file = file
	s.writer = csv.NewWriter(file)

	if header != nil {
		utils.Infof("追加到已有CSV: %s", s.path)
	}
	return header, nil
}

// readCSVHeader 读取已有文件首行,文件不存在或为空返回nil
func readCSVHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取CSV文件失败: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("解析CSV表头失败: %w", err)
	}
	return header, nil
}

// WriteHeader 写入表头
func (s *CSVSink) WriteHeader(header []string) error {
	return s.Append(header)
}

// Append 追加一行
func (s *CSVSink) Append(values []string) error {
	if s.writer == nil {
		return fmt.Errorf("CSV文件未打开")
	}
	return s.writer.Write(values)
}

// Save 刷新缓冲并同步到磁盘
func (s *CSVSink) Save() error {
	if s.writer == nil {
		return fmt.Errorf("CSV文件未打开")
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	return s.file.Sync()
}

// Close 关闭文件
func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	err := s.file.Close()
	s.file = nil
	s.writer = nil
	return err
}
