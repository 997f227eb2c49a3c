package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// DefaultSheet 默认工作表名
const DefaultSheet = "SeoDataDefault"

// XLSXSink Excel工作簿目的地
// 已存在的工作簿和工作表保留原有内容,在最后一行之后追加
type XLSXSink struct {
	path    string
	sheet   string
	file    *excelize.File
	nextRow int
}

// NewXLSXSink 创建xlsx目的地
func NewXLSXSink(path, sheet string) *XLSXSink {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSXSink{path: path, sheet: sheet}
}

// Path 目的地路径
func (s *XLSXSink) Path() string {
	return s.path
}

// Prepare 打开或创建工作簿和工作表
func (s *XLSXSink) Prepare() ([]string, error) {
	if _, err := os.Stat(s.path); err == nil {
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("打开工作簿失败: %w", err)
		}
		s.file = f
		utils.Infof("打开已有工作簿: %s", s.path)
	} else if os.IsNotExist(err) {
		f := excelize.NewFile()
		// 新工作簿自带Sheet1,直接改名
		if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("设置工作表名失败: %w", err)
		}
		s.file = f
		s.nextRow = 1
		utils.Infof("创建新工作簿 %s, 工作表 %s", s.path, s.sheet)
		return nil, nil
	} else {
		return nil, fmt.Errorf("读取工作簿信息失败: %w", err)
	}

	index, err := s.file.GetSheetIndex(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("查找工作表失败: %w", err)
	}
	if index < 0 {
		if _, err := s.file.NewSheet(s.sheet); err != nil {
			return nil, fmt.Errorf("创建工作表失败: %w", err)
		}
		s.nextRow = 1
		utils.Infof("工作表 %s 不存在, 已创建", s.sheet)
		return nil, nil
	}

	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	s.nextRow = len(rows) + 1
	if len(rows) == 0 || len(rows[0]) == 0 {
		s.nextRow = 1
		return nil, nil
	}

	utils.Infof("追加到已有工作表 %s, 起始行 %d", s.sheet, s.nextRow)
	return rows[0], nil
}

// WriteHeader 写入加粗表头
func (s *XLSXSink) WriteHeader(header []string) error {
	if err := s.writeRow(header); err != nil {
		return err
	}

	style, err := s.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("创建表头样式失败: %w", err)
	}
	return s.file.SetRowStyle(s.sheet, s.nextRow-1, s.nextRow-1, style)
}

// Append 追加一行
func (s *XLSXSink) Append(values []string) error {
	return s.writeRow(values)
}

func (s *XLSXSink) writeRow(values []string) error {
	if s.file == nil {
		return fmt.Errorf("工作簿未打开")
	}
	cell, err := excelize.CoordinatesToCellName(1, s.nextRow)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := s.file.SetSheetRow(s.sheet, cell, &row); err != nil {
		return fmt.Errorf("写入第%d行失败: %w", s.nextRow, err)
	}
	s.nextRow++
	return nil
}

// Save 写回磁盘
func (s *XLSXSink) Save() error {
	if s.file == nil {
		return fmt.Errorf("工作簿未打开")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建报告目录失败: %w", err)
		}
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("保存工作簿失败: %w", err)
	}
	return nil
}

// Close 关闭工作簿
func (s *XLSXSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
