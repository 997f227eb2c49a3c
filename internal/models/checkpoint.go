package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpoint 运行检查点
// 每保存一次报告同步写一次,记录已落盘的目标
type Checkpoint struct {
	// 运行信息
	RunID      string `json:"run_id"`      // 运行ID
	OutputFile string `json:"output_file"` // 报告文件

	// 进度信息
	TotalTargets     int      `json:"total_targets"`     // 目标总数
	CompletedTargets []string `json:"completed_targets"` // 已写入报告的目标
	FailedTargets    []string `json:"failed_targets"`    // 重试耗尽的目标
	RowsWritten      int      `json:"rows_written"`      // 本次运行写入行数

	// 时间戳
	CreatedAt time.Time `json:"created_at"` // 检查点创建时间
	UpdatedAt time.Time `json:"updated_at"` // 最后更新时间

	// 配置快照
	Config ScanConfig `json:"config"`
}

// CheckpointFilename 根据报告文件生成检查点文件名
func CheckpointFilename(outputFile string) string {
	base := strings.TrimSuffix(filepath.Base(outputFile), filepath.Ext(outputFile))
	return filepath.Join(filepath.Dir(outputFile), fmt.Sprintf("checkpoint_%s.json", base))
}

// Record 记录一行已落盘
func (c *Checkpoint) Record(row ReportRow) {
	c.CompletedTargets = append(c.CompletedTargets, row.Target)
	if !row.Succeeded() {
		c.FailedTargets = append(c.FailedTargets, row.Target)
	}
	c.RowsWritten++
	c.UpdatedAt = time.Now()
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *Checkpoint) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

// SaveToFile 保存到文件
func (c *Checkpoint) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCheckpointFromFile 从文件加载
func LoadCheckpointFromFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := cp.FromJSON(data); err != nil {
		return nil, err
	}

	return &cp, nil
}
