package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 重试耗尽
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// 导航等待策略
const (
	WaitUntilLoad             = "load"
	WaitUntilDOMContentLoaded = "domcontentloaded"
	WaitUntilNetworkIdle      = "networkidle"
)

// TaskStats 运行统计
type TaskStats struct {
	TotalTargets  int     `json:"total_targets"`  // 目标总数
	Succeeded     int     `json:"succeeded"`      // 成功数
	Failed        int     `json:"failed"`         // 重试耗尽数
	Cancelled     int     `json:"cancelled"`      // 取消数
	Retried       int     `json:"retried"`        // 至少重试一次的目标数
	TotalAttempts int     `json:"total_attempts"` // 尝试总次数
	RowsWritten   int     `json:"rows_written"`   // 已写入行数
	AmpValidated  int     `json:"amp_validated"`  // 执行了AMP校验的目标数
	Duration      float64 `json:"duration"`       // 总耗时(秒)
}

// ScanConfig 扫描配置
type ScanConfig struct {
	Threads            int           `json:"threads" mapstructure:"threads" yaml:"threads"`                                        // 并发数 (默认:1)
	MaxRetries         int           `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`                            // 最大尝试次数 (默认:3)
	RetryDelay         time.Duration `json:"retry_delay" mapstructure:"retry_delay" yaml:"retry_delay"`                            // 重试间隔 (默认:2s)
	NavigationTimeout  time.Duration `json:"navigation_timeout" mapstructure:"navigation_timeout" yaml:"navigation_timeout"`       // 导航超时 (默认:90s)
	WaitUntil          string        `json:"wait_until" mapstructure:"wait_until" yaml:"wait_until"`                               // 导航等待策略 (默认:domcontentloaded)
	PostNavigationWait time.Duration `json:"post_navigation_wait" mapstructure:"post_navigation_wait" yaml:"post_navigation_wait"` // 加载后额外等待 (默认:5s)
	Headless           bool          `json:"headless" mapstructure:"headless" yaml:"headless"`                                     // 无头模式 (默认:false)
	BlockResources     []string      `json:"block_resources" mapstructure:"block_resources" yaml:"block_resources"`                // 拦截的资源类型
	CheckpointEvery    int           `json:"checkpoint_every" mapstructure:"checkpoint_every" yaml:"checkpoint_every"`             // 每N行保存一次 (默认:50)
	ShutdownTimeout    time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`             // 关闭等待上限 (默认:60m)
	MaxSessionsLimit   int           `json:"max_sessions_limit" mapstructure:"max_sessions_limit" yaml:"max_sessions_limit"`       // 资源监控允许的最大会话数
	AmpValidate        bool          `json:"amp_validate" mapstructure:"amp_validate" yaml:"amp_validate"`                         // 是否调用AMP校验
	Static             bool          `json:"static" mapstructure:"static" yaml:"static"`                                           // 静态抓取模式,不启动浏览器
}

// Validate 验证配置
func (c *ScanConfig) Validate() error {
	if c.Threads < 1 || c.Threads > 64 {
		return fmt.Errorf("并发数必须在1-64之间")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("最大尝试次数必须在1-10之间")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("重试间隔不能为负数")
	}
	if c.NavigationTimeout <= 0 || c.NavigationTimeout > 10*time.Minute {
		return fmt.Errorf("导航超时必须在0-10分钟之间")
	}
	if c.PostNavigationWait < 0 || c.PostNavigationWait > 2*time.Minute {
		return fmt.Errorf("加载后等待时间必须在0-2分钟之间")
	}
	switch c.WaitUntil {
	case WaitUntilLoad, WaitUntilDOMContentLoaded, WaitUntilNetworkIdle:
	default:
		return fmt.Errorf("无效的等待策略: %s (有效值: load, domcontentloaded, networkidle)", c.WaitUntil)
	}
	if c.CheckpointEvery < 1 {
		return fmt.Errorf("检查点间隔必须大于0")
	}
	return nil
}

// ScanTask 单个目标的处理任务
type ScanTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	Index       int        `json:"index"`                  // 提交顺序
	TargetURL   string     `json:"target_url"`             // 目标URL
	Domain      string     `json:"domain"`                 // 解析的域名
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Status   TaskStatus `json:"status"`   // 任务状态
	Attempts int        `json:"attempts"` // 已尝试次数

	ErrorMessage string `json:"error_message,omitempty"` // 错误消息
}

// NewScanTask 创建新任务
// 目标在读取阶段已过滤,这里只解析域名,不做二次校验
func NewScanTask(index int, targetURL string) *ScanTask {
	domain := ""
	if parsed, err := url.Parse(targetURL); err == nil {
		domain = parsed.Host
	}

	return &ScanTask{
		ID:        generateID(),
		Index:     index,
		TargetURL: targetURL,
		Domain:    domain,
		CreatedAt: time.Now(),
		Status:    TaskStatusPending,
	}
}

// Start 标记开始
func (t *ScanTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 根据报告行标记结束
func (t *ScanTask) Finish(row ReportRow) {
	now := time.Now()
	t.CompletedAt = &now
	t.Attempts = row.AttemptCount()
	if row.Succeeded() {
		t.Status = TaskStatusCompleted
		return
	}
	t.Status = TaskStatusFailed
	t.ErrorMessage = row.Error
}

// ToJSON 序列化为JSON
func (t *ScanTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
