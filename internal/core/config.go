package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RecoveryAshes/SeoScan/internal/config"
	"github.com/RecoveryAshes/SeoScan/internal/crawlers"
	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// AppName 应用名,用于配置目录
const AppName = "seoscan"

// 报告格式
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Config 应用程序配置
type Config struct {
	Scan     models.ScanConfig           `mapstructure:"scan" yaml:"scan"`
	Input    InputConfig                 `mapstructure:"input" yaml:"input"`
	Output   OutputConfig                `mapstructure:"output" yaml:"output"`
	Headers  HeadersConfig               `mapstructure:"headers" yaml:"headers"`
	Tracking TrackingConfig              `mapstructure:"tracking" yaml:"tracking"`
	Amp      crawlers.AmpValidatorConfig `mapstructure:"amp" yaml:"amp"`
	Metrics  MetricsConfig               `mapstructure:"metrics" yaml:"metrics"`
	Logging  LoggingConfig               `mapstructure:"logging" yaml:"logging"`
}

// InputConfig 目标来源配置
type InputConfig struct {
	URLFile          string        `mapstructure:"url_file" yaml:"url_file"`
	ReadURLFile      bool          `mapstructure:"read_url_file" yaml:"read_url_file"`
	URLs             []string      `mapstructure:"urls" yaml:"urls"`
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	StaticKeywords   string        `mapstructure:"static_keywords" yaml:"static_keywords"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout" yaml:"discovery_timeout"`
}

// OutputConfig 报告输出配置
type OutputConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	Sheet      string `mapstructure:"sheet" yaml:"sheet"`
	Format     string `mapstructure:"format" yaml:"format"` // xlsx/csv,为空时按扩展名判断
	SummaryDir string `mapstructure:"summary_dir" yaml:"summary_dir"`
}

// HeadersConfig 会话头部配置文件
type HeadersConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// TrackingConfig 追踪厂商签名,覆盖或追加内置表
type TrackingConfig struct {
	Vendors map[string][]string `mapstructure:"vendors" yaml:"vendors"`
}

// MetricsConfig Prometheus指标配置
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // 为空时不暴露HTTP端点
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	LogDir   string         `mapstructure:"log_dir" yaml:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ToLogConfig 转换为utils日志配置
func (l LoggingConfig) ToLogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      l.Level,
		LogDir:     l.LogDir,
		MaxSize:    l.Rotation.MaxSize,
		MaxBackups: l.Rotation.MaxBackups,
		MaxAge:     l.Rotation.MaxAge,
		Compress:   l.Rotation.Compress,
	}
}

// LoadConfig 加载配置文件
// configPath为空时按 ./configs → . → $XDG_CONFIG_HOME/seoscan → ~/.seoscan 搜索config.yaml,
// 找不到时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		utils.Debugf("使用配置文件: %s", used)
	}
	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 扫描
	v.SetDefault("scan.threads", 1)
	v.SetDefault("scan.max_retries", 3)
	v.SetDefault("scan.retry_delay", 2*time.Second)
	v.SetDefault("scan.navigation_timeout", 90*time.Second)
	v.SetDefault("scan.wait_until", models.WaitUntilDOMContentLoaded)
	v.SetDefault("scan.post_navigation_wait", 5*time.Second)
	v.SetDefault("scan.headless", false)
	v.SetDefault("scan.block_resources", []string{})
	v.SetDefault("scan.checkpoint_every", 50)
	v.SetDefault("scan.shutdown_timeout", 60*time.Minute)
	v.SetDefault("scan.max_sessions_limit", 16)
	v.SetDefault("scan.amp_validate", false)
	v.SetDefault("scan.static", false)

	// 输入
	v.SetDefault("input.url_file", "URL.txt")
	v.SetDefault("input.read_url_file", true)
	v.SetDefault("input.base_url", "")
	v.SetDefault("input.static_keywords", crawlers.DefaultStaticKeywords)
	v.SetDefault("input.discovery_timeout", crawlers.DefaultDiscoveryTimeout)

	// 输出
	v.SetDefault("output.file", "SeoAnalysisReport_Default.xlsx")
	v.SetDefault("output.sheet", "SeoDataDefault")
	v.SetDefault("output.format", "")
	v.SetDefault("output.summary_dir", "reports")

	v.SetDefault("headers.file", config.DefaultConfigFile)

	// AMP校验
	v.SetDefault("amp.endpoint", crawlers.DefaultAmpEndpoint)
	v.SetDefault("amp.timeout", crawlers.DefaultAmpTimeout)
	v.SetDefault("amp.user_agent", crawlers.DefaultAmpUserAgent)
	v.SetDefault("amp.cache_size", crawlers.DefaultAmpCacheSize)

	v.SetDefault("metrics.addr", "")

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// CLIFlags 命令行覆盖项
// 零值和nil表示未设置,保留配置文件的值
type CLIFlags struct {
	URLFile     string
	URLs        []string
	BaseURL     string
	Keywords    string
	Output      string
	Sheet       string
	Format      string
	Threads     int
	Retries     int
	RetryDelay  *time.Duration
	Timeout     time.Duration
	WaitUntil   string
	PostWait    *time.Duration
	Headless    *bool
	AmpValidate *bool
	Static      *bool
	MetricsAddr string
	LogLevel    string
	Verbose     bool
}

// MergeCLIFlags 合并命令行参数到配置
func (c *Config) MergeCLIFlags(f CLIFlags) {
	if f.URLFile != "" {
		c.Input.URLFile = f.URLFile
		c.Input.ReadURLFile = true
	}
	if len(f.URLs) > 0 {
		c.Input.URLs = append(c.Input.URLs, f.URLs...)
		// 只给了-u时不再读取默认种子文件
		if f.URLFile == "" {
			c.Input.ReadURLFile = false
		}
	}
	if f.BaseURL != "" {
		c.Input.BaseURL = f.BaseURL
	}
	if f.Keywords != "" {
		c.Input.StaticKeywords = f.Keywords
	}

	if f.Output != "" {
		c.Output.File = f.Output
	}
	if f.Sheet != "" {
		c.Output.Sheet = f.Sheet
	}
	if f.Format != "" {
		c.Output.Format = f.Format
	}

	if f.Threads > 0 {
		c.Scan.Threads = f.Threads
	}
	if f.Retries > 0 {
		c.Scan.MaxRetries = f.Retries
	}
	if f.RetryDelay != nil {
		c.Scan.RetryDelay = *f.RetryDelay
	}
	if f.Timeout > 0 {
		c.Scan.NavigationTimeout = f.Timeout
	}
	if f.WaitUntil != "" {
		c.Scan.WaitUntil = strings.ToLower(f.WaitUntil)
	}
	if f.PostWait != nil {
		c.Scan.PostNavigationWait = *f.PostWait
	}
	if f.Headless != nil {
		c.Scan.Headless = *f.Headless
	}
	if f.AmpValidate != nil {
		c.Scan.AmpValidate = *f.AmpValidate
	}
	if f.Static != nil {
		c.Scan.Static = *f.Static
	}

	if f.MetricsAddr != "" {
		c.Metrics.Addr = f.MetricsAddr
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
	if f.Verbose {
		c.Logging.Level = "debug"
	}
}

// ReportFormat 报告格式,未显式配置时按扩展名判断
func (c *Config) ReportFormat() string {
	if c.Output.Format != "" {
		return strings.ToLower(c.Output.Format)
	}
	if strings.EqualFold(filepath.Ext(c.Output.File), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	if c.Output.File == "" {
		return fmt.Errorf("报告文件不能为空")
	}
	switch c.ReportFormat() {
	case FormatXLSX:
		if c.Output.Sheet == "" {
			return fmt.Errorf("xlsx报告的工作表名不能为空")
		}
	case FormatCSV:
	default:
		return fmt.Errorf("无效的报告格式: %s (有效值: xlsx, csv)", c.Output.Format)
	}
	if c.Input.BaseURL != "" {
		if err := models.ValidateURL(c.Input.BaseURL); err != nil {
			return fmt.Errorf("base_url无效: %w", err)
		}
	}
	if c.Amp.CacheSize < 0 {
		return fmt.Errorf("AMP缓存大小不能为负数")
	}
	return nil
}

// VendorTable 由配置构建厂商签名表
func (c *Config) VendorTable() (config.VendorTable, error) {
	return config.NewVendorTable(c.Tracking.Vendors)
}

// ToYAML 输出生效配置
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
