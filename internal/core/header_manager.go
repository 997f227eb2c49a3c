package core

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/RecoveryAshes/SeoScan/internal/config"
	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// HeaderManager 管理会话HTTP头部和User-Agent轮换
// 实现 models.HeaderProvider 接口
type HeaderManager struct {
	mu sync.Mutex

	// defaults 系统默认头部
	defaults http.Header

	// config 从配置文件加载的头部
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	// userAgents 轮换池
	userAgents []string
	next       atomic.Uint64

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	loaded  bool
	loadErr error
}

// NewHeaderManager 创建头部管理器
// configFile为空时使用默认路径,cliHeaders格式为 "Name: Value"
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:     getDefaultHeaders(),
		config:       make(http.Header),
		cli:          make(http.Header),
		userAgents:   config.DefaultUserAgents(),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 系统默认头部
// Accept类头部交给浏览器按资源类型自行设置
func getDefaultHeaders() http.Header {
	return http.Header{
		"Accept-Language": []string{"en-US,en;q=0.9"},
	}
}

// LoadConfig 加载配置文件,只执行一次
func (hm *HeaderManager) LoadConfig() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.loadLocked()
}

func (hm *HeaderManager) loadLocked() error {
	if hm.loaded {
		return hm.loadErr
	}
	hm.loaded = true

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		hm.loadErr = err
		return err
	}

	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}
	if len(headerConfig.UserAgents) > 0 {
		hm.userAgents = headerConfig.UserAgents
	}

	if len(headerConfig.Headers) > 0 {
		utils.Debugf("成功加载%d个HTTP头部配置: %s", len(headerConfig.Headers), hm.redactor.RedactToString(hm.config))
	}
	utils.Debugf("User-Agent轮换池: %d 个", len(hm.userAgents))
	return nil
}

// Validate 验证所有头部的合法性
func (hm *HeaderManager) Validate() error {
	for _, headers := range []http.Header{hm.defaults, hm.config, hm.cli} {
		if err := hm.validator.Validate(headers); err != nil {
			utils.Errorf("HTTP头部验证失败: %v", err)
			return err
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
// 返回的头部不含User-Agent
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if err := hm.loadLocked(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}

	merged := hm.GetMergedHeaders()
	merged.Del("User-Agent")
	return merged, nil
}

// NextUserAgent 实现 HeaderProvider 接口
// 显式配置了User-Agent头部时固定使用它,否则在池中轮换
func (hm *HeaderManager) NextUserAgent() string {
	hm.mu.Lock()
	_ = hm.loadLocked()
	pinned := hm.GetMergedHeaders().Get("User-Agent")
	agents := hm.userAgents
	hm.mu.Unlock()

	if pinned != "" {
		return pinned
	}
	if len(agents) == 0 {
		return ""
	}
	i := hm.next.Add(1) - 1
	return agents[i%uint64(len(agents))]
}
