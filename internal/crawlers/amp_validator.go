package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// AMP校验服务默认值
const (
	DefaultAmpEndpoint  = "https://validator.amp.dev/validator.json"
	DefaultAmpTimeout   = 30 * time.Second
	DefaultAmpUserAgent = "SeoScanBot/1.0 (+https://example.com/bot)"
	DefaultAmpCacheSize = 1024

	maxLoggedBody = 500
)

// AmpValidatorConfig AMP校验客户端配置
type AmpValidatorConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	CacheSize int           `mapstructure:"cache_size" yaml:"cache_size"`
}

// AmpChecker 会话使用的AMP校验能力
type AmpChecker interface {
	Validate(ctx context.Context, ampURL string) models.AmpValidationResult
}

// AmpValidator 调用外部AMP校验API
// 结果按URL缓存,API错误不重试也不缓存
type AmpValidator struct {
	cfg    AmpValidatorConfig
	client *http.Client
	cache  *lru.Cache[string, models.AmpValidationResult]
}

// NewAmpValidator 创建校验客户端
func NewAmpValidator(cfg AmpValidatorConfig) (*AmpValidator, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultAmpEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAmpTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultAmpUserAgent
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultAmpCacheSize
	}

	cache, err := lru.New[string, models.AmpValidationResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("创建AMP校验缓存失败: %w", err)
	}

	return &AmpValidator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
	}, nil
}

// WithTransport 替换底层Transport
func (v *AmpValidator) WithTransport(rt http.RoundTripper) *AmpValidator {
	v.client.Transport = rt
	return v
}

// Validate 校验单个AMP URL
func (v *AmpValidator) Validate(ctx context.Context, ampURL string) models.AmpValidationResult {
	ampURL = strings.TrimSpace(ampURL)
	if ampURL == "" || strings.EqualFold(ampURL, models.NotFound) {
		return models.AmpValidationResult{
			URL:     ampURL,
			Status:  models.AmpURLError,
			Summary: "Invalid URL for validation: AMP URL is empty or 'Not Found'",
		}
	}

	if cached, ok := v.cache.Get(ampURL); ok {
		utils.Debugf("AMP校验命中缓存: %s", ampURL)
		return cached
	}

	result := v.request(ctx, ampURL)
	if result.Status == models.AmpPass || result.Status == models.AmpFail {
		v.cache.Add(ampURL, result)
	}
	return result
}

func (v *AmpValidator) request(ctx context.Context, ampURL string) models.AmpValidationResult {
	requestURL := v.cfg.Endpoint + "?url=" + url.QueryEscape(ampURL)
	utils.Debugf("请求AMP校验: %s", requestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return urlError(ampURL, err.Error())
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := v.client.Do(req)
	if err != nil {
		utils.Errorf("调用AMP校验API失败 [%s]: %v", ampURL, err)
		return apiError(ampURL, firstLine(err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiError(ampURL, "读取响应失败: "+firstLine(err.Error()))
	}
	body, err := decompressResponse(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		utils.Warnf("解压AMP校验响应失败 [%s]: %v", ampURL, err)
		body = raw
	}

	if resp.StatusCode != http.StatusOK {
		utils.Errorf("AMP校验API返回异常状态 [%s]: %d %s", ampURL, resp.StatusCode, truncate(string(body), maxLoggedBody))
		return apiError(ampURL, fmt.Sprintf("HTTP Status %d", resp.StatusCode))
	}

	return parseAmpResponse(ampURL, body)
}

type ampResponse struct {
	Status string            `json:"status"`
	Errors []json.RawMessage `json:"errors"`
}

type ampError struct {
	Line    *int    `json:"line"`
	Col     *int    `json:"col"`
	Message *string `json:"message"`
	Code    *string `json:"code"`
}

func (e ampError) format() string {
	line, col, message, code := 0, 0, "Unknown error", "NO_CODE"
	if e.Line != nil {
		line = *e.Line
	}
	if e.Col != nil {
		col = *e.Col
	}
	if e.Message != nil {
		message = *e.Message
	}
	if e.Code != nil {
		code = *e.Code
	}
	return fmt.Sprintf("L%d C%d: %s (%s)", line, col, message, code)
}

// parseAmpResponse 把API响应映射为校验结果
func parseAmpResponse(ampURL string, body []byte) models.AmpValidationResult {
	var parsed ampResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		utils.Errorf("解析AMP校验响应失败 [%s]: %v", ampURL, err)
		return apiError(ampURL, "JSON Parse Error: "+firstLine(err.Error()))
	}

	status := parsed.Status
	if status == "" {
		status = "UNKNOWN"
	}

	switch {
	case strings.EqualFold(status, string(models.AmpPass)):
		utils.Infof("AMP校验通过: %s", ampURL)
		return models.AmpValidationResult{URL: ampURL, Status: models.AmpPass, Summary: "PASS"}

	case strings.EqualFold(status, string(models.AmpFail)):
		messages := make([]string, 0, len(parsed.Errors))
		for _, raw := range parsed.Errors {
			var item ampError
			if err := json.Unmarshal(raw, &item); err != nil {
				utils.Debugf("AMP错误项无法解析,使用默认值 [%s]: %v", ampURL, err)
			}
			messages = append(messages, item.format())
		}
		suffix := "s"
		if len(messages) == 1 {
			suffix = ""
		}
		summary := fmt.Sprintf("FAIL (%d error%s)", len(messages), suffix)
		utils.Warnf("AMP校验失败 [%s]: %s", ampURL, summary)
		return models.AmpValidationResult{URL: ampURL, Status: models.AmpFail, Summary: summary, Messages: messages}

	default:
		utils.Warnf("AMP校验API返回未知状态 [%s]: %s", ampURL, status)
		return apiError(ampURL, "Unknown status: "+status)
	}
}

func apiError(ampURL, msg string) models.AmpValidationResult {
	return models.AmpValidationResult{URL: ampURL, Status: models.AmpAPIError, Summary: "API Error: " + msg}
}

func urlError(ampURL, msg string) models.AmpValidationResult {
	return models.AmpValidationResult{URL: ampURL, Status: models.AmpURLError, Summary: "Invalid URL for validation: " + msg}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
