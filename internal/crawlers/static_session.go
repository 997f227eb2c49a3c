package crawlers

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// StaticSession 不启动浏览器的页面会话
// 只抓取服务端返回的HTML,脚本发起的请求和运行时全局变量都不可见
type StaticSession struct {
	classifier *Classifier
	analyzer   *PageAnalyzer
	headers    models.HeaderProvider
	timeout    time.Duration
	transport  http.RoundTripper
}

// NewStaticSession 创建静态会话
func NewStaticSession(classifier *Classifier, analyzer *PageAnalyzer, headers models.HeaderProvider, timeout time.Duration) *StaticSession {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &StaticSession{
		classifier: classifier,
		analyzer:   analyzer,
		headers:    headers,
		timeout:    timeout,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 跳过证书验证,允许访问自签名、过期或主机名不匹配的HTTPS站点
			},
		},
	}
}

// WithTransport 替换底层Transport
func (s *StaticSession) WithTransport(rt http.RoundTripper) *StaticSession {
	s.transport = rt
	return s
}

// staticFetch 单次抓取的结果
type staticFetch struct {
	finalURL string
	status   int
	body     []byte
	err      error
}

// Attempt 抓取页面并执行分析
func (s *StaticSession) Attempt(ctx context.Context, target string, attempt int) (models.ExtractionResult, error) {
	logger := utils.TargetLogger(target).With().Int("attempt", attempt).Str("mode", "static").Logger()
	fail := func(stage SessionState, cause error) error {
		return &NavigationError{URL: target, Stage: string(stage), Err: cause}
	}

	// 每次尝试使用独立的collector,不共享cookie; 非2xx响应也交给OnResponse判断
	c := colly.NewCollector(colly.AllowURLRevisit(), colly.ParseHTTPErrorResponse())
	c.SetRequestTimeout(s.timeout)
	c.WithTransport(s.transport)

	acc := s.classifier.NewAccumulator()
	var fetched staticFetch

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		applyCollyHeaders(r, s.headers)
		acc.ObserveRequest(r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		body, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			logger.Warn().Err(err).Msg("解压响应失败,使用原始内容")
			body = r.Body
		}
		fetched = staticFetch{finalURL: r.Request.URL.String(), status: r.StatusCode, body: body}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetched.err = err
		if r != nil {
			fetched.status = r.StatusCode
		}
	})

	if err := c.Visit(target); err != nil && fetched.err == nil {
		fetched.err = err
	}
	if ctx.Err() != nil {
		return models.ExtractionResult{}, fail(StateIdle, ctx.Err())
	}

	if fetched.status == 0 {
		if fetched.err != nil {
			return models.ExtractionResult{}, fail(StateSessionAcquired, fetched.err)
		}
		return models.ExtractionResult{}, fail(StateSessionAcquired, ErrNoResponse)
	}
	if fetched.status < 200 || fetched.status > 299 {
		return models.ExtractionResult{}, fail(StateNavigated, &StatusError{Code: fetched.status})
	}

	pageURL := fetched.finalURL
	if pageURL == "" {
		pageURL = target
	}
	doc, err := NewStaticDocument(pageURL, string(fetched.body))
	if err != nil {
		return models.ExtractionResult{}, fail(StateNavigated, err)
	}

	resp := PageResponse{Received: true, StatusCode: fetched.status}
	result := s.analyzer.Analyze(ctx, target, doc, resp, acc)
	logger.Debug().Int("status", fetched.status).Int("bytes", len(fetched.body)).Msg("静态页面提取完成")
	return result, nil
}

