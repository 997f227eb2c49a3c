package crawlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// DefaultStaticKeywords 默认过滤的静态页面关键词
const DefaultStaticKeywords = "about,contact-us,privacy-policy,terms-of-use,careers,sitemap,advertise,feedback"

// DefaultDiscoveryTimeout 发现链接时的请求超时
const DefaultDiscoveryTimeout = 30 * time.Second

var hrefWhitespace = regexp.MustCompile(`\s+`)

// LinkDiscoverer 从基础页面收集同域链接
type LinkDiscoverer struct {
	keywords  []string
	timeout   time.Duration
	headers   models.HeaderProvider
	transport http.RoundTripper
}

// NewLinkDiscoverer 创建链接发现器
// keywords为逗号分隔的关键词,命中的链接视为静态页面并跳过
func NewLinkDiscoverer(keywords string, timeout time.Duration, headers models.HeaderProvider) *LinkDiscoverer {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &LinkDiscoverer{
		keywords: ParseKeywords(keywords),
		timeout:  timeout,
		headers:  headers,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 跳过证书验证,允许访问自签名、过期或主机名不匹配的HTTPS站点
			},
		},
	}
}

// WithTransport 替换底层Transport
func (d *LinkDiscoverer) WithTransport(rt http.RoundTripper) *LinkDiscoverer {
	d.transport = rt
	return d
}

// ParseKeywords 拆分逗号分隔的关键词,统一小写
func ParseKeywords(raw string) []string {
	var keywords []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// Discover 访问基础页面并返回同域链接,按首次出现顺序去重
func (d *LinkDiscoverer) Discover(ctx context.Context, baseURL string) ([]string, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("无效的基础URL: %s", baseURL)
	}

	c := colly.NewCollector()
	c.SetRequestTimeout(d.timeout)
	c.WithTransport(d.transport)

	var (
		links    []string
		skipped  int
		visitErr error
	)
	seen := make(map[string]bool)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		applyCollyHeaders(r, d.headers)
		utils.Debugf("链接发现: 访问 %s", r.URL.String())
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		normalized, ok := d.normalizeLink(base, e.Request.URL, e.Attr("href"))
		if !ok {
			return
		}
		if d.isStaticPage(normalized) {
			skipped++
			utils.Debugf("跳过静态页面链接: %s", normalized)
			return
		}
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			visitErr = fmt.Errorf("基础页面返回状态码 %d: %w", r.StatusCode, err)
			return
		}
		visitErr = err
	})

	if err := c.Visit(base.String()); err != nil && visitErr == nil {
		visitErr = err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if visitErr != nil {
		return nil, fmt.Errorf("访问基础页面失败 [%s]: %w", baseURL, visitErr)
	}

	utils.Infof("从 %s 发现 %d 个站内链接 (过滤静态页面 %d 个)", baseURL, len(links), skipped)
	return links, nil
}

// normalizeLink 解析href并归一化为 scheme://host/path
func (d *LinkDiscoverer) normalizeLink(base, pageURL *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	ref, err := url.Parse(hrefWhitespace.ReplaceAllString(href, ""))
	if err != nil {
		return "", false
	}
	resolved := pageURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(resolved.Hostname(), base.Hostname()) {
		return "", false
	}

	path := resolved.EscapedPath()
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return resolved.Scheme + "://" + resolved.Host + path, true
}

// isStaticPage 链接是否命中静态页面关键词
func (d *LinkDiscoverer) isStaticPage(normalized string) bool {
	lower := strings.ToLower(normalized)
	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// applyCollyHeaders 在colly请求上应用轮换UA和附加头部
func applyCollyHeaders(r *colly.Request, provider models.HeaderProvider) {
	if provider == nil {
		return
	}
	headers, err := provider.GetHeaders()
	if err != nil {
		utils.Warnf("获取HTTP头部失败: %v", err)
	} else {
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	}
	if ua := provider.NextUserAgent(); ua != "" {
		r.Headers.Set("User-Agent", ua)
	}
}
