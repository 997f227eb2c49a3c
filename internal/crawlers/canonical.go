package crawlers

import (
	"net/url"
	"sort"
	"strings"

	"github.com/RecoveryAshes/SeoScan/internal/models"
)

// CanonicalStatus canonical校验结果
type CanonicalStatus string

const (
	CanonicalNotApplicable CanonicalStatus = "N/A (Canonical not found)"
	CanonicalValid         CanonicalStatus = "✅ Valid"
	CanonicalInvalid       CanonicalStatus = "❌ Invalid"
	CanonicalAmpToAmp      CanonicalStatus = "❌ Invalid (AMP page points to AMP canonical)"
)

// IsValid 是否通过校验
func (s CanonicalStatus) IsValid() bool {
	return s == CanonicalValid
}

// ValidateCanonical 校验页面URL与其canonical是否指向同一页面
// AMP页面的canonical必须指向非AMP版本
func ValidateCanonical(pageURL, canonical string) CanonicalStatus {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" || canonical == models.NotFound {
		return CanonicalNotApplicable
	}
	canonical = resolveAgainst(pageURL, canonical)

	if IsAmpURL(pageURL) && IsAmpURL(canonical) {
		return CanonicalAmpToAmp
	}

	if NormalizeURL(StripAmpMarkers(pageURL)) == NormalizeURL(StripAmpMarkers(canonical)) {
		return CanonicalValid
	}
	return CanonicalInvalid
}

// resolveAgainst 相对canonical按页面URL补全
func resolveAgainst(pageURL, ref string) string {
	parsedRef, err := url.Parse(ref)
	if err != nil || parsedRef.IsAbs() {
		return ref
	}
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return ref
	}
	return base.ResolveReference(parsedRef).String()
}

// IsAmpURL 判断URL是否为AMP版本
// 规则: 路径含/amp/段、以/amp结尾、带amp查询标记或以.amp.html结尾
func IsAmpURL(rawURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if lower == "" {
		return false
	}

	parsed, err := url.Parse(lower)
	if err != nil {
		return strings.Contains(lower, "/amp/") ||
			strings.HasSuffix(lower, "/amp") ||
			strings.Contains(lower, ".amp.html")
	}

	path := parsed.Path
	if strings.Contains(path, "/amp/") || strings.HasSuffix(path, "/amp") || strings.HasSuffix(path, ".amp.html") {
		return true
	}
	for _, pair := range strings.Split(parsed.RawQuery, "&") {
		if isAmpFlag(pair) {
			return true
		}
	}
	return false
}

// isAmpFlag amp、amp=1、amp=true
func isAmpFlag(pair string) bool {
	key, value, hasValue := strings.Cut(pair, "=")
	if !strings.EqualFold(key, "amp") {
		return false
	}
	if !hasValue {
		return true
	}
	// amp= 不算AMP标记
	switch strings.ToLower(value) {
	case "1", "true":
		return true
	}
	return false
}

// StripAmpMarkers 去掉URL中的AMP标记
// .amp.html变为.html,移除amp查询标记,/amp/段与结尾的/amp折叠为/
func StripAmpMarkers(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}

	path := parsed.Path
	if strings.HasSuffix(strings.ToLower(path), ".amp.html") {
		path = path[:len(path)-len(".amp.html")] + ".html"
	}
	for strings.Contains(strings.ToLower(path), "/amp/") {
		idx := strings.Index(strings.ToLower(path), "/amp/")
		path = path[:idx] + "/" + path[idx+len("/amp/"):]
	}
	if strings.HasSuffix(strings.ToLower(path), "/amp") {
		path = path[:len(path)-len("/amp")] + "/"
	}
	parsed.Path = path
	parsed.RawPath = ""

	if parsed.RawQuery != "" {
		kept := make([]string, 0)
		for _, pair := range strings.Split(parsed.RawQuery, "&") {
			if pair == "" || isAmpFlag(pair) {
				continue
			}
			kept = append(kept, pair)
		}
		parsed.RawQuery = strings.Join(kept, "&")
	}
	parsed.ForceQuery = false

	return parsed.String()
}

// NormalizeURL 规范化URL用于比较
// 强制https,去掉www.,小写scheme和host,去掉结尾斜杠(根路径保留/),查询参数按键排序,丢弃fragment
// 对结果再次规范化得到相同字符串
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimRight(trimmed, "/"))
	}

	host := strings.ToLower(parsed.Host)
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}

	path := strings.TrimRight(parsed.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	var sb strings.Builder
	sb.WriteString("https://")
	sb.WriteString(host)
	sb.WriteString(path)

	if query := sortQuery(parsed.RawQuery); query != "" {
		sb.WriteString("?")
		sb.WriteString(query)
	}
	return sb.String()
}

// sortQuery 按键稳定排序查询参数,值保持原样
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := make([]string, 0)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ki, _, _ := strings.Cut(pairs[i], "=")
		kj, _, _ := strings.Cut(pairs[j], "=")
		return ki < kj
	})
	return strings.Join(pairs, "&")
}
