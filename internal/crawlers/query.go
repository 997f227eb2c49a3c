package crawlers

import (
	"net/url"
	"strings"
)

// QueryParams 保序的查询参数
// 重复键后者覆盖前者,但保留首次出现的位置
type QueryParams struct {
	keys   []string
	values map[string]string
}

// ParseQuery 解析URL中的查询参数
// 只按第一个'?'切分,每个键值对独立解码,解码失败只丢弃该对
func ParseQuery(rawURL string) QueryParams {
	params := QueryParams{values: make(map[string]string)}

	_, query, found := strings.Cut(rawURL, "?")
	if !found {
		return params
	}
	if idx := strings.IndexByte(query, '#'); idx >= 0 {
		query = query[:idx]
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil || key == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}

		params.set(key, value)
	}

	return params
}

func (p *QueryParams) set(key, value string) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get 获取参数值
func (p QueryParams) Get(key string) (string, bool) {
	value, ok := p.values[key]
	return value, ok
}

// Keys 按出现顺序返回参数名
func (p QueryParams) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len 参数个数
func (p QueryParams) Len() int {
	return len(p.keys)
}
