package crawlers

import (
	"strings"
)

// Node 选择器匹配到的元素快照
type Node struct {
	Attrs map[string]string `json:"attrs"`
	Text  string            `json:"text"`
}

// Attr 获取属性值,不存在时返回空字符串
func (n Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return strings.TrimSpace(n.Attrs[strings.ToLower(name)])
}

// HasAttr 属性是否存在
func (n Node) HasAttr(name string) bool {
	_, ok := n.Attrs[strings.ToLower(name)]
	return ok
}

// Document 已渲染页面的只读视图
// 提取器只通过这个接口访问页面,动态(rod)和静态(goquery)实现共用同一套提取规则
type Document interface {
	// PageURL 页面最终URL
	PageURL() string

	// Title 页面标题
	Title() (string, error)

	// Query 按CSS选择器返回匹配元素
	Query(selector string) ([]Node, error)

	// BodyText 页面可见文本
	BodyText() (string, error)

	// HTML 页面完整HTML
	HTML() (string, error)

	// EvalGlobal 读取全局变量的JSON表示
	// 变量不存在时ok为false且不返回错误
	EvalGlobal(name string) (value string, ok bool, err error)
}
