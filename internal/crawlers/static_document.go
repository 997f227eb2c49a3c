package crawlers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// StaticDocument 基于静态HTML的Document实现
// 不执行脚本,全局变量只能从内联脚本的赋值语句中读取
type StaticDocument struct {
	pageURL string
	doc     *goquery.Document
}

// NewStaticDocument 解析HTML构建文档
func NewStaticDocument(pageURL, markup string) (*StaticDocument, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return &StaticDocument{
		pageURL: pageURL,
		doc:     goquery.NewDocumentFromNode(root),
	}, nil
}

// PageURL 页面URL
func (d *StaticDocument) PageURL() string {
	return d.pageURL
}

// Title 第一个title元素的文本
func (d *StaticDocument) Title() (string, error) {
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

// Query 按选择器返回元素快照
func (d *StaticDocument) Query(selector string) (nodes []Node, err error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("无效选择器 %q: %w", selector, err)
	}

	defer func() {
		if r := recover(); r != nil {
			nodes = nil
			err = fmt.Errorf("选择器执行失败 %q: %v", selector, r)
		}
	}()

	d.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		node := Node{Attrs: make(map[string]string), Text: s.Text()}
		if len(s.Nodes) > 0 {
			for _, attr := range s.Nodes[0].Attr {
				node.Attrs[strings.ToLower(attr.Key)] = attr.Val
			}
		}
		nodes = append(nodes, node)
	})
	return nodes, nil
}

// BodyText body中去掉脚本和样式后的文本
func (d *StaticDocument) BodyText() (string, error) {
	body := d.doc.Find("body").First().Clone()
	body.Find("script, style, noscript, template").Remove()
	return body.Text(), nil
}

// HTML 完整HTML
func (d *StaticDocument) HTML() (string, error) {
	return d.doc.Html()
}

// EvalGlobal 在内联脚本中查找 window.NAME = {...} 形式的赋值并解码紧随其后的JSON值
func (d *StaticDocument) EvalGlobal(name string) (string, bool, error) {
	pattern, err := regexp.Compile(`(?:window\.|window\[['"]|\b(?:var|let|const)\s+)` + regexp.QuoteMeta(name) + `(?:['"]\])?\s*=\s*`)
	if err != nil {
		return "", false, err
	}

	var (
		value string
		found bool
		last  error
	)
	d.doc.Find("script:not([src])").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		loc := pattern.FindStringIndex(text)
		if loc == nil {
			return true
		}

		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[loc[1]:])).Decode(&raw); err != nil {
			last = fmt.Errorf("全局变量 %s 不是JSON: %w", name, err)
			return true
		}
		value, found = string(raw), true
		return false
	})

	if found {
		return value, true, nil
	}
	return "", false, last
}
