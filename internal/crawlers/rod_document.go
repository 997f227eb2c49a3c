package crawlers

import (
	"fmt"

	"github.com/go-rod/rod"
)

const (
	queryNodesJS = `(sel) => Array.from(document.querySelectorAll(sel)).map((el) => {
		const attrs = {};
		for (const a of el.attributes) attrs[a.name.toLowerCase()] = a.value;
		return { attrs: attrs, text: el.textContent || "" };
	})`

	titleJS = `() => document.title || ""`

	bodyTextJS = `() => document.body ? (document.body.innerText || "") : ""`

	globalJSONJS = `(name) => {
		try {
			const v = window[name];
			if (v === undefined || v === null) return null;
			return JSON.stringify(v);
		} catch (e) {
			return null;
		}
	}`
)

// RodDocument 基于go-rod页面的Document实现
// 生命周期跟随所属会话,会话释放后不可再用
type RodDocument struct {
	page    *rod.Page
	pageURL string
}

// NewRodDocument 包装已完成导航的页面
func NewRodDocument(page *rod.Page, pageURL string) *RodDocument {
	if info, err := page.Info(); err == nil && info.URL != "" {
		pageURL = info.URL
	}
	return &RodDocument{page: page, pageURL: pageURL}
}

// PageURL 导航后的最终URL
func (d *RodDocument) PageURL() string {
	return d.pageURL
}

// Title document.title
func (d *RodDocument) Title() (string, error) {
	res, err := d.page.Eval(titleJS)
	if err != nil {
		return "", fmt.Errorf("读取标题失败: %w", err)
	}
	return res.Value.Str(), nil
}

// Query 在页面中执行querySelectorAll
func (d *RodDocument) Query(selector string) ([]Node, error) {
	res, err := d.page.Eval(queryNodesJS, selector)
	if err != nil {
		return nil, fmt.Errorf("查询 %q 失败: %w", selector, err)
	}

	items := res.Value.Arr()
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		node := Node{
			Attrs: make(map[string]string),
			Text:  item.Get("text").Str(),
		}
		for key, value := range item.Get("attrs").Map() {
			node.Attrs[key] = value.Str()
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// BodyText document.body.innerText
func (d *RodDocument) BodyText() (string, error) {
	res, err := d.page.Eval(bodyTextJS)
	if err != nil {
		return "", fmt.Errorf("读取正文失败: %w", err)
	}
	return res.Value.Str(), nil
}

// HTML 当前DOM序列化结果
func (d *RodDocument) HTML() (string, error) {
	return d.page.HTML()
}

// EvalGlobal JSON.stringify(window[name])
func (d *RodDocument) EvalGlobal(name string) (string, bool, error) {
	res, err := d.page.Eval(globalJSONJS, name)
	if err != nil {
		return "", false, fmt.Errorf("读取全局变量 %s 失败: %w", name, err)
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}
