package crawlers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// StatusNavigationError 没有拿到主文档响应时的状态码列取值
const StatusNavigationError = "N/A (Navigation Error)"

// DefaultGlobalVariables 动态状态探测的全局变量
var DefaultGlobalVariables = []string{
	"__INITIAL_STATE__",
	"__PRELOADED_STATE__",
	"_INIT_DATA_",
	"ytInitialData",
	"APP_DATA",
	"pageData",
}

// faviconRelations 图标link的查找顺序
var faviconRelations = []string{"icon", "shortcut icon", "apple-touch-icon", "apple-touch-icon-precomposed"}

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// PageResponse 主文档导航响应
type PageResponse struct {
	Received   bool // 是否收到响应
	StatusCode int  // HTTP状态码
}

// StatusText 状态码列的取值
func (r PageResponse) StatusText() string {
	if !r.Received {
		return StatusNavigationError
	}
	return strconv.Itoa(r.StatusCode)
}

// MetadataExtractor 页面元数据提取器
// 每个字段独立提取,单个字段失败只会让该字段变为NotFound
type MetadataExtractor struct {
	classifier *Classifier
	globals    []string
}

// NewMetadataExtractor 创建提取器
func NewMetadataExtractor(classifier *Classifier) *MetadataExtractor {
	return &MetadataExtractor{
		classifier: classifier,
		globals:    DefaultGlobalVariables,
	}
}

// fieldSet 一次提取过程中的字段收集器
type fieldSet struct {
	pageURL string
	values  map[string]string
}

// extractField 提取单个字段,错误/panic/空值都落为fallback
func (f *fieldSet) extractField(key, fallback string, fn func() (string, error)) {
	value, err := safeCall(fn)
	if err != nil {
		utils.Debugf("字段提取失败 [%s] %s: %v", f.pageURL, key, err)
		f.values[key] = fallback
		return
	}
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	f.values[key] = value
}

// extractFields 一次提取多个关联字段,失败时全部落为fallback
func (f *fieldSet) extractFields(fallbacks map[string]string, fn func() (map[string]string, error)) {
	values, err := safeCall(fn)
	if err != nil {
		utils.Debugf("字段组提取失败 [%s]: %v", f.pageURL, err)
	}
	for key, fallback := range fallbacks {
		value, ok := values[key]
		if err != nil || !ok || strings.TrimSpace(value) == "" {
			value = fallback
		}
		f.values[key] = value
	}
}

func safeCall[T any](fn func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Extract 从页面生成提取结果
// acc为本次会话的信号累加器,页面中的脚本和AMP组件会在这里并入
func (e *MetadataExtractor) Extract(doc Document, resp PageResponse, acc *SignalAccumulator) (models.ExtractionResult, models.TrackingSignals) {
	pageURL := doc.PageURL()
	f := &fieldSet{pageURL: pageURL, values: make(map[string]string)}

	f.values[models.FieldStatusCode] = resp.StatusText()

	f.extractField(models.FieldTitle, models.NotFound, func() (string, error) {
		title, err := doc.Title()
		if err == nil && strings.TrimSpace(title) != "" {
			return title, nil
		}
		return firstAttr(doc, `meta[property="og:title"]`, "content")
	})

	for key, name := range map[string]string{
		models.FieldDescription: "description",
		models.FieldKeywords:    "keywords",
		models.FieldViewport:    "viewport",
		models.FieldMetaRobots:  "robots",
	} {
		selector := fmt.Sprintf(`meta[name="%s"]`, name)
		f.extractField(key, models.NotFound, func() (string, error) {
			return firstAttr(doc, selector, "content")
		})
	}

	f.extractField(models.FieldCanonical, models.NotFound, func() (string, error) {
		return firstAttr(doc, `link[rel="canonical"]`, "href")
	})
	f.extractField(models.FieldAmpURL, models.NotFound, func() (string, error) {
		return firstAttr(doc, `link[rel="amphtml"]`, "href")
	})
	f.extractField(models.FieldIsAmp, models.No, func() (string, error) {
		if f.values[models.FieldAmpURL] != models.NotFound {
			return models.Yes, nil
		}
		roots, err := doc.Query("html")
		if err != nil {
			return "", err
		}
		for _, root := range roots {
			if root.HasAttr("amp") || root.HasAttr("⚡") {
				return models.Yes, nil
			}
		}
		return models.No, nil
	})

	f.extractField(models.FieldH1Count, "0", func() (string, error) {
		nodes, err := doc.Query("h1")
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(nodes)), nil
	})

	for key, property := range map[string]string{
		models.FieldOGTitle:       "og:title",
		models.FieldOGDescription: "og:description",
		models.FieldOGImage:       "og:image",
		models.FieldOGURL:         "og:url",
		models.FieldOGType:        "og:type",
		models.FieldOGSiteName:    "og:site_name",
	} {
		selector := fmt.Sprintf(`meta[property="%s"]`, property)
		f.extractField(key, models.NotFound, func() (string, error) {
			return firstAttr(doc, selector, "content")
		})
	}

	for key, name := range map[string]string{
		models.FieldTwitterCard:        "twitter:card",
		models.FieldTwitterSite:        "twitter:site",
		models.FieldTwitterCreator:     "twitter:creator",
		models.FieldTwitterTitle:       "twitter:title",
		models.FieldTwitterDescription: "twitter:description",
		models.FieldTwitterImage:       "twitter:image",
	} {
		selector := fmt.Sprintf(`meta[name="%s"]`, name)
		f.extractField(key, models.NotFound, func() (string, error) {
			return firstAttr(doc, selector, "content")
		})
	}

	f.extractFields(map[string]string{
		models.FieldSchemaPresent: models.No,
		models.FieldSchemaTypes:   models.NotFound,
		models.FieldSchemaError:   models.NoError,
	}, func() (map[string]string, error) {
		return extractSchema(doc)
	})

	f.extractFields(map[string]string{
		models.FieldDynamicJSONDetected: models.No,
		models.FieldDynamicJSONNames:    models.NotFound,
		models.FieldDynamicTitle:        models.NotFound,
		models.FieldDynamicDescription:  models.NotFound,
	}, func() (map[string]string, error) {
		return e.probeGlobals(doc), nil
	})
	if f.values[models.FieldTitle] == models.NotFound {
		f.values[models.FieldTitle] = f.values[models.FieldDynamicTitle]
	}
	if f.values[models.FieldDescription] == models.NotFound {
		f.values[models.FieldDescription] = f.values[models.FieldDynamicDescription]
	}

	f.extractField(models.FieldHTMLLang, models.NotFound, func() (string, error) {
		return firstAttr(doc, "html[lang]", "lang")
	})
	f.extractField(models.FieldPublisherLink, models.NotFound, func() (string, error) {
		return firstAttr(doc, `link[rel="publisher"]`, "href")
	})
	f.extractField(models.FieldFaviconURL, models.NotFound, func() (string, error) {
		return faviconURL(doc, pageURL)
	})

	f.extractFields(map[string]string{
		models.FieldHreflangLinks: models.NotFound,
		models.FieldHreflangCount: "0",
	}, func() (map[string]string, error) {
		return extractHreflang(doc)
	})

	f.extractFields(map[string]string{
		models.FieldInternalLinks: "0",
		models.FieldExternalLinks: "0",
	}, func() (map[string]string, error) {
		return countLinks(doc, pageURL)
	})

	f.extractField(models.FieldBodyWordCount, "0", func() (string, error) {
		text, err := doc.BodyText()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(wordPattern.FindAllStringIndex(text, -1))), nil
	})

	// 追踪信号: 网络请求已在会话中并入,这里补充DOM输入
	var snapshot models.TrackingSnapshot
	if acc != nil {
		if _, err := safeCall(func() (struct{}, error) {
			e.classifier.CollectDOM(doc, acc)
			return struct{}{}, nil
		}); err != nil {
			utils.Debugf("DOM追踪检测失败 [%s]: %v", pageURL, err)
		}
		snapshot = acc.Snapshot()
	}
	for key, value := range snapshot.Fields() {
		f.values[key] = value
	}

	return models.NewExtractionResult(f.values), snapshot.Vendors
}

// firstAttr 第一个匹配元素的属性
func firstAttr(doc Document, selector, attr string) (string, error) {
	nodes, err := doc.Query(selector)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", nil
	}
	return nodes[0].Attr(attr), nil
}

// extractSchema 解析JSON-LD结构化数据
func extractSchema(doc Document) (map[string]string, error) {
	scripts, err := doc.Query(`script[type="application/ld+json"]`)
	if err != nil {
		return map[string]string{
			models.FieldSchemaPresent: models.No,
			models.FieldSchemaError:   "Query Error: " + firstLine(err.Error()),
		}, nil
	}

	var (
		types    []string
		seen     = make(map[string]bool)
		errorsSB strings.Builder
	)
	for i, script := range scripts {
		content := strings.TrimSpace(script.Text)
		if content == "" {
			continue
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			fmt.Fprintf(&errorsSB, "[Script %d JSON Syntax Error] %s; ", i+1, firstLine(err.Error()))
			continue
		}
		collectSchemaTypes(parsed, seen, &types)
	}

	result := map[string]string{
		models.FieldSchemaPresent: models.No,
		models.FieldSchemaTypes:   models.NotFound,
		models.FieldSchemaError:   models.NoError,
	}
	if len(types) > 0 {
		result[models.FieldSchemaPresent] = models.Yes
		result[models.FieldSchemaTypes] = strings.Join(types, ", ")
	}
	if errs := strings.TrimSpace(errorsSB.String()); errs != "" {
		result[models.FieldSchemaError] = errs
	}
	return result, nil
}

// collectSchemaTypes 递归收集@type,包括@graph下的节点
func collectSchemaTypes(value interface{}, seen map[string]bool, types *[]string) {
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] {
			seen[t] = true
			*types = append(*types, t)
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		switch t := v["@type"].(type) {
		case string:
			add(t)
		case []interface{}:
			for _, item := range t {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
		for key, child := range v {
			if key == "@type" {
				continue
			}
			collectSchemaTypes(child, seen, types)
		}
	case []interface{}:
		for _, item := range v {
			collectSchemaTypes(item, seen, types)
		}
	}
}

// probeGlobals 读取常见的前端状态全局变量
func (e *MetadataExtractor) probeGlobals(doc Document) map[string]string {
	var (
		names       []string
		title       string
		description string
	)

	for _, name := range e.globals {
		raw, ok, err := doc.EvalGlobal(name)
		if err != nil {
			utils.Debugf("读取全局变量失败 [%s] %s: %v", doc.PageURL(), name, err)
			continue
		}
		if !ok {
			continue
		}

		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			utils.Debugf("全局变量不是有效JSON [%s] %s: %v", doc.PageURL(), name, err)
			continue
		}
		names = append(names, name)

		obj, isObject := parsed.(map[string]interface{})
		if !isObject {
			continue
		}
		if s, ok := obj["title"].(string); ok && title == "" {
			title = s
		}
		if s, ok := obj["description"].(string); ok && description == "" {
			description = s
		}
	}

	result := map[string]string{
		models.FieldDynamicJSONDetected: models.No,
		models.FieldDynamicTitle:        title,
		models.FieldDynamicDescription:  description,
	}
	if len(names) > 0 {
		result[models.FieldDynamicJSONDetected] = models.Yes
		result[models.FieldDynamicJSONNames] = strings.Join(names, ", ")
	}
	return result
}

// faviconURL 按优先级查找图标,找不到时使用站点根目录的favicon.ico
func faviconURL(doc Document, pageURL string) (string, error) {
	var href string
	for _, rel := range faviconRelations {
		value, err := firstAttr(doc, fmt.Sprintf(`link[rel="%s"]`, rel), "href")
		if err != nil {
			return "", err
		}
		if value != "" {
			href = value
			break
		}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return href, nil
	}

	if href == "" {
		if base.Scheme == "" || base.Host == "" {
			return "", nil
		}
		return base.Scheme + "://" + base.Hostname() + "/favicon.ico", nil
	}

	if strings.HasPrefix(href, "http") || strings.HasPrefix(href, "//") {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href, nil
	}
	return base.ResolveReference(ref).String(), nil
}

// extractHreflang 收集 lang:href 对
func extractHreflang(doc Document) (map[string]string, error) {
	nodes, err := doc.Query(`link[rel="alternate"][hreflang]`)
	if err != nil {
		return nil, err
	}

	pairs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if !node.HasAttr("hreflang") || !node.HasAttr("href") {
			continue
		}
		pairs = append(pairs, node.Attr("hreflang")+":"+node.Attr("href"))
	}

	result := map[string]string{
		models.FieldHreflangLinks: models.NotFound,
		models.FieldHreflangCount: strconv.Itoa(len(pairs)),
	}
	if len(pairs) > 0 {
		result[models.FieldHreflangLinks] = strings.Join(pairs, "; ")
	}
	return result, nil
}

// countLinks 统计站内外链接
// 无法解析的href: 不以http开头视为站内,否则视为站外
func countLinks(doc Document, pageURL string) (map[string]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("页面URL无效: %w", err)
	}
	anchors, err := doc.Query("a[href]")
	if err != nil {
		return nil, err
	}

	internal, external := 0, 0
	for _, anchor := range anchors {
		href := anchor.Attr("href")
		if !isCountableHref(href) {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			if strings.HasPrefix(href, "http") {
				external++
			} else {
				internal++
			}
			continue
		}

		resolved := base.ResolveReference(ref)
		if strings.EqualFold(base.Hostname(), resolved.Hostname()) {
			internal++
		} else {
			external++
		}
	}

	return map[string]string{
		models.FieldInternalLinks: strconv.Itoa(internal),
		models.FieldExternalLinks: strconv.Itoa(external),
	}, nil
}

func isCountableHref(href string) bool {
	if href == "" {
		return false
	}
	return !strings.HasPrefix(href, "#") &&
		!strings.HasPrefix(href, "javascript:") &&
		!strings.HasPrefix(href, "mailto:")
}

// firstLine 只取错误信息的第一行
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
