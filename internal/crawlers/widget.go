package crawlers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// Taboola挂件分类
const (
	WidgetTypeFeed     = "Infinite Position (Feed)"
	WidgetTypeStandard = "Single Image (Standard)"
	WidgetUnknownMode  = "Unknown Mode: "

	NoWidgetFound        = "No Taboola Widget Found"
	WidgetErrorPrefix    = "Error checking Taboola: "
	WidgetScriptPresent  = "Script Present (Unclassified)"
	widgetFeedRboxLimit  = 5
	widgetDescriptorSep  = "; "
	widgetContainerLabel = "Container: "
)

var widgetModePattern = regexp.MustCompile(`mode\s*[:=]\s*['"]?([^,'"\s}]+)['"]?`)

// WidgetDetector 第三方推荐挂件检测器
type WidgetDetector struct{}

// NewWidgetDetector 创建检测器
func NewWidgetDetector() *WidgetDetector {
	return &WidgetDetector{}
}

// Detect 检测HTML中的挂件,返回去重后的描述列表
// 没有发现时返回单个NoWidgetFound,解析失败时返回单个错误描述
func (d *WidgetDetector) Detect(markup, pageURL string) (descriptors []string) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("挂件检测失败 [%s]: %v", pageURL, r)
			descriptors = []string{fmt.Sprintf("%s%v", WidgetErrorPrefix, r)}
		}
	}()

	if strings.TrimSpace(markup) == "" {
		utils.Warnf("页面HTML为空,跳过挂件检测: %s", pageURL)
		return []string{NoWidgetFound}
	}

	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return []string{WidgetErrorPrefix + firstLine(err.Error())}
	}
	doc := goquery.NewDocumentFromNode(root)

	found := newOrderedSet()

	// (a) 显式的data-taboola-mode属性
	doc.Find("div[data-taboola-mode]").Each(func(_ int, s *goquery.Selection) {
		mode := strings.TrimSpace(s.AttrOr("data-taboola-mode", ""))
		if mode == "" {
			return
		}
		found.add(fmt.Sprintf("Attribute: %s (%s)", mode, classifyWidgetMode(mode)))
	})

	// (b) 脚本中的mode配置
	var scriptText []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(text, "_taboola.push") || strings.Contains(text, "window._taboola") {
			scriptText = append(scriptText, text)
		}
	})
	joined := strings.Join(scriptText, " ")
	for _, match := range widgetModePattern.FindAllStringSubmatch(joined, -1) {
		mode := strings.TrimSpace(match[1])
		found.add(fmt.Sprintf("Script: %s (%s)", mode, classifyWidgetMode(mode)))
	}

	// (c) 没有显式模式时按容器特征推断
	if found.size() == 0 {
		containers := doc.Find(`[id*="taboola"], [class*="taboola"]`)
		if containers.Length() > 0 {
			if isFeedContainer(containers) {
				found.add(widgetContainerLabel + WidgetTypeFeed)
			} else {
				found.add(widgetContainerLabel + WidgetTypeStandard)
			}
		}
	}

	// (d) 只有脚本存在
	if found.size() == 0 {
		if doc.Find(`script[src*="taboola.com"]`).Length() > 0 || joined != "" {
			found.add(WidgetScriptPresent)
		}
	}

	if found.size() == 0 {
		return []string{NoWidgetFound}
	}
	utils.Debugf("检测到挂件 [%s]: %s", pageURL, strings.Join(found.items, widgetDescriptorSep))
	return found.items
}

// JoinDescriptors 报告列的取值
func JoinDescriptors(descriptors []string) string {
	return strings.Join(descriptors, widgetDescriptorSep)
}

// isFeedContainer 容器是否呈现信息流特征
func isFeedContainer(containers *goquery.Selection) bool {
	feed := false
	containers.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if s.HasClass("taboola-feed") ||
			strings.Contains(strings.ToLower(s.AttrOr("id", "")), "feed") ||
			strings.Contains(style, "height:auto") ||
			s.Find("div.trc_rbox_outer").Length() > widgetFeedRboxLimit {
			feed = true
			return false
		}
		return true
	})
	return feed
}

// classifyWidgetMode 按模式名归类
func classifyWidgetMode(mode string) string {
	lower := strings.ToLower(mode)
	switch {
	case strings.Contains(lower, "feed"), strings.Contains(lower, "infinity"):
		return WidgetTypeFeed
	case strings.Contains(lower, "thumbnails"), strings.Contains(lower, "grid"),
		strings.Contains(lower, "standard"), strings.Contains(lower, "text-links"),
		strings.Contains(lower, "single"):
		return WidgetTypeStandard
	default:
		return WidgetUnknownMode + mode
	}
}

// orderedSet 保序去重
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(item string) {
	if s.seen[item] {
		return
	}
	s.seen[item] = true
	s.items = append(s.items, item)
}

func (s *orderedSet) size() int {
	return len(s.items)
}
