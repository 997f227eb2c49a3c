package crawlers

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/RecoveryAshes/SeoScan/internal/config"
	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// 分析端点特征
const (
	gaCollectFragment    = "/g/collect"
	gaCollectHost        = "google-analytics.com/g/collect"
	gtagScriptFragment   = "gtag/js?id=G-"
	comscoreHost         = "scorecardresearch.com"
	comscoreAmpEndpoint  = "/p"
	comscoreBeaconSuffix = "/b"

	paramTID    = "tid"
	paramPPIDEP = "ep.PPID_es"
	paramPPIDUP = "up.PPID"
	paramGtagID = "id"
	paramC1     = "c1"
	paramC2     = "c2"
)

// ExtractFromRequest 从单个请求URL提取结构化追踪参数
// GA4 collect请求返回tid/ppid,gtag脚本返回tid,Comscore信标返回c1/c2
// 不匹配任何端点时返回空map
func ExtractFromRequest(requestURL string) map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(requestURL) == "" {
		return result
	}

	if isGACollect(requestURL) {
		params := ParseQuery(requestURL)
		if tid, _ := params.Get(paramTID); tid != "" {
			result[paramTID] = tid
		}
		ppid, ok := params.Get(paramPPIDEP)
		if !ok {
			ppid, _ = params.Get(paramPPIDUP)
		}
		if ppid != "" {
			result["ppid"] = ppid
		}
	}

	if isGtagScript(requestURL) {
		if id, _ := ParseQuery(requestURL).Get(paramGtagID); id != "" {
			if _, found := result[paramTID]; !found {
				result[paramTID] = id
			}
		}
	}

	if isComscoreBeacon(requestURL) {
		params := ParseQuery(requestURL)
		if c1, _ := params.Get(paramC1); c1 != "" {
			result[paramC1] = c1
		}
		if c2, _ := params.Get(paramC2); c2 != "" {
			result[paramC2] = c2
		}
	}

	return result
}

func isGACollect(u string) bool {
	return strings.Contains(u, gaCollectFragment) || strings.Contains(u, gaCollectHost)
}

func isGtagScript(u string) bool {
	return strings.Contains(u, gtagScriptFragment)
}

func isComscoreBeacon(u string) bool {
	return strings.Contains(u, comscoreHost+comscoreAmpEndpoint) ||
		strings.Contains(u, comscoreHost+comscoreBeaconSuffix)
}

// Classifier 追踪信号分类器
// 签名表在构造时注入,自身无状态,可在多个会话间共享
type Classifier struct {
	vendors config.VendorTable
}

// NewClassifier 创建分类器
func NewClassifier(vendors config.VendorTable) *Classifier {
	return &Classifier{vendors: vendors}
}

// Vendors 分类器使用的厂商列表
func (c *Classifier) Vendors() []string {
	return c.vendors.Vendors()
}

// NewAccumulator 为一次页面会话创建累加器
func (c *Classifier) NewAccumulator() *SignalAccumulator {
	signals := make(models.TrackingSignals)
	for _, vendor := range c.vendors.Vendors() {
		signals[vendor] = false
	}
	return &SignalAccumulator{
		vendors: c.vendors,
		signals: signals,
		tidSeen: make(map[string]bool),
	}
}

// CollectDOM 把页面中的脚本和AMP组件送入累加器
// 单个选择器失败只记录日志,不影响其它输入
func (c *Classifier) CollectDOM(doc Document, acc *SignalAccumulator) {
	if scripts, err := doc.Query("script"); err != nil {
		utils.Debugf("读取script标签失败 [%s]: %v", doc.PageURL(), err)
	} else {
		for _, script := range scripts {
			acc.ObserveScriptSource(script.Attr("src"))
			acc.ObserveText(script.Text)
		}
	}

	if analytics, err := doc.Query("amp-analytics"); err != nil {
		utils.Debugf("读取amp-analytics失败 [%s]: %v", doc.PageURL(), err)
	} else {
		for _, node := range analytics {
			acc.ObserveText(node.Attr("type"))
			acc.ObserveText(node.Attr("src"))
			for _, value := range ampConfigStrings(node.Attr("config")) {
				acc.ObserveText(value)
			}
		}
	}

	for _, selector := range []string{"amp-pixel[src]", "amp-iframe[src]"} {
		nodes, err := doc.Query(selector)
		if err != nil {
			utils.Debugf("读取%s失败 [%s]: %v", selector, doc.PageURL(), err)
			continue
		}
		for _, node := range nodes {
			acc.ObserveText(node.Attr("src"))
		}
	}
}

// ampConfigStrings 展开amp-analytics的config属性
// 内联JSON递归取出全部字符串值,非JSON时(通常是远程配置地址)原样返回
func ampConfigStrings(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return []string{raw}
	}

	var out []string
	collectJSONStrings(parsed, &out)
	return out
}

func collectJSONStrings(value interface{}, out *[]string) {
	switch v := value.(type) {
	case string:
		*out = append(*out, v)
	case map[string]interface{}:
		for _, child := range v {
			collectJSONStrings(child, out)
		}
	case []interface{}:
		for _, child := range v {
			collectJSONStrings(child, out)
		}
	}
}

// SignalAccumulator 单个会话的追踪信号累加器
// rod的事件回调运行在独立goroutine上,所有方法均加锁
// 会话结束后通过Snapshot读取一次
type SignalAccumulator struct {
	mu sync.Mutex

	vendors config.VendorTable
	signals models.TrackingSignals

	tids    []string
	tidSeen map[string]bool
	ppid    string

	comscore string
	requests int
}

// ObserveRequest 处理一条网络请求
func (a *SignalAccumulator) ObserveRequest(requestURL string) {
	data := ExtractFromRequest(requestURL)
	hits := a.vendors.Match(requestURL)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests++
	a.markLocked(hits)

	if tid := data[paramTID]; tid != "" {
		if isGACollect(requestURL) || len(a.tids) == 0 {
			a.addTIDLocked(tid)
		}
	}
	if ppid := data["ppid"]; ppid != "" {
		a.ppid = ppid
	}

	c1, hasC1 := data[paramC1]
	c2, hasC2 := data[paramC2]
	if hasC1 || hasC2 {
		if !hasC1 {
			c1 = models.NA
		}
		if !hasC2 {
			c2 = models.NA
		}
		a.comscore = fmt.Sprintf("c1=%s, c2=%s", c1, c2)
	}
}

// ObserveScriptSource 处理script的src
// gtag脚本的id只在还没有tid时作为后备
func (a *SignalAccumulator) ObserveScriptSource(src string) {
	if src == "" {
		return
	}
	hits := a.vendors.Match(src)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.markLocked(hits)
	if isGtagScript(src) && len(a.tids) == 0 {
		if id, _ := ParseQuery(src).Get(paramGtagID); id != "" {
			a.addTIDLocked(id)
		}
	}
}

// ObserveText 只做厂商签名匹配
func (a *SignalAccumulator) ObserveText(text string) {
	if text == "" {
		return
	}
	hits := a.vendors.Match(text)
	if len(hits) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.markLocked(hits)
}

func (a *SignalAccumulator) markLocked(vendors []string) {
	for _, vendor := range vendors {
		a.signals.Mark(vendor)
	}
}

func (a *SignalAccumulator) addTIDLocked(tid string) {
	if a.tidSeen[tid] {
		return
	}
	a.tidSeen[tid] = true
	a.tids = append(a.tids, tid)
}

// Requests 已观察到的请求数
func (a *SignalAccumulator) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// Snapshot 返回当前累计结果的副本
func (a *SignalAccumulator) Snapshot() models.TrackingSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return models.TrackingSnapshot{
		Vendors:  a.signals.Clone(),
		TIDs:     append([]string(nil), a.tids...),
		PPID:     a.ppid,
		Comscore: a.comscore,
	}
}
