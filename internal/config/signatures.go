package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RecoveryAshes/SeoScan/internal/models"
)

// VendorTable 追踪厂商签名表
// 进程启动时构建一次后只读,所有访问器返回副本
type VendorTable struct {
	vendors    []string
	signatures map[string][]string
}

// defaultVendorSignatures 内置厂商签名
var defaultVendorSignatures = map[string][]string{
	"lotame":    {"lotame.com", "crwdcntrl.net", "lotame"},
	"chartbeat": {"chartbeat.com", "chartbeat.net", "chartbeat"},
	"izooto":    {"izooto.com", "izooto"},
	"vdo_io":    {"vdo.ai"},
}

// defaultUserAgents 内置的桌面浏览器UA,按顺序轮换
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:108.0) Gecko/20100101 Firefox/108.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
}

// DefaultUserAgents 返回内置UA列表的副本
func DefaultUserAgents() []string {
	return append([]string(nil), defaultUserAgents...)
}

// DefaultVendorTable 内置签名表
func DefaultVendorTable() VendorTable {
	table, _ := NewVendorTable(nil)
	return table
}

// NewVendorTable 以内置签名为基础构建签名表
// overrides中的厂商整体替换同名内置项,新厂商追加到表中
// 厂商名会成为结果字段,不能与已有字段或表头重名
func NewVendorTable(overrides map[string][]string) (VendorTable, error) {
	merged := make(map[string][]string, len(defaultVendorSignatures)+len(overrides))
	for vendor, sigs := range defaultVendorSignatures {
		merged[vendor] = sigs
	}

	for vendor, sigs := range overrides {
		name := strings.ToLower(strings.TrimSpace(vendor))
		if name == "" {
			return VendorTable{}, fmt.Errorf("厂商名称不能为空")
		}
		if models.IsReservedVendorName(name) {
			return VendorTable{}, fmt.Errorf("厂商名称 %s 与报告字段冲突", name)
		}
		cleaned := make([]string, 0, len(sigs))
		for _, sig := range sigs {
			if sig = strings.ToLower(strings.TrimSpace(sig)); sig != "" {
				cleaned = append(cleaned, sig)
			}
		}
		if len(cleaned) == 0 {
			return VendorTable{}, fmt.Errorf("厂商 %s 至少需要一个签名", name)
		}
		merged[name] = cleaned
	}

	table := VendorTable{
		vendors:    make([]string, 0, len(merged)),
		signatures: make(map[string][]string, len(merged)),
	}
	for vendor, sigs := range merged {
		table.vendors = append(table.vendors, vendor)
		table.signatures[vendor] = append([]string(nil), sigs...)
	}
	sort.Strings(table.vendors)

	return table, nil
}

// Vendors 按名称排序的厂商列表
func (t VendorTable) Vendors() []string {
	return append([]string(nil), t.vendors...)
}

// Signatures 某厂商的签名
func (t VendorTable) Signatures(vendor string) []string {
	return append([]string(nil), t.signatures[vendor]...)
}

// Match 返回文本命中的厂商,大小写不敏感
func (t VendorTable) Match(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var hits []string
	for _, vendor := range t.vendors {
		for _, sig := range t.signatures[vendor] {
			if strings.Contains(lower, sig) {
				hits = append(hits, vendor)
				break
			}
		}
	}
	return hits
}
