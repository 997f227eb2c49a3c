package models

import (
	"sort"
	"strings"
)

// Column 报告列定义
type Column struct {
	Name string // 表头名称
	Key  string // 对应的结果字段
}

// 报告专用列键(不来自提取结果)
const (
	ColumnKeyURL = "url"
)

// DefaultVendors 内置追踪厂商,报告中按此顺序排列
var DefaultVendors = []string{"lotame", "chartbeat", "izooto", "vdo_io"}

// vendorColumnNames 内置厂商的表头名称
var vendorColumnNames = map[string]string{
	"lotame":    "Lotame",
	"chartbeat": "Chartbeat",
	"izooto":    "Izooto",
	"vdo_io":    "VDO.AI",
}

// leadingColumns 厂商列之前的列
var leadingColumns = []Column{
	{"URL", ColumnKeyURL},
	{"TID (GA4)", FieldTID},
	{"COMSCORE", FieldComscore},
	{"PPID", FieldPPID},
	{"Title", FieldTitle},
	{"Description", FieldDescription},
	{"Keywords", FieldKeywords},
	{"H1 Count", FieldH1Count},
	{"Canonical URL", FieldCanonical},
	{"Canonical Validation", FieldCanonicalValidation},
	{"Is AMP Page", FieldIsAmp},
	{"AMP URL", FieldAmpURL},
}

// trailingColumns 厂商列之后的列
var trailingColumns = []Column{
	{"Schema Present", FieldSchemaPresent},
	{"Schema Types", FieldSchemaTypes},
	{"Schema Error(s)", FieldSchemaError},
	{"Status Code", FieldStatusCode},
	{"OG:Title", FieldOGTitle},
	{"OG:Description", FieldOGDescription},
	{"OG:Image", FieldOGImage},
	{"OG:URL", FieldOGURL},
	{"OG:Type", FieldOGType},
	{"OG:SiteName", FieldOGSiteName},
	{"Twitter:Card", FieldTwitterCard},
	{"Twitter:Site", FieldTwitterSite},
	{"Twitter:Creator", FieldTwitterCreator},
	{"Twitter:Title", FieldTwitterTitle},
	{"Twitter:Description", FieldTwitterDescription},
	{"Twitter:Image", FieldTwitterImage},
	{"HTML Lang", FieldHTMLLang},
	{"Viewport", FieldViewport},
	{"Meta Robots", FieldMetaRobots},
	{"Publisher Link", FieldPublisherLink},
	{"Hreflang Links", FieldHreflangLinks},
	{"Hreflang Count", FieldHreflangCount},
	{"Internal Links", FieldInternalLinks},
	{"External Links", FieldExternalLinks},
	{"Body Word Count", FieldBodyWordCount},
	{"Favicon URL", FieldFaviconURL},
	{"Taboola Widget", FieldTaboolaWidget},
	{"Dynamic JSON Variables", FieldDynamicJSONNames},
	{"AMP Validation", FieldAmpValidation},
	{"AMP Validation Errors", FieldAmpValidationErrors},
	{"Processing Error", FieldProcessingError},
}

// ReportColumns 只含内置厂商时的列顺序
var ReportColumns = Columns(DefaultVendors)

// Columns 按厂商列表生成报告列,写表头和写数据行共用
// 内置厂商保持固定顺序,其余厂商按名称排序追加在后面
func Columns(vendors []string) []Column {
	builtin := make(map[string]bool, len(DefaultVendors))
	for _, vendor := range DefaultVendors {
		builtin[vendor] = true
	}

	present := make(map[string]bool, len(vendors))
	var extra []string
	for _, vendor := range vendors {
		if present[vendor] {
			continue
		}
		present[vendor] = true
		if !builtin[vendor] {
			extra = append(extra, vendor)
		}
	}
	sort.Strings(extra)

	cols := make([]Column, 0, len(leadingColumns)+len(vendors)+len(trailingColumns))
	cols = append(cols, leadingColumns...)
	for _, vendor := range DefaultVendors {
		if present[vendor] {
			cols = append(cols, Column{vendorColumnNames[vendor], vendor})
		}
	}
	for _, vendor := range extra {
		cols = append(cols, Column{VendorColumnName(vendor), vendor})
	}
	return append(cols, trailingColumns...)
}

// VendorColumnName 厂商列的表头名称
func VendorColumnName(vendor string) string {
	if name, ok := vendorColumnNames[vendor]; ok {
		return name
	}
	return "Vendor:" + vendor
}

// IsReservedVendorName 厂商名是否与结果字段或表头冲突
func IsReservedVendorName(vendor string) bool {
	name := strings.ToLower(strings.TrimSpace(vendor))
	if name == ColumnKeyURL {
		return true
	}
	for _, key := range KnownFields {
		if name == key {
			return true
		}
	}
	for _, cols := range [][]Column{leadingColumns, trailingColumns} {
		for _, col := range cols {
			if name == strings.ToLower(col.Name) {
				return true
			}
		}
	}
	return false
}

// HeaderNames 返回给定列的表头
func HeaderNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

// ColumnNames 返回表头
func ColumnNames() []string {
	return HeaderNames(ReportColumns)
}

// ColumnIndex 按名称查找列序号,不存在返回-1
func ColumnIndex(name string) int {
	for i, col := range ReportColumns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// columnKey 按表头名称在给定列中查找字段键
func columnKey(cols []Column, name string) (string, bool) {
	for _, col := range cols {
		if col.Name == name {
			return col.Key, true
		}
	}
	return "", false
}
