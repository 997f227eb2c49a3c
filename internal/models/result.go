package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// 字段哨兵值
const (
	NotFound = "Not Found"
	Yes      = "Yes"
	No       = "No"
	NoError  = "No Error"
	NA       = "N/A"
)

// 提取结果字段名
const (
	FieldStatusCode          = "status_code"
	FieldTitle               = "title"
	FieldDescription         = "description"
	FieldKeywords            = "keywords"
	FieldViewport            = "viewport"
	FieldMetaRobots          = "meta_robots"
	FieldCanonical           = "canonical"
	FieldCanonicalValidation = "canonical_validation"
	FieldAmpURL              = "amp_url"
	FieldIsAmp               = "is_amp"
	FieldH1Count             = "h1_count"

	FieldOGTitle       = "og_title"
	FieldOGDescription = "og_description"
	FieldOGImage       = "og_image"
	FieldOGURL         = "og_url"
	FieldOGType        = "og_type"
	FieldOGSiteName    = "og_site_name"

	FieldTwitterCard        = "twitter_card"
	FieldTwitterSite        = "twitter_site"
	FieldTwitterCreator     = "twitter_creator"
	FieldTwitterTitle       = "twitter_title"
	FieldTwitterDescription = "twitter_description"
	FieldTwitterImage       = "twitter_image"

	FieldSchemaPresent = "schema_present"
	FieldSchemaTypes   = "schema_types"
	FieldSchemaError   = "schema_error"

	FieldDynamicJSONDetected = "dynamic_json_variables_detected"
	FieldDynamicJSONNames    = "dynamic_json_variable_names"
	FieldDynamicTitle        = "dynamic_title"
	FieldDynamicDescription  = "dynamic_description"

	FieldHTMLLang      = "html_lang"
	FieldPublisherLink = "publisher_link"
	FieldFaviconURL    = "favicon_url"
	FieldHreflangLinks = "hreflang_links"
	FieldHreflangCount = "hreflang_count"
	FieldInternalLinks = "internal_links_count"
	FieldExternalLinks = "external_links_count"
	FieldBodyWordCount = "body_word_count"

	FieldTID      = "tid"
	FieldPPID     = "ppid"
	FieldComscore = "comscore"

	FieldTaboolaWidget = "taboola_widget"

	FieldAmpValidation       = "amp_validation"
	FieldAmpValidationErrors = "amp_validation_errors"

	FieldProcessingError = "processing_error"
)

// KnownFields 所有已知字段,构造结果时全部以NotFound填充
var KnownFields = []string{
	FieldStatusCode, FieldTitle, FieldDescription, FieldKeywords, FieldViewport, FieldMetaRobots,
	FieldCanonical, FieldCanonicalValidation, FieldAmpURL, FieldIsAmp, FieldH1Count,
	FieldOGTitle, FieldOGDescription, FieldOGImage, FieldOGURL, FieldOGType, FieldOGSiteName,
	FieldTwitterCard, FieldTwitterSite, FieldTwitterCreator, FieldTwitterTitle, FieldTwitterDescription, FieldTwitterImage,
	FieldSchemaPresent, FieldSchemaTypes, FieldSchemaError,
	FieldDynamicJSONDetected, FieldDynamicJSONNames, FieldDynamicTitle, FieldDynamicDescription,
	FieldHTMLLang, FieldPublisherLink, FieldFaviconURL, FieldHreflangLinks, FieldHreflangCount,
	FieldInternalLinks, FieldExternalLinks, FieldBodyWordCount,
	FieldTID, FieldPPID, FieldComscore, FieldTaboolaWidget,
	FieldAmpValidation, FieldAmpValidationErrors,
	FieldProcessingError,
}

// ExtractionResult 单个页面的提取结果
// 不可变: 修改操作均返回新副本; 任何字段都不会为空字符串或缺失
type ExtractionResult struct {
	fields map[string]string
}

// NewExtractionResult 以NotFound初始化所有已知字段,再覆盖传入值
func NewExtractionResult(values map[string]string) ExtractionResult {
	fields := make(map[string]string, len(KnownFields)+len(values))
	for _, key := range KnownFields {
		fields[key] = NotFound
	}
	for key, value := range values {
		fields[key] = SafeValue(value)
	}
	return ExtractionResult{fields: fields}
}

// SafeValue 空白值统一替换为NotFound
func SafeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return NotFound
	}
	return strings.TrimSpace(value)
}

// Get 获取字段值,未知字段返回NotFound
func (r ExtractionResult) Get(key string) string {
	if value, ok := r.fields[key]; ok {
		return value
	}
	return NotFound
}

// Has 字段是否取得了非哨兵值
func (r ExtractionResult) Has(key string) bool {
	return r.Get(key) != NotFound
}

// With 返回设置了单个字段的新结果
func (r ExtractionResult) With(key, value string) ExtractionResult {
	return r.Merge(map[string]string{key: value})
}

// Merge 返回合并了多个字段的新结果
func (r ExtractionResult) Merge(values map[string]string) ExtractionResult {
	fields := r.Fields()
	for key, value := range values {
		fields[key] = value
	}
	return NewExtractionResult(fields)
}

// Fields 返回所有字段的副本
func (r ExtractionResult) Fields() map[string]string {
	fields := make(map[string]string, len(r.fields))
	for key, value := range r.fields {
		fields[key] = value
	}
	if len(fields) == 0 {
		for _, key := range KnownFields {
			fields[key] = NotFound
		}
	}
	return fields
}

// Keys 按字母序返回字段名
func (r ExtractionResult) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for key := range r.Fields() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON 序列化为字段对象
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// UnmarshalJSON 反序列化,缺失字段以NotFound补齐
func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*r = NewExtractionResult(values)
	return nil
}
