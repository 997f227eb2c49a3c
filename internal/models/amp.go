package models

import (
	"strings"
)

// AmpStatus AMP校验状态
type AmpStatus string

const (
	AmpPass         AmpStatus = "PASS"
	AmpFail         AmpStatus = "FAIL"
	AmpAPIError     AmpStatus = "API_ERROR"
	AmpURLError     AmpStatus = "URL_ERROR"
	AmpNotValidated AmpStatus = "NOT_VALIDATED"
)

// AmpValidationResult AMP校验结果
type AmpValidationResult struct {
	URL      string    `json:"url"`
	Status   AmpStatus `json:"status"`
	Messages []string  `json:"messages,omitempty"`
	Summary  string    `json:"summary"`
}

// NotValidated 未执行校验时的结果
func NotValidated(url string) AmpValidationResult {
	return AmpValidationResult{
		URL:     url,
		Status:  AmpNotValidated,
		Summary: "Not Validated",
	}
}

// Fields 转换为结果字段
func (r AmpValidationResult) Fields() map[string]string {
	errorsValue := NoError
	if len(r.Messages) > 0 {
		errorsValue = strings.Join(r.Messages, "; ")
	}
	return map[string]string{
		FieldAmpValidation:       SafeValue(r.Summary),
		FieldAmpValidationErrors: errorsValue,
	}
}
