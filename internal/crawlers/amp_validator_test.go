package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/jarcoal/httpmock"

	"github.com/RecoveryAshes/SeoScan/internal/models"
)

const testAmpEndpoint = "https://amp.test/validator.json"

func newTestAmpValidator(t *testing.T) (*AmpValidator, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	validator, err := NewAmpValidator(AmpValidatorConfig{Endpoint: testAmpEndpoint})
	if err != nil {
		t.Fatalf("创建AMP校验器失败: %v", err)
	}
	return validator.WithTransport(mock), mock
}

func TestAmpValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		want      models.AmpValidationResult
	}{
		{
			name:      "校验通过",
			responder: httpmock.NewStringResponder(200, `{"status":"PASS","errors":[]}`),
			want:      models.AmpValidationResult{Status: models.AmpPass, Summary: "PASS"},
		},
		{
			name: "校验失败多个错误",
			responder: httpmock.NewStringResponder(200, `{"status":"FAIL","errors":[
				{"line":3,"col":7,"message":"The tag 'img' is disallowed","code":"DISALLOWED_TAG"},
				{"message":"Missing attribute"}]}`),
			want: models.AmpValidationResult{
				Status:  models.AmpFail,
				Summary: "FAIL (2 errors)",
				Messages: []string{
					"L3 C7: The tag 'img' is disallowed (DISALLOWED_TAG)",
					"L0 C0: Missing attribute (NO_CODE)",
				},
			},
		},
		{
			name:      "校验失败单个错误",
			responder: httpmock.NewStringResponder(200, `{"status":"FAIL","errors":[{}]}`),
			want: models.AmpValidationResult{
				Status:   models.AmpFail,
				Summary:  "FAIL (1 error)",
				Messages: []string{"L0 C0: Unknown error (NO_CODE)"},
			},
		},
		{
			name:      "错误项不是对象",
			responder: httpmock.NewStringResponder(200, `{"status":"FAIL","errors":["bad entry",{"line":2,"message":"x","code":"C"}]}`),
			want: models.AmpValidationResult{
				Status:   models.AmpFail,
				Summary:  "FAIL (2 errors)",
				Messages: []string{"L0 C0: Unknown error (NO_CODE)", "L2 C0: x (C)"},
			},
		},
		{
			name:      "未知状态",
			responder: httpmock.NewStringResponder(200, `{"status":"MAYBE"}`),
			want:      models.AmpValidationResult{Status: models.AmpAPIError, Summary: "API Error: Unknown status: MAYBE"},
		},
		{
			name:      "非200状态",
			responder: httpmock.NewStringResponder(503, `unavailable`),
			want:      models.AmpValidationResult{Status: models.AmpAPIError, Summary: "API Error: HTTP Status 503"},
		},
		{
			name:      "传输错误",
			responder: httpmock.NewErrorResponder(errors.New("connection reset")),
			want:      models.AmpValidationResult{Status: models.AmpAPIError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, mock := newTestAmpValidator(t)
			mock.RegisterResponder(http.MethodGet, testAmpEndpoint, tt.responder)

			ampURL := "https://a.com/amp/story"
			got := validator.Validate(context.Background(), ampURL)

			if got.Status != tt.want.Status {
				t.Fatalf("Status = %s, 期望 %s (summary=%q)", got.Status, tt.want.Status, got.Summary)
			}
			if tt.want.Summary != "" && got.Summary != tt.want.Summary {
				t.Errorf("Summary = %q, 期望 %q", got.Summary, tt.want.Summary)
			}
			if tt.want.Messages != nil && !reflect.DeepEqual(got.Messages, tt.want.Messages) {
				t.Errorf("Messages = %v, 期望 %v", got.Messages, tt.want.Messages)
			}
			if got.URL != ampURL {
				t.Errorf("URL = %q", got.URL)
			}
		})
	}
}

func TestAmpValidator_BadJSON(t *testing.T) {
	validator, mock := newTestAmpValidator(t)
	mock.RegisterResponder(http.MethodGet, testAmpEndpoint, httpmock.NewStringResponder(200, `{not json`))

	got := validator.Validate(context.Background(), "https://a.com/amp/story")
	if got.Status != models.AmpAPIError {
		t.Fatalf("Status = %s", got.Status)
	}
	if want := "API Error: JSON Parse Error: "; len(got.Summary) < len(want) || got.Summary[:len(want)] != want {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestAmpValidator_InvalidInput(t *testing.T) {
	validator, mock := newTestAmpValidator(t)
	mock.RegisterResponder(http.MethodGet, testAmpEndpoint, httpmock.NewStringResponder(200, `{"status":"PASS"}`))

	for _, input := range []string{"", "   ", models.NotFound} {
		got := validator.Validate(context.Background(), input)
		if got.Status != models.AmpURLError {
			t.Errorf("Validate(%q).Status = %s, 期望 URL_ERROR", input, got.Status)
		}
	}
	if n := mock.GetTotalCallCount(); n != 0 {
		t.Errorf("无效输入不应调用API, 实际调用 %d 次", n)
	}
}

func TestAmpValidator_Cache(t *testing.T) {
	validator, mock := newTestAmpValidator(t)

	t.Run("PASS结果被缓存", func(t *testing.T) {
		mock.RegisterResponder(http.MethodGet, testAmpEndpoint, httpmock.NewStringResponder(200, `{"status":"PASS"}`))
		for i := 0; i < 3; i++ {
			if got := validator.Validate(context.Background(), "https://a.com/amp/cached"); got.Status != models.AmpPass {
				t.Fatalf("第%d次 Status = %s", i+1, got.Status)
			}
		}
		if n := mock.GetTotalCallCount(); n != 1 {
			t.Errorf("API调用次数 = %d, 期望 1", n)
		}
	})

	t.Run("API错误不缓存", func(t *testing.T) {
		mock.Reset()
		mock.RegisterResponder(http.MethodGet, testAmpEndpoint, httpmock.NewStringResponder(500, ""))
		validator.Validate(context.Background(), "https://a.com/amp/flaky")
		validator.Validate(context.Background(), "https://a.com/amp/flaky")
		if n := mock.GetTotalCallCount(); n != 2 {
			t.Errorf("API调用次数 = %d, 期望 2", n)
		}
	})
}

func TestAmpValidator_CompressedResponse(t *testing.T) {
	payload := []byte(`{"status":"PASS"}`)

	var brBody bytes.Buffer
	bw := brotli.NewWriter(&brBody)
	if _, err := bw.Write(payload); err != nil {
		t.Fatalf("brotli压缩失败: %v", err)
	}
	bw.Close()

	var gzBody bytes.Buffer
	gw := gzip.NewWriter(&gzBody)
	if _, err := gw.Write(payload); err != nil {
		t.Fatalf("gzip压缩失败: %v", err)
	}
	gw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"brotli", "br", brBody.Bytes()},
		{"gzip", "gzip", gzBody.Bytes()},
		{"未压缩", "", payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, mock := newTestAmpValidator(t)
			mock.RegisterResponder(http.MethodGet, testAmpEndpoint, func(req *http.Request) (*http.Response, error) {
				if got := req.URL.Query().Get("url"); got != "https://a.com/amp/x?y=1" {
					t.Errorf("url参数 = %q", got)
				}
				if ua := req.Header.Get("User-Agent"); ua != DefaultAmpUserAgent {
					t.Errorf("User-Agent = %q", ua)
				}
				resp := httpmock.NewBytesResponse(200, tt.body)
				if tt.encoding != "" {
					resp.Header.Set("Content-Encoding", tt.encoding)
				}
				return resp, nil
			})

			if got := validator.Validate(context.Background(), "https://a.com/amp/x?y=1"); got.Status != models.AmpPass {
				t.Errorf("Status = %s (summary=%q)", got.Status, got.Summary)
			}
		})
	}
}
