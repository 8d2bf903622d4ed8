package normalize

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediagateway/types"
)

func TestNormalize_Mapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  types.ErrorCode
		wantMsg   string
		retryable bool
	}{
		{"401 generic", 401, `{"code":1000,"message":"unauthorized"}`, types.ErrAuthentication, MsgAuthDefault, false},
		{"401 signature", 401, `{"message":"Signature verification failed"}`, types.ErrAuthentication, MsgAuthSignature, false},
		{"401 expired token", 401, `{"message":"token expired"}`, types.ErrAuthentication, MsgAuthExpired, false},
		{"401 token", 401, `{"message":"invalid token"}`, types.ErrAuthentication, MsgAuthToken, false},
		{"401 api key", 401, `{"error":"x","message":"API key not valid"}`, types.ErrAuthentication, MsgAuthKey, false},
		{"401 non json", 401, `denied`, types.ErrAuthentication, MsgAuthDefault, false},
		{"429 arrears", 429, `{"code":1101,"message":"account arrears"}`, types.ErrBillingRequired, MsgArrears, false},
		{"429 quota", 429, `{"code":1102,"message":"resource pack exhausted"}`, types.ErrQuotaExceeded, MsgResourceExhausted, false},
		{"429 string code", 429, `{"code":"1102"}`, types.ErrQuotaExceeded, MsgResourceExhausted, false},
		{"429 busy", 429, `{"code":1302,"message":"too many"}`, types.ErrRateLimited, MsgBusy, true},
		{"429 empty", 429, ``, types.ErrRateLimited, MsgBusy, true},
		{"403", 403, `{"code":1103}`, types.ErrForbidden, MsgForbidden, false},
		{"400 content", 400, `{"code":1301,"message":"risk"}`, types.ErrContentFiltered, MsgContentRisk, false},
		{"400 other", 400, `{"code":1200}`, types.ErrInvalidRequest, MsgInvalidRequest, false},
		{"404", 404, `{"code":1203}`, types.ErrTaskNotFound, MsgNotFound, false},
		{"500", 500, `oops`, types.ErrUpstreamError, MsgServerInternal, true},
		{"502", 502, ``, types.ErrUpstreamError, fmt.Sprintf(msgUnavailableFmt, 502), true},
		{"503", 503, ``, types.ErrUpstreamError, fmt.Sprintf(msgUnavailableFmt, 503), true},
		{"504", 504, ``, types.ErrUpstreamError, fmt.Sprintf(msgServerErrorFmt, 504), true},
		{"418", 418, `{"code":7,"message":"teapot"}`, types.ErrUnknown, "处理失败: 未知错误 (HTTP 418)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize("svc", tt.status, []byte(tt.body), nil)
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "svc", err.Provider)
		})
	}
}

func TestNormalize_QuotaDistinctFromBusy(t *testing.T) {
	quota := Normalize("kling", 429, []byte(`{"code":1102}`), nil)
	busy := Normalize("kling", 429, []byte(`{"code":1000}`), nil)

	assert.NotEqual(t, quota.Code, busy.Code)
	assert.NotEqual(t, quota.Message, busy.Message)
}

func TestNormalize_Details(t *testing.T) {
	body := `{"code":1200,"message":"bad param","request_id":"r-42"}`
	err := Normalize("svc", 400, []byte(body), nil)
	assert.Equal(t, body, err.Details)
	assert.Equal(t, "r-42", err.RequestID)
	assert.NotContains(t, err.Message, "bad param")

	h := http.Header{}
	h.Set("X-Request-Id", "hdr-1")
	err = Normalize("svc", 503, nil, h)
	assert.Equal(t, "request_id=hdr-1", err.Details)
	assert.Equal(t, "hdr-1", err.RequestID)

	err = Normalize("svc", 302, []byte(`{"code":9,"message":"moved"}`), nil)
	assert.Contains(t, err.Details, "code=9")
	assert.Contains(t, err.Details, "message=moved")
}

func TestNormalize_MessageNeverEchoesBody(t *testing.T) {
	body := `{"code":1101,"message":"secret-key sk-123 leaked"}`
	for _, status := range []int{400, 401, 403, 404, 429, 500, 503, 302} {
		err := Normalize("svc", status, []byte(body), nil)
		assert.NotContains(t, err.Message, "sk-123", "status %d", status)
	}
}

func TestLocalErrors(t *testing.T) {
	nf := ServiceNotFound("missing")
	assert.Equal(t, types.ErrServiceNotFound, nf.Code)
	assert.Equal(t, 404, nf.HTTPStatus)
	assert.Equal(t, "未找到服务配置: missing", nf.Message)

	nw := NetworkFailure("svc", errors.New(`Post "https://x/v1?key=AIza-secret": dial tcp: timeout`), "AIza-secret")
	assert.Equal(t, types.ErrNetworkFailure, nw.Code)
	assert.Equal(t, 500, nw.HTTPStatus)
	assert.NotContains(t, nw.Message, "AIza-secret")
	assert.NotContains(t, nw.Details, "AIza-secret")
	assert.Contains(t, nw.Message, "网络请求失败: ")

	bf := BusinessFailure("svc", "", "视频任务创建失败", []byte(`{"code":1,"request_id":"abc"}`))
	assert.Equal(t, types.ErrBusinessFailure, bf.Code)
	assert.Equal(t, 400, bf.HTTPStatus)
	assert.Equal(t, "视频任务创建失败", bf.Message)
	assert.Equal(t, "abc", bf.RequestID)

	bf = BusinessFailure("svc", "参数错误", "视频任务创建失败", nil)
	assert.Equal(t, "参数错误", bf.Message)

	rf := ResponseFormat("svc", "AI服务返回的响应格式不正确", []byte(`{"candidates":[]}`))
	assert.Equal(t, types.ErrResponseFormat, rf.Code)
	assert.Equal(t, 500, rf.HTTPStatus)

	mc := MissingCredentials("svc")
	assert.Equal(t, 401, mc.HTTPStatus)
	assert.Equal(t, types.ErrAuthentication, mc.Code)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "a *** b ***", Redact("a k1 b k2", "k1", "k2", ""))
	assert.Equal(t, "unchanged", Redact("unchanged"))
	assert.Equal(t, "q=*** p=/***/x", Redact("q=sec%2Bret%2Fkey%3D p=/sec+ret%2Fkey=/x", "sec+ret/key="))
}

// 错误映射必须是全函数：任意 (status, 业务码) 都落入已知类别
func TestNetworkFailure_ScrubsEscapedKey(t *testing.T) {
	key := "sec+ret/key="
	u := "http://127.0.0.1:1/v1/gen?" + url.Values{"key": {key}}.Encode()
	cause := &url.Error{Op: "Post", URL: u, Err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")}

	err := NetworkFailure("img", cause, key)
	assert.NotContains(t, err.Message, "sec%2Bret%2Fkey%3D")
	assert.NotContains(t, err.Message, key)
	assert.Contains(t, err.Message, "key=***")
	assert.NotContains(t, err.Details, "sec%2B")
}

func TestProperty_NormalizeIsTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	known := map[types.ErrorCode]bool{
		types.ErrAuthentication:  true,
		types.ErrBillingRequired: true,
		types.ErrQuotaExceeded:   true,
		types.ErrRateLimited:     true,
		types.ErrForbidden:       true,
		types.ErrContentFiltered: true,
		types.ErrInvalidRequest:  true,
		types.ErrTaskNotFound:    true,
		types.ErrUpstreamError:   true,
		types.ErrUnknown:         true,
	}

	properties := gopter.NewProperties(parameters)

	properties.Property("every status and business code maps to a known category", prop.ForAll(
		func(status int, code int, withCode bool) bool {
			body := []byte(`{}`)
			if withCode {
				body = []byte(fmt.Sprintf(`{"code":%d,"message":"m"}`, code))
			}
			err := Normalize("svc", status, body, nil)
			if err == nil || err.Message == "" || !known[err.Code] {
				return false
			}
			return err.HTTPStatus == status
		},
		gen.IntRange(100, 599),
		gen.IntRange(0, 2000),
		gen.Bool(),
	))

	properties.Property("5xx is always a retryable upstream error", prop.ForAll(
		func(status int) bool {
			err := Normalize("svc", status, nil, nil)
			return err.Code == types.ErrUpstreamError && err.Retryable
		},
		gen.IntRange(500, 599),
	))

	properties.TestingRun(t)
}
