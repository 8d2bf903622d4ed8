package normalize

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/BaSui01/mediagateway/types"
)

// 服务商业务错误码
const (
	CodeArrears         = "1101" // 账户欠费
	CodeResourceExhaust = "1102" // 资源包已用尽或过期
	CodeContentRisk     = "1301" // 内容安全拦截
)

// 用户可见的错误文案
const (
	MsgAuthDefault       = "认证失败: API Key或Token无效，请检查您的设置。"
	MsgAuthSignature     = "认证失败: 签名校验失败，请检查您的SecretKey。"
	MsgAuthExpired       = "认证失败: 认证令牌已过期，请重试。"
	MsgAuthToken         = "认证失败: Token无效，请检查您的AccessKey和SecretKey。"
	MsgAuthKey           = "认证失败: API Key无效，请检查您的设置。"
	MsgArrears           = "处理失败: AI服务商提示账户欠费，请充值。"
	MsgResourceExhausted = "处理失败: AI服务商提示资源包已用尽或过期。"
	MsgBusy              = "处理失败: AI服务繁忙，请稍后再试。"
	MsgForbidden         = "处理失败: 您的账户无权使用该模型或接口。"
	MsgContentRisk       = "处理失败: 您的图片或提示词可能包含不适宜内容，请修改后重试。"
	MsgInvalidRequest    = "系统错误: 请求参数不合法，请联系技术支持。"
	MsgNotFound          = "处理失败: 请求的任务或资源不存在。"
	MsgServerInternal    = "处理失败: AI服务提供商服务器内部错误。这通常是临时问题，请等待几分钟后重试。如果问题持续存在，请联系技术支持。"
	msgUnavailableFmt    = "处理失败: AI服务提供商暂时不可用 (HTTP %d)，请稍后再试。"
	msgServerErrorFmt    = "处理失败: AI服务提供商服务器错误 (HTTP %d)，请稍后再试。"
	msgUnknownFmt        = "处理失败: 未知错误 (HTTP %d)"
)

// providerBody 是服务商错误响应里网关关心的字段
type providerBody struct {
	Code      any    `json:"code"`
	Message   string `json:"message"`
	Msg       string `json:"msg"`
	RequestID string `json:"request_id"`
}

// Signal is what the normalizer reads from a provider response.
type Signal struct {
	Status       int
	BusinessCode string
	Message      string
	RequestID    string
	Body         []byte
}

// ParseSignal extracts the business code, message and request id from a
// response. A body that is not JSON yields an empty code and message.
func ParseSignal(status int, body []byte, header http.Header) Signal {
	sig := Signal{Status: status, Body: body}

	var pb providerBody
	if len(body) > 0 && json.Unmarshal(body, &pb) == nil {
		sig.BusinessCode = codeString(pb.Code)
		sig.Message = pb.Message
		if sig.Message == "" {
			sig.Message = pb.Msg
		}
		sig.RequestID = pb.RequestID
	}
	if sig.RequestID == "" && header != nil {
		sig.RequestID = header.Get("X-Request-Id")
	}
	return sig
}

// Normalize maps a non-success provider response to a *types.Error.
// It is total: every status and business code lands in exactly one bucket.
func Normalize(serviceID string, status int, body []byte, header http.Header) *types.Error {
	return FromSignal(serviceID, ParseSignal(status, body, header))
}

// FromSignal applies the mapping to an already parsed signal.
func FromSignal(serviceID string, sig Signal) *types.Error {
	code, message, retryable := classify(sig)

	details := string(sig.Body)
	if code == types.ErrUnknown {
		details = fmt.Sprintf("code=%s message=%s body=%s", sig.BusinessCode, sig.Message, sig.Body)
	} else if details == "" && sig.RequestID != "" {
		details = "request_id=" + sig.RequestID
	}

	return types.NewError(code, message).
		WithHTTPStatus(sig.Status).
		WithRetryable(retryable).
		WithProvider(serviceID).
		WithDetails(details).
		WithRequestID(sig.RequestID)
}

// classify 按优先级判定错误类别
func classify(sig Signal) (types.ErrorCode, string, bool) {
	switch {
	case sig.Status == http.StatusUnauthorized:
		return types.ErrAuthentication, authMessage(sig.Message), false

	case sig.Status == http.StatusTooManyRequests:
		switch sig.BusinessCode {
		case CodeArrears:
			return types.ErrBillingRequired, MsgArrears, false
		case CodeResourceExhaust:
			return types.ErrQuotaExceeded, MsgResourceExhausted, false
		default:
			return types.ErrRateLimited, MsgBusy, true
		}

	case sig.Status == http.StatusForbidden:
		return types.ErrForbidden, MsgForbidden, false

	case sig.Status == http.StatusBadRequest:
		if sig.BusinessCode == CodeContentRisk {
			return types.ErrContentFiltered, MsgContentRisk, false
		}
		return types.ErrInvalidRequest, MsgInvalidRequest, false

	case sig.Status == http.StatusNotFound:
		return types.ErrTaskNotFound, MsgNotFound, false

	case sig.Status == http.StatusInternalServerError:
		return types.ErrUpstreamError, MsgServerInternal, true

	case sig.Status == http.StatusBadGateway || sig.Status == http.StatusServiceUnavailable:
		return types.ErrUpstreamError, fmt.Sprintf(msgUnavailableFmt, sig.Status), true

	case sig.Status >= 500:
		return types.ErrUpstreamError, fmt.Sprintf(msgServerErrorFmt, sig.Status), true

	default:
		return types.ErrUnknown, fmt.Sprintf(msgUnknownFmt, sig.Status), false
	}
}

// authMessage 根据服务商提示细化 401 文案
func authMessage(providerMsg string) string {
	m := strings.ToLower(providerMsg)
	switch {
	case strings.Contains(m, "signature"):
		return MsgAuthSignature
	case strings.Contains(m, "expired"):
		return MsgAuthExpired
	case strings.Contains(m, "token"):
		return MsgAuthToken
	case strings.Contains(m, "key"):
		return MsgAuthKey
	default:
		return MsgAuthDefault
	}
}

func codeString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}
