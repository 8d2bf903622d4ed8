package normalize

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/mediagateway/types"
)

const redacted = "***"

// ServiceNotFound is the only local-origin lookup failure.
func ServiceNotFound(serviceID string) *types.Error {
	return types.NewError(types.ErrServiceNotFound, "未找到服务配置: "+serviceID).
		WithHTTPStatus(http.StatusNotFound)
}

// MissingCredentials is raised before any network call when neither the
// caller nor the service configuration supplies credentials.
func MissingCredentials(serviceID string) *types.Error {
	return types.NewError(types.ErrAuthentication, "认证失败: 未提供API凭据，请检查您的设置。").
		WithHTTPStatus(http.StatusUnauthorized).
		WithProvider(serviceID)
}

// InvalidRequest reports a locally rejected argument.
func InvalidRequest(serviceID, message string) *types.Error {
	return types.NewError(types.ErrInvalidRequest, message).
		WithHTTPStatus(http.StatusBadRequest).
		WithProvider(serviceID)
}

// NetworkFailure wraps a transport error after retries are exhausted.
// Secrets are scrubbed from the error text before it reaches the message.
func NetworkFailure(serviceID string, cause error, secrets ...string) *types.Error {
	text := Redact(cause.Error(), secrets...)
	return types.NewError(types.ErrNetworkFailure, "网络请求失败: "+text).
		WithHTTPStatus(http.StatusInternalServerError).
		WithRetryable(true).
		WithProvider(serviceID).
		WithDetails(text)
}

// ResponseFormat reports a 200 response whose body cannot be projected.
func ResponseFormat(serviceID, message string, body []byte) *types.Error {
	return types.NewError(types.ErrResponseFormat, message).
		WithHTTPStatus(http.StatusInternalServerError).
		WithProvider(serviceID).
		WithDetails(string(body))
}

// BusinessFailure reports a non-zero business code inside a 200 response.
// providerMsg falls back to fallback when empty.
func BusinessFailure(serviceID, providerMsg, fallback string, body []byte) *types.Error {
	msg := strings.TrimSpace(providerMsg)
	if msg == "" {
		msg = fallback
	}
	sig := ParseSignal(http.StatusOK, body, nil)
	return types.NewError(types.ErrBusinessFailure, msg).
		WithHTTPStatus(http.StatusBadRequest).
		WithProvider(serviceID).
		WithDetails(string(body)).
		WithRequestID(sig.RequestID)
}

// Redact replaces every non-empty secret occurring in text, including its
// query- and path-escaped forms as they appear in transport error URLs.
func Redact(text string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		for _, form := range []string{s, url.QueryEscape(s), url.PathEscape(s)} {
			text = strings.ReplaceAll(text, form, redacted)
		}
	}
	return text
}
