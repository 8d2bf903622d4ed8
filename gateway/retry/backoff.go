package retry

import (
	"context"
	"net/http"
	"time"
)

// 默认参数
const (
	DefaultMaxRetries = 4
	DefaultTimeout    = 120 * time.Second

	// 500 错误的退避上限
	maxServerErrorBackoff = 30 * time.Second
)

// retryableStatuses 需要重试的 HTTP 状态码
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports whether status is in {429, 500, 502, 503, 504}.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// Backoff returns the wait before the next attempt.
// attempt is 0-indexed. status 0 means a transport-level failure.
//
//	500:             min(2^attempt * 2, 30) s
//	other / network: 2^attempt s
func Backoff(status, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	base := time.Duration(1<<uint(attempt)) * time.Second
	if status == http.StatusInternalServerError {
		d := base * 2
		if d > maxServerErrorBackoff {
			d = maxServerErrorBackoff
		}
		return d
	}
	return base
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext 等待延迟，同时监听 context 取消
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
