package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/mediagateway/gateway/observability"
)

// 轮询刷新默认参数
const (
	DefaultRefreshRetries = 3
	DefaultRefreshDelay   = time.Second
)

// TokenFunc returns a bearer token. force asks for a freshly signed one.
type TokenFunc func(force bool) (string, error)

// AttemptFunc performs one call with token.
type AttemptFunc func(ctx context.Context, token string) (*Response, error)

// RefreshLoop recovers from stale tokens while polling. It retries only on
// 401, forcing a token refresh each time, and waits linearly
// (delay * retry number) between attempts.
type RefreshLoop struct {
	maxRetries int
	delay      time.Duration
	sleep      SleepFunc
	sink       observability.Sink
}

// NewRefreshLoop creates a loop with maxRetries 401-retries and a base delay.
// Non-positive arguments keep the defaults (3 retries, 1s).
func NewRefreshLoop(maxRetries int, delay time.Duration, sink observability.Sink, sleep SleepFunc) *RefreshLoop {
	if maxRetries < 0 {
		maxRetries = DefaultRefreshRetries
	}
	if delay <= 0 {
		delay = DefaultRefreshDelay
	}
	if sink == nil {
		sink = observability.NopSink{}
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &RefreshLoop{maxRetries: maxRetries, delay: delay, sleep: sleep, sink: sink}
}

// Delay returns the wait before retry number n (1-based).
func (l *RefreshLoop) Delay(n int) time.Duration {
	return l.delay * time.Duration(n)
}

// Run calls attempt until it returns a non-401 response, a transport error,
// or the retry budget is spent. The last response is returned as-is.
func (l *RefreshLoop) Run(ctx context.Context, serviceID, operation string, token TokenFunc, attempt AttemptFunc) (*Response, error) {
	for n := 0; ; n++ {
		tok, err := token(n > 0)
		if err != nil {
			return nil, err
		}

		resp, err := attempt(ctx, tok)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized || n >= l.maxRetries {
			return resp, nil
		}

		delay := l.Delay(n + 1)
		l.sink.Emit(ctx, observability.Event{
			Kind:       observability.EventRetry,
			ServiceID:  serviceID,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Attempt:    n + 1,
			Backoff:    delay,
		})
		if err := l.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}
