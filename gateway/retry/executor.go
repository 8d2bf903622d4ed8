package retry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/normalize"
	"github.com/BaSui01/mediagateway/gateway/observability"
)

// maxResponseBytes 单个响应体的读取上限
const maxResponseBytes = 64 << 20

// Request describes one outbound provider call.
type Request struct {
	ServiceID string
	Operation string
	Method    string // 默认 POST
	URL       string
	Header    http.Header
	Body      []byte

	// Secrets are scrubbed from any error text before it is logged or returned.
	Secrets []string
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Executor performs outbound calls with bounded, status-differentiated retries.
type Executor struct {
	client     *http.Client
	maxRetries int
	sleep      SleepFunc
	sink       observability.Sink
	logger     *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the HTTP client. Its Timeout bounds every attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithMaxRetries sets the retry budget. Total attempts = n + 1.
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithSink sets the event sink.
func WithSink(s observability.Sink) Option {
	return func(e *Executor) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an Executor with a 120s client timeout and 4 retries.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
		sink:       observability.NopSink{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "retry"))
	return e
}

// MaxRetries returns the configured retry budget.
func (e *Executor) MaxRetries() int { return e.maxRetries }

// Call performs req, retrying on 429/500/502/503/504 and on transport errors.
// Any other status, success or not, is returned immediately; when retries run
// out on a retryable status the last response is returned as-is. Only a
// transport failure on the final attempt produces an error.
func (e *Executor) Call(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		resp, err := e.Once(ctx, req, attempt+1)
		if err == nil {
			if !IsRetryableStatus(resp.StatusCode) || attempt == e.maxRetries {
				return resp, nil
			}
			if err := e.wait(ctx, req, resp.StatusCode, attempt); err != nil {
				return nil, normalize.NetworkFailure(req.ServiceID, err, req.Secrets...)
			}
			continue
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < e.maxRetries {
			if err := e.wait(ctx, req, 0, attempt); err != nil {
				break
			}
		}
	}

	e.logger.Warn("重试次数耗尽",
		zap.String("service_id", req.ServiceID),
		zap.String("operation", req.Operation),
		zap.Int("attempts", e.maxRetries+1),
		zap.String("error", normalize.Redact(lastErr.Error(), req.Secrets...)),
	)
	return nil, normalize.NetworkFailure(req.ServiceID, lastErr, req.Secrets...)
}

// Once performs a single attempt and emits one call event.
// A non-nil error is always a transport-level failure.
func (e *Executor) Once(ctx context.Context, req Request, attempt int) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	start := time.Now()
	resp, err := e.do(ctx, method, req)
	ev := observability.Event{
		Kind:      observability.EventCall,
		ServiceID: req.ServiceID,
		Operation: req.Operation,
		Method:    method,
		Endpoint:  observability.RedactURL(req.URL),
		Attempt:   attempt,
		Elapsed:   time.Since(start),
	}
	if err != nil {
		ev.Err = normalize.Redact(err.Error(), req.Secrets...)
		e.sink.Emit(ctx, ev)
		return nil, err
	}
	resp.Attempts = attempt
	ev.StatusCode = resp.StatusCode
	e.sink.Emit(ctx, ev)
	return resp, nil
}

func (e *Executor) do(ctx context.Context, method string, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (e *Executor) wait(ctx context.Context, req Request, status, attempt int) error {
	delay := Backoff(status, attempt)
	e.sink.Emit(ctx, observability.Event{
		Kind:       observability.EventRetry,
		ServiceID:  req.ServiceID,
		Operation:  req.Operation,
		Endpoint:   observability.RedactURL(req.URL),
		StatusCode: status,
		Attempt:    attempt + 1,
		Backoff:    delay,
	})
	e.logger.Debug("重试中",
		zap.String("service_id", req.ServiceID),
		zap.Int("status", status),
		zap.Int("attempt", attempt+1),
		zap.Int("max_retries", e.maxRetries),
		zap.Duration("delay", delay),
	)
	return e.sleep(ctx, delay)
}
