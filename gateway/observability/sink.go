package observability

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/types"
)

// EventKind 事件类型
type EventKind string

const (
	// EventCall is emitted after every outbound HTTP attempt.
	EventCall EventKind = "call"
	// EventRetry is emitted before sleeping between attempts.
	EventRetry EventKind = "retry"
	// EventError is emitted whenever an operation returns an error.
	EventError EventKind = "error"
)

// Event is one structured record emitted by the gateway.
// Endpoint is always redacted and Err is already scrubbed of credentials.
type Event struct {
	Kind       EventKind
	ServiceID  string
	Operation  string
	Method     string
	Endpoint   string
	StatusCode int
	Attempt    int
	Elapsed    time.Duration
	Backoff    time.Duration
	ErrorCode  types.ErrorCode
	Err        string
}

// Sink receives gateway events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// Combine returns a sink that forwards to every non-nil sink.
func Combine(sinks ...Sink) Sink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return NopSink{}
	case 1:
		return out[0]
	default:
		return out
	}
}

// ErrorEvent builds an EventError record from err.
func ErrorEvent(serviceID, operation string, elapsed time.Duration, err error) Event {
	ev := Event{
		Kind:      EventError,
		ServiceID: serviceID,
		Operation: operation,
		Elapsed:   elapsed,
		ErrorCode: types.GetErrorCode(err),
	}
	if ge, ok := types.AsError(err); ok {
		ev.StatusCode = ge.HTTPStatus
		ev.Err = ge.Message
	} else if err != nil {
		ev.Err = err.Error()
	}
	return ev
}

// RedactURL drops the query string, fragment and userinfo from raw.
// Credentials passed as query parameters therefore never reach a sink.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.User = nil
	return u.String()
}

// =============================================================================
// 📝 Zap 日志 Sink
// =============================================================================

// ZapSink writes each event as one structured log entry.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a ZapSink. A nil logger yields a no-op sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.With(zap.String("component", "gateway"))}
}

func (s *ZapSink) Emit(ctx context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("event", string(ev.Kind)),
		zap.String("service_id", ev.ServiceID),
		zap.String("operation", ev.Operation),
	}
	if ev.Method != "" {
		fields = append(fields, zap.String("method", ev.Method))
	}
	if ev.Endpoint != "" {
		fields = append(fields, zap.String("endpoint", ev.Endpoint))
	}
	if ev.StatusCode != 0 {
		fields = append(fields, zap.Int("status", ev.StatusCode))
	}
	if ev.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", ev.Attempt))
	}
	fields = append(fields, zap.Duration("elapsed", ev.Elapsed))
	if ev.Backoff > 0 {
		fields = append(fields, zap.Duration("backoff", ev.Backoff))
	}
	if ev.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", string(ev.ErrorCode)))
	}
	if ev.Err != "" {
		fields = append(fields, zap.String("error", ev.Err))
	}
	if id, ok := types.RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}

	switch {
	case ev.Kind == EventError:
		s.logger.Warn("gateway operation failed", fields...)
	case ev.Kind == EventRetry:
		s.logger.Info("重试外部调用", fields...)
	case ev.Err != "" || ev.StatusCode >= 400:
		s.logger.Warn("outbound call failed", fields...)
	default:
		s.logger.Info("outbound call", fields...)
	}
}

// =============================================================================
// 📊 Prometheus Sink
// =============================================================================

// ProviderRecorder is the metrics surface a MetricsSink needs.
// *metrics.Collector satisfies it.
type ProviderRecorder interface {
	RecordProviderCall(serviceID, operation string, status int, duration time.Duration)
	RecordProviderRetry(serviceID, operation string)
	RecordGatewayError(serviceID, operation, code string)
}

// MetricsSink turns events into Prometheus observations.
type MetricsSink struct {
	rec ProviderRecorder
}

// NewMetricsSink wraps a recorder.
func NewMetricsSink(rec ProviderRecorder) *MetricsSink {
	return &MetricsSink{rec: rec}
}

func (s *MetricsSink) Emit(_ context.Context, ev Event) {
	if s.rec == nil {
		return
	}
	switch ev.Kind {
	case EventCall:
		s.rec.RecordProviderCall(ev.ServiceID, ev.Operation, ev.StatusCode, ev.Elapsed)
	case EventRetry:
		s.rec.RecordProviderRetry(ev.ServiceID, ev.Operation)
	case EventError:
		s.rec.RecordGatewayError(ev.ServiceID, ev.Operation, string(ev.ErrorCode))
	}
}
