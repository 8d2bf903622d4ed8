// FakeProvider 是基于 httptest 的脚本化 AI 服务商。
//
// 按入队顺序返回预设响应（最后一个响应重复使用），记录每个请求，
// 并可通过 Drop 模拟传输层故障。
package mocks

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Reply is one scripted response.
type Reply struct {
	Status int
	Body   string
	Header map[string]string
	Delay  time.Duration
	// Drop closes the connection without writing a response.
	Drop bool
}

// RecordedRequest is one request the fake provider received.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// FakeProvider 是 AI 服务商的模拟实现
type FakeProvider struct {
	mu       sync.Mutex
	server   *httptest.Server
	replies  []Reply
	next     int
	requests []RecordedRequest
}

// NewFakeProvider starts a fake provider that is closed on test cleanup.
func NewFakeProvider(t testing.TB) *FakeProvider {
	t.Helper()
	f := &FakeProvider{}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// Enqueue appends scripted replies.
func (f *FakeProvider) Enqueue(replies ...Reply) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
	return f
}

// URL is the base URL of the fake provider.
func (f *FakeProvider) URL() string {
	return f.server.URL
}

// Client returns an HTTP client wired to the fake provider.
func (f *FakeProvider) Client() *http.Client {
	return f.server.Client()
}

// Requests returns a copy of every recorded request.
func (f *FakeProvider) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns the number of requests received.
func (f *FakeProvider) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *FakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	})
	reply := Reply{Status: http.StatusOK, Body: `{}`}
	if len(f.replies) > 0 {
		idx := f.next
		if idx >= len(f.replies) {
			idx = len(f.replies) - 1
		}
		reply = f.replies[idx]
		f.next++
	}
	f.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if reply.Drop {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("fake provider: response writer does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
		return
	}

	for k, v := range reply.Header {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply.Body)
}
