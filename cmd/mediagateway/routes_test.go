package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/mediagateway/api/handlers"
	"github.com/BaSui01/mediagateway/gateway"
	"github.com/BaSui01/mediagateway/internal/idempotency"
	"github.com/BaSui01/mediagateway/prompts"
	"github.com/BaSui01/mediagateway/testutil"
	"github.com/BaSui01/mediagateway/testutil/fixtures"
	"github.com/BaSui01/mediagateway/testutil/mocks"
)

type stack struct {
	vid     *mocks.FakeProvider
	handler http.Handler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	img := mocks.NewFakeProvider(t)
	vid := mocks.NewFakeProvider(t)
	gw := gateway.New(fixtures.Registry(img.URL(), vid.URL()), gateway.Options{
		HTTPClient: vid.Client(),
		Sleep:      testutil.NewRecordingSleeper().Sleep,
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	store := prompts.NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	idem := idempotency.NewMemoryStore(zap.NewNop())
	t.Cleanup(func() { _ = idem.Close() })

	health := handlers.NewHealthHandler(zap.NewNop())
	health.RegisterCheck(handlers.NewFuncCheck("database", func(ctx context.Context) error {
		return sqlDB.PingContext(ctx)
	}))

	mux := newRouter(routes{
		health:   health,
		services: handlers.NewServicesHandler(gw, nil),
		images:   handlers.NewImageHandler(gw, nil),
		videos:   handlers.NewVideoHandler(gw, idem, time.Hour, nil),
		prompts:  handlers.NewPromptHandler(store, nil),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &stack{
		vid: vid,
		handler: Chain(mux,
			Recovery(zap.NewNop()),
			RequestID(),
			SecurityHeaders(),
			RequestLogger(zap.NewNop()),
			RateLimiter(ctx, 1000, 1000, zap.NewNop()),
			APIKeyAuth([]string{"gw-key"}, publicPaths, false, zap.NewNop()),
			MaxBody(1<<20),
		),
	}
}

func (s *stack) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("X-API-Key", "gw-key")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func TestRouter_HealthIsPublic(t *testing.T) {
	s := newStack(t)
	for _, path := range publicPaths {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_APIRequiresKey(t *testing.T) {
	s := newStack(t)
	r := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_VideoRoundTrip(t *testing.T) {
	s := newStack(t)
	s.vid.Enqueue(mocks.Reply{Status: 200, Body: fixtures.VideoCreated("T1")})
	s.vid.Enqueue(mocks.Reply{Status: 200, Body: fixtures.VideoSucceeded("T1", "https://cdn/v.mp4")})

	w := s.do(http.MethodPost, "/api/video-generate",
		`{"service_id":"kling","access_key":"ak","secret_key":"sk","prompt":"p","start_frame_base64":"A","end_frame_base64":"B"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"task_id":"T1"`)
	assert.NotEmpty(t, w.Header().Get(handlers.RequestIDHeader))

	w = s.do(http.MethodGet, "/api/video-status/T1?service_id=kling&access_key=ak&secret_key=sk", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"video_url":"https://cdn/v.mp4"`)
	assert.Contains(t, w.Body.String(), `"state":"succeeded"`)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newStack(t)
	w := s.do(http.MethodGet, "/api/video-generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_Prompts(t *testing.T) {
	s := newStack(t)

	w := s.do(http.MethodPost, "/api/prompts", `{"name":"bg","prompt":"remove background"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/prompts", "")
	assert.Contains(t, w.Body.String(), `"name":"bg"`)

	w = s.do(http.MethodDelete, "/api/prompts/bg", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
