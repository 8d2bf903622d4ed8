package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/BaSui01/mediagateway/gateway/image"
	"github.com/BaSui01/mediagateway/gateway/observability"
	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/gateway/video"
	"github.com/BaSui01/mediagateway/testutil"
	"github.com/BaSui01/mediagateway/testutil/fixtures"
	"github.com/BaSui01/mediagateway/testutil/mocks"
	"github.com/BaSui01/mediagateway/types"
)

type env struct {
	img   *mocks.FakeProvider
	vid   *mocks.FakeProvider
	sink  *mocks.RecordingSink
	spans *tracetest.SpanRecorder
	gw    *Gateway
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		img:   mocks.NewFakeProvider(t),
		vid:   mocks.NewFakeProvider(t),
		sink:  mocks.NewRecordingSink(),
		spans: tracetest.NewSpanRecorder(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(e.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e.gw = New(fixtures.Registry(e.img.URL(), e.vid.URL()), Options{
		HTTPClient:     e.img.Client(),
		Sink:           e.sink,
		TracerProvider: tp,
		Sleep:          testutil.NewRecordingSleeper().Sleep,
		Clock:          func() time.Time { return e.now },
		PollInterval:   5 * time.Millisecond,
	})
	return e
}

func bearerClaims(t *testing.T, header, secret string, now time.Time) *jwt.RegisteredClaims {
	t.Helper()
	raw, ok := strings.CutPrefix(header, "Bearer ")
	require.True(t, ok, "authorization header %q", header)
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	return claims
}

func TestGateway_ProcessImage(t *testing.T) {
	e := newEnv(t)
	e.img.Enqueue(mocks.Reply{Status: 200, Body: fixtures.ImageCamelCase("OUT", "image/png")})

	res, err := e.gw.ProcessImage(testutil.TestContext(t), image.Request{
		ServiceID: "gemini-bg", APIKey: "k", ImageBase64: "IN", MimeType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "OUT", res.Data)

	ended := e.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "gateway.process_image", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Empty(t, e.sink.OfKind(observability.EventError))
	assert.Len(t, e.sink.OfKind(observability.EventCall), 1)
}

func TestGateway_MaxRetriesZeroDisablesRetries(t *testing.T) {
	img := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 503, Body: `{}`})
	noRetries := 0
	gw := New(fixtures.Registry(img.URL(), img.URL()), Options{
		HTTPClient: img.Client(),
		MaxRetries: &noRetries,
		Sleep:      testutil.NewRecordingSleeper().Sleep,
	})

	_, err := gw.ProcessImage(testutil.TestContext(t), image.Request{
		ServiceID: "gemini-bg", APIKey: "k", ImageBase64: "IN", MimeType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, 1, img.Count())
}

func TestGateway_VideoLifecycle(t *testing.T) {
	e := newEnv(t)
	e.vid.Enqueue(
		mocks.Reply{Status: 200, Body: `{"code":0,"data":{"task_id":"T1"}}`},
		mocks.Reply{Status: 200, Body: `{"code":0,"data":{"task_status":"succeed","task_result":{"videos":[{"url":"https://x/v.mp4"}]}}}`},
	)
	ctx := testutil.TestContext(t)

	id, err := e.gw.CreateVideoTask(ctx, video.CreateRequest{
		ServiceID: "kling", AccessKey: "ak-1", SecretKey: "sk-1",
		Prompt: "p", StartFrame: "A", EndFrame: "B",
	})
	require.NoError(t, err)
	assert.Equal(t, "T1", id)

	task, err := e.gw.QueryVideoTask(ctx, video.QueryRequest{ServiceID: "kling", AccessKey: "ak-1", SecretKey: "sk-1", TaskID: id})
	require.NoError(t, err)
	assert.Equal(t, "succeed", task.Status)
	assert.Equal(t, "https://x/v.mp4", task.VideoURL)

	reqs := e.vid.Requests()
	require.Len(t, reqs, 2)
	createAuth := reqs[0].Header.Get("Authorization")
	assert.Equal(t, createAuth, reqs[1].Header.Get("Authorization"), "token is reused within its lifetime")

	claims := bearerClaims(t, createAuth, "sk-1", e.now)
	assert.Equal(t, "ak-1", claims.Issuer)
	assert.Equal(t, e.now.Add(1800*time.Second).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, e.now.Add(-10*time.Second).Unix(), claims.NotBefore.Unix())

	var names []string
	for _, s := range e.spans.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"gateway.create_video_task", "gateway.query_video_task"}, names)
}

func TestGateway_ErrorsAreObserved(t *testing.T) {
	e := newEnv(t)

	_, err := e.gw.CreateMultiImageVideoTask(testutil.TestContext(t), video.MultiImageRequest{ServiceID: "missing"})
	require.Error(t, err)
	ge, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrServiceNotFound, ge.Code)
	assert.Equal(t, 404, ge.HTTPStatus)

	errs := e.sink.OfKind(observability.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "missing", errs[0].ServiceID)
	assert.Equal(t, video.OperationCreateMulti, errs[0].Operation)
	assert.Equal(t, types.ErrServiceNotFound, errs[0].ErrorCode)

	ended := e.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, 0, e.vid.Count())
}

func TestGateway_CredentialsNeverLogged(t *testing.T) {
	e := newEnv(t)
	e.img.Enqueue(mocks.Reply{Status: 500, Body: `{"error":"internal"}`})

	_, err := e.gw.ProcessImage(testutil.TestContext(t), image.Request{ServiceID: "gemini-bg", APIKey: "AIza-top-secret"})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))

	events := e.sink.Events()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.NotContains(t, ev.Endpoint, "AIza-top-secret")
		assert.NotContains(t, ev.Err, "AIza-top-secret")
	}
	assert.Len(t, e.sink.OfKind(observability.EventRetry), 4)
}

func TestGateway_WaitForVideoTask(t *testing.T) {
	e := newEnv(t)
	e.vid.Enqueue(
		mocks.Reply{Status: 200, Body: fixtures.VideoStatus("T", "submitted")},
		mocks.Reply{Status: 200, Body: fixtures.VideoStatus("T", "processing")},
		mocks.Reply{Status: 200, Body: fixtures.VideoFailed("T", "审核未通过")},
	)

	task, err := e.gw.WaitForMultiImageVideoTask(testutil.TestContext(t), video.QueryRequest{
		ServiceID: "kling", AccessKey: "ak", SecretKey: "sk", TaskID: "T",
	})
	require.NoError(t, err)
	assert.Equal(t, video.StateFailed, task.State())
	assert.Equal(t, "审核未通过", task.ErrorMessage)
	assert.Equal(t, 3, e.vid.Count())
}

func TestGateway_WaitForVideoTaskHonorsContext(t *testing.T) {
	e := newEnv(t)
	e.vid.Enqueue(mocks.Reply{Status: 200, Body: fixtures.VideoStatus("T", "processing")})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	task, err := e.gw.WaitForVideoTask(ctx, video.QueryRequest{ServiceID: "kling", AccessKey: "ak", SecretKey: "sk", TaskID: "T"})
	require.Error(t, err)
	_, ok := types.AsError(err)
	assert.True(t, ok)
	if task != nil {
		assert.False(t, task.Terminal())
	}
}

func TestGateway_Services(t *testing.T) {
	e := newEnv(t)
	assert.Len(t, e.gw.Services(registry.CategoryImage), 1)
	assert.Len(t, e.gw.Services(registry.CategoryVideo), 1)
	assert.Same(t, e.gw.Registry(), e.gw.Registry())
}
