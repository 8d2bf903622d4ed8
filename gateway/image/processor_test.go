package image

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/gateway/retry"
	"github.com/BaSui01/mediagateway/testutil"
	"github.com/BaSui01/mediagateway/testutil/fixtures"
	"github.com/BaSui01/mediagateway/testutil/mocks"
	"github.com/BaSui01/mediagateway/types"
)

func newTestProcessor(t *testing.T, fp *mocks.FakeProvider, svc registry.ServiceConfig) *Processor {
	t.Helper()
	reg, err := registry.New([]registry.ServiceConfig{svc}, nil)
	require.NoError(t, err)
	exec := retry.NewExecutor(
		retry.WithHTTPClient(fp.Client()),
		retry.WithSleep(testutil.NewRecordingSleeper().Sleep),
	)
	return NewProcessor(reg, exec, zap.NewNop())
}

func TestProcess_CamelCaseInlineData(t *testing.T) {
	fp := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 200, Body: fixtures.ImageCamelCase("AAA", "image/png")})
	p := newTestProcessor(t, fp, fixtures.ImageService(fp.URL()))

	res, err := p.Process(testutil.TestContext(t), Request{
		ServiceID:   "gemini-bg",
		APIKey:      "AIza-key",
		ImageBase64: "SRC",
		MimeType:    "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, &Result{Data: "AAA", MimeType: "image/png"}, res)

	reqs := fp.Requests()
	require.Len(t, reqs, 1)
	q, err := url.ParseQuery(reqs[0].RawQuery)
	require.NoError(t, err)
	assert.Equal(t, "AIza-key", q.Get("key"), "api key travels as a query parameter")
	assert.Empty(t, reqs[0].Header.Get("Authorization"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	parts := sent["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "Remove the background.", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "SRC", inline["data"])
	assert.Equal(t, "image/jpeg", inline["mime_type"])
}

func TestProcess_SnakeCaseInlineData(t *testing.T) {
	fp := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 200, Body: fixtures.ImageSnakeCase("BBB", "image/webp")})
	p := newTestProcessor(t, fp, fixtures.ImageService(fp.URL()))

	res, err := p.Process(testutil.TestContext(t), Request{ServiceID: "gemini-bg", APIKey: "k", ImageBase64: "x", MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "BBB", res.Data)
	assert.Equal(t, "image/webp", res.MimeType)
}

func TestProcess_CustomPromptOverridesFirstText(t *testing.T) {
	fp := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 200, Body: fixtures.ImageCamelCase("A", "image/png")})
	svc := fixtures.ImageService(fp.URL())
	p := newTestProcessor(t, fp, svc)

	_, err := p.Process(testutil.TestContext(t), Request{
		ServiceID: "gemini-bg", APIKey: "k", ImageBase64: "x", MimeType: "image/png",
		CustomPrompt: "  turn the sky purple  ",
	})
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fp.Requests()[0].Body, &sent))
	parts := sent["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "turn the sky purple", parts[0].(map[string]any)["text"])

	// 配置中的模板保持不变
	text, ok := svc.PayloadTemplate.Lookup(promptPath...)
	require.True(t, ok)
	s, _ := text.AsString()
	assert.Equal(t, "Remove the background.", s)
}

func TestProcess_ResponseFormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"no candidates", fixtures.ImageNoCandidates, msgBadFormat},
		{"invalid json", `<html>`, msgBadFormat},
		{"text only", fixtures.ImageTextOnly, msgNoImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 200, Body: tt.body})
			p := newTestProcessor(t, fp, fixtures.ImageService(fp.URL()))

			_, err := p.Process(testutil.TestContext(t), Request{ServiceID: "gemini-bg", APIKey: "k"})
			require.Error(t, err)
			ge, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, types.ErrResponseFormat, ge.Code)
			assert.Equal(t, tt.wantMsg, ge.Message)
			assert.Equal(t, 500, ge.HTTPStatus)
		})
	}
}

func TestProcess_ProviderErrorIsNormalized(t *testing.T) {
	fp := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 403, Body: fixtures.ProviderError(1103, "no permission")})
	p := newTestProcessor(t, fp, fixtures.ImageService(fp.URL()))

	_, err := p.Process(testutil.TestContext(t), Request{ServiceID: "gemini-bg", APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, types.ErrForbidden, types.GetErrorCode(err))
	assert.Equal(t, 1, fp.Count())
}

func TestProcess_UnknownService(t *testing.T) {
	fp := mocks.NewFakeProvider(t)
	p := newTestProcessor(t, fp, fixtures.ImageService(fp.URL()))

	_, err := p.Process(testutil.TestContext(t), Request{ServiceID: "nope", APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, types.ErrServiceNotFound, types.GetErrorCode(err))
	assert.Equal(t, 0, fp.Count())
}

func TestProcess_CredentialFallback(t *testing.T) {
	fp := mocks.NewFakeProvider(t).Enqueue(mocks.Reply{Status: 200, Body: fixtures.ImageCamelCase("A", "image/png")})
	svc := fixtures.ImageService(fp.URL())
	svc.APIKey = "preset-key"
	p := newTestProcessor(t, fp, svc)

	_, err := p.Process(testutil.TestContext(t), Request{ServiceID: "gemini-bg"})
	require.NoError(t, err)
	q, _ := url.ParseQuery(fp.Requests()[0].RawQuery)
	assert.Equal(t, "preset-key", q.Get("key"))

	fp2 := mocks.NewFakeProvider(t)
	p2 := newTestProcessor(t, fp2, fixtures.ImageService(fp2.URL()))
	_, err = p2.Process(testutil.TestContext(t), Request{ServiceID: "gemini-bg"})
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthentication, types.GetErrorCode(err))
	assert.Equal(t, 0, fp2.Count(), "missing credentials never reach the network")
}
