package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/normalize"
	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/gateway/retry"
	"github.com/BaSui01/mediagateway/gateway/template"
)

// OperationProcess 是图像处理的操作名
const OperationProcess = "process_image"

const (
	msgBadFormat = "AI服务返回的响应格式不正确"
	msgNoImage   = "AI服务未返回处理后的图像"
)

// promptPath 指向模板中第一段文本指令 contents[0].parts[0].text
var promptPath = []template.Step{
	template.Key("contents"), template.Index(0),
	template.Key("parts"), template.Index(0),
	template.Key("text"),
}

// Resolver looks up service configurations.
type Resolver interface {
	Resolve(id string, category registry.Category) (registry.ServiceConfig, error)
}

// Request is the input of a synchronous image transform.
type Request struct {
	ServiceID    string
	APIKey       string
	ImageBase64  string
	MimeType     string
	CustomPrompt string
}

// Result is the transformed image.
type Result struct {
	Data     string `json:"image_base64"`
	MimeType string `json:"mime_type"`
}

// Processor runs synchronous image transforms against api-key providers.
type Processor struct {
	resolver Resolver
	exec     *retry.Executor
	logger   *zap.Logger
}

// NewProcessor creates an image processor.
func NewProcessor(resolver Resolver, exec *retry.Executor, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		resolver: resolver,
		exec:     exec,
		logger:   logger.With(zap.String("component", "image")),
	}
}

// Process sends the image to the provider and returns the first inline image
// of the first candidate.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	cfg, err := p.resolver.Resolve(req.ServiceID, registry.CategoryImage)
	if err != nil {
		return nil, err
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, normalize.MissingCredentials(cfg.ID)
	}

	endpoint, err := withQueryParam(cfg.Endpoint, cfg.Auth.KeyName, apiKey)
	if err != nil {
		return nil, normalize.InvalidRequest(cfg.ID, "服务配置的 api_endpoint 无效").WithCause(err)
	}

	tpl := cfg.PayloadTemplate
	if prompt := strings.TrimSpace(req.CustomPrompt); prompt != "" {
		if updated, ok := tpl.Set(template.String(prompt), promptPath...); ok {
			tpl = updated
		} else {
			p.logger.Debug("template has no contents[0].parts[0].text, custom prompt ignored",
				zap.String("service_id", cfg.ID))
		}
	}
	payload := template.Build(tpl, map[string]string{
		"base64_image": req.ImageBase64,
		"mime_type":    req.MimeType,
	})
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, normalize.InvalidRequest(cfg.ID, "请求载荷构建失败").WithCause(err)
	}

	resp, err := p.exec.Call(ctx, retry.Request{
		ServiceID: cfg.ID,
		Operation: OperationProcess,
		URL:       endpoint,
		Body:      body,
		Secrets:   []string{apiKey},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, normalize.Normalize(cfg.ID, resp.StatusCode, resp.Body, resp.Header)
	}

	return extractImage(cfg.ID, resp.Body)
}

// =============================================================================
// 🔍 响应解析
// =============================================================================

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// responsePart 同时兼容服务商的两种字段拼写
type responsePart struct {
	Text        string           `json:"text,omitempty"`
	InlineData  *inlineDataCamel `json:"inlineData,omitempty"`
	InlineSnake *inlineDataSnake `json:"inline_data,omitempty"`
}

type inlineDataCamel struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type inlineDataSnake struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

func extractImage(serviceID string, body []byte) (*Result, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, normalize.ResponseFormat(serviceID, msgBadFormat, body).WithCause(err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, normalize.ResponseFormat(serviceID, msgBadFormat, body)
	}

	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.InlineSnake != nil {
			return &Result{Data: part.InlineSnake.Data, MimeType: part.InlineSnake.MimeType}, nil
		}
		if part.InlineData != nil {
			return &Result{Data: part.InlineData.Data, MimeType: part.InlineData.MimeType}, nil
		}
	}
	return nil, normalize.ResponseFormat(serviceID, msgNoImage, body)
}

func withQueryParam(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
