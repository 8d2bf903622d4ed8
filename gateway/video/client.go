package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/credentials"
	"github.com/BaSui01/mediagateway/gateway/normalize"
	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/gateway/retry"
	"github.com/BaSui01/mediagateway/gateway/template"
	"github.com/BaSui01/mediagateway/types"
)

const (
	msgBadFormat = "AI服务返回的响应格式不正确"
	msgNoTaskID  = "AI服务未返回任务ID"
	msgNoImages  = "至少需要1张图片"
	msgNoTaskRef = "任务ID不能为空"
)

// Resolver looks up service configurations.
type Resolver interface {
	Resolve(id string, category registry.Category) (registry.ServiceConfig, error)
}

// TokenIssuer signs bearer tokens. *credentials.Manager satisfies it.
type TokenIssuer interface {
	IssueToken(accessKey, secretKey string) (string, error)
	Invalidate(accessKey, secretKey string)
}

// Client creates and polls video generation tasks.
type Client struct {
	resolver Resolver
	tokens   TokenIssuer
	exec     *retry.Executor
	refresh  *retry.RefreshLoop
	logger   *zap.Logger
}

// NewClient creates a video client.
func NewClient(resolver Resolver, tokens TokenIssuer, exec *retry.Executor, refresh *retry.RefreshLoop, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refresh == nil {
		refresh = retry.NewRefreshLoop(retry.DefaultRefreshRetries, retry.DefaultRefreshDelay, nil, nil)
	}
	return &Client{
		resolver: resolver,
		tokens:   tokens,
		exec:     exec,
		refresh:  refresh,
		logger:   logger.With(zap.String("component", "video")),
	}
}

// =============================================================================
// 🎬 创建任务
// =============================================================================

// CreateTask submits a first/last-frame generation task and returns its id.
func (c *Client) CreateTask(ctx context.Context, req CreateRequest) (string, error) {
	return c.create(ctx, twoImage, createParams{
		serviceID: req.ServiceID,
		pair:      credentials.Pair{AccessKey: req.AccessKey, SecretKey: req.SecretKey},
		prompt:    req.Prompt,
		start:     req.StartFrame,
		end:       req.EndFrame,
		model:     req.Model,
		duration:  req.Duration,
		mode:      req.Mode,
	})
}

// CreateMultiImageTask submits a task from an image list. The first image is
// the start frame and the last image the end frame; a single image is used
// for both. Images in between are not sent.
func (c *Client) CreateMultiImageTask(ctx context.Context, req MultiImageRequest) (string, error) {
	if len(req.Images) == 0 {
		return c.create(ctx, multiImage, createParams{serviceID: req.ServiceID, noImages: true})
	}
	if len(req.Images) > 2 {
		// TODO: confirm with product whether middle frames should be sent once providers accept keyframe lists.
		c.logger.Debug("multi-image task keeps only first and last frame",
			zap.String("service_id", req.ServiceID),
			zap.Int("images", len(req.Images)))
	}
	return c.create(ctx, multiImage, createParams{
		serviceID: req.ServiceID,
		pair:      credentials.Pair{AccessKey: req.AccessKey, SecretKey: req.SecretKey},
		prompt:    req.Prompt,
		start:     req.Images[0],
		end:       req.Images[len(req.Images)-1],
		model:     req.Model,
		negative:  req.NegativePrompt,
		duration:  req.Duration,
		mode:      req.Mode,
	})
}

type createParams struct {
	serviceID string
	pair      credentials.Pair
	prompt    string
	start     string
	end       string
	model     string
	negative  string
	duration  string
	mode      string
	noImages  bool
}

func (c *Client) create(ctx context.Context, v variant, p createParams) (string, error) {
	cfg, err := c.resolver.Resolve(p.serviceID, registry.CategoryVideo)
	if err != nil {
		return "", err
	}
	if p.noImages {
		return "", normalize.InvalidRequest(cfg.ID, msgNoImages)
	}
	pair, err := resolvePair(cfg, p.pair)
	if err != nil {
		return "", err
	}
	token, err := c.tokens.IssueToken(pair.AccessKey, pair.SecretKey)
	if err != nil {
		return "", err
	}

	values := map[string]string{
		"model_name": firstNonEmpty(p.model, cfg.DefaultModel),
		"prompt":     p.prompt,
		"image":      p.start,
		"image_tail": p.end,
		"duration":   firstNonEmpty(p.duration, DefaultDuration),
		"mode":       firstNonEmpty(p.mode, DefaultMode),
	}
	if p.negative != "" {
		values["negative_prompt"] = p.negative
	}
	body, err := json.Marshal(buildPayload(cfg.PayloadTemplate, values))
	if err != nil {
		return "", normalize.InvalidRequest(cfg.ID, "请求载荷构建失败").WithCause(err)
	}

	resp, err := c.exec.Call(ctx, retry.Request{
		ServiceID: cfg.ID,
		Operation: v.createOp,
		URL:       cfg.CreateURL(),
		Header:    bearer(token),
		Body:      body,
		Secrets:   []string{token, pair.SecretKey},
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", normalize.Normalize(cfg.ID, resp.StatusCode, resp.Body, resp.Header)
	}

	env, err := decodeEnvelope(cfg.ID, resp.Body)
	if err != nil {
		return "", err
	}
	if !env.ok() {
		return "", normalize.BusinessFailure(cfg.ID, env.Message, v.createFallback, resp.Body)
	}
	if env.Data.TaskID == "" {
		return "", normalize.ResponseFormat(cfg.ID, msgNoTaskID, resp.Body)
	}

	c.logger.Info("video task created",
		zap.String("service_id", cfg.ID),
		zap.String("task_id", env.Data.TaskID))
	return env.Data.TaskID, nil
}

// buildPayload 渲染模板；未提供反向提示词时去掉对应字段
func buildPayload(tpl template.Value, values map[string]string) template.Value {
	payload := template.Build(tpl, values)
	if _, ok := values["negative_prompt"]; ok {
		return payload
	}
	if f, ok := payload.Field("negative_prompt"); ok {
		if s, isStr := f.AsString(); isStr && (s == "" || template.IsPlaceholder(s)) {
			payload = payload.Without("negative_prompt")
		}
	}
	return payload
}

// =============================================================================
// 🔍 查询任务
// =============================================================================

// QueryTask polls a first/last-frame task.
func (c *Client) QueryTask(ctx context.Context, req QueryRequest) (*Task, error) {
	return c.query(ctx, twoImage, req)
}

// QueryMultiImageTask polls a multi-image task.
func (c *Client) QueryMultiImageTask(ctx context.Context, req QueryRequest) (*Task, error) {
	return c.query(ctx, multiImage, req)
}

func (c *Client) query(ctx context.Context, v variant, req QueryRequest) (*Task, error) {
	cfg, err := c.resolver.Resolve(req.ServiceID, registry.CategoryVideo)
	if err != nil {
		return nil, err
	}
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return nil, normalize.InvalidRequest(cfg.ID, msgNoTaskRef)
	}
	pair, err := resolvePair(cfg, credentials.Pair{AccessKey: req.AccessKey, SecretKey: req.SecretKey})
	if err != nil {
		return nil, err
	}

	endpoint := cfg.QueryURL(url.PathEscape(taskID))
	var lastToken string
	attempt := 0

	resp, err := c.refresh.Run(ctx, cfg.ID, v.queryOp,
		func(force bool) (string, error) {
			if force {
				c.tokens.Invalidate(pair.AccessKey, pair.SecretKey)
			}
			tok, err := c.tokens.IssueToken(pair.AccessKey, pair.SecretKey)
			lastToken = tok
			return tok, err
		},
		func(ctx context.Context, token string) (*retry.Response, error) {
			attempt++
			return c.exec.Once(ctx, retry.Request{
				ServiceID: cfg.ID,
				Operation: v.queryOp,
				Method:    http.MethodGet,
				URL:       endpoint,
				Header:    bearer(token),
				Secrets:   []string{token, pair.SecretKey},
			}, attempt)
		},
	)
	if err != nil {
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, normalize.NetworkFailure(cfg.ID, err, lastToken, pair.SecretKey)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, normalize.Normalize(cfg.ID, resp.StatusCode, resp.Body, resp.Header)
	}

	env, err := decodeEnvelope(cfg.ID, resp.Body)
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, normalize.BusinessFailure(cfg.ID, env.Message, v.queryFallback, resp.Body)
	}

	task := &Task{TaskID: taskID, Status: env.Data.TaskStatus}
	if task.Status == "" {
		task.Status = ProviderStatusUnknown
	}
	switch task.Status {
	case ProviderStatusSucceed:
		if len(env.Data.TaskResult.Videos) > 0 {
			task.VideoURL = env.Data.TaskResult.Videos[0].URL
		}
	case ProviderStatusFailed:
		task.ErrorMessage = v.failedFallback
		if msg := env.Data.TaskStatusMsg; msg != nil {
			task.ErrorMessage = *msg
		}
	}
	return task, nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// envelope 是视频服务商的统一响应结构
type envelope struct {
	Code      any    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg *string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// ok 业务码必须是数值 0；缺失也视为失败
func (e *envelope) ok() bool {
	n, isNum := e.Code.(float64)
	return isNum && n == 0
}

func decodeEnvelope(serviceID string, body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, normalize.ResponseFormat(serviceID, msgBadFormat, body).WithCause(err)
	}
	return &env, nil
}

// resolvePair 调用方未提供凭据时回退到服务配置中的预置凭据
func resolvePair(cfg registry.ServiceConfig, given credentials.Pair) (credentials.Pair, error) {
	pair := given
	if pair.AccessKey == "" && pair.SecretKey == "" {
		pair = credentials.Pair{AccessKey: cfg.AccessKey, SecretKey: cfg.SecretKey}
	}
	if pair.Empty() {
		return credentials.Pair{}, normalize.MissingCredentials(cfg.ID)
	}
	return pair, nil
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
