package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/video"
	"github.com/BaSui01/mediagateway/internal/idempotency"
	"github.com/BaSui01/mediagateway/types"
)

// 幂等与凭据相关的请求头
const (
	IdempotencyKeyHeader = "Idempotency-Key"
	AccessKeyHeader      = "X-Access-Key"
	SecretKeyHeader      = "X-Secret-Key"
)

// MaxIdempotencyKeyLength 是 Idempotency-Key 的最大长度
const MaxIdempotencyKeyLength = 255

// VideoGateway 视频任务操作，*gateway.Gateway 满足该接口
type VideoGateway interface {
	CreateVideoTask(ctx context.Context, req video.CreateRequest) (string, error)
	CreateMultiImageVideoTask(ctx context.Context, req video.MultiImageRequest) (string, error)
	QueryVideoTask(ctx context.Context, req video.QueryRequest) (*video.Task, error)
	QueryMultiImageVideoTask(ctx context.Context, req video.QueryRequest) (*video.Task, error)
}

// VideoGenerateRequest POST /api/video-generate 的请求体
type VideoGenerateRequest struct {
	ServiceID        string `json:"service_id"`
	AccessKey        string `json:"access_key,omitempty"`
	SecretKey        string `json:"secret_key,omitempty"`
	Prompt           string `json:"prompt"`
	ModelName        string `json:"model_name,omitempty"`
	StartFrameBase64 string `json:"start_frame_base64"`
	EndFrameBase64   string `json:"end_frame_base64"`
	Duration         string `json:"duration,omitempty"`
	Mode             string `json:"mode,omitempty"`
}

// MultiImageVideoGenerateRequest POST /api/multi-image-video-generate 的请求体
type MultiImageVideoGenerateRequest struct {
	ServiceID      string   `json:"service_id"`
	AccessKey      string   `json:"access_key,omitempty"`
	SecretKey      string   `json:"secret_key,omitempty"`
	Prompt         string   `json:"prompt"`
	ModelName      string   `json:"model_name,omitempty"`
	ImageList      []string `json:"image_list"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	Mode           string   `json:"mode,omitempty"`
}

// TaskCreatedResponse 创建接口的响应
type TaskCreatedResponse struct {
	TaskID string `json:"task_id"`
	// Replayed 为 true 表示结果来自幂等缓存，未重新提交任务
	Replayed bool `json:"replayed,omitempty"`
}

// VideoStatusResponse 状态查询接口的响应
type VideoStatusResponse struct {
	TaskID       string      `json:"task_id"`
	Status       string      `json:"status"`
	State        video.State `json:"state"`
	VideoURL     string      `json:"video_url,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// idempotentResult 是幂等存储中的记录，Fingerprint 为去除凭据后请求体的哈希
type idempotentResult struct {
	TaskCreatedResponse
	Fingerprint string `json:"fingerprint,omitempty"`
}

// VideoHandler 视频任务处理器
type VideoHandler struct {
	videos  VideoGateway
	idem    idempotency.Store
	idemTTL time.Duration
	logger  *zap.Logger
}

// NewVideoHandler 创建视频任务处理器。idem 为 nil 时忽略 Idempotency-Key。
func NewVideoHandler(videos VideoGateway, idem idempotency.Store, idemTTL time.Duration, logger *zap.Logger) *VideoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHandler{
		videos:  videos,
		idem:    idem,
		idemTTL: idemTTL,
		logger:  logger.With(zap.String("handler", "video")),
	}
}

// =============================================================================
// 🎬 创建
// =============================================================================

// HandleCreate 处理 POST /api/video-generate
func (h *VideoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req VideoGenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	applyVideoDefaults(&req.Duration, &req.Mode)
	if msg := validateVideoRequest(&req); msg != "" {
		WriteError(w, invalid(msg), h.logger)
		return
	}

	payload := req
	payload.AccessKey, payload.SecretKey = "", ""
	h.create(w, r, video.OperationCreate, req.ServiceID, req.AccessKey, payload, func(ctx context.Context) (string, error) {
		return h.videos.CreateVideoTask(ctx, video.CreateRequest{
			ServiceID:  req.ServiceID,
			AccessKey:  req.AccessKey,
			SecretKey:  req.SecretKey,
			Prompt:     req.Prompt,
			StartFrame: req.StartFrameBase64,
			EndFrame:   req.EndFrameBase64,
			Model:      req.ModelName,
			Duration:   req.Duration,
			Mode:       req.Mode,
		})
	})
}

// HandleCreateMulti 处理 POST /api/multi-image-video-generate
func (h *VideoHandler) HandleCreateMulti(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req MultiImageVideoGenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	applyVideoDefaults(&req.Duration, &req.Mode)
	if msg := validateMultiImageRequest(&req); msg != "" {
		WriteError(w, invalid(msg), h.logger)
		return
	}

	payload := req
	payload.AccessKey, payload.SecretKey = "", ""
	h.create(w, r, video.OperationCreateMulti, req.ServiceID, req.AccessKey, payload, func(ctx context.Context) (string, error) {
		return h.videos.CreateMultiImageVideoTask(ctx, video.MultiImageRequest{
			ServiceID:      req.ServiceID,
			AccessKey:      req.AccessKey,
			SecretKey:      req.SecretKey,
			Prompt:         req.Prompt,
			Images:         req.ImageList,
			Model:          req.ModelName,
			NegativePrompt: req.NegativePrompt,
			Duration:       req.Duration,
			Mode:           req.Mode,
		})
	})
}

// create 执行创建并处理 Idempotency-Key：命中缓存时直接返回已有 task_id，
// 同一个键携带不同请求体时返回 422。
func (h *VideoHandler) create(w http.ResponseWriter, r *http.Request, operation, serviceID, accessKey string, payload any, submit func(context.Context) (string, error)) {
	ctx := r.Context()

	key, ok := h.idempotencyKey(w, r, operation, serviceID, accessKey)
	if !ok {
		return
	}
	var fingerprint string
	if key != "" {
		var err error
		if fingerprint, err = idempotency.Key(operation+".body", payload); err != nil {
			WriteGatewayError(w, err, h.logger)
			return
		}

		cached, found, err := idempotency.GetTyped[idempotentResult](ctx, h.idem, key)
		switch {
		case err != nil:
			// 幂等存储不可用时照常提交
			h.logger.Warn("idempotency lookup failed", zap.String("operation", operation), zap.Error(err))
		case found && cached.Fingerprint != "" && cached.Fingerprint != fingerprint:
			h.logger.Warn("idempotency key reused with different body",
				zap.String("operation", operation),
				zap.String("service_id", serviceID),
			)
			WriteError(w, types.NewError(types.ErrInvalidRequest, "Idempotency-Key 已用于不同的请求").
				WithHTTPStatus(http.StatusUnprocessableEntity), h.logger)
			return
		case found:
			h.logger.Info("video task replayed",
				zap.String("operation", operation),
				zap.String("service_id", serviceID),
				zap.String("task_id", cached.TaskID),
			)
			resp := cached.TaskCreatedResponse
			resp.Replayed = true
			WriteSuccess(w, resp)
			return
		}
	}

	taskID, err := submit(ctx)
	if err != nil {
		WriteGatewayError(w, err, h.logger)
		return
	}

	resp := TaskCreatedResponse{TaskID: taskID}
	if key != "" {
		record := idempotentResult{TaskCreatedResponse: resp, Fingerprint: fingerprint}
		if err := idempotency.SetTyped(ctx, h.idem, key, record, h.idemTTL); err != nil {
			h.logger.Warn("idempotency store failed", zap.String("operation", operation), zap.Error(err))
		}
	}

	h.logger.Info("video task created",
		zap.String("operation", operation),
		zap.String("service_id", serviceID),
		zap.String("task_id", taskID),
	)
	WriteSuccess(w, resp)
}

// idempotencyKey 读取并哈希 Idempotency-Key。ok 为 false 时已写出错误响应。
func (h *VideoHandler) idempotencyKey(w http.ResponseWriter, r *http.Request, operation, serviceID, accessKey string) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if raw == "" || h.idem == nil {
		return "", true
	}
	if len(raw) > MaxIdempotencyKeyLength {
		WriteError(w, invalid("Idempotency-Key 过长"), h.logger)
		return "", false
	}
	key, err := idempotency.Key(operation, serviceID, accessKey, raw)
	if err != nil {
		WriteGatewayError(w, err, h.logger)
		return "", false
	}
	return key, true
}

// =============================================================================
// 🔍 查询
// =============================================================================

// HandleStatus 处理 GET /api/video-status/{task_id}
func (h *VideoHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, h.videos.QueryVideoTask)
}

// HandleMultiStatus 处理 GET /api/multi-image-video-status/{task_id}
func (h *VideoHandler) HandleMultiStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, h.videos.QueryMultiImageVideoTask)
}

func (h *VideoHandler) status(w http.ResponseWriter, r *http.Request, query func(context.Context, video.QueryRequest) (*video.Task, error)) {
	req := queryRequestFrom(r)
	switch {
	case strings.TrimSpace(req.TaskID) == "":
		WriteError(w, invalid("task_id 不能为空"), h.logger)
		return
	case req.ServiceID == "":
		WriteError(w, invalid("service_id 不能为空"), h.logger)
		return
	}

	task, err := query(r.Context(), req)
	if err != nil {
		WriteGatewayError(w, err, h.logger)
		return
	}

	WriteSuccess(w, VideoStatusResponse{
		TaskID:       task.TaskID,
		Status:       task.Status,
		State:        task.State(),
		VideoURL:     task.VideoURL,
		ErrorMessage: task.ErrorMessage,
	})
}

// queryRequestFrom 凭据优先取请求头，兼容旧客户端的查询参数
func queryRequestFrom(r *http.Request) video.QueryRequest {
	q := r.URL.Query()
	req := video.QueryRequest{
		ServiceID: strings.TrimSpace(q.Get("service_id")),
		AccessKey: r.Header.Get(AccessKeyHeader),
		SecretKey: r.Header.Get(SecretKeyHeader),
		TaskID:    r.PathValue("task_id"),
	}
	if req.AccessKey == "" {
		req.AccessKey = q.Get("access_key")
	}
	if req.SecretKey == "" {
		req.SecretKey = q.Get("secret_key")
	}
	return req
}

// =============================================================================
// 🛡️ 校验
// =============================================================================

func applyVideoDefaults(duration, mode *string) {
	if *duration == "" {
		*duration = video.DefaultDuration
	}
	if *mode == "" {
		*mode = video.DefaultMode
	}
}

func validDuration(d string) bool {
	return d == "5" || d == "10"
}

func validateVideoRequest(req *VideoGenerateRequest) string {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	switch {
	case req.ServiceID == "":
		return "service_id 不能为空"
	case strings.TrimSpace(req.Prompt) == "":
		return "prompt 不能为空"
	case req.StartFrameBase64 == "":
		return "start_frame_base64 不能为空"
	case req.EndFrameBase64 == "":
		return "end_frame_base64 不能为空"
	case !validDuration(req.Duration):
		return "duration参数只支持5或10秒"
	default:
		return ""
	}
}

func validateMultiImageRequest(req *MultiImageVideoGenerateRequest) string {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	switch {
	case req.ServiceID == "":
		return "service_id 不能为空"
	case strings.TrimSpace(req.Prompt) == "":
		return "prompt 不能为空"
	case len(req.ImageList) == 0:
		return "至少需要1张图片"
	case !validDuration(req.Duration):
		return "duration参数只支持5或10秒"
	}
	for _, img := range req.ImageList {
		if img == "" {
			return "image_list 中不能有空图片"
		}
	}
	return ""
}
