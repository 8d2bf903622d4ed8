package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/image"
)

// ImageProcessor 同步图像处理，*gateway.Gateway 满足该接口
type ImageProcessor interface {
	ProcessImage(ctx context.Context, req image.Request) (*image.Result, error)
}

// ImageProcessRequest POST /api/image-process 的请求体
type ImageProcessRequest struct {
	ServiceID    string `json:"service_id"`
	APIKey       string `json:"api_key,omitempty"`
	ImageBase64  string `json:"image_base64"`
	MimeType     string `json:"mime_type"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// ImageHandler 图像处理处理器
type ImageHandler struct {
	images ImageProcessor
	logger *zap.Logger
}

// NewImageHandler 创建图像处理处理器
func NewImageHandler(images ImageProcessor, logger *zap.Logger) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{images: images, logger: logger.With(zap.String("handler", "image"))}
}

// HandleProcess 处理 POST /api/image-process
func (h *ImageHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req ImageProcessRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if msg := validateImageRequest(&req); msg != "" {
		WriteError(w, invalid(msg), h.logger)
		return
	}

	start := time.Now()
	res, err := h.images.ProcessImage(r.Context(), image.Request{
		ServiceID:    req.ServiceID,
		APIKey:       req.APIKey,
		ImageBase64:  req.ImageBase64,
		MimeType:     req.MimeType,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		WriteGatewayError(w, err, h.logger)
		return
	}

	h.logger.Info("image processed",
		zap.String("service_id", req.ServiceID),
		zap.Int("image_size", len(req.ImageBase64)),
		zap.Int("result_size", len(res.Data)),
		zap.Duration("duration", time.Since(start)),
	)
	WriteSuccess(w, res)
}

func validateImageRequest(req *ImageProcessRequest) string {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	switch {
	case req.ServiceID == "":
		return "service_id 不能为空"
	case req.ImageBase64 == "":
		return "image_base64 不能为空"
	case !strings.HasPrefix(req.MimeType, "image/"):
		return "mime_type 必须是图像类型"
	default:
		return ""
	}
}
