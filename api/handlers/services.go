package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/registry"
)

// ServiceLister 列出某一类别的服务，*gateway.Gateway 满足该接口
type ServiceLister interface {
	Services(category registry.Category) []registry.ServiceConfig
}

// ServiceInfo 对外展示的服务信息，不包含任何凭据
type ServiceInfo struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	DefaultModel   string              `json:"default_model,omitempty"`
	AuthType       registry.AuthType   `json:"auth_type"`
	Category       registry.Category   `json:"category"`
	Endpoints      *registry.Endpoints `json:"endpoints,omitempty"`
	HasCredentials bool                `json:"has_credentials"`
}

// ServicesResponse GET /api/services 的响应
type ServicesResponse struct {
	ImageServices []ServiceInfo `json:"image_services"`
	VideoServices []ServiceInfo `json:"video_services"`
}

// ServicesHandler 服务列表处理器
type ServicesHandler struct {
	services ServiceLister
	logger   *zap.Logger
}

// NewServicesHandler 创建服务列表处理器
func NewServicesHandler(services ServiceLister, logger *zap.Logger) *ServicesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServicesHandler{services: services, logger: logger}
}

// HandleList 处理 GET /api/services
func (h *ServicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	resp := ServicesResponse{
		ImageServices: toServiceInfos(h.services.Services(registry.CategoryImage)),
		VideoServices: toServiceInfos(h.services.Services(registry.CategoryVideo)),
	}

	h.logger.Debug("services listed",
		zap.Int("image_services", len(resp.ImageServices)),
		zap.Int("video_services", len(resp.VideoServices)),
	)
	WriteSuccess(w, resp)
}

func toServiceInfos(cfgs []registry.ServiceConfig) []ServiceInfo {
	out := make([]ServiceInfo, 0, len(cfgs))
	for _, c := range cfgs {
		info := ServiceInfo{
			ID:             c.ID,
			Name:           c.DisplayName,
			DefaultModel:   c.DefaultModel,
			AuthType:       c.Auth.Type,
			Category:       c.Category,
			HasCredentials: c.HasCredentials(),
		}
		if c.Category == registry.CategoryVideo {
			ep := c.Endpoints
			info.Endpoints = &ep
		}
		out = append(out, info)
	}
	return out
}
