package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/prompts"
	"github.com/BaSui01/mediagateway/types"
)

// PromptStore 提示词库，*prompts.Store 满足该接口
type PromptStore interface {
	List(ctx context.Context) ([]prompts.Prompt, error)
	Add(ctx context.Context, name, prompt string) (*prompts.Prompt, error)
	Delete(ctx context.Context, name string) error
}

// PromptSaveRequest POST /api/prompts 的请求体
type PromptSaveRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// PromptListResponse GET /api/prompts 的响应
type PromptListResponse struct {
	Prompts []prompts.Prompt `json:"prompts"`
}

// PromptHandler 提示词库处理器
type PromptHandler struct {
	store  PromptStore
	logger *zap.Logger
}

// NewPromptHandler 创建提示词库处理器
func NewPromptHandler(store PromptStore, logger *zap.Logger) *PromptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptHandler{store: store, logger: logger.With(zap.String("handler", "prompts"))}
}

// HandleList 处理 GET /api/prompts
func (h *PromptHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "获取提示词库失败").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError), h.logger)
		return
	}
	if list == nil {
		list = []prompts.Prompt{}
	}
	WriteSuccess(w, PromptListResponse{Prompts: list})
}

// HandleSave 处理 POST /api/prompts，同名返回 400
func (h *PromptHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req PromptSaveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	p, err := h.store.Add(r.Context(), req.Name, req.Prompt)
	switch {
	case errors.Is(err, prompts.ErrDuplicateName), errors.Is(err, prompts.ErrInvalidPrompt):
		WriteError(w, invalid(err.Error()), h.logger)
		return
	case err != nil:
		WriteError(w, types.NewError(types.ErrInternalError, "保存提示词失败").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError), h.logger)
		return
	}

	WriteSuccess(w, p)
}

// HandleDelete 处理 DELETE /api/prompts/{name}
func (h *PromptHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := h.store.Delete(r.Context(), name)
	switch {
	case errors.Is(err, prompts.ErrNotFound):
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	case err != nil:
		WriteError(w, types.NewError(types.ErrInternalError, "删除提示词失败").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError), h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"name": name})
}
