package main

import (
	"net/http"

	"github.com/BaSui01/mediagateway/api/handlers"
)

// publicPaths 不需要网关 API Key
var publicPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

type routes struct {
	health   *handlers.HealthHandler
	services *handlers.ServicesHandler
	images   *handlers.ImageHandler
	videos   *handlers.VideoHandler
	prompts  *handlers.PromptHandler
}

func newRouter(r routes) *http.ServeMux {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查
	// ========================================
	mux.HandleFunc("GET /health", r.health.HandleHealth)
	mux.HandleFunc("GET /healthz", r.health.HandleHealth)
	mux.HandleFunc("GET /ready", r.health.HandleReady)
	mux.HandleFunc("GET /readyz", r.health.HandleReady)
	mux.HandleFunc("GET /version", r.health.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 网关 API
	// ========================================
	mux.HandleFunc("GET /api/services", r.services.HandleList)
	mux.HandleFunc("POST /api/image-process", r.images.HandleProcess)
	mux.HandleFunc("POST /api/video-generate", r.videos.HandleCreate)
	mux.HandleFunc("POST /api/multi-image-video-generate", r.videos.HandleCreateMulti)
	mux.HandleFunc("GET /api/video-status/{task_id}", r.videos.HandleStatus)
	mux.HandleFunc("GET /api/multi-image-video-status/{task_id}", r.videos.HandleMultiStatus)

	// ========================================
	// 提示词库
	// ========================================
	mux.HandleFunc("GET /api/prompts", r.prompts.HandleList)
	mux.HandleFunc("POST /api/prompts", r.prompts.HandleSave)
	mux.HandleFunc("DELETE /api/prompts/{name}", r.prompts.HandleDelete)

	return mux
}
