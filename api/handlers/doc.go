// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供媒体网关 HTTP API 的请求处理器实现。

# 概述

handlers 包把 gateway 包的编排操作暴露为 JSON HTTP 端点，负责请求
解码与校验、幂等重放、统一响应格式，以及 *types.Error 到 HTTP 状态码
的映射。所有 Handler 均为标准 http.HandlerFunc，路由使用 Go 1.22 的
方法模式注册。

# 路由

  - GET    /api/services                              ServicesHandler.HandleList
  - POST   /api/image-process                         ImageHandler.HandleProcess
  - POST   /api/video-generate                        VideoHandler.HandleCreate
  - POST   /api/multi-image-video-generate            VideoHandler.HandleCreateMulti
  - GET    /api/video-status/{task_id}                VideoHandler.HandleStatus
  - GET    /api/multi-image-video-status/{task_id}    VideoHandler.HandleMultiStatus
  - GET    /api/prompts, POST /api/prompts            PromptHandler
  - DELETE /api/prompts/{name}                        PromptHandler.HandleDelete
  - /health /healthz /ready /readyz /version          HealthHandler

# 响应与错误

成功与失败都使用 Response 信封（success + data/error + timestamp +
request_id）。错误的 Details 字段可能包含服务商原始响应体，只写入日志，
不会返回给调用方。服务列表只输出 has_credentials，不输出任何密钥。

# 幂等

创建视频任务时可携带 Idempotency-Key 请求头。键按
(操作, service_id, access_key, 客户端键) 哈希后存入 idempotency.Store，
命中时直接返回已有 task_id 并标记 replayed；失败结果不缓存。
记录中同时保存去除凭据后请求体的哈希，同一个键携带不同请求体时返回 422。
*/
package handlers
