// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供媒体网关服务端程序入口。

# 概述

cmd/mediagateway 装配服务注册表、网关编排器、提示词库与幂等存储，
对外提供 JSON HTTP API，并在独立端口暴露 Prometheus /metrics。
配置来自 YAML 文件与 MEDIAGW_ 前缀的环境变量。

# 子命令

  - serve [--config path]   启动 API 与 Metrics 两个服务器，收到 SIGINT/SIGTERM 后优雅关闭
  - version                 打印 Version、BuildTime、GitCommit（通过 ldflags 注入）
  - health [--addr url]     请求 /health，非 200 时以 1 退出

# 中间件链

Recovery、RequestID、SecurityHeaders、OTelTracing、MetricsMiddleware、
RequestLogger、CORS、RateLimiter（基于 IP）、APIKeyAuth、MaxBody，
按此顺序由外到内包裹路由。RequestLogger 会对 access_key、secret_key、
api_key、key 查询参数打码。
*/
package main
