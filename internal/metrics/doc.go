// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的网关指标采集能力，覆盖
HTTP 入口、服务商调用、视频任务、缓存与数据库五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制。所有指标按 namespace 隔离。Collector 同时满足
observability.ProviderRecorder、credentials.CacheRecorder 与
gateway.TaskRecorder，可直接注入网关各组件。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 服务商指标：按 service_id/operation/精确状态码计数的外部调用、
    调用耗时、重试次数，以及按错误码计数的失败操作。
  - 视频任务指标：创建成功数与查询观察到的状态分布。
  - 缓存指标：令牌缓存与幂等缓存的命中/未命中计数，按 cache_type 分组。
  - 数据库指标：提示词库查询耗时。
*/
package metrics
