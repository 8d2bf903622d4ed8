// Package config 提供媒体网关的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → MEDIAGW_ 前缀环境变量 的顺序合并，
// 覆盖 HTTP 入口、外部 AI 服务调用、提示词库数据库、Redis、
// 幂等、日志与遥测。服务商列表本身由 gateway.services_file
// 指向的 JSON 文件提供，见 gateway/registry。
package config
