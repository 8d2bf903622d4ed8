// Package tlsutil 提供集中式 TLS 配置，
// 为网关入口与访问 AI 服务商的出站客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），
// 并支持出站代理与 HTTP/2。
package tlsutil
