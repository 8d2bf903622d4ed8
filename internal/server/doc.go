// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
基于 context 的运行与优雅关闭。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。网关进程同时运行 API 与 metrics 两个
Manager，各自通过 Run(ctx) 挂在同一个 errgroup 上，进程信号
由 cmd 层转换为 ctx 取消。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Run/Shutdown/Errors/ListenAddr。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小、
    优雅关闭超时，以及可选的 TLS 证书路径。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 结束或服务异常时返回，并完成优雅关闭。
  - TLS：配置 CertFile/KeyFile 后以 HTTPS 服务，TLSConfig 通常来自
    tlsutil.ServerTLSConfig。
*/
package server
