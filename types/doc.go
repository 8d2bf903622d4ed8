// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供媒体网关的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 gateway、api、cmd
等上层模块提供统一的错误契约与 Context 传播工具。

# 核心类型

  - Error / ErrorCode：网关唯一的错误类型，含 HTTPStatus、Details、RequestID、
    Retryable 与 Provider 标记；Message 始终是可展示给用户的文本，
    服务商原始响应只进入 Details
  - 错误码分为本地错误（SERVICE_NOT_FOUND、INVALID_REQUEST）、
    服务商错误（AUTHENTICATION、RATE_LIMITED 等）与传输/格式错误

# 主要能力

  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - Context 传播：WithRequestID / RequestID，由 RequestID 中间件写入
*/
package types
