// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package gateway 是媒体网关的任务编排入口。

# 概述

Gateway 在进程生命周期内持有唯一的凭据管理器，把调用方请求路由到
图像处理流水线（gateway/image）或视频生成流水线（gateway/video），
并为每个操作打开 OpenTelemetry span、在失败时向 Sink 发送错误事件。

# 操作

  - ProcessImage：同步图像处理，api key 走查询参数
  - CreateVideoTask / CreateMultiImageVideoTask：提交首尾帧视频任务
  - QueryVideoTask / QueryMultiImageVideoTask：单次查询，401 时强制刷新令牌
  - WaitForVideoTask / WaitForMultiImageVideoTask：按固定间隔轮询直到终态

所有操作返回的非 nil 错误都是 *types.Error。

# 使用方式

	reg, _ := registry.LoadFile("configs/services.json")
	gw := gateway.New(reg, gateway.Options{Logger: logger})
	id, err := gw.CreateVideoTask(ctx, video.CreateRequest{ServiceID: "kling-v1", ...})
*/
package gateway
