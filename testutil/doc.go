// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供媒体网关测试的共享工具和辅助函数。

# 概述

testutil 为 gateway、api、cmd 各包的单元测试提供统一的辅助能力，
避免重复实现假服务商、可观测等待等测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext
  - 退避观测: RecordingSleeper 记录每次等待时长而不真正阻塞，
    用于断言精确的退避序列
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: FakeProvider（基于 httptest 的脚本化服务商，
    记录每个入站请求并按顺序返回预设响应，可模拟连接中断）、
    RecordingSink（收集网关事件）
  - testutil/fixtures: 服务商响应体样例（图像 inline data、
    视频任务创建/查询、业务错误）与服务配置样例

# 使用示例

	fp := mocks.NewFakeProvider(t).Enqueue(
		mocks.Reply{Status: 503},
		mocks.Reply{Status: 200, Body: fixtures.VideoCreated("T1")},
	)
	cfg := fixtures.VideoService(fp.URL())
*/
package testutil
