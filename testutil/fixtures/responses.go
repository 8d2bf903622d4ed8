// =============================================================================
// 📦 测试数据工厂 - 服务商响应与服务配置
// =============================================================================
// 提供预定义的服务商响应体和 ServiceConfig，用于测试
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/gateway/template"
)

// =============================================================================
// 🖼️ 图像服务商响应
// =============================================================================

// ImageCamelCase 返回 inlineData/mimeType 拼写的图像响应
func ImageCamelCase(data, mime string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":%q,"mimeType":%q}}]}}]}`, data, mime)
}

// ImageSnakeCase 返回 inline_data/mime_type 拼写的图像响应，前面带一段文本
func ImageSnakeCase(data, mime string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":"done"},{"inline_data":{"data":%q,"mime_type":%q}}]}}]}`, data, mime)
}

// ImageNoCandidates 空候选响应
const ImageNoCandidates = `{"candidates":[]}`

// ImageTextOnly 只有文本、没有图像的响应
const ImageTextOnly = `{"candidates":[{"content":{"parts":[{"text":"I cannot do that"}]}}]}`

// =============================================================================
// 🎬 视频服务商响应
// =============================================================================

// VideoCreated 返回任务创建成功的响应
func VideoCreated(taskID string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","request_id":"req-create","data":{"task_id":%q,"task_status":"submitted"}}`, taskID)
}

// VideoStatus 返回处于 status 状态的查询响应
func VideoStatus(taskID, status string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":%q}}`, taskID, status)
}

// VideoSucceeded 返回生成成功的查询响应
func VideoSucceeded(taskID, url string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":"succeed","task_result":{"videos":[{"id":"v1","url":%q,"duration":"5"}]}}}`, taskID, url)
}

// VideoFailed 返回生成失败的查询响应
func VideoFailed(taskID, msg string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":"failed","task_status_msg":%q}}`, taskID, msg)
}

// BusinessError 返回 HTTP 200 中携带非零业务码的响应
func BusinessError(code int, msg string) string {
	return fmt.Sprintf(`{"code":%d,"message":%q,"request_id":"req-biz"}`, code, msg)
}

// ProviderError 返回错误状态码对应的响应体
func ProviderError(code int, msg string) string {
	return fmt.Sprintf(`{"code":%d,"message":%q,"request_id":"req-err"}`, code, msg)
}

// =============================================================================
// ⚙️ 服务配置
// =============================================================================

// ImageTemplate 是 contents[0].parts[0].text 约定的图像模板
func ImageTemplate() template.Value {
	v, err := template.Parse([]byte(`{
	  "contents": [{
	    "parts": [
	      {"text": "Remove the background."},
	      {"inline_data": {"mime_type": "{{mime_type}}", "data": "{{base64_image}}"}}
	    ]
	  }],
	  "generationConfig": {"temperature": 0.4}
	}`))
	if err != nil {
		panic(err)
	}
	return v
}

// ImageService 返回指向 baseURL 的图像服务配置
func ImageService(baseURL string) registry.ServiceConfig {
	return registry.ServiceConfig{
		ID:              "gemini-bg",
		DisplayName:     "Gemini 背景移除",
		Endpoint:        baseURL + "/v1beta/models/gemini:generateContent",
		DefaultModel:    "gemini-2.0-flash-exp",
		Auth:            registry.AuthConfig{Type: registry.AuthAPIKeyQueryParam, KeyName: "key"},
		PayloadTemplate: ImageTemplate(),
	}
}

// VideoService 返回指向 baseURL 的视频服务配置，使用默认模板
func VideoService(baseURL string) registry.ServiceConfig {
	return registry.ServiceConfig{
		ID:           "kling",
		DisplayName:  "可灵",
		EndpointBase: baseURL,
		Endpoints: registry.Endpoints{
			CreateTask: "/v1/videos/image2video",
			QueryTask:  "/v1/videos/image2video/",
		},
		DefaultModel: "kling-v1",
		Auth:         registry.AuthConfig{Type: registry.AuthBearerJWT},
	}
}

// Registry 构建包含一个图像服务和一个视频服务的注册表
func Registry(imageBase, videoBase string) *registry.Registry {
	r, err := registry.New(
		[]registry.ServiceConfig{ImageService(imageBase)},
		[]registry.ServiceConfig{VideoService(videoBase)},
	)
	if err != nil {
		panic(err)
	}
	return r
}
