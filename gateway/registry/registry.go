package registry

import (
	"github.com/BaSui01/mediagateway/gateway/normalize"
	"github.com/BaSui01/mediagateway/gateway/template"
)

// Category 区分两套互不相交的服务命名空间
type Category string

const (
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
)

// AuthType 认证方式
type AuthType string

const (
	AuthAPIKeyQueryParam AuthType = "api_key_query_param"
	AuthBearerJWT        AuthType = "bearer_jwt"
)

// AuthConfig determines how credentials are attached to a request.
type AuthConfig struct {
	Type    AuthType `json:"type"`
	KeyName string   `json:"key_name,omitempty"`
}

// Endpoints are the relative paths of an async provider.
type Endpoints struct {
	CreateTask string `json:"create_task"`
	QueryTask  string `json:"query_task"`
}

// ServiceConfig is the immutable configuration of one provider.
// Image services set Endpoint; video services set EndpointBase and Endpoints.
type ServiceConfig struct {
	ID              string         `json:"id"`
	DisplayName     string         `json:"name"`
	Category        Category       `json:"-"`
	Endpoint        string         `json:"api_endpoint,omitempty"`
	EndpointBase    string         `json:"api_endpoint_base,omitempty"`
	Endpoints       Endpoints      `json:"endpoints"`
	DefaultModel    string         `json:"default_model,omitempty"`
	Auth            AuthConfig     `json:"auth"`
	PayloadTemplate template.Value `json:"payload_template"`

	// 预置凭据，可为空
	APIKey    string `json:"api_key,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
}

// HasCredentials reports whether the config carries pre-provisioned credentials.
func (c ServiceConfig) HasCredentials() bool {
	switch c.Auth.Type {
	case AuthAPIKeyQueryParam:
		return c.APIKey != ""
	case AuthBearerJWT:
		return c.AccessKey != "" && c.SecretKey != ""
	default:
		return false
	}
}

// CreateURL is the absolute create-task endpoint.
func (c ServiceConfig) CreateURL() string {
	return c.EndpointBase + c.Endpoints.CreateTask
}

// QueryURL is the absolute query endpoint for taskID.
func (c ServiceConfig) QueryURL(taskID string) string {
	return c.EndpointBase + c.Endpoints.QueryTask + taskID
}

// Registry resolves service ids to configurations. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	image []ServiceConfig
	video []ServiceConfig
}

// New builds a registry from validated service lists.
func New(image, video []ServiceConfig) (*Registry, error) {
	r := &Registry{
		image: make([]ServiceConfig, len(image)),
		video: make([]ServiceConfig, len(video)),
	}
	copy(r.image, image)
	copy(r.video, video)
	for i := range r.image {
		r.image[i].Category = CategoryImage
	}
	for i := range r.video {
		r.video[i].Category = CategoryVideo
		if r.video[i].PayloadTemplate.IsNull() {
			r.video[i].PayloadTemplate = DefaultVideoTemplate()
		}
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve finds the config with id in category.
func (r *Registry) Resolve(id string, category Category) (ServiceConfig, error) {
	for _, svc := range r.list(category) {
		if svc.ID == id {
			return svc, nil
		}
	}
	return ServiceConfig{}, normalize.ServiceNotFound(id)
}

// List returns a copy of the services in category.
func (r *Registry) List(category Category) []ServiceConfig {
	src := r.list(category)
	out := make([]ServiceConfig, len(src))
	copy(out, src)
	return out
}

func (r *Registry) list(category Category) []ServiceConfig {
	switch category {
	case CategoryImage:
		return r.image
	case CategoryVideo:
		return r.video
	default:
		return nil
	}
}

// DefaultVideoTemplate is the first/last-frame payload used when a video
// service does not configure its own template.
func DefaultVideoTemplate() template.Value {
	return template.Object(map[string]template.Value{
		"model_name":      template.String(template.Placeholder("model_name")),
		"prompt":          template.String(template.Placeholder("prompt")),
		"negative_prompt": template.String(template.Placeholder("negative_prompt")),
		"image":           template.String(template.Placeholder("image")),
		"image_tail":      template.String(template.Placeholder("image_tail")),
		"duration":        template.String(template.Placeholder("duration")),
		"mode":            template.String(template.Placeholder("mode")),
	})
}
