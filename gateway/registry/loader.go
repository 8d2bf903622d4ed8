package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// File is the on-disk services configuration.
type File struct {
	ImageProcessingServices []ServiceConfig `json:"image_processing_services"`
	VideoGenerationServices []ServiceConfig `json:"video_generation_services"`
}

// LoadFile reads and validates a services JSON file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file: %w", err)
	}
	return Load(data)
}

// Load parses and validates services JSON.
func Load(data []byte) (*Registry, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse services file: %w", err)
	}
	return New(f.ImageProcessingServices, f.VideoGenerationServices)
}

// MustLoad is Load that panics on error. Use only with static configuration.
func MustLoad(data []byte) *Registry {
	r, err := Load(data)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) validate() error {
	var errs []error

	seen := make(map[string]bool)
	for i, svc := range r.image {
		prefix := fmt.Sprintf("image_processing_services[%d]", i)
		if svc.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", prefix))
		} else if seen[svc.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", prefix, svc.ID))
		}
		seen[svc.ID] = true

		if strings.TrimSpace(svc.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("%s: api_endpoint is required", prefix))
		}
		if svc.Auth.Type != AuthAPIKeyQueryParam {
			errs = append(errs, fmt.Errorf("%s: auth.type must be %q", prefix, AuthAPIKeyQueryParam))
		} else if svc.Auth.KeyName == "" {
			errs = append(errs, fmt.Errorf("%s: auth.key_name is required", prefix))
		}
		if svc.PayloadTemplate.IsNull() {
			errs = append(errs, fmt.Errorf("%s: payload_template is required", prefix))
		}
	}

	seen = make(map[string]bool)
	for i, svc := range r.video {
		prefix := fmt.Sprintf("video_generation_services[%d]", i)
		if svc.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", prefix))
		} else if seen[svc.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", prefix, svc.ID))
		}
		seen[svc.ID] = true

		if strings.TrimSpace(svc.EndpointBase) == "" {
			errs = append(errs, fmt.Errorf("%s: api_endpoint_base is required", prefix))
		}
		if svc.Endpoints.CreateTask == "" || svc.Endpoints.QueryTask == "" {
			errs = append(errs, fmt.Errorf("%s: endpoints.create_task and endpoints.query_task are required", prefix))
		}
		if svc.Auth.Type != AuthBearerJWT {
			errs = append(errs, fmt.Errorf("%s: auth.type must be %q", prefix, AuthBearerJWT))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid services config: %w", errors.Join(errs...))
	}
	return nil
}
