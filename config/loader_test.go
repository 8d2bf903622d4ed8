// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvPrefix("MEDIAGW_TEST_NONE").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 120*time.Second, cfg.Gateway.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins: ["https://studio.example.com"]
  api_keys: ["k1", "k2"]

gateway:
  services_file: /etc/mediagw/services.json
  max_retries: 2
  token_ttl: 15m
  refresh_margin: 1m
  proxy_url: http://127.0.0.1:10809
  insecure_skip_verify: true

database:
  driver: postgres
  host: db.internal
  name: prompts

idempotency:
  backend: redis
  ttl: 1h

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).WithEnvPrefix("MEDIAGW_TEST_NONE").Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://studio.example.com"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)

	assert.Equal(t, "/etc/mediagw/services.json", cfg.Gateway.ServicesFile)
	assert.Equal(t, 2, cfg.Gateway.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Gateway.TokenTTL)
	assert.Equal(t, time.Minute, cfg.Gateway.RefreshMargin)
	assert.Equal(t, "http://127.0.0.1:10809", cfg.Gateway.ProxyURL)
	assert.True(t, cfg.Gateway.InsecureSkipVerify)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, 10*time.Second, cfg.Gateway.NotBeforeSkew)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Idempotency.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Gateway, cfg.Gateway)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("MEDIAGW_SERVER_HTTP_PORT", "9000")
	t.Setenv("MEDIAGW_SERVER_API_KEYS", "a, b ,c")
	t.Setenv("MEDIAGW_GATEWAY_REQUEST_TIMEOUT", "45s")
	t.Setenv("MEDIAGW_GATEWAY_PROXY_URL", "http://proxy:3128")
	t.Setenv("MEDIAGW_GATEWAY_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("MEDIAGW_TELEMETRY_SAMPLE_RATE", "0.25")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	assert.Equal(t, 45*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, "http://proxy:3128", cfg.Gateway.ProxyURL)
	assert.True(t, cfg.Gateway.InsecureSkipVerify)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRate, 1e-9)
}

func TestLoader_EnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  max_retries: 2\n"), 0o644))
	t.Setenv("CUSTOM_GATEWAY_MAX_RETRIES", "7")

	cfg, err := NewLoader().WithConfigPath(path).WithEnvPrefix("CUSTOM").Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Gateway.MaxRetries)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("MEDIAGW_GATEWAY_TOKEN_TTL", "half an hour")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEDIAGW_GATEWAY_TOKEN_TTL")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithEnvPrefix("MEDIAGW_TEST_NONE").
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	assert.NoError(t, err)

	t.Setenv("MEDIAGW_SERVER_HTTP_PORT", "70000")
	_, err = NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestMustLoad_Panics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
	assert.Panics(t, func() { MustLoad(path) })
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"same ports", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "must differ"},
		{"half tls", func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, "tls_cert_file"},
		{"no services file", func(c *Config) { c.Gateway.ServicesFile = "" }, "services_file"},
		{"zero timeout", func(c *Config) { c.Gateway.RequestTimeout = 0 }, "request_timeout"},
		{"negative retries", func(c *Config) { c.Gateway.MaxRetries = -1 }, "max_retries"},
		{"margin beyond ttl", func(c *Config) { c.Gateway.RefreshMargin = c.Gateway.TokenTTL }, "refresh_margin"},
		{"relative proxy", func(c *Config) { c.Gateway.ProxyURL = "127.0.0.1:10809" }, "proxy_url"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "oracle"},
		{"bad idempotency backend", func(c *Config) { c.Idempotency.Backend = "etcd" }, "etcd"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "trace"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateIgnoresDisabledIdempotency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idempotency.Enabled = false
	cfg.Idempotency.Backend = ""
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		cfg  DatabaseConfig
		want string
	}{
		{DatabaseConfig{Driver: "sqlite", Name: "prompts.db"}, "prompts.db"},
		{DatabaseConfig{Driver: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"},
			"host=h port=5432 user=u password=p dbname=n sslmode=disable"},
		{DatabaseConfig{Driver: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Name: "n"},
			"u:p@tcp(h:3306)/n?parseTime=true&charset=utf8mb4"},
		{DatabaseConfig{Driver: "oracle"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Driver, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
