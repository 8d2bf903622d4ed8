// =============================================================================
// 📦 媒体网关默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Gateway:     DefaultGatewayConfig(),
		Database:    DefaultDatabaseConfig(),
		Redis:       DefaultRedisConfig(),
		Idempotency: DefaultIdempotencyConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    32 << 20,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultGatewayConfig 返回默认外部调用配置
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ServicesFile:   "configs/services.json",
		RequestTimeout: 120 * time.Second,
		MaxRetries:     4,
		TokenTTL:       1800 * time.Second,
		RefreshMargin:  300 * time.Second,
		NotBeforeSkew:  10 * time.Second,
		RefreshRetries: 3,
		RefreshDelay:   time.Second,
		PollInterval:   5 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "mediagateway",
		Name:            "prompts.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultIdempotencyConfig 返回默认幂等配置
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		Enabled:   true,
		Backend:   "memory",
		TTL:       24 * time.Hour,
		KeyPrefix: "mediagw:idem:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mediagateway",
		SampleRate:   0.1,
	}
}
