package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mediagateway/api/handlers"
	"github.com/BaSui01/mediagateway/config"
	"github.com/BaSui01/mediagateway/gateway"
	"github.com/BaSui01/mediagateway/gateway/observability"
	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/internal/database"
	"github.com/BaSui01/mediagateway/internal/idempotency"
	"github.com/BaSui01/mediagateway/internal/metrics"
	"github.com/BaSui01/mediagateway/internal/server"
	"github.com/BaSui01/mediagateway/internal/telemetry"
	"github.com/BaSui01/mediagateway/internal/tlsutil"
	"github.com/BaSui01/mediagateway/prompts"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 持有网关进程的全部长生命周期资源
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	collector *metrics.Collector
	otel      *telemetry.Providers
	db        *database.PoolManager
	idem      idempotency.Store
	gateway   *gateway.Gateway

	httpManager    *server.Manager
	metricsManager *server.Manager

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 按配置装配服务。失败时已打开的资源会被释放。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (s *Server, err error) {
	s = &Server{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.release(context.WithoutCancel(ctx))
			s = nil
		}
	}()

	// 1. 指标与遥测
	s.collector = metrics.NewCollector("mediagateway", logger)

	s.otel, err = telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry, tracing disabled", zap.Error(err))
		s.otel, err = nil, nil
	}

	// 2. 服务注册表与网关
	if err = s.initGateway(); err != nil {
		return s, err
	}

	// 3. 提示词库
	prompter, err := s.initPrompts(ctx)
	if err != nil {
		return s, err
	}

	// 4. 幂等存储
	if err = s.initIdempotency(ctx); err != nil {
		return s, err
	}

	// 5. HTTP 服务器
	health := handlers.NewHealthHandler(logger)
	health.RegisterCheck(handlers.NewFuncCheck("database", s.db.Ping))
	if p, ok := s.idem.(interface{ Ping(context.Context) error }); ok {
		health.RegisterCheck(handlers.NewFuncCheck("redis", p.Ping))
	}

	s.initHTTPServer(health, prompter)
	s.initMetricsServer()

	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initGateway() error {
	g := s.cfg.Gateway

	reg, err := registry.LoadFile(g.ServicesFile)
	if err != nil {
		return fmt.Errorf("load services: %w", err)
	}

	client, err := tlsutil.ProviderClient(tlsutil.ClientOptions{
		Timeout:            g.RequestTimeout,
		ProxyURL:           g.ProxyURL,
		InsecureSkipVerify: g.InsecureSkipVerify,
	})
	if err != nil {
		return fmt.Errorf("build provider client: %w", err)
	}
	if g.InsecureSkipVerify {
		s.logger.Warn("provider TLS verification disabled")
	}

	s.gateway = gateway.New(reg, gateway.Options{
		HTTPClient:     client,
		MaxRetries:     &g.MaxRetries,
		TokenTTL:       g.TokenTTL,
		RefreshMargin:  g.RefreshMargin,
		NotBeforeSkew:  g.NotBeforeSkew,
		RefreshRetries: g.RefreshRetries,
		RefreshDelay:   g.RefreshDelay,
		PollInterval:   g.PollInterval,
		Logger:         s.logger,
		Sink: observability.Combine(
			observability.NewZapSink(s.logger),
			observability.NewMetricsSink(s.collector),
		),
		TracerProvider: s.otel.TracerProvider(),
		CacheRecorder:  s.collector,
		TaskRecorder:   s.collector,
	})

	s.logger.Info("service registry loaded",
		zap.String("file", g.ServicesFile),
		zap.Int("image_services", len(reg.List(registry.CategoryImage))),
		zap.Int("video_services", len(reg.List(registry.CategoryVideo))),
	)
	return nil
}

func (s *Server) initPrompts(ctx context.Context) (*prompts.Store, error) {
	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.db = db

	store := prompts.NewStore(db.DB(),
		prompts.WithTransactor(db),
		prompts.WithQueryRecorder(s.collector),
		prompts.WithLogger(s.logger),
	)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Server) initIdempotency(ctx context.Context) error {
	store, err := idempotency.New(ctx, s.cfg.Idempotency, s.cfg.Redis, s.logger)
	if err != nil {
		return fmt.Errorf("init idempotency store: %w", err)
	}
	s.idem = store
	if store == nil {
		s.logger.Info("idempotency disabled")
	}
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) initHTTPServer(health *handlers.HealthHandler, prompter handlers.PromptStore) {
	var idem idempotency.Store
	if s.idem != nil {
		idem = idempotency.Instrument(s.idem, s.collector)
	}

	mux := newRouter(routes{
		health:   health,
		services: handlers.NewServicesHandler(s.gateway, s.logger),
		images:   handlers.NewImageHandler(s.gateway, s.logger),
		videos:   handlers.NewVideoHandler(s.gateway, idem, s.cfg.Idempotency.TTL, s.logger),
		prompts:  handlers.NewPromptHandler(prompter, s.logger),
	})

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	sc := s.cfg.Server
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(sc.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(sc.RateLimitRPS), sc.RateLimitBurst, s.logger),
		APIKeyAuth(sc.APIKeys, publicPaths, sc.AllowQueryAPIKey, s.logger),
		MaxBody(sc.MaxBodyBytes),
	)

	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", sc.HTTPPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     2 * sc.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: sc.ShutdownTimeout,
		CertFile:        sc.TLSCertFile,
		KeyFile:         sc.TLSKeyFile,
	}
	if sc.TLSCertFile != "" {
		serverConfig.TLSConfig = tlsutil.ServerTLSConfig()
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) initMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	sc := s.cfg.Server
	s.metricsManager = server.NewManager(mux, server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", sc.MetricsPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.ReadTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
	}, s.logger)
}

// =============================================================================
// 🛑 运行与关闭
// =============================================================================

// Run 启动 API 与 Metrics 两个服务器，直到 ctx 取消或任一服务器出错
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })
	g.Go(func() error { return s.metricsManager.Run(gctx) })

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", s.cfg.Server.TLSCertFile != ""),
		zap.Bool("idempotency", s.idem != nil),
	)

	err := g.Wait()

	s.logger.Info("Starting graceful shutdown...")
	s.release(context.WithoutCancel(ctx))
	s.logger.Info("Graceful shutdown completed")
	return err
}

// release 关闭服务器之外的资源，可在部分初始化后调用
func (s *Server) release(ctx context.Context) {
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	var errs []error
	if s.idem != nil {
		errs = append(errs, s.idem.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.otel != nil {
		errs = append(errs, s.otel.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("resource shutdown error", zap.Error(err))
	}
}
