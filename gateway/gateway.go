package gateway

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/mediagateway/gateway/credentials"
	"github.com/BaSui01/mediagateway/gateway/image"
	"github.com/BaSui01/mediagateway/gateway/normalize"
	"github.com/BaSui01/mediagateway/gateway/observability"
	"github.com/BaSui01/mediagateway/gateway/registry"
	"github.com/BaSui01/mediagateway/gateway/retry"
	"github.com/BaSui01/mediagateway/gateway/video"
)

// DefaultPollInterval 是 WaitForVideoTask 的默认轮询间隔
const DefaultPollInterval = 5 * time.Second

// Options 汇总网关的可调参数，零值字段使用各组件的默认值
type Options struct {
	HTTPClient *http.Client
	// MaxRetries 为 nil 时使用默认的 4 次；指向 0 表示只尝试一次
	MaxRetries     *int
	TokenTTL       time.Duration
	RefreshMargin  time.Duration
	NotBeforeSkew  time.Duration
	RefreshRetries int
	RefreshDelay   time.Duration
	PollInterval   time.Duration

	Logger         *zap.Logger
	Sink           observability.Sink
	TracerProvider trace.TracerProvider
	CacheRecorder  credentials.CacheRecorder
	TaskRecorder   TaskRecorder

	// 测试注入
	Sleep retry.SleepFunc
	Clock func() time.Time
}

// TaskRecorder receives video task lifecycle signals.
// *metrics.Collector satisfies it.
type TaskRecorder interface {
	RecordVideoTaskCreated(serviceID, operation string)
	RecordVideoTaskPoll(serviceID, state string)
}

type nopTaskRecorder struct{}

func (nopTaskRecorder) RecordVideoTaskCreated(string, string) {}
func (nopTaskRecorder) RecordVideoTaskPoll(string, string)    {}

// Gateway is the task orchestrator. It owns one credential manager for its
// lifetime and routes each operation to the image or video pipeline.
type Gateway struct {
	registry     *registry.Registry
	tokens       *credentials.Manager
	image        *image.Processor
	video        *video.Client
	tracer       *observability.Tracer
	sink         observability.Sink
	tasks        TaskRecorder
	logger       *zap.Logger
	pollInterval time.Duration
}

// New wires a gateway around reg.
func New(reg *registry.Registry, opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = observability.NopSink{}
	}

	credOpts := []credentials.Option{
		credentials.WithLogger(logger),
		credentials.WithTimings(opts.TokenTTL, opts.RefreshMargin, opts.NotBeforeSkew),
	}
	if opts.Clock != nil {
		credOpts = append(credOpts, credentials.WithClock(opts.Clock))
	}
	if opts.CacheRecorder != nil {
		credOpts = append(credOpts, credentials.WithCacheRecorder(opts.CacheRecorder))
	}
	tokens := credentials.NewManager(credOpts...)

	execOpts := []retry.Option{retry.WithSink(sink), retry.WithLogger(logger)}
	if opts.HTTPClient != nil {
		execOpts = append(execOpts, retry.WithHTTPClient(opts.HTTPClient))
	}
	if opts.MaxRetries != nil {
		execOpts = append(execOpts, retry.WithMaxRetries(*opts.MaxRetries))
	}
	if opts.Sleep != nil {
		execOpts = append(execOpts, retry.WithSleep(opts.Sleep))
	}
	exec := retry.NewExecutor(execOpts...)

	refreshRetries := opts.RefreshRetries
	if refreshRetries <= 0 {
		refreshRetries = retry.DefaultRefreshRetries
	}
	refresh := retry.NewRefreshLoop(refreshRetries, opts.RefreshDelay, sink, opts.Sleep)

	tasks := opts.TaskRecorder
	if tasks == nil {
		tasks = nopTaskRecorder{}
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	return &Gateway{
		registry:     reg,
		tokens:       tokens,
		image:        image.NewProcessor(reg, exec, logger),
		video:        video.NewClient(reg, tokens, exec, refresh, logger),
		tracer:       observability.NewTracer(opts.TracerProvider),
		sink:         sink,
		tasks:        tasks,
		logger:       logger.With(zap.String("component", "gateway")),
		pollInterval: poll,
	}
}

// Registry returns the service registry the gateway routes against.
func (g *Gateway) Registry() *registry.Registry { return g.registry }

// Services lists configured services of one category.
func (g *Gateway) Services(category registry.Category) []registry.ServiceConfig {
	return g.registry.List(category)
}

// =============================================================================
// 🖼️ 图像
// =============================================================================

// ProcessImage runs a synchronous image transform.
func (g *Gateway) ProcessImage(ctx context.Context, req image.Request) (*image.Result, error) {
	var res *image.Result
	err := g.observe(ctx, image.OperationProcess, req.ServiceID, func(ctx context.Context) error {
		var err error
		res, err = g.image.Process(ctx, req)
		return err
	})
	return res, err
}

// =============================================================================
// 🎬 视频
// =============================================================================

// CreateVideoTask submits a first/last-frame video task.
func (g *Gateway) CreateVideoTask(ctx context.Context, req video.CreateRequest) (string, error) {
	var id string
	err := g.observe(ctx, video.OperationCreate, req.ServiceID, func(ctx context.Context) error {
		var err error
		id, err = g.video.CreateTask(ctx, req)
		if err == nil {
			g.tasks.RecordVideoTaskCreated(req.ServiceID, video.OperationCreate)
		}
		return err
	})
	return id, err
}

// CreateMultiImageVideoTask submits a task built from an image list.
func (g *Gateway) CreateMultiImageVideoTask(ctx context.Context, req video.MultiImageRequest) (string, error) {
	var id string
	err := g.observe(ctx, video.OperationCreateMulti, req.ServiceID, func(ctx context.Context) error {
		var err error
		id, err = g.video.CreateMultiImageTask(ctx, req)
		if err == nil {
			g.tasks.RecordVideoTaskCreated(req.ServiceID, video.OperationCreateMulti)
		}
		return err
	})
	return id, err
}

// QueryVideoTask polls a first/last-frame task once.
func (g *Gateway) QueryVideoTask(ctx context.Context, req video.QueryRequest) (*video.Task, error) {
	var task *video.Task
	err := g.observe(ctx, video.OperationQuery, req.ServiceID, func(ctx context.Context) error {
		var err error
		task, err = g.video.QueryTask(ctx, req)
		if err == nil {
			g.tasks.RecordVideoTaskPoll(req.ServiceID, string(task.State()))
		}
		return err
	})
	return task, err
}

// QueryMultiImageVideoTask polls a multi-image task once.
func (g *Gateway) QueryMultiImageVideoTask(ctx context.Context, req video.QueryRequest) (*video.Task, error) {
	var task *video.Task
	err := g.observe(ctx, video.OperationQueryMulti, req.ServiceID, func(ctx context.Context) error {
		var err error
		task, err = g.video.QueryMultiImageTask(ctx, req)
		if err == nil {
			g.tasks.RecordVideoTaskPoll(req.ServiceID, string(task.State()))
		}
		return err
	})
	return task, err
}

// WaitForVideoTask queries the task until it reaches a terminal state or ctx
// is done. A failed task is returned without error; callers inspect Status.
func (g *Gateway) WaitForVideoTask(ctx context.Context, req video.QueryRequest) (*video.Task, error) {
	return g.wait(ctx, req, g.QueryVideoTask)
}

// WaitForMultiImageVideoTask is WaitForVideoTask for multi-image tasks.
func (g *Gateway) WaitForMultiImageVideoTask(ctx context.Context, req video.QueryRequest) (*video.Task, error) {
	return g.wait(ctx, req, g.QueryMultiImageVideoTask)
}

type queryFunc func(context.Context, video.QueryRequest) (*video.Task, error)

func (g *Gateway) wait(ctx context.Context, req video.QueryRequest, query queryFunc) (*video.Task, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		task, err := query(ctx, req)
		if err != nil {
			return nil, err
		}
		if task.Terminal() {
			return task, nil
		}
		g.logger.Debug("video task pending",
			zap.String("service_id", req.ServiceID),
			zap.String("task_id", task.TaskID),
			zap.String("status", task.Status))

		select {
		case <-ctx.Done():
			return task, normalize.NetworkFailure(req.ServiceID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// observe 为每个操作打开 span，失败时向 sink 发送一条错误事件
func (g *Gateway) observe(ctx context.Context, operation, serviceID string, fn func(context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, operation, serviceID)
	start := time.Now()

	err := fn(ctx)
	if err != nil {
		g.sink.Emit(ctx, observability.ErrorEvent(serviceID, operation, time.Since(start), err))
	}
	g.tracer.End(span, err)
	return err
}
