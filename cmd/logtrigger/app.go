package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"logtrigger/internal/action"
	"logtrigger/internal/admin"
	"logtrigger/internal/broker"
	"logtrigger/internal/config"
	"logtrigger/internal/constants"
	"logtrigger/internal/logger"
	"logtrigger/internal/pipeline"
	"logtrigger/internal/queue"
	"logtrigger/internal/reload"
	"logtrigger/internal/rules"
	"logtrigger/internal/source"
	"logtrigger/pkg/bootstrap"
	"logtrigger/pkg/circuitbreaker"
	"logtrigger/pkg/health"
	"logtrigger/pkg/logging"
	"logtrigger/pkg/metrics"
	"logtrigger/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	configPath string

	engine   *rules.Engine
	gate     *rules.CooldownGate
	reloader *reload.Reloader
	input    *queue.Queue[pipeline.LogLine]
	source   source.Source
	pipeline *pipeline.Pipeline
	health   *health.CheckerRegistry

	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(configPath string, cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:       bootstrap.NewBase(cfg, log),
		configPath: configPath,
		health:     health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, a.Config.Tracing.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterPipelineMetrics()
	if a.Config.UsesKafka() {
		metrics.RegisterBrokerMetrics()
	}
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}
	if a.Config.Server.RateLimit.Enabled {
		metrics.RegisterAdminMetrics()
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRules(ctx); err != nil {
		return fmt.Errorf("failed to initialize rules: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if a.Config.Server.Enabled {
		a.initHTTPServer(ctx)
	}

	return nil
}

func (a *App) initRules(ctx context.Context) error {
	a.engine = rules.NewEngine(a.Logger)
	a.gate = rules.NewCooldownGate()

	path := a.configPath
	initial := a.Config
	load := func(ctx context.Context) ([]rules.Definition, error) {
		if initial != nil {
			defs := initial.Definitions()
			initial = nil
			return defs, nil
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return cfg.Definitions(), nil
	}
	a.reloader = reload.NewReloader(load, a.engine, a.gate, a.Logger)

	res, err := a.reloader.Reload(ctx, constants.ReloadTriggerStartup)
	if err != nil {
		return err
	}
	for _, problem := range res.Problems {
		a.Logger.WarnwCtx(ctx, "Rule disabled by configuration problem", "problem", problem)
	}
	if res.ActiveRules == 0 {
		a.Logger.WarnwCtx(ctx, "No active rules, lines will be read but nothing will fire")
	}
	return nil
}

func (a *App) initPipeline() error {
	sink, err := a.buildSink()
	if err != nil {
		return err
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		return err
	}

	stats := pipeline.NewStats()
	exec := action.NewExecutor(sink, notifier, a.Logger,
		action.WithRecorder(stats),
		action.WithSubject(a.Config.Notify.Subject),
	)

	a.input = queue.New[pipeline.LogLine]()

	src, err := source.New(a.Config, a.Consumer, a.Logger)
	if err != nil {
		return err
	}
	a.source = src

	a.pipeline = pipeline.New(a.input, a.engine, a.gate, exec, pipeline.Config{
		Parallel:       a.Config.Pipeline.Parallel,
		Workers:        a.Config.Pipeline.Workers,
		StallThreshold: a.Config.Pipeline.StallThreshold(),
	}, a.Logger, pipeline.WithStats(stats))
	a.health.Register(a.pipeline)

	return nil
}

func (a *App) buildSink() (action.Sink, error) {
	switch a.Config.Executor.Mode {
	case constants.ExecutorModeTmux:
		tc := a.Config.Executor.Tmux
		sink := action.NewTmuxSink(tc.Binary, tc.Target, tc.CommandTimeout())
		a.health.Register(sink)
		return sink, nil
	case constants.ExecutorModeDryRun:
		a.Logger.Warnw("Executor in dry-run mode, keystrokes are only logged")
		return action.NewDryRunSink(a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown executor mode: %s", a.Config.Executor.Mode)
	}
}

func (a *App) buildNotifier() (action.Notifier, error) {
	var n action.Notifier

	switch a.Config.Notify.Transport {
	case constants.NotifyTransportNone, "":
		return action.NewNopNotifier(a.Logger), nil
	case constants.NotifyTransportSMTP:
		s := a.Config.Notify.SMTP
		n = action.NewSMTPNotifier(action.SMTPSettings{
			Server:    s.Server,
			Port:      s.Port,
			Username:  s.Username,
			Password:  s.Password,
			From:      s.From,
			To:        s.To,
			EnableSSL: s.EnableSSL,
		}, broker.PolicyFromConfig(a.Config.Notify.Retry), a.Logger)
	case constants.NotifyTransportKafka:
		if a.Producer == nil {
			return nil, errors.New("kafka notifier requires a broker producer")
		}
		n = action.NewKafkaNotifier(a.Producer, a.Config.Broker.Kafka.NotificationTopic)
	default:
		return nil, fmt.Errorf("unknown notify transport: %s", a.Config.Notify.Transport)
	}

	if !a.Config.CircuitBreaker.Enabled {
		return n, nil
	}

	cb := a.Config.CircuitBreaker
	wrapper := circuitbreaker.NewWrapper(circuitbreaker.Config{
		Name:        "notify-" + a.Config.Notify.Transport,
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: circuitbreaker.RatioTrip(cb.MinRequests, cb.FailureRatio),
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.Logger.Warnw("Notifier circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return action.NewBreakerNotifier(n, wrapper, a.Logger), nil
}

func (a *App) initHTTPServer(ctx context.Context) {
	handler := admin.NewHandler(a.engine, a.reloader, a.gate, a.pipeline, a.health, a.Logger)
	router := admin.NewRouter(ctx, a.Config.Server, handler, a.Logger, serviceName)
	a.server = admin.NewServer(a.Config.Server, router)
}

func (a *App) Run(ctx context.Context) error {
	// The pipeline drains on shutdown rather than on cancellation.
	if err := a.pipeline.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srcCtx := logging.WithServiceName(gCtx, serviceName)
		a.Logger.InfowCtx(srcCtx, "Source starting", "source", a.source.Name())
		if err := a.source.Run(gCtx, a.input); err != nil {
			return fmt.Errorf("source %s: %w", a.source.Name(), err)
		}
		a.Logger.InfowCtx(srcCtx, "Source finished", "source", a.source.Name())
		return nil
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
		case <-a.pipeline.Done():
			return nil
		}
		return a.stopPipeline()
	})

	if a.Config.Reload.Watch {
		watcher := reload.NewWatcher(a.configPath, a.Config.Reload.Debounce(), a.reloader, a.Logger)
		g.Go(func() error {
			if err := watcher.Run(gCtx); err != nil {
				a.Logger.WarnwCtx(gCtx, "Config watcher stopped, file-triggered reload disabled", "error", err)
			}
			return nil
		})
	}

	if topic := a.Config.Broker.Kafka.ConfigUpdateTopic; topic != "" && a.Consumer != nil {
		events := reload.NewEventHandler(a.reloader, a.engine, a.Logger)
		g.Go(func() error {
			configCtx := logging.WithServiceName(gCtx, serviceName)
			a.Logger.InfowCtx(configCtx, "Starting config update event consumer", "topic", topic)
			err := a.Consumer.Consume(gCtx, topic, events.HandleMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("config update consumer: %w", err)
			}
			return nil
		})
	}

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if interval := time.Duration(a.Config.StatusIntervalSeconds) * time.Second; interval > 0 {
		g.Go(func() error {
			a.reportStatus(gCtx, interval)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) stopPipeline() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Pipeline.ShutdownTimeout())
	defer cancel()

	err := a.pipeline.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		a.Logger.Warnw("Pipeline did not drain in time", "timeout", a.Config.Pipeline.ShutdownTimeout().String())
		return nil
	}
	return err
}

// reportStatus logs a one-line summary of the pipeline every interval.
func (a *App) reportStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress := a.pipeline.Progress()
			snap := a.pipeline.Stats().Snapshot()
			table := a.engine.Snapshot()
			a.Logger.Infow("Status",
				"state", progress.State,
				"lines_processed", snap.LinesProcessed,
				"matches", a.engine.MatchCount(),
				"firings", snap.FiringsMatched,
				"queue_depth", progress.QueueDepth,
				"reorder_pending", progress.ReorderPending,
				"active_rules", table.ActiveCount(),
				"stalled", progress.Stalled,
			)
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down logtrigger")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.pipeline != nil {
			if err := a.pipeline.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("pipeline shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
