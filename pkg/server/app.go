package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"RangePulse/internal/usecase"
	pkgch "RangePulse/pkg/clickhouse"
	"RangePulse/pkg/config"
	xhttp "RangePulse/pkg/http"
	pkgkafka "RangePulse/pkg/kafka"
	applogger "RangePulse/pkg/logger"
	pkgpg "RangePulse/pkg/postgres"
	"RangePulse/pkg/queue"
)

// App owns the process lifecycle: the HTTP API, the optional live-feed
// ingest loop, the optional Kafka storage consumer, and the job queue.
type App struct {
	cfg     *config.Config
	logger  *applogger.Logger
	handler xhttp.Handler

	httpServer *xhttp.Server

	ingest         *usecase.IngestUseCase
	consumer       *pkgkafka.Consumer
	candlesHandler *usecase.KafkaCandlesHandler
	jobQueue       *queue.RedisQueue

	producer    *pkgkafka.Producer
	chClient    *pkgch.Client
	pgClient    *pkgpg.Client
	redisClient *redis.Client
}

// AppOption configures optional App components.
type AppOption func(*App)

// WithIngest attaches the live-feed ingest loop. A nil ingest is ignored.
func WithIngest(ingest *usecase.IngestUseCase) AppOption {
	return func(a *App) { a.ingest = ingest }
}

// WithKafkaConsumer attaches the candle storage consumer. A nil consumer is
// ignored.
func WithKafkaConsumer(consumer *pkgkafka.Consumer, handler *usecase.KafkaCandlesHandler) AppOption {
	return func(a *App) {
		a.consumer = consumer
		a.candlesHandler = handler
	}
}

// WithJobQueue attaches the optimization job queue.
func WithJobQueue(q *queue.RedisQueue) AppOption {
	return func(a *App) { a.jobQueue = q }
}

// WithInfra hands the App the infrastructure clients it must close on
// shutdown.
func WithInfra(producer *pkgkafka.Producer, ch *pkgch.Client, pg *pkgpg.Client, rd *redis.Client) AppOption {
	return func(a *App) {
		a.producer = producer
		a.chClient = ch
		a.pgClient = pg
		a.redisClient = rd
	}
}

// New creates the application.
func New(cfg *config.Config, logger *applogger.Logger, handler xhttp.Handler, opts ...AppOption) *App {
	a := &App{cfg: cfg, logger: logger, handler: handler}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every configured component and blocks until SIGINT or
// SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.cfg.Metrics.Path),
		xhttp.WithServerLogger(a.logger),
	)

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.logger.Error("job queue start", applogger.Error(err))
			return err
		}
		a.logger.Info("job queue started")
	}

	if a.consumer != nil && a.candlesHandler != nil {
		a.consumer.RegisterHandler(a.candlesHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.candlesHandler.Topic()))
	}

	if a.ingest != nil {
		go func() {
			if err := a.ingest.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("ingest loop", applogger.Error(err))
			}
		}()
		a.logger.Info("ingest started",
			applogger.Strings("symbols", a.cfg.Stream.Symbols),
			applogger.String("backend", a.cfg.Backend.Type),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Warn("http shutdown", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop", applogger.Error(err))
		}
	}
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(ctx); err != nil {
			a.logger.Warn("job queue stop", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close", applogger.Error(err))
		}
	}
	if a.pgClient != nil {
		a.pgClient.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
