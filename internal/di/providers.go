package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "RangePulse/internal/domain/repository"
	domsvc "RangePulse/internal/domain/service"
	"RangePulse/internal/handler/api"
	internalrepo "RangePulse/internal/repository"
	"RangePulse/internal/service/cache"
	"RangePulse/internal/service/stream"
	"RangePulse/internal/services/atr"
	"RangePulse/internal/usecase"
	pkgch "RangePulse/pkg/clickhouse"
	"RangePulse/pkg/config"
	xhttp "RangePulse/pkg/http"
	pkgkafka "RangePulse/pkg/kafka"
	applogger "RangePulse/pkg/logger"
	"RangePulse/pkg/metrics"
	pkgpg "RangePulse/pkg/postgres"
	"RangePulse/pkg/queue"
	"RangePulse/pkg/server"
)

const schemaInitTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the ClickHouse client and applies the
// candle schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaInitTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvidePostgresClient creates the Postgres pool and applies the
// parameter-store schema.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithHost(cfg.Postgres.Host, cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithMaxConns(cfg.Postgres.MaxConns),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaInitTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ParamSchema()); err != nil {
		client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideRedisClient creates the shared Redis client used by the job queue
// and, when enabled, the parameter cache.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideBytesCache picks the parameter cache backend.
func ProvideBytesCache(cfg *config.Config, cli *redis.Client) cache.BytesCache {
	if cfg.Redis.Enabled {
		return cache.NewRedisCacheFromClient(cli)
	}
	return cache.NewTTLCache()
}

// ProvideCandleStore creates the ClickHouse candle repository.
func ProvideCandleStore(ch *pkgch.Client, l *applogger.Logger) domrepo.CandleStore {
	store := internalrepo.NewCHCandleStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideParamStore creates the Postgres parameter repository.
func ProvideParamStore(pg *pkgpg.Client, l *applogger.Logger) domrepo.ParamStore {
	store := internalrepo.NewPGParamStore(pg)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates the Kafka producer, or nil when no brokers
// are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithHashByKey(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher wires signal publishing when Kafka is available.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) domrepo.SignalPublisher {
	if producer == nil || cfg.Kafka.SignalsTopic == "" {
		return nil
	}
	pub := internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
	pub.SetLogger(l)
	return pub
}

// ProvideCandleSink routes ingested candles either through Kafka or
// straight into ClickHouse.
func ProvideCandleSink(cfg *config.Config, producer *pkgkafka.Producer, store domrepo.CandleStore, l *applogger.Logger) (domrepo.CandleSink, error) {
	if cfg.Backend.Type == "kafka" {
		if producer == nil {
			return nil, fmt.Errorf("kafka backend requires kafka.brokers")
		}
		sink := internalrepo.NewKafkaCandleSink(producer, cfg.Kafka.CandlesTopic)
		sink.SetLogger(l)
		return sink, nil
	}
	return store, nil
}

// ProvideKafkaConsumer creates the candle-topic consumer for the kafka
// backend, or nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaCandlesHandler persists consumed candle messages.
func ProvideKafkaCandlesHandler(cfg *config.Config, store domrepo.CandleStore, l *applogger.Logger, m domrepo.Metrics) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, store, l, m)
}

// ProvideATRSource creates the external ATR service client, or nil when no
// service URL is configured.
func ProvideATRSource(cfg *config.Config) domsvc.ATRSource {
	if cfg.ATR.ServiceURL == "" {
		return nil
	}
	return atr.NewClient(cfg.ATR.ServiceURL, atr.WithTimeout(cfg.ATR.Timeout))
}

// ProvideCandleStream creates the live exchange feed, or nil when streaming
// is disabled.
func ProvideCandleStream(cfg *config.Config, l *applogger.Logger) domrepo.CandleStream {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.New(
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		domrepo.NormalizeTimeframe(cfg.Stream.Timeframe),
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		l,
	)
}

// ProvideIngestUseCase batches the live feed into the sink.
func ProvideIngestUseCase(str domrepo.CandleStream, sink domrepo.CandleSink, cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *usecase.IngestUseCase {
	if str == nil {
		return nil
	}
	return usecase.NewIngestUseCase(str, sink, l, m,
		usecase.WithBatching(cfg.Backend.BatchSize, cfg.Backend.BatchTimeout),
		usecase.WithReconnectDelay(cfg.Stream.ReconnectDelay),
	)
}

// ProvideParamsUseCase resolves effective stage parameters.
func ProvideParamsUseCase(store domrepo.ParamStore, c cache.BytesCache, cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *usecase.ParamsUseCase {
	ttl := cfg.Scan.ResolveCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return usecase.NewParamsUseCase(store, c, ttl, l, m)
}

// ProvideScanUseCase runs the pipeline over stored candles.
func ProvideScanUseCase(candles domrepo.CandleStore, params *usecase.ParamsUseCase, atrSource domsvc.ATRSource, publisher domrepo.SignalPublisher, l *applogger.Logger, m domrepo.Metrics) *usecase.ScanUseCase {
	var opts []usecase.ScanOption
	if atrSource != nil {
		opts = append(opts, usecase.WithATRSource(atrSource))
	}
	if publisher != nil {
		opts = append(opts, usecase.WithSignalPublisher(publisher))
	}
	return usecase.NewScanUseCase(candles, params, l, m, opts...)
}

// ProvideCandlesUseCase serves raw candles.
func ProvideCandlesUseCase(candles domrepo.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(candles)
}

// ProvideOptimizeUseCase runs grid searches and owns persistence.
func ProvideOptimizeUseCase(candles domrepo.CandleStore, store domrepo.ParamStore, params *usecase.ParamsUseCase, cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *usecase.OptimizeUseCase {
	return usecase.NewOptimizeUseCase(candles, store, params, cfg.Optimizer.Workers, l, m)
}

// ProvideOptimizeJob adapts the optimize use case to the job queue.
func ProvideOptimizeJob(uc *usecase.OptimizeUseCase, l *applogger.Logger) *usecase.OptimizeJob {
	return usecase.NewOptimizeJob(uc, l)
}

// ProvideQueuePublisher enqueues optimization runs.
func ProvideQueuePublisher(l *applogger.Logger, cli *redis.Client) queue.Publisher {
	return queue.NewRedisPublisher(l, cli)
}

// ProvideQueueConsumer processes optimization runs. A single worker keeps
// parameter activation serialized.
func ProvideQueueConsumer(l *applogger.Logger, cfg *config.Config, cli *redis.Client, job *usecase.OptimizeJob) *queue.RedisQueue {
	workers := cfg.Queue.Workers
	if workers <= 0 {
		workers = 1
	}
	return queue.NewRedisConsumer(l, queue.Config{
		Workers:    workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, cli, []queue.Job{job})
}

// ProvideHTTPHandler assembles the route groups.
func ProvideHTTPHandler(l *applogger.Logger, scan *usecase.ScanUseCase, candles *usecase.CandlesUseCase, params *usecase.ParamsUseCase, qpub queue.Publisher) xhttp.Handler {
	return api.NewRouter(
		api.NewScanHandler(l, scan, candles),
		api.NewOptimizeHandler(l, qpub, params),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	ingest *usecase.IngestUseCase,
	consumer *pkgkafka.Consumer,
	candlesHandler *usecase.KafkaCandlesHandler,
	jobQueue *queue.RedisQueue,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	pgClient *pkgpg.Client,
	redisClient *redis.Client,
) *server.App {
	return server.New(cfg, l, handler,
		server.WithIngest(ingest),
		server.WithKafkaConsumer(consumer, candlesHandler),
		server.WithJobQueue(jobQueue),
		server.WithInfra(producer, chClient, pgClient, redisClient),
	)
}
