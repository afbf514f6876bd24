package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"MandiWatch/internal/aggregate"
	"MandiWatch/internal/confidence"
	"MandiWatch/internal/detect"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/internal/evidence"
	"MandiWatch/internal/handler/api"
	"MandiWatch/internal/ingest"
	"MandiWatch/internal/inventory"
	mid "MandiWatch/internal/middleware"
	internalrepo "MandiWatch/internal/repository"
	"MandiWatch/internal/service/pricefeed"
	"MandiWatch/internal/service/ratelimit"
	"MandiWatch/internal/usecase"
	"MandiWatch/pkg/cache"
	pkgch "MandiWatch/pkg/clickhouse"
	"MandiWatch/pkg/config"
	xhttp "MandiWatch/pkg/http"
	pkgkafka "MandiWatch/pkg/kafka"
	"MandiWatch/pkg/logger"
	"MandiWatch/pkg/metrics"
	"MandiWatch/pkg/queue"
	"MandiWatch/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideEvidenceStore creates the ClickHouse evidence store and ensures
// its schema exists.
func ProvideEvidenceStore(chClient *pkgch.Client) (repository.EvidenceStore, error) {
	store := internalrepo.NewClickHouseEvidenceStore(chClient.DB())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("evidence schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAlertSink selects the configured alert delivery sink.
func ProvideAlertSink(cfg *config.Config, producer *pkgkafka.Producer) repository.AlertSink {
	if cfg.Alerts.Sink == "webhook" {
		client := xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
		return internalrepo.NewWebhookAlertSink(client, cfg.Alerts.WebhookURL, cfg.Alerts.Token)
	}
	return internalrepo.NewKafkaAlertSink(producer, cfg.Kafka.AlertsTopic)
}

// ProvideRedisCache creates the Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process cache over Redis for hot read paths.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(rc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideValidator creates the ingest validator.
func ProvideValidator(log *logger.Logger, m repository.Metrics, cfg *config.Config) *ingest.Validator {
	opts := []ingest.Option{}
	if cfg.Ingest.StalenessBound > 0 {
		opts = append(opts, ingest.WithStalenessBound(cfg.Ingest.StalenessBound))
	}
	if cfg.Ingest.ClockSkew > 0 {
		opts = append(opts, ingest.WithClockSkew(cfg.Ingest.ClockSkew))
	}
	if cfg.Ingest.ReliabilityFloor > 0 {
		opts = append(opts, ingest.WithReliabilityFloor(cfg.Ingest.ReliabilityFloor))
	}
	return ingest.NewValidator(log, m, opts...)
}

// ProvideAggregator creates the price aggregator with region centroids.
func ProvideAggregator(cfg *config.Config) *aggregate.Aggregator {
	opts := []aggregate.Option{}
	if cfg.Aggregation.BucketDuration > 0 {
		opts = append(opts, aggregate.WithBucketDuration(cfg.Aggregation.BucketDuration))
	}
	if cfg.Aggregation.RecencyTau > 0 {
		opts = append(opts, aggregate.WithRecencyTau(cfg.Aggregation.RecencyTau))
	}
	if cfg.Aggregation.HistoryBuckets > 0 {
		opts = append(opts, aggregate.WithHistoryLength(cfg.Aggregation.HistoryBuckets))
	}
	if len(cfg.Regions) > 0 {
		centroids := make(map[string]aggregate.Coordinate, len(cfg.Regions))
		for name, ll := range cfg.Centroids() {
			centroids[name] = aggregate.Coordinate{Lat: ll[0], Lon: ll[1]}
		}
		opts = append(opts, aggregate.WithRegionCentroids(centroids))
	}
	return aggregate.NewAggregator(opts...)
}

// ProvideBaselineStore creates the rolling daily baseline store.
func ProvideBaselineStore(cfg *config.Config) *aggregate.BaselineStore {
	return aggregate.NewBaselineStore(cfg.Detection.BaselineWindowDays, cfg.Detection.BaselineMinDays)
}

// ProvideDetector creates the anomaly detector.
func ProvideDetector(cfg *config.Config) *detect.Detector {
	return detect.NewDetector(cfg.Detection)
}

// ProvideTracker creates the inventory tracker.
func ProvideTracker(cfg *config.Config) *inventory.Tracker {
	return inventory.NewTracker(cfg.Detection)
}

// ProvideScorer creates the confidence scorer.
func ProvideScorer(cfg *config.Config) *confidence.Scorer {
	return confidence.NewScorer(cfg.Detection.Confidence)
}

// ProvideBuilder creates the evidence package builder.
func ProvideBuilder() *evidence.Builder {
	return evidence.NewBuilder()
}

// ProvideRegistry creates the in-memory anomaly registry.
func ProvideRegistry() *usecase.Registry {
	return usecase.NewRegistry()
}

// ProvideAlertJob creates the queue job that delivers alerts to the sink.
func ProvideAlertJob(log *logger.Logger, sink repository.AlertSink, m repository.Metrics, cfg *config.Config) *usecase.AlertJob {
	sinkName := cfg.Alerts.Sink
	if sinkName == "" {
		sinkName = "kafka"
	}
	return usecase.NewAlertJob(log, sink, sinkName, m)
}

// ProvideAlertQueue creates the Redis-backed alert dispatch queue with the
// alert job registered.
func ProvideAlertQueue(log *logger.Logger, cfg *config.Config, rc *cache.RedisCache, job *usecase.AlertJob) *queue.RedisQueue {
	q := queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(job)
	return q
}

// ProvideDispatcher creates the evidence-first alert dispatcher.
func ProvideDispatcher(log *logger.Logger, store repository.EvidenceStore, q *queue.RedisQueue, m repository.Metrics) *usecase.Dispatcher {
	return usecase.NewDispatcher(log, store, q, m)
}

// ProvidePipeline creates the ingestion-to-detection pipeline.
func ProvidePipeline(
	log *logger.Logger,
	validator *ingest.Validator,
	aggregator *aggregate.Aggregator,
	baselines *aggregate.BaselineStore,
	detector *detect.Detector,
	tracker *inventory.Tracker,
	scorer *confidence.Scorer,
	builder *evidence.Builder,
	dispatcher *usecase.Dispatcher,
	registry *usecase.Registry,
	store repository.EvidenceStore,
	m repository.Metrics,
) *usecase.Pipeline {
	return usecase.NewPipeline(log, validator, aggregator, baselines, detector, tracker, scorer, builder, dispatcher, registry, store, m)
}

// ProvideQueryService creates the read-side query service.
func ProvideQueryService(
	log *logger.Logger,
	aggregator *aggregate.Aggregator,
	registry *usecase.Registry,
	detector *detect.Detector,
	tracker *inventory.Tracker,
	scorer *confidence.Scorer,
	dispatcher *usecase.Dispatcher,
	store repository.EvidenceStore,
	c cache.Service,
) *usecase.QueryService {
	return usecase.NewQueryService(log, aggregator, registry, detector, tracker, scorer, dispatcher, store, c)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideReportsHandler registers the handler for the price reports topic.
func ProvideReportsHandler(pipeline *usecase.Pipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaReportsHandler {
	return usecase.NewKafkaReportsHandler(cfg.Kafka.ReportsTopic, pipeline, m)
}

// ProvideInventoryHandler registers the handler for the inventory topic.
func ProvideInventoryHandler(pipeline *usecase.Pipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaInventoryHandler {
	return usecase.NewKafkaInventoryHandler(cfg.Kafka.InventoryTopic, pipeline, m)
}

// ProvidePriceFeedStream creates the WebSocket price feed, or nil when the
// feed is disabled.
func ProvidePriceFeedStream(cfg *config.Config) repository.ReportStream {
	if !cfg.PriceFeed.Enabled {
		return nil
	}
	return pricefeed.New(
		cfg.PriceFeed.APIKey,
		cfg.PriceFeed.WebSocketURL,
		cfg.PriceFeed.Commodities,
		cfg.PriceFeed.ReconnectDelay,
		cfg.PriceFeed.PingInterval,
	)
}

// ProvideReportCollector creates the feed collector with a buffered
// throttling stage between the stream and the pipeline.
func ProvideReportCollector(stream repository.ReportStream, pipeline *usecase.Pipeline, m repository.Metrics) *usecase.ReportCollector {
	if stream == nil {
		return nil
	}
	buf := mid.NewStreamBuffer(pipeline, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewReportCollector(stream, buf, m)
}

// ProvideRateLimiter creates the per-source ingest rate limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rps := cfg.Ingest.SourceRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Ingest.SourceBurst
	if burst <= 0 {
		burst = 20
	}
	return ratelimit.New(rps, burst)
}

// ProvideIngestHandler creates the write-side HTTP handler.
func ProvideIngestHandler(log *logger.Logger, pipeline *usecase.Pipeline, limiter *ratelimit.Limiter) *api.IngestHandler {
	return api.NewIngestHandler(log, pipeline, limiter)
}

// ProvideQueryHandler creates the read-side HTTP handler.
func ProvideQueryHandler(log *logger.Logger, query *usecase.QueryService) *api.QueryHandler {
	return api.NewQueryHandler(log, query)
}

// ProvideAdminHandler creates the review and config HTTP handler.
func ProvideAdminHandler(log *logger.Logger, query *usecase.QueryService) *api.AdminHandler {
	return api.NewAdminHandler(log, query)
}

// ProvideRouter combines the API handlers into a single route registrar.
func ProvideRouter(ing *api.IngestHandler, qh *api.QueryHandler, ah *api.AdminHandler) xhttp.Handler {
	return api.NewRouter(ing, qh, ah)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	router xhttp.Handler,
	pipeline *usecase.Pipeline,
	collector *usecase.ReportCollector,
	consumer *pkgkafka.Consumer,
	rh *usecase.KafkaReportsHandler,
	ih *usecase.KafkaInventoryHandler,
	q *queue.RedisQueue,
	dispatcher *usecase.Dispatcher,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, log, router, pipeline, collector, consumer, rh, ih, q, dispatcher, chClient, producer, rc)
}
