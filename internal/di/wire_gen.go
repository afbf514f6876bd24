// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"MandiWatch/pkg/config"
	"MandiWatch/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	validator := ProvideValidator(logger, metrics, cfg)
	aggregator := ProvideAggregator(cfg)
	baselineStore := ProvideBaselineStore(cfg)
	detector := ProvideDetector(cfg)
	tracker := ProvideTracker(cfg)
	scorer := ProvideScorer(cfg)
	builder := ProvideBuilder()
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	evidenceStore, err := ProvideEvidenceStore(client)
	if err != nil {
		return nil, err
	}
	redisCache, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	alertSink := ProvideAlertSink(cfg, producer)
	alertJob := ProvideAlertJob(logger, alertSink, metrics, cfg)
	redisQueue := ProvideAlertQueue(logger, cfg, redisCache, alertJob)
	dispatcher := ProvideDispatcher(logger, evidenceStore, redisQueue, metrics)
	registry := ProvideRegistry()
	pipeline := ProvidePipeline(logger, validator, aggregator, baselineStore, detector, tracker, scorer, builder, dispatcher, registry, evidenceStore, metrics)
	limiter := ProvideRateLimiter(cfg)
	ingestHandler := ProvideIngestHandler(logger, pipeline, limiter)
	service := ProvideCache(redisCache)
	queryService := ProvideQueryService(logger, aggregator, registry, detector, tracker, scorer, dispatcher, evidenceStore, service)
	queryHandler := ProvideQueryHandler(logger, queryService)
	adminHandler := ProvideAdminHandler(logger, queryService)
	handler := ProvideRouter(ingestHandler, queryHandler, adminHandler)
	reportStream := ProvidePriceFeedStream(cfg)
	reportCollector := ProvideReportCollector(reportStream, pipeline, metrics)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	kafkaReportsHandler := ProvideReportsHandler(pipeline, metrics, cfg)
	kafkaInventoryHandler := ProvideInventoryHandler(pipeline, metrics, cfg)
	app := ProvideApp(cfg, logger, handler, pipeline, reportCollector, consumer, kafkaReportsHandler, kafkaInventoryHandler, redisQueue, dispatcher, client, producer, redisCache)
	return app, nil
}
