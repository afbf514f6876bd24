package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MandiWatch/internal/usecase"
	"MandiWatch/pkg/cache"
	pkgch "MandiWatch/pkg/clickhouse"
	"MandiWatch/pkg/config"
	xhttp "MandiWatch/pkg/http"
	pkgkafka "MandiWatch/pkg/kafka"
	applogger "MandiWatch/pkg/logger"
	"MandiWatch/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg              *config.Config
	log              *applogger.Logger
	handler          xhttp.Handler
	pipeline         *usecase.Pipeline
	collector        *usecase.ReportCollector
	consumer         *pkgkafka.Consumer
	reportsHandler   *usecase.KafkaReportsHandler
	inventoryHandler *usecase.KafkaInventoryHandler
	queue            *queue.RedisQueue
	dispatcher       *usecase.Dispatcher
	chClient         *pkgch.Client
	producer         *pkgkafka.Producer
	redis            *cache.RedisCache
	httpServer       *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	pipeline *usecase.Pipeline,
	collector *usecase.ReportCollector,
	consumer *pkgkafka.Consumer,
	reportsHandler *usecase.KafkaReportsHandler,
	inventoryHandler *usecase.KafkaInventoryHandler,
	q *queue.RedisQueue,
	dispatcher *usecase.Dispatcher,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	redis *cache.RedisCache,
) *App {
	return &App{
		cfg:              cfg,
		log:              log,
		handler:          handler,
		pipeline:         pipeline,
		collector:        collector,
		consumer:         consumer,
		reportsHandler:   reportsHandler,
		inventoryHandler: inventoryHandler,
		queue:            q,
		dispatcher:       dispatcher,
		chClient:         chClient,
		producer:         producer,
		redis:            redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert delivery queue first, so anything detected during startup
	// has somewhere to go.
	if err := a.queue.Start(); err != nil {
		a.log.Error("alert queue start error", applogger.Error(err))
		return err
	}
	a.queue.StartRetryProcessor()

	a.pipeline.Start(ctx)
	a.log.Info("detection pipeline started")

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("price feed collector error", applogger.Error(err))
			}
		}()
		a.log.Info("price feed collector started",
			applogger.Strings("commodities", a.cfg.PriceFeed.Commodities))
	}

	if a.consumer != nil {
		a.consumer.RegisterHandler(a.reportsHandler)
		a.consumer.RegisterHandler(a.inventoryHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started",
			applogger.String("reports_topic", a.reportsHandler.Topic()),
			applogger.String("inventory_topic", a.inventoryHandler.Topic()))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, then drains detection and alert delivery,
// then closes infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// No new input past this point; flush what the detectors produced.
	a.pipeline.Stop()
	a.dispatcher.Wait()

	if err := a.queue.Stop(shutdownCtx); err != nil {
		a.log.Warn("alert queue stop error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
