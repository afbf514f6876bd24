package usecase

import (
	"context"
	"sync"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/pkg/logger"
	"MandiWatch/pkg/queue"
)

// AlertMessageType is the queue message type carrying alert events.
const AlertMessageType = "alert.dispatch"

// Dispatcher owns the asynchronous evidence and alert path. Evidence is
// persisted first, with its own retries, so a flaky sink can never lose the
// audit trail; the alert event then goes through the redis queue, which
// retries with backoff and dead-letters delivery failures.
type Dispatcher struct {
	log     *logger.Logger
	store   repository.EvidenceStore
	queue   queue.QueueService
	metrics repository.Metrics
	wg      sync.WaitGroup
}

func NewDispatcher(log *logger.Logger, store repository.EvidenceStore, q queue.QueueService, metrics repository.Metrics) *Dispatcher {
	return &Dispatcher{log: log, store: store, queue: q, metrics: metrics}
}

// Dispatch persists the evidence package and queues its alert. Exactly one
// of anomaly/pattern is set. Non-blocking; failures are logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, pkg *models.EvidencePackage, anomaly *models.PriceAnomaly, pattern *models.StockpilingPattern) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := d.persist(ctx, pkg, anomaly, pattern); err != nil {
			d.metrics.RecordError("evidence_persist")
			d.log.Error("evidence persist failed",
				logger.String("evidence_id", pkg.ID),
				logger.Error(err))
			return
		}

		ev := &models.AlertEvent{
			EvidenceID: pkg.ID,
			AnomalyID:  pkg.AnomalyID,
			PatternID:  pkg.PatternID,
			Commodity:  pkg.Commodity,
			Region:     pkg.Region,
			Severity:   pkg.Severity,
			EmittedAt:  time.Now().UTC(),
		}
		if err := d.queue.PublishMessage(ctx, AlertMessageType, ev); err != nil {
			d.metrics.RecordAlert("enqueue_failed")
			d.log.Error("alert enqueue failed",
				logger.String("evidence_id", pkg.ID),
				logger.Error(err))
			return
		}
		d.metrics.RecordAlert("enqueued")
	}()
}

func (d *Dispatcher) persist(ctx context.Context, pkg *models.EvidencePackage, anomaly *models.PriceAnomaly, pattern *models.StockpilingPattern) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if err = d.store.SaveEvidence(ctx, pkg); err != nil {
			continue
		}
		if anomaly != nil {
			if err = d.store.SaveAnomaly(ctx, anomaly); err != nil {
				continue
			}
		}
		if pattern != nil {
			if err = d.store.SavePattern(ctx, pattern); err != nil {
				continue
			}
		}
		return nil
	}
	return err
}

// PersistReview appends the post-review state of a record to storage.
func (d *Dispatcher) PersistReview(ctx context.Context, anomaly *models.PriceAnomaly, pattern *models.StockpilingPattern) error {
	if anomaly != nil {
		return d.store.SaveAnomaly(ctx, anomaly)
	}
	if pattern != nil {
		return d.store.SavePattern(ctx, pattern)
	}
	return nil
}

// Wait blocks until in-flight dispatches finish, for shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// AlertJob is the queue consumer side: it takes queued alert events and
// emits them to the sink. A sink failure is returned so the queue applies
// its retry and dead-letter policy.
type AlertJob struct {
	log     *logger.Logger
	sink    repository.AlertSink
	name    string
	metrics repository.Metrics
}

func NewAlertJob(log *logger.Logger, sink repository.AlertSink, sinkName string, metrics repository.Metrics) *AlertJob {
	return &AlertJob{log: log, sink: sink, name: sinkName, metrics: metrics}
}

func (j *AlertJob) Name() string { return "alert-dispatcher" }
func (j *AlertJob) Type() string { return AlertMessageType }

func (j *AlertJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.AlertEvent](payload)
	if err != nil {
		j.metrics.RecordAlert("bad_payload")
		return err
	}
	if err := j.sink.Emit(ctx, ev); err != nil {
		j.metrics.RecordAlert("sink_failed")
		return &SinkUnavailableError{Sink: j.name, Err: err}
	}
	j.metrics.RecordAlert("delivered")
	j.log.Info("alert delivered",
		logger.String("evidence_id", ev.EvidenceID),
		logger.String("commodity", ev.Commodity),
		logger.String("region", ev.Region),
		logger.String("severity", string(ev.Severity)))
	return nil
}

var _ queue.Job = (*AlertJob)(nil)
