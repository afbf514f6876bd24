package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MandiWatch/internal/aggregate"
	"MandiWatch/internal/confidence"
	"MandiWatch/internal/detect"
	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/internal/evidence"
	"MandiWatch/internal/ingest"
	"MandiWatch/internal/inventory"
)

type pipelineFixture struct {
	pipeline   *Pipeline
	registry   *Registry
	store      *fakeStore
	queue      *fakeQueue
	dispatcher *Dispatcher
	baselines  *aggregate.BaselineStore
	tracker    *inventory.Tracker
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	log := testLogger(t)
	cfg := models.DefaultDetectionConfig()

	store := &fakeStore{}
	q := &fakeQueue{}
	dispatcher := NewDispatcher(log, store, q, nopMetrics{})
	registry := NewRegistry()
	baselines := aggregate.NewBaselineStore(cfg.BaselineWindowDays, cfg.BaselineMinDays)
	tracker := inventory.NewTracker(cfg)

	p := NewPipeline(
		log,
		ingest.NewValidator(log, nopMetrics{}),
		aggregate.NewAggregator(),
		baselines,
		detect.NewDetector(cfg),
		tracker,
		confidence.NewScorer(cfg.Confidence),
		evidence.NewBuilder(),
		dispatcher,
		registry,
		store,
		nopMetrics{},
	)
	return &pipelineFixture{
		pipeline:   p,
		registry:   registry,
		store:      store,
		queue:      q,
		dispatcher: dispatcher,
		baselines:  baselines,
		tracker:    tracker,
	}
}

// seedBaseline installs a 30-day window with mean 2000 and a little over
// 100 of sample spread.
func (f *pipelineFixture) seedBaseline(key repository.Key) {
	days := make([]models.DailyAggregate, 0, 30)
	for i := 0; i < 30; i++ {
		price := 1900.0
		if i%2 == 1 {
			price = 2100.0
		}
		days = append(days, models.DailyAggregate{
			Day:      time.Now().UTC().AddDate(0, 0, i-31).Truncate(24 * time.Hour),
			Price:    price,
			Quantity: 100,
			Samples:  10,
		})
	}
	f.baselines.Seed(key, days)
}

func spikeReport(minutesAgo int) *models.PriceReport {
	return &models.PriceReport{
		Commodity:   "onion",
		Region:      "nashik",
		Price:       2600,
		Quantity:    10,
		SourceID:    "mandi-board-7",
		ObservedAt:  time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute),
		Reliability: 1,
	}
}

func TestPipelineDetectsSustainedSpike(t *testing.T) {
	f := newPipelineFixture(t)
	key := repository.NewKey("onion", "nashik")
	f.seedBaseline(key)

	// Two elapsed buckets above threshold close on submission and complete
	// the persistence run.
	if err := f.pipeline.SubmitReport(context.Background(), spikeReport(90)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.pipeline.SubmitReport(context.Background(), spikeReport(60)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.dispatcher.Wait()

	anomalies := f.registry.Anomalies(AnomalyFilter{})
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.DeviationPct < 25 || a.DeviationPct > 35 {
		t.Fatalf("deviation = %v, want ~30", a.DeviationPct)
	}
	if a.Confidence <= 0 || a.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", a.Confidence)
	}

	evCount, anomCount, _ := f.store.counts()
	if evCount != 1 || anomCount != 1 {
		t.Fatalf("evidence trail incomplete: %d evidence, %d anomalies", evCount, anomCount)
	}
	msgs := f.queue.published()
	if len(msgs) != 1 || msgs[0].msgType != AlertMessageType {
		t.Fatalf("alert not enqueued: %+v", msgs)
	}
}

func TestPipelineEvaluatesOpenBucket(t *testing.T) {
	f := newPipelineFixture(t)
	key := repository.NewKey("onion", "nashik")
	f.seedBaseline(key)

	// An elapsed bucket closes on submission and starts the run.
	if err := f.pipeline.SubmitReport(context.Background(), spikeReport(60)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// A report in the still-open current bucket completes the run without
	// waiting for the bucket to close.
	if err := f.pipeline.SubmitReport(context.Background(), spikeReport(0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.dispatcher.Wait()

	anomalies := f.registry.Anomalies(AnomalyFilter{})
	if len(anomalies) != 1 {
		t.Fatalf("expected one anomaly from the open-bucket update, got %d", len(anomalies))
	}
}

func TestPipelineSuppressesWithoutBaseline(t *testing.T) {
	f := newPipelineFixture(t)

	if err := f.pipeline.SubmitReport(context.Background(), spikeReport(90)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.pipeline.SubmitReport(context.Background(), spikeReport(60)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.dispatcher.Wait()

	if got := f.registry.Anomalies(AnomalyFilter{}); len(got) != 0 {
		t.Fatalf("detection must stay silent without a baseline, got %d", len(got))
	}
}

func TestPipelineRejectsStaleReport(t *testing.T) {
	f := newPipelineFixture(t)

	err := f.pipeline.SubmitReport(context.Background(), spikeReport(200))
	var serr *ingest.StaleDataError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StaleDataError, got %v", err)
	}
	if got := f.registry.Anomalies(AnomalyFilter{}); len(got) != 0 {
		t.Fatalf("rejected report leaked into detection")
	}
}

func TestPipelineSnapshotFeedsTracker(t *testing.T) {
	f := newPipelineFixture(t)

	snap := &models.InventorySnapshot{
		Location:   "godown-a",
		Region:     "nashik",
		Commodity:  "onion",
		OnHand:     1200,
		SourceID:   "warehouse-feed",
		ObservedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := f.pipeline.SubmitSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("submit snapshot: %v", err)
	}
	locs := f.tracker.Locations("onion", "nashik")
	if len(locs) != 1 || locs[0].Location != "godown-a" {
		t.Fatalf("snapshot not tracked: %+v", locs)
	}
}
