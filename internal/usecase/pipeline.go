package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"MandiWatch/internal/aggregate"
	"MandiWatch/internal/confidence"
	"MandiWatch/internal/detect"
	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/internal/evidence"
	"MandiWatch/internal/ingest"
	"MandiWatch/internal/inventory"
	"MandiWatch/pkg/logger"
)

const lockShards = 64

// keyLocks serializes all state mutation per (commodity, region) key. Two
// keys may share a shard; that only costs parallelism, never correctness.
type keyLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *keyLocks) lock(key repository.Key) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return &l.shards[h.Sum32()%lockShards]
}

// Pipeline is the ingestion path: validate, aggregate, roll baselines,
// detect, score and hand evidence to the dispatcher. Aggregation, baseline
// rollover and detection for a key all happen under that key's lock; the
// evidence and alert path is asynchronous.
type Pipeline struct {
	log        *logger.Logger
	validator  *ingest.Validator
	aggregator *aggregate.Aggregator
	baselines  *aggregate.BaselineStore
	detector   *detect.Detector
	tracker    *inventory.Tracker
	scorer     *confidence.Scorer
	builder    *evidence.Builder
	dispatcher *Dispatcher
	registry   *Registry
	store      repository.EvidenceStore
	metrics    repository.Metrics

	locks  keyLocks
	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewPipeline(
	log *logger.Logger,
	validator *ingest.Validator,
	aggregator *aggregate.Aggregator,
	baselines *aggregate.BaselineStore,
	detector *detect.Detector,
	tracker *inventory.Tracker,
	scorer *confidence.Scorer,
	builder *evidence.Builder,
	dispatcher *Dispatcher,
	registry *Registry,
	store repository.EvidenceStore,
	metrics repository.Metrics,
) *Pipeline {
	return &Pipeline{
		log:        log,
		validator:  validator,
		aggregator: aggregator,
		baselines:  baselines,
		detector:   detector,
		tracker:    tracker,
		scorer:     scorer,
		builder:    builder,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		metrics:    metrics,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the bucket sweeper, which closes elapsed buckets for keys
// that went quiet so their last bucket still reaches detection.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.sweep(ctx)
}

func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pipeline) sweep(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.aggregator.BucketDuration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			now := p.now().UTC()
			for _, key := range p.aggregator.Keys() {
				mu := p.locks.lock(key)
				mu.Lock()
				closed, day := p.aggregator.CloseDue(key, now)
				p.afterClose(ctx, key, closed, day)
				mu.Unlock()
			}
		}
	}
}

// SubmitReport runs one price report through the full pipeline. The returned
// error is the typed rejection when validation fails; pipeline-internal
// failures are isolated per key and never surface to the submitter.
func (p *Pipeline) SubmitReport(ctx context.Context, r *models.PriceReport) error {
	start := p.now()
	if err := p.validator.AcceptReport(r); err != nil {
		return err
	}

	key := repository.NewKey(r.Commodity, r.Region)
	mu := p.locks.lock(key)
	mu.Lock()
	now := p.now().UTC()
	res := p.aggregator.Apply(r, now)
	p.afterClose(ctx, key, res.ClosedBuckets, res.ClosedDay)
	// The open bucket's running aggregate is judged on every update; an
	// already-elapsed bucket was just evaluated by its close above.
	if res.Current.BucketStart.Add(p.aggregator.BucketDuration()).After(now) {
		p.evaluate(ctx, key, res.Current, true)
	}
	mu.Unlock()

	p.metrics.RecordLastPrice(r.Commodity, r.Region, res.Current.WeightedPrice)
	p.metrics.RecordLatency("submit_report", time.Since(start).Seconds())
	return nil
}

// SubmitSnapshot runs one inventory snapshot through validation and the
// tracker.
func (p *Pipeline) SubmitSnapshot(ctx context.Context, s *models.InventorySnapshot) error {
	if err := p.validator.AcceptSnapshot(s); err != nil {
		return err
	}
	status := p.tracker.Record(s)
	if status.Flagged {
		p.log.Warn("sustained inventory accumulation",
			logger.String("commodity", s.Commodity),
			logger.String("region", s.Region),
			logger.String("location", s.Location),
			logger.Any("deviation_pct", status.DeviationPct))
	}
	return nil
}

// afterClose handles everything a closed bucket triggers: day rollover into
// the baseline, then detection. Caller holds the key lock.
func (p *Pipeline) afterClose(ctx context.Context, key repository.Key, closed []models.AggregatedPrice, day *models.DailyAggregate) {
	if day != nil {
		baseline := p.baselines.Append(key, *day)
		p.persistDay(key, *day)
		p.log.Debug("baseline rolled",
			logger.String("key", key.String()),
			logger.Int("days", len(baseline.Days)),
			logger.Any("mean", baseline.Mean))
	}

	for _, snap := range closed {
		p.evaluate(ctx, key, snap, false)
	}
}

// evaluate runs one aggregate through detection. running marks the open
// bucket's in-progress snapshot, which must not advance per-bucket counters.
func (p *Pipeline) evaluate(ctx context.Context, key repository.Key, snap models.AggregatedPrice, running bool) {
	baseline, err := p.baselines.Get(key)
	if err != nil {
		var insufficient *aggregate.InsufficientBaselineError
		if errors.As(err, &insufficient) {
			p.log.Debug("detection suppressed",
				logger.String("key", key.String()),
				logger.Int("days", insufficient.Have),
				logger.Int("needed", insufficient.Need))
			return
		}
		p.metrics.RecordError("baseline")
		return
	}

	var ev detect.Evaluation
	if running {
		ev = p.detector.EvaluateUpdate(snap, baseline)
	} else {
		ev = p.detector.Evaluate(snap, baseline)
	}
	if ev.Anomaly == nil {
		return
	}

	anomaly := ev.Anomaly
	anomaly.Confidence = p.scorer.Score(confidence.Inputs{
		SampleCount:    snap.SampleCount,
		SourceCount:    snap.SourceCount,
		LastObserved:   snap.LastObserved,
		Now:            p.now(),
		Consistency:    p.consistency(key, anomaly.DeviationPct),
		HasConsistency: true,
	})
	p.registry.AddAnomaly(anomaly)
	p.metrics.RecordAnomaly(string(anomaly.Severity))
	p.log.Warn("price anomaly detected",
		logger.String("key", key.String()),
		logger.Any("deviation_pct", anomaly.DeviationPct),
		logger.Any("z_score", anomaly.ZScore),
		logger.String("severity", string(anomaly.Severity)))

	history := p.aggregator.History(key, 32)
	reportIDs := p.aggregator.ReportIDs(key)
	pkg := p.builder.ForAnomaly(anomaly, history, baseline, reportIDs)
	p.dispatcher.Dispatch(ctx, pkg, anomaly, nil)

	if pattern, ok := p.tracker.DetectStockpiling(key.Commodity, key.Region, p.registry.OpenAnomalyIDs(key)); ok {
		pattern.Confidence = p.scorer.Score(confidence.Inputs{
			SampleCount:  len(pattern.Locations),
			SourceCount:  len(pattern.Locations),
			LastObserved: pattern.WindowEnd,
			Now:          p.now(),
		})
		p.registry.AddPattern(pattern)
		p.metrics.RecordPattern()
		p.log.Warn("stockpiling pattern detected",
			logger.String("key", key.String()),
			logger.Strings("locations", pattern.Locations),
			logger.Any("coordination_score", pattern.CoordinationScore))

		ppkg := p.builder.ForPattern(pattern, history, baseline, reportIDs)
		p.dispatcher.Dispatch(ctx, ppkg, nil, pattern)
	}
}

// consistency judges direction agreement between the price deviation and
// the region's inventory signal. Agreement strengthens the anomaly, a
// conflicting signal weakens it, silence is neutral.
func (p *Pipeline) consistency(key repository.Key, deviationPct float64) float64 {
	var hoarding, scarcity bool
	for _, loc := range p.tracker.Locations(key.Commodity, key.Region) {
		switch loc.Direction {
		case inventory.DirectionHoarding:
			hoarding = true
		case inventory.DirectionScarcity:
			scarcity = true
		}
	}
	switch {
	case deviationPct > 0 && hoarding:
		return 1
	case deviationPct > 0 && scarcity:
		return 1 // stock drained while price spikes: artificial scarcity
	case deviationPct < 0 && hoarding:
		return 0
	case hoarding || scarcity:
		return 0.25
	}
	return 0.5
}

func (p *Pipeline) persistDay(key repository.Key, day models.DailyAggregate) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.store.SaveDailyAggregate(ctx, key, day); err != nil {
			p.metrics.RecordError("daily_persist")
			p.log.Error("persist daily aggregate failed",
				logger.String("key", key.String()),
				logger.Error(err))
		}
	}()
}
