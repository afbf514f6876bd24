package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MandiWatch/internal/aggregate"
	"MandiWatch/internal/confidence"
	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/internal/ingest"
	"MandiWatch/internal/inventory"
	"MandiWatch/pkg/cache"
	"MandiWatch/pkg/logger"
)

// ErrNoData means no aggregate exists yet for the requested key.
var ErrNoData = errors.New("no data for key")

const currentPriceTTL = 15 * time.Second

// QueryService is the read and review side: current prices (cache-backed),
// anomaly and pattern listings, review transitions, detection config, and
// compliance export.
type QueryService struct {
	log        *logger.Logger
	aggregator *aggregate.Aggregator
	registry   *Registry
	detector   configHolder
	tracker    *inventory.Tracker
	scorer     *confidence.Scorer
	dispatcher *Dispatcher
	store      repository.EvidenceStore
	cache      cache.Service
}

// configHolder is the slice of the detector the query side needs.
type configHolder interface {
	Config() models.DetectionConfig
	UpdateConfig(models.DetectionConfig)
}

func NewQueryService(
	log *logger.Logger,
	aggregator *aggregate.Aggregator,
	registry *Registry,
	detector configHolder,
	tracker *inventory.Tracker,
	scorer *confidence.Scorer,
	dispatcher *Dispatcher,
	store repository.EvidenceStore,
	c cache.Service,
) *QueryService {
	return &QueryService{
		log:        log,
		aggregator: aggregator,
		registry:   registry,
		detector:   detector,
		tracker:    tracker,
		scorer:     scorer,
		dispatcher: dispatcher,
		store:      store,
		cache:      c,
	}
}

// CurrentPrice returns the freshest aggregate for a key, through the cache.
func (q *QueryService) CurrentPrice(ctx context.Context, commodity, region string) (models.AggregatedPrice, error) {
	key := repository.NewKey(ingest.NormalizeCommodity(commodity), region)
	cacheKey := fmt.Sprintf("price:current:%s", key.String())

	if q.cache != nil {
		var cached models.AggregatedPrice
		if err := q.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	snap, ok := q.aggregator.Current(key)
	if !ok {
		return models.AggregatedPrice{}, ErrNoData
	}
	snap.Confidence = q.scorer.Score(confidence.Inputs{
		SampleCount:  snap.SampleCount,
		SourceCount:  snap.SourceCount,
		LastObserved: snap.LastObserved,
		Now:          time.Now(),
	})
	if q.cache != nil {
		if err := q.cache.Set(ctx, cacheKey, snap, currentPriceTTL); err != nil {
			q.log.Debug("current price cache set failed", logger.Error(err))
		}
	}
	return snap, nil
}

// CrossRegionPrice widens the current-price view to every region within
// radiusKM of the anchor.
func (q *QueryService) CrossRegionPrice(ctx context.Context, commodity, region string, radiusKM float64) (models.CrossRegionPrice, error) {
	out, ok := q.aggregator.CrossRegion(ingest.NormalizeCommodity(commodity), region, radiusKM)
	if !ok {
		return models.CrossRegionPrice{}, ErrNoData
	}
	return out, nil
}

func (q *QueryService) Anomalies(f AnomalyFilter) []models.PriceAnomaly {
	f.Commodity = ingest.NormalizeCommodity(f.Commodity)
	return q.registry.Anomalies(f)
}

func (q *QueryService) Patterns(f AnomalyFilter) []models.StockpilingPattern {
	f.Commodity = ingest.NormalizeCommodity(f.Commodity)
	return q.registry.Patterns(f)
}

func (q *QueryService) Stats() models.DetectionStats {
	return q.registry.Stats()
}

// InventoryStatus returns the tracked locations for a key.
func (q *QueryService) InventoryStatus(commodity, region string) []inventory.LocationStatus {
	return q.tracker.Locations(ingest.NormalizeCommodity(commodity), region)
}

// Review applies a confirm/resolve transition and appends the new state to
// the audit store.
func (q *QueryService) Review(ctx context.Context, id string, to models.AnomalyStatus, notes string) error {
	anomaly, pattern, err := q.registry.Transition(id, to, notes, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := q.dispatcher.PersistReview(ctx, anomaly, pattern); err != nil {
		q.log.Error("review persist failed", logger.String("id", id), logger.Error(err))
		return fmt.Errorf("persist review: %w", err)
	}
	return nil
}

// DetectionConfig returns the active threshold set.
func (q *QueryService) DetectionConfig() models.DetectionConfig {
	return q.detector.Config()
}

// UpdateDetectionConfig validates and atomically installs a new threshold
// set with a bumped version. It applies from the next evaluation cycle.
func (q *QueryService) UpdateDetectionConfig(cfg models.DetectionConfig) (models.DetectionConfig, error) {
	if err := cfg.Validate(); err != nil {
		return models.DetectionConfig{}, err
	}
	cfg.Version = q.detector.Config().Version + 1
	q.detector.UpdateConfig(cfg)
	q.tracker.UpdateConfig(cfg)
	q.scorer.SetWeights(cfg.Confidence)
	q.log.Info("detection config updated", logger.Int("version", cfg.Version))
	return cfg, nil
}

// ExportCompliance returns confirmed anomalies and patterns with their full
// evidence packages for a time range.
func (q *QueryService) ExportCompliance(ctx context.Context, from, to time.Time, region string) ([]*models.EvidencePackage, error) {
	pkgs, err := q.store.ExportConfirmed(ctx, from, to, region)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return pkgs, nil
}

// Health pings the storage layer; storage failure is the only condition
// that flips the service unhealthy.
func (q *QueryService) Health(ctx context.Context) error {
	return q.store.Health(ctx)
}
