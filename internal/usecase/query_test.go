package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"MandiWatch/internal/aggregate"
	"MandiWatch/internal/confidence"
	"MandiWatch/internal/detect"
	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/inventory"
)

func newQueryFixture(t *testing.T) (*QueryService, *aggregate.Aggregator) {
	t.Helper()
	log := testLogger(t)
	cfg := models.DefaultDetectionConfig()
	store := &fakeStore{}
	agg := aggregate.NewAggregator()
	q := NewQueryService(
		log,
		agg,
		NewRegistry(),
		detect.NewDetector(cfg),
		inventory.NewTracker(cfg),
		confidence.NewScorer(cfg.Confidence),
		NewDispatcher(log, store, &fakeQueue{}, nopMetrics{}),
		store,
		nil,
	)
	return q, agg
}

func TestCurrentPriceCarriesConfidence(t *testing.T) {
	q, agg := newQueryFixture(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		agg.Apply(&models.PriceReport{
			ID:          fmt.Sprintf("r-%d", i),
			Commodity:   "onion",
			Region:      "nashik",
			Price:       2000,
			Quantity:    10,
			SourceID:    fmt.Sprintf("mandi-%d", i),
			ObservedAt:  now,
			Reliability: 1,
		}, now)
	}

	snap, err := q.CurrentPrice(context.Background(), "onion", "nashik")
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if snap.Confidence <= 0 || snap.Confidence > 1 {
		t.Fatalf("confidence = %v, want in (0, 1]", snap.Confidence)
	}

	// A single-report key scores below the three-source one.
	agg.Apply(&models.PriceReport{
		ID: "r-solo", Commodity: "tomato", Region: "pune", Price: 1800,
		Quantity: 5, SourceID: "mandi-0", ObservedAt: now, Reliability: 1,
	}, now)
	solo, err := q.CurrentPrice(context.Background(), "tomato", "pune")
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if solo.Confidence >= snap.Confidence {
		t.Fatalf("thinner evidence must score lower: %v >= %v", solo.Confidence, snap.Confidence)
	}
}

func TestCurrentPriceNoData(t *testing.T) {
	q, _ := newQueryFixture(t)
	if _, err := q.CurrentPrice(context.Background(), "onion", "nashik"); err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
