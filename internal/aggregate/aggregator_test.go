package aggregate

import (
	"math"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

func report(id string, price, qty, rel float64, at time.Time) *models.PriceReport {
	return &models.PriceReport{
		ID:          id,
		Commodity:   "onion",
		Region:      "nashik",
		Price:       price,
		Quantity:    qty,
		SourceID:    "src-" + id,
		ObservedAt:  at,
		Reliability: rel,
	}
}

func TestApplyWeightedWithinBounds(t *testing.T) {
	a := NewAggregator()
	at := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	a.Apply(report("r1", 1000, 10, 1.0, at), at)
	res := a.Apply(report("r2", 2000, 10, 1.0, at.Add(time.Minute)), at.Add(time.Minute))

	got := res.Current.WeightedPrice
	if got <= 1000 || got >= 2000 {
		t.Fatalf("weighted price %v outside report bounds", got)
	}
	if res.Current.SampleCount != 2 || res.Current.SourceCount != 2 {
		t.Fatalf("unexpected counts: %+v", res.Current)
	}
}

func TestApplyOrderIndependence(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reports := []*models.PriceReport{
		report("a", 1200, 5, 0.9, at.Add(2*time.Minute)),
		report("b", 1500, 20, 1.0, at.Add(7*time.Minute)),
		report("c", 900, 3, 0.5, at.Add(12*time.Minute)),
	}

	forward := NewAggregator()
	for _, r := range reports {
		forward.Apply(r, at)
	}
	backward := NewAggregator()
	for i := len(reports) - 1; i >= 0; i-- {
		backward.Apply(reports[i], at)
	}

	key := repository.NewKey("onion", "nashik")
	f, _ := forward.Current(key)
	b, _ := backward.Current(key)
	if math.Abs(f.WeightedPrice-b.WeightedPrice) > 1e-9 {
		t.Fatalf("order-dependent aggregate: %v vs %v", f.WeightedPrice, b.WeightedPrice)
	}
}

func TestRecencyDecayFavorsFreshReports(t *testing.T) {
	a := NewAggregator(WithRecencyTau(10 * time.Minute))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Same quantity and reliability, prices bracketing the midpoint. The
	// fresher 2000 report must pull the average above it.
	a.Apply(report("old", 1000, 10, 1.0, start.Add(1*time.Minute)), start)
	res := a.Apply(report("new", 2000, 10, 1.0, start.Add(14*time.Minute)), start)

	if res.Current.WeightedPrice <= 1500 {
		t.Fatalf("expected fresher report to dominate, got %v", res.Current.WeightedPrice)
	}
}

func TestCloseDueAndDayRollover(t *testing.T) {
	a := NewAggregator()
	key := repository.NewKey("onion", "nashik")

	d1 := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	a.Apply(report("r1", 1500, 10, 1.0, d1), d1)
	a.Apply(report("r2", 1600, 10, 1.0, d2), d2)

	closed, day := a.CloseDue(key, time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC))
	if len(closed) != 2 {
		t.Fatalf("expected 2 closed buckets, got %d", len(closed))
	}
	if !closed[0].BucketStart.Before(closed[1].BucketStart) {
		t.Fatalf("buckets closed out of order")
	}
	if day == nil {
		t.Fatalf("expected the first day to close on rollover")
	}
	if !day.Day.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong day closed: %v", day.Day)
	}
	if math.Abs(day.Price-1500) > 1e-9 {
		t.Fatalf("day price should come from the first day only, got %v", day.Price)
	}
}

func TestLateReportLandsInItsOwnBucket(t *testing.T) {
	a := NewAggregator()
	key := repository.NewKey("onion", "nashik")
	now := time.Date(2026, 3, 1, 10, 40, 0, 0, time.UTC)

	// A report observed 30 minutes ago opens the elapsed bucket, which then
	// closes immediately with only that report in it.
	res := a.Apply(report("late", 1400, 10, 1.0, now.Add(-30*time.Minute)), now)
	if len(res.ClosedBuckets) != 1 {
		t.Fatalf("expected the late bucket to close, got %d", len(res.ClosedBuckets))
	}
	if res.ClosedBuckets[0].SampleCount != 1 {
		t.Fatalf("late report leaked into another bucket")
	}
	if h := a.History(key, 0); len(h) != 1 {
		t.Fatalf("closed bucket missing from history")
	}
}

func TestHistoryEviction(t *testing.T) {
	a := NewAggregator(WithHistoryLength(2))
	key := repository.NewKey("onion", "nashik")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		at := start.Add(time.Duration(i) * 15 * time.Minute)
		a.Apply(report(string(rune('a'+i)), 1500, 10, 1.0, at), at)
	}
	a.CloseDue(key, start.Add(2*time.Hour))

	if h := a.History(key, 0); len(h) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(h))
	}
}

func TestCrossRegionRadius(t *testing.T) {
	a := NewAggregator(WithRegionCentroids(map[string]Coordinate{
		"nashik":    {Lat: 19.9975, Lon: 73.7898},
		"lasalgaon": {Lat: 20.1426, Lon: 74.2392},
		"pune":      {Lat: 18.5204, Lon: 73.8567},
	}))
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	nashik := report("n1", 1500, 10, 1.0, at)
	a.Apply(nashik, at)
	lasal := report("l1", 1800, 30, 1.0, at)
	lasal.Region = "lasalgaon"
	a.Apply(lasal, at)
	pune := report("p1", 5000, 100, 1.0, at)
	pune.Region = "pune"
	a.Apply(pune, at)

	// Lasalgaon is ~50km from Nashik, Pune ~170km.
	cross, ok := a.CrossRegion("onion", "nashik", 80)
	if !ok {
		t.Fatalf("expected a cross-region aggregate")
	}
	if len(cross.Regions) != 2 {
		t.Fatalf("expected 2 regions within radius, got %v", cross.Regions)
	}
	if cross.WeightedPrice <= 1500 || cross.WeightedPrice >= 1800 {
		t.Fatalf("weighted price %v outside member bounds", cross.WeightedPrice)
	}
	// Lasalgaon carries 3x the quantity, so the blend leans its way.
	if cross.WeightedPrice < 1650 {
		t.Fatalf("quantity weighting not applied: %v", cross.WeightedPrice)
	}

	if _, ok := a.CrossRegion("onion", "unknown", 80); ok {
		t.Fatalf("anchor without a centroid must not resolve")
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	nashik := Coordinate{Lat: 19.9975, Lon: 73.7898}
	pune := Coordinate{Lat: 18.5204, Lon: 73.8567}
	d := haversineKM(nashik, pune)
	if d < 150 || d > 180 {
		t.Fatalf("nashik-pune distance out of expected range: %v", d)
	}
}
