package inventory

import (
	"math"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
)

var trackerEpoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func snapshot(location string, day int, onHand float64) *models.InventorySnapshot {
	return &models.InventorySnapshot{
		Location:   location,
		Region:     "nashik",
		Commodity:  "onion",
		OnHand:     onHand,
		SourceID:   "warehouse-feed",
		ObservedAt: trackerEpoch.AddDate(0, 0, day-1).Add(9 * time.Hour),
	}
}

// feedBaseline records a steady level for days 1..12.
func feedBaseline(t *Tracker, location string, level float64) {
	for d := 1; d <= 12; d++ {
		t.Record(snapshot(location, d, level))
	}
}

func TestRecordFlagsSustainedHoarding(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	feedBaseline(tr, "godown-a", 1000)

	var last LocationStatus
	for d := 13; d <= 20; d++ {
		last = tr.Record(snapshot("godown-a", d, 1400))
	}

	if last.Direction != DirectionHoarding {
		t.Fatalf("direction = %s, want hoarding", last.Direction)
	}
	if math.Abs(last.DeviationPct-40) > 1e-9 {
		t.Fatalf("deviation = %v, want 40", last.DeviationPct)
	}
	if math.Abs(last.Baseline-1000) > 1e-9 {
		t.Fatalf("reference baseline absorbed the run: %v", last.Baseline)
	}
	if !last.Flagged {
		t.Fatalf("8-day run above threshold must be flagged")
	}
}

func TestShortRunNotFlagged(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	feedBaseline(tr, "godown-a", 1000)

	var last LocationStatus
	for d := 13; d <= 15; d++ {
		last = tr.Record(snapshot("godown-a", d, 1400))
	}
	if last.Direction != DirectionHoarding {
		t.Fatalf("direction = %s, want hoarding", last.Direction)
	}
	if last.Flagged {
		t.Fatalf("3-day run must not satisfy the sustain requirement")
	}
}

func TestScarcityTrackedButNotFlagged(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	feedBaseline(tr, "godown-a", 1000)

	var last LocationStatus
	for d := 13; d <= 20; d++ {
		last = tr.Record(snapshot("godown-a", d, 600))
	}
	if last.Direction != DirectionScarcity {
		t.Fatalf("direction = %s, want scarcity", last.Direction)
	}
	if last.Flagged {
		t.Fatalf("scarcity must not count toward stockpiling")
	}
}

func TestDetectStockpiling(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	for _, loc := range []string{"godown-a", "godown-b", "godown-c", "godown-d"} {
		feedBaseline(tr, loc, 1000)
	}
	for d := 13; d <= 20; d++ {
		tr.Record(snapshot("godown-a", d, 1400))
		tr.Record(snapshot("godown-b", d, 1400))
		tr.Record(snapshot("godown-c", d, 1000))
		tr.Record(snapshot("godown-d", d, 1000))
	}

	p, ok := tr.DetectStockpiling("onion", "nashik", []string{"anom-1"})
	if !ok {
		t.Fatalf("expected a stockpiling pattern")
	}
	if len(p.Locations) != 2 || p.Locations[0] != "godown-a" || p.Locations[1] != "godown-b" {
		t.Fatalf("unexpected locations: %v", p.Locations)
	}
	// 2 of 4 tracked locations with fully overlapping runs.
	if math.Abs(p.CoordinationScore-0.5) > 1e-9 {
		t.Fatalf("coordination score = %v, want 0.5", p.CoordinationScore)
	}
	if p.ConcentrationRatio <= 0.25 || p.ConcentrationRatio >= 0.3 {
		t.Fatalf("concentration ratio out of expected band: %v", p.ConcentrationRatio)
	}
	if p.WindowEnd.Before(p.WindowStart) {
		t.Fatalf("inverted overlap window: %v..%v", p.WindowStart, p.WindowEnd)
	}
	if p.Status != models.StatusOpen {
		t.Fatalf("new pattern must open, got %s", p.Status)
	}
}

func TestDetectStockpilingRequiresAnomaly(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	for _, loc := range []string{"godown-a", "godown-b"} {
		feedBaseline(tr, loc, 1000)
		for d := 13; d <= 20; d++ {
			tr.Record(snapshot(loc, d, 1400))
		}
	}
	if _, ok := tr.DetectStockpiling("onion", "nashik", nil); ok {
		t.Fatalf("pattern emitted without a coincident price anomaly")
	}
}

func TestDetectStockpilingRequiresMinLocations(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	for _, loc := range []string{"godown-a", "godown-b"} {
		feedBaseline(tr, loc, 1000)
	}
	for d := 13; d <= 20; d++ {
		tr.Record(snapshot("godown-a", d, 1400))
		tr.Record(snapshot("godown-b", d, 1000))
	}
	if _, ok := tr.DetectStockpiling("onion", "nashik", []string{"anom-1"}); ok {
		t.Fatalf("a single flagged location must not form a pattern")
	}
}

func TestLocationsSorted(t *testing.T) {
	tr := NewTracker(models.DefaultDetectionConfig())
	feedBaseline(tr, "godown-b", 1000)
	feedBaseline(tr, "godown-a", 1000)

	locs := tr.Locations("onion", "nashik")
	if len(locs) != 2 || locs[0].Location != "godown-a" {
		t.Fatalf("locations not sorted: %+v", locs)
	}
}
