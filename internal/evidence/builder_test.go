package evidence

import (
	"math"
	"testing"
	"time"

	"MandiWatch/internal/detect"
	"MandiWatch/internal/domain/models"
)

func anomaly() *models.PriceAnomaly {
	return &models.PriceAnomaly{
		ID:            "anom-1",
		Commodity:     "onion",
		Region:        "nashik",
		ObservedPrice: 2600,
		Severity:      models.SeverityMedium,
		Confidence:    0.8,
	}
}

func TestForAnomalySnapshotsContext(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := NewBuilder().WithClock(func() time.Time { return at })

	history := []models.AggregatedPrice{{WeightedPrice: 2500}, {WeightedPrice: 2600}}
	ids := []string{"r1", "r2"}
	pkg := b.ForAnomaly(anomaly(), history, models.Baseline{Mean: 2000, StdDev: 100}, ids)

	if pkg.ID == "" || pkg.AnomalyID != "anom-1" {
		t.Fatalf("package not linked to the anomaly: %+v", pkg)
	}
	if !pkg.CreatedAt.Equal(at) {
		t.Fatalf("created at = %v, want %v", pkg.CreatedAt, at)
	}
	if pkg.Supersedes != "" {
		t.Fatalf("first package for a key must supersede nothing")
	}

	// The package holds copies, not the caller's slices.
	history[0].WeightedPrice = 0
	ids[0] = "mutated"
	if pkg.PriceHistory[0].WeightedPrice != 2500 || pkg.ReportIDs[0] != "r1" {
		t.Fatalf("package shares memory with the caller")
	}
}

func TestSupersedesChain(t *testing.T) {
	b := NewBuilder()

	first := b.ForAnomaly(anomaly(), nil, models.Baseline{}, nil)
	second := b.ForAnomaly(anomaly(), nil, models.Baseline{}, nil)
	if second.Supersedes != first.ID {
		t.Fatalf("second package supersedes %q, want %q", second.Supersedes, first.ID)
	}
	if second.ID == first.ID {
		t.Fatalf("packages must carry distinct IDs")
	}

	// A different key starts its own chain.
	other := anomaly()
	other.Region = "pune"
	if pkg := b.ForAnomaly(other, nil, models.Baseline{}, nil); pkg.Supersedes != "" {
		t.Fatalf("cross-key supersedes leak: %q", pkg.Supersedes)
	}
}

func TestPackageReproducesDetectionMath(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d := detect.NewDetector(models.DefaultDetectionConfig()).WithClock(func() time.Time { return at })
	base := models.Baseline{Commodity: "onion", Region: "nashik", Mean: 2000, StdDev: 100}
	s := models.AggregatedPrice{
		Commodity:     "onion",
		Region:        "nashik",
		WeightedPrice: 2600,
		SampleCount:   12,
		SourceCount:   4,
	}

	d.Evaluate(s, base)
	ev := d.Evaluate(s, base)
	if ev.Anomaly == nil {
		t.Fatalf("no anomaly to package")
	}

	b := NewBuilder()
	pkg := b.ForAnomaly(ev.Anomaly, []models.AggregatedPrice{{WeightedPrice: 2550}, s}, base, []string{"r1"})

	// The persisted context alone must reproduce the recorded detection
	// values.
	observed := pkg.PriceHistory[len(pkg.PriceHistory)-1].WeightedPrice
	dev := (observed - pkg.Baseline.Mean) / pkg.Baseline.Mean * 100
	z := (observed - pkg.Baseline.Mean) / pkg.Baseline.StdDev
	if math.Abs(dev-ev.Anomaly.DeviationPct) > 1e-9 {
		t.Fatalf("deviation re-derived as %v, recorded %v", dev, ev.Anomaly.DeviationPct)
	}
	if math.Abs(z-ev.Anomaly.ZScore) > 1e-9 {
		t.Fatalf("z-score re-derived as %v, recorded %v", z, ev.Anomaly.ZScore)
	}
	if pkg.Baseline.Mean != ev.Anomaly.BaselineMean || pkg.Baseline.StdDev != ev.Anomaly.BaselineStdDev {
		t.Fatalf("baseline snapshot drifted from the anomaly record")
	}
}

func TestForPatternSeverity(t *testing.T) {
	b := NewBuilder()
	p := &models.StockpilingPattern{
		ID:         "pat-1",
		Commodity:  "onion",
		Region:     "nashik",
		Confidence: 0.6,
	}
	pkg := b.ForPattern(p, nil, models.Baseline{}, nil)
	if pkg.PatternID != "pat-1" {
		t.Fatalf("pattern not linked: %+v", pkg)
	}
	if pkg.Severity != models.SeverityHigh {
		t.Fatalf("pattern evidence severity = %s, want high", pkg.Severity)
	}
}
