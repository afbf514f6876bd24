package detect

import (
	"math"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func snap(price float64, at time.Time) models.AggregatedPrice {
	return models.AggregatedPrice{
		Commodity:     "onion",
		Region:        "nashik",
		BucketStart:   at,
		WeightedPrice: price,
		SampleCount:   12,
		SourceCount:   4,
		LastObserved:  at,
	}
}

func baseline(mean, stddev float64) models.Baseline {
	return models.Baseline{Commodity: "onion", Region: "nashik", Mean: mean, StdDev: stddev}
}

func newTestDetector(c *clock) *Detector {
	return NewDetector(models.DefaultDetectionConfig()).WithClock(c.now)
}

func TestDeviationThresholdBoundary(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(1000, 50)

	ev := d.Evaluate(snap(1249, c.t), b)
	if ev.State != StateNormal {
		t.Fatalf("24.9%% deviation must stay normal, got %s", ev.State)
	}

	ev = d.Evaluate(snap(1251, c.t), b)
	if ev.State != StateWatch {
		t.Fatalf("25.1%% deviation must escalate to watch, got %s", ev.State)
	}
	if ev.Anomaly != nil {
		t.Fatalf("single exceed bucket must not fire")
	}
}

func TestPersistenceAndZScoreFire(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(2000, 100)

	ev := d.Evaluate(snap(2600, c.t), b)
	if ev.Anomaly != nil {
		t.Fatalf("fired before the persistence run completed")
	}
	c.advance(15 * time.Minute)
	ev = d.Evaluate(snap(2600, c.t), b)
	if ev.Anomaly == nil {
		t.Fatalf("expected anomaly on second exceed bucket")
	}
	a := ev.Anomaly
	if math.Abs(a.DeviationPct-30) > 1e-9 {
		t.Fatalf("deviation = %v, want 30", a.DeviationPct)
	}
	if math.Abs(a.ZScore-6) > 1e-9 {
		t.Fatalf("z = %v, want 6", a.ZScore)
	}
	// 30% sits in the low band, but |z| >= 2*threshold+1 bumps it one tier.
	if a.Severity != models.SeverityMedium {
		t.Fatalf("severity = %s, want medium after z escalation", a.Severity)
	}
	if a.Status != models.StatusOpen {
		t.Fatalf("new anomaly must open, got %s", a.Status)
	}
	if ev.State != StateWatch {
		t.Fatalf("key must drop back to watch after firing, got %s", ev.State)
	}
}

func TestCooldownSuppression(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(2000, 100)

	d.Evaluate(snap(2600, c.t), b)
	c.advance(15 * time.Minute)
	if ev := d.Evaluate(snap(2600, c.t), b); ev.Anomaly == nil {
		t.Fatalf("first fire missing")
	}

	// Persistence completes again within the cooldown window.
	c.advance(15 * time.Minute)
	d.Evaluate(snap(2600, c.t), b)
	c.advance(15 * time.Minute)
	ev := d.Evaluate(snap(2600, c.t), b)
	if ev.Anomaly != nil {
		t.Fatalf("anomaly emitted inside the cooldown")
	}
	if !ev.Suppressed {
		t.Fatalf("suppression not reported")
	}

	// Past the cooldown it may fire again.
	c.advance(7 * time.Hour)
	d.Evaluate(snap(2600, c.t), b)
	c.advance(15 * time.Minute)
	if ev := d.Evaluate(snap(2600, c.t), b); ev.Anomaly == nil {
		t.Fatalf("expected a fresh anomaly after the cooldown")
	}
}

func TestOpenBucketUpdateCompletesRun(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(2000, 100)

	// One closed exceeding bucket starts the run.
	if ev := d.Evaluate(snap(2600, c.t), b); ev.Anomaly != nil {
		t.Fatalf("fired before the persistence run completed")
	}

	// The next bucket's running aggregate completes it mid-bucket.
	c.advance(5 * time.Minute)
	ev := d.EvaluateUpdate(snap(2600, c.t), b)
	if ev.Anomaly == nil {
		t.Fatalf("open-bucket update did not fire: %+v", ev)
	}
	if ev.State != StateWatch {
		t.Fatalf("key must drop back to watch after firing, got %s", ev.State)
	}

	// The run restarted on emission, so further updates of the same bucket
	// and its eventual close cannot double-fire.
	c.advance(time.Minute)
	if ev := d.EvaluateUpdate(snap(2600, c.t), b); ev.Anomaly != nil {
		t.Fatalf("repeat update refired: %+v", ev)
	}
	c.advance(9 * time.Minute)
	if ev := d.Evaluate(snap(2600, c.t), b); ev.Anomaly != nil {
		t.Fatalf("bucket close double-fired: %+v", ev)
	}

	// A full run completing again inside the cooldown is suppressed.
	c.advance(15 * time.Minute)
	ev = d.EvaluateUpdate(snap(2600, c.t), b)
	if ev.Anomaly != nil || !ev.Suppressed {
		t.Fatalf("re-completed run inside cooldown not suppressed: %+v", ev)
	}
}

func TestOpenBucketUpdateNeedsPriorRun(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(2000, 100)

	// With no closed exceeding buckets behind it, a single open-bucket
	// spike only escalates to watch.
	ev := d.EvaluateUpdate(snap(2600, c.t), b)
	if ev.Anomaly != nil {
		t.Fatalf("one open bucket must not satisfy persistence")
	}
	if ev.State != StateWatch {
		t.Fatalf("state = %s, want watch", ev.State)
	}
}

func TestQuietBucketsReturnToNormal(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(2000, 100)
	key := repository.NewKey("onion", "nashik")

	d.Evaluate(snap(2600, c.t), b)
	if d.State(key) != StateWatch {
		t.Fatalf("expected watch after one exceed bucket")
	}

	d.Evaluate(snap(2050, c.t), b)
	if d.State(key) != StateWatch {
		t.Fatalf("one quiet bucket must not clear watch")
	}
	d.Evaluate(snap(2050, c.t), b)
	if d.State(key) != StateNormal {
		t.Fatalf("two quiet buckets must return to normal")
	}
}

func TestFlatBaselineExtremeZ(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)

	ev := d.Evaluate(snap(1300, c.t), baseline(1000, 0))
	if ev.ZScore != 99 {
		t.Fatalf("flat baseline above mean: z = %v, want 99", ev.ZScore)
	}
	ev = d.Evaluate(snap(600, c.t), baseline(1000, 0))
	if ev.ZScore != -99 {
		t.Fatalf("flat baseline below mean: z = %v, want -99", ev.ZScore)
	}
}

func TestNegativeDeviationFires(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(2000, 100)

	// Crash, not spike: -30% and z = -6.
	d.Evaluate(snap(1400, c.t), b)
	c.advance(15 * time.Minute)
	ev := d.Evaluate(snap(1400, c.t), b)
	if ev.Anomaly == nil {
		t.Fatalf("downward anomaly not detected")
	}
	if ev.Anomaly.DeviationPct >= 0 {
		t.Fatalf("deviation sign lost: %v", ev.Anomaly.DeviationPct)
	}
}

func TestUpdateConfigAppliesForward(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := newTestDetector(c)
	b := baseline(1000, 200)

	if ev := d.Evaluate(snap(1150, c.t), b); ev.State != StateNormal {
		t.Fatalf("15%% should be quiet under the default threshold")
	}

	cfg := d.Config()
	cfg.DeviationThresholdPct = 10
	d.UpdateConfig(cfg)

	if ev := d.Evaluate(snap(1150, c.t), b); ev.State != StateWatch {
		t.Fatalf("15%% must exceed the lowered threshold")
	}
}
