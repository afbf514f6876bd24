package detect

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

// State is the detection state of one (commodity, region) key.
type State string

const (
	StateNormal    State = "normal"
	StateWatch     State = "watch"
	StateAnomalous State = "anomalous"
)

// Evaluation is the outcome of running one closed bucket through the state
// machine. Anomaly is non-nil only on the bucket that fired.
type Evaluation struct {
	Key          repository.Key
	State        State
	DeviationPct float64
	ZScore       float64
	Anomaly      *models.PriceAnomaly
	Suppressed   bool // criteria met again inside the alert cooldown
}

type keyState struct {
	state     State
	exceed    int // consecutive buckets above the deviation threshold
	below     int // consecutive buckets at or below it
	lastAlert time.Time
}

// Detector runs the per-key spike state machine. A key escalates to WATCH on
// one bucket above the deviation threshold, fires an anomaly after the
// configured persistence run with the z-score criterion also met, then drops
// back to WATCH; a run of quiet buckets returns it to NORMAL. Threshold
// changes swap the whole config and apply from the next evaluation.
type Detector struct {
	mu     sync.Mutex
	cfg    models.DetectionConfig
	states map[repository.Key]*keyState
	now    func() time.Time
}

func NewDetector(cfg models.DetectionConfig) *Detector {
	return &Detector{
		cfg:    cfg,
		states: make(map[repository.Key]*keyState),
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// UpdateConfig atomically replaces the threshold set. In-flight persistence
// counts are kept; they are re-judged against the new thresholds next bucket.
func (d *Detector) UpdateConfig(cfg models.DetectionConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// Config returns the active threshold set.
func (d *Detector) Config() models.DetectionConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// State reports the current machine state for a key.
func (d *Detector) State(key repository.Key) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.states[key]; ok {
		return st.state
	}
	return StateNormal
}

// Evaluate runs one closed bucket against the key's baseline.
func (d *Detector) Evaluate(snap models.AggregatedPrice, baseline models.Baseline) Evaluation {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := repository.NewKey(snap.Commodity, snap.Region)
	st := d.states[key]
	if st == nil {
		st = &keyState{state: StateNormal}
		d.states[key] = st
	}

	dev, z := deviation(snap.WeightedPrice, baseline.Mean, baseline.StdDev)
	ev := Evaluation{Key: key, DeviationPct: dev, ZScore: z}

	exceeds := math.Abs(dev) > d.cfg.DeviationThresholdPct
	if exceeds {
		st.exceed++
		st.below = 0
		if st.state == StateNormal {
			st.state = StateWatch
		}
	} else {
		st.exceed = 0
		st.below++
		if st.state == StateWatch && st.below >= 2 {
			st.state = StateNormal
			st.below = 0
		}
	}

	fires := exceeds &&
		st.exceed >= d.cfg.PersistenceBuckets &&
		math.Abs(z) >= d.cfg.ZScoreThreshold

	if fires {
		if a, suppressed := d.emit(st, key, snap, baseline, dev, z); suppressed {
			ev.Suppressed = true
		} else {
			ev.Anomaly = a
		}
		// One emission per persistence window: the run restarts either way.
		st.exceed = 0
		st.state = StateWatch
	}

	ev.State = st.state
	return ev
}

// EvaluateUpdate judges the open bucket's running aggregate, so a sustained
// spike fires on the update that completes the run rather than waiting for
// the bucket to close. The open bucket counts as the final bucket of the
// persistence run; the per-bucket counters advance only on actual closes.
func (d *Detector) EvaluateUpdate(snap models.AggregatedPrice, baseline models.Baseline) Evaluation {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := repository.NewKey(snap.Commodity, snap.Region)
	st := d.states[key]
	if st == nil {
		st = &keyState{state: StateNormal}
		d.states[key] = st
	}

	dev, z := deviation(snap.WeightedPrice, baseline.Mean, baseline.StdDev)
	ev := Evaluation{Key: key, DeviationPct: dev, ZScore: z}

	exceeds := math.Abs(dev) > d.cfg.DeviationThresholdPct
	if exceeds && st.state == StateNormal {
		st.state = StateWatch
	}
	if exceeds &&
		st.exceed+1 >= d.cfg.PersistenceBuckets &&
		math.Abs(z) >= d.cfg.ZScoreThreshold {
		if a, suppressed := d.emit(st, key, snap, baseline, dev, z); suppressed {
			ev.Suppressed = true
		} else {
			ev.Anomaly = a
			st.exceed = 0
			st.state = StateWatch
		}
	}
	ev.State = st.state
	return ev
}

// emit applies the alert cooldown and materializes the anomaly record.
// Caller holds the lock.
func (d *Detector) emit(st *keyState, key repository.Key, snap models.AggregatedPrice, baseline models.Baseline, dev, z float64) (*models.PriceAnomaly, bool) {
	now := d.now().UTC()
	if !st.lastAlert.IsZero() && now.Sub(st.lastAlert) < d.cfg.AlertCooldown {
		return nil, true
	}
	st.lastAlert = now
	return &models.PriceAnomaly{
		ID:             uuid.NewString(),
		Commodity:      key.Commodity,
		Region:         key.Region,
		DetectedAt:     now,
		ObservedPrice:  snap.WeightedPrice,
		BaselineMean:   baseline.Mean,
		BaselineStdDev: baseline.StdDev,
		DeviationPct:   dev,
		ZScore:         z,
		Severity:       d.cfg.SeverityFor(dev, z),
		Status:         models.StatusOpen,
	}, false
}

// deviation returns the signed percent deviation from the baseline mean and
// the z-score. A flat baseline (zero variance) with any deviation is treated
// as an extreme z.
func deviation(price, mean, stddev float64) (devPct, z float64) {
	if mean <= 0 {
		return 0, 0
	}
	devPct = (price - mean) / mean * 100
	switch {
	case stddev > 0:
		z = (price - mean) / stddev
	case price != mean:
		z = math.Copysign(99, devPct)
	}
	return devPct, z
}
