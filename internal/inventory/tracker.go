package inventory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

// Direction of an inventory deviation. Only upward deviations (hoarding)
// feed stockpiling correlation; downward ones (artificial scarcity) are
// tracked for visibility.
type Direction string

const (
	DirectionNone     Direction = "none"
	DirectionHoarding Direction = "hoarding"
	DirectionScarcity Direction = "scarcity"
)

type locDay struct {
	day   time.Time
	level float64
}

type locState struct {
	location     string
	days         []locDay // last observation per day, oldest first
	lastLevel    float64
	lastObserved time.Time
	flaggedSince time.Time // start of the current consecutive elevated run
	direction    Direction
}

// LocationStatus is the externally visible view of one tracked location.
type LocationStatus struct {
	Location     string    `json:"location"`
	Level        float64   `json:"level"`
	Baseline     float64   `json:"baseline"`
	DeviationPct float64   `json:"deviation_pct"`
	Direction    Direction `json:"direction"`
	FlaggedSince time.Time `json:"flagged_since,omitempty"`
	Flagged      bool      `json:"flagged"`
}

// Tracker maintains per-location inventory baselines and correlates
// sustained abnormal accumulation across locations within a region.
type Tracker struct {
	mu     sync.Mutex
	cfg    models.DetectionConfig
	states map[repository.Key]map[string]*locState // key -> location
	now    func() time.Time
}

func NewTracker(cfg models.DetectionConfig) *Tracker {
	return &Tracker{
		cfg:    cfg,
		states: make(map[repository.Key]map[string]*locState),
		now:    time.Now,
	}
}

func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) UpdateConfig(cfg models.DetectionConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// Record folds one accepted snapshot into its location's rolling window and
// re-judges the location's deviation direction.
func (t *Tracker) Record(s *models.InventorySnapshot) LocationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := repository.NewKey(s.Commodity, s.Region)
	locs := t.states[key]
	if locs == nil {
		locs = make(map[string]*locState)
		t.states[key] = locs
	}
	st := locs[s.Location]
	if st == nil {
		st = &locState{location: s.Location, direction: DirectionNone}
		locs[s.Location] = st
	}

	day := repository.DayFor(s.ObservedAt)
	if n := len(st.days); n > 0 && st.days[n-1].day.Equal(day) {
		st.days[n-1].level = s.OnHand
	} else {
		st.days = append(st.days, locDay{day: day, level: s.OnHand})
		if len(st.days) > t.cfg.BaselineWindowDays {
			st.days = st.days[len(st.days)-t.cfg.BaselineWindowDays:]
		}
	}
	st.lastLevel = s.OnHand
	if s.ObservedAt.After(st.lastObserved) {
		st.lastObserved = s.ObservedAt
	}

	return t.judge(st, day)
}

// judge recomputes the location's deviation against its reference baseline:
// the retained days excluding the trailing sustain period, so a sustained
// run does not absorb itself into its own baseline.
func (t *Tracker) judge(st *locState, day time.Time) LocationStatus {
	base, ok := t.reference(st, day)
	out := LocationStatus{
		Location: st.location,
		Level:    st.lastLevel,
		Baseline: base,
	}
	if !ok || base <= 0 {
		st.flaggedSince = time.Time{}
		st.direction = DirectionNone
		return out
	}

	out.DeviationPct = (st.lastLevel - base) / base * 100
	up := base * (1 + t.cfg.StockpilingThresholdPct/100)
	down := base * (1 - t.cfg.StockpilingThresholdPct/100)

	switch {
	case st.lastLevel > up:
		if st.direction != DirectionHoarding {
			st.flaggedSince = day
		}
		st.direction = DirectionHoarding
	case st.lastLevel < down:
		if st.direction != DirectionScarcity {
			st.flaggedSince = day
		}
		st.direction = DirectionScarcity
	default:
		st.flaggedSince = time.Time{}
		st.direction = DirectionNone
	}

	out.Direction = st.direction
	out.FlaggedSince = st.flaggedSince
	out.Flagged = t.sustained(st)
	return out
}

// reference is the mean level over the window with the trailing sustain
// period held out.
func (t *Tracker) reference(st *locState, day time.Time) (float64, bool) {
	cutoff := day.AddDate(0, 0, -t.cfg.StockpilingSustainDays)
	var sum float64
	var n int
	for _, d := range st.days {
		if d.day.Before(cutoff) {
			sum += d.level
			n++
		}
	}
	if n < t.cfg.BaselineMinDays/2 || n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (t *Tracker) sustained(st *locState) bool {
	if st.direction != DirectionHoarding || st.flaggedSince.IsZero() {
		return false
	}
	run := repository.DayFor(st.lastObserved).Sub(st.flaggedSince)
	return run >= time.Duration(t.cfg.StockpilingSustainDays-1)*24*time.Hour
}

// Locations returns the status of every tracked location for a key.
func (t *Tracker) Locations(commodity, region string) []LocationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := repository.NewKey(commodity, region)
	locs := t.states[key]
	out := make([]LocationStatus, 0, len(locs))
	for _, st := range locs {
		day := repository.DayFor(st.lastObserved)
		out = append(out, t.judge(st, day))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// DetectStockpiling correlates flagged locations for a key. A pattern
// requires the configured minimum of sustained hoarding locations with
// overlapping windows and at least one linked price anomaly; without a
// coincident anomaly elevated inventory alone is not evidence.
func (t *Tracker) DetectStockpiling(commodity, region string, anomalyIDs []string) (*models.StockpilingPattern, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(anomalyIDs) == 0 {
		return nil, false
	}

	key := repository.NewKey(commodity, region)
	locs := t.states[key]
	if len(locs) == 0 {
		return nil, false
	}

	var flagged []*locState
	var totalOnHand float64
	tracked := 0
	for _, st := range locs {
		day := repository.DayFor(st.lastObserved)
		if _, ok := t.reference(st, day); !ok {
			continue
		}
		tracked++
		totalOnHand += st.lastLevel
		if t.sustained(st) {
			flagged = append(flagged, st)
		}
	}
	if len(flagged) < t.cfg.MinFlaggedLocations {
		return nil, false
	}

	overlapStart := flagged[0].flaggedSince
	overlapEnd := repository.DayFor(flagged[0].lastObserved)
	var maxRun time.Duration
	for _, st := range flagged {
		if st.flaggedSince.After(overlapStart) {
			overlapStart = st.flaggedSince
		}
		end := repository.DayFor(st.lastObserved)
		if end.Before(overlapEnd) {
			overlapEnd = end
		}
		if run := end.Sub(st.flaggedSince); run > maxRun {
			maxRun = run
		}
	}
	if !overlapEnd.After(overlapStart) || maxRun <= 0 {
		return nil, false
	}

	overlapFactor := float64(overlapEnd.Sub(overlapStart)) / float64(maxRun)
	if overlapFactor > 1 {
		overlapFactor = 1
	}
	score := float64(len(flagged)) / float64(tracked) * overlapFactor

	names := make([]string, 0, len(flagged))
	for _, st := range flagged {
		names = append(names, st.location)
	}
	sort.Strings(names)

	ids := make([]string, len(anomalyIDs))
	copy(ids, anomalyIDs)

	return &models.StockpilingPattern{
		ID:                 uuid.NewString(),
		Commodity:          commodity,
		Region:             region,
		Locations:          names,
		WindowStart:        overlapStart,
		WindowEnd:          overlapEnd,
		CoordinationScore:  score,
		ConcentrationRatio: herfindahl(locs, totalOnHand),
		AnomalyIDs:         ids,
		DetectedAt:         t.now().UTC(),
		Status:             models.StatusOpen,
	}, true
}

// herfindahl is the sum of squared on-hand shares across all locations;
// 1 means all stock sits in one location.
func herfindahl(locs map[string]*locState, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var h float64
	for _, st := range locs {
		share := st.lastLevel / total
		h += share * share
	}
	return h
}
