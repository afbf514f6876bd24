package aggregate

import (
	"math"
	"sort"
	"sync"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

const (
	defaultBucket     = 15 * time.Minute
	defaultTau        = 30 * time.Minute
	defaultHistoryLen = 96 // one day of 15-minute buckets
	maxRecentReports  = 256
)

type Option func(*Aggregator)

func WithBucketDuration(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.bucket = d
		}
	}
}

func WithRecencyTau(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.tau = d
		}
	}
}

func WithHistoryLength(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.historyLen = n
		}
	}
}

func WithRegionCentroids(c map[string]Coordinate) Option {
	return func(a *Aggregator) { a.centroids = c }
}

// bucketAcc is one open bucket: a running weighted numerator/denominator,
// so the final average does not depend on report arrival order.
type bucketAcc struct {
	start        time.Time
	num          float64
	den          float64
	quantity     float64
	samples      int
	sources      map[string]struct{}
	lastObserved time.Time
}

type keyState struct {
	open    map[time.Time]*bucketAcc
	history []models.AggregatedPrice // closed buckets, oldest first

	day        time.Time
	dayNum     float64
	dayDen     float64
	dayQty     float64
	daySamples int

	recentReports []string
}

// ApplyResult is what one accepted report produced: the updated bucket
// snapshot, plus any buckets and day that closed as a side effect.
type ApplyResult struct {
	Current       models.AggregatedPrice
	ClosedBuckets []models.AggregatedPrice
	ClosedDay     *models.DailyAggregate
}

// Aggregator maintains the weighted per-(commodity, region, bucket) averages.
// Reports are weighted by quantity, source reliability and an exponential
// recency decay keyed to the report's observed timestamp, so replaying the
// same reports in any order yields the same aggregate.
type Aggregator struct {
	mu         sync.RWMutex
	bucket     time.Duration
	tau        time.Duration
	historyLen int
	centroids  map[string]Coordinate
	states     map[repository.Key]*keyState
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		bucket:     defaultBucket,
		tau:        defaultTau,
		historyLen: defaultHistoryLen,
		states:     make(map[repository.Key]*keyState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BucketDuration returns the configured bucket width.
func (a *Aggregator) BucketDuration() time.Duration { return a.bucket }

// Apply folds one accepted report into its bucket, closing any buckets whose
// window has fully elapsed at now. A closed day is reported when a bucket
// close crosses a day boundary.
func (a *Aggregator) Apply(r *models.PriceReport, now time.Time) ApplyResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := repository.NewKey(r.Commodity, r.Region)
	st := a.states[key]
	if st == nil {
		st = &keyState{open: make(map[time.Time]*bucketAcc)}
		a.states[key] = st
	}

	start := repository.BucketFor(r.ObservedAt, a.bucket)
	acc := st.open[start]
	if acc == nil {
		acc = &bucketAcc{start: start, sources: make(map[string]struct{})}
		st.open[start] = acc
	}

	w := a.weight(r, start)
	acc.num += w * r.Price
	acc.den += w
	acc.quantity += r.Quantity
	acc.samples++
	acc.sources[r.SourceID] = struct{}{}
	if r.ObservedAt.After(acc.lastObserved) {
		acc.lastObserved = r.ObservedAt
	}

	st.recentReports = append(st.recentReports, r.ID)
	if len(st.recentReports) > maxRecentReports {
		st.recentReports = st.recentReports[len(st.recentReports)-maxRecentReports:]
	}

	res := ApplyResult{Current: a.snapshot(key, acc, now)}
	res.ClosedBuckets, res.ClosedDay = a.closeDue(key, st, now)
	return res
}

// weight is quantity x reliability x exp(-age/tau), where age is measured
// from the report's observed time to the end of its bucket. Reliability is
// already validated into (0, 1].
func (a *Aggregator) weight(r *models.PriceReport, bucketStart time.Time) float64 {
	end := bucketStart.Add(a.bucket)
	age := end.Sub(r.ObservedAt)
	if age < 0 {
		age = 0
	}
	return r.Quantity * r.Reliability * math.Exp(-float64(age)/float64(a.tau))
}

func (a *Aggregator) snapshot(key repository.Key, acc *bucketAcc, now time.Time) models.AggregatedPrice {
	price := 0.0
	if acc.den > 0 {
		price = acc.num / acc.den
	}
	return models.AggregatedPrice{
		Commodity:     key.Commodity,
		Region:        key.Region,
		BucketStart:   acc.start,
		WeightedPrice: price,
		TotalQuantity: acc.quantity,
		SampleCount:   acc.samples,
		SourceCount:   len(acc.sources),
		LastObserved:  acc.lastObserved,
		UpdatedAt:     now,
	}
}

// CloseDue closes every bucket for the key whose window elapsed before now.
func (a *Aggregator) CloseDue(key repository.Key, now time.Time) ([]models.AggregatedPrice, *models.DailyAggregate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.states[key]
	if st == nil {
		return nil, nil
	}
	return a.closeDue(key, st, now)
}

// Keys returns every key the aggregator has state for.
func (a *Aggregator) Keys() []repository.Key {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]repository.Key, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	return keys
}

func (a *Aggregator) closeDue(key repository.Key, st *keyState, now time.Time) ([]models.AggregatedPrice, *models.DailyAggregate) {
	var due []time.Time
	for start := range st.open {
		if !start.Add(a.bucket).After(now) {
			due = append(due, start)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Before(due[j]) })

	var closed []models.AggregatedPrice
	var closedDay *models.DailyAggregate
	for _, start := range due {
		acc := st.open[start]
		delete(st.open, start)
		snap := a.snapshot(key, acc, now)
		closed = append(closed, snap)

		st.history = append(st.history, snap)
		if len(st.history) > a.historyLen {
			st.history = st.history[len(st.history)-a.historyLen:]
		}

		day := repository.DayFor(start)
		if !st.day.IsZero() && !day.Equal(st.day) {
			if d := a.closeDay(st); d != nil {
				closedDay = d
			}
		}
		st.day = day
		st.dayNum += acc.num
		st.dayDen += acc.den
		st.dayQty += acc.quantity
		st.daySamples += acc.samples
	}
	return closed, closedDay
}

func (a *Aggregator) closeDay(st *keyState) *models.DailyAggregate {
	if st.daySamples == 0 || st.dayDen == 0 {
		st.dayNum, st.dayDen, st.dayQty, st.daySamples = 0, 0, 0, 0
		return nil
	}
	d := &models.DailyAggregate{
		Day:      st.day,
		Price:    st.dayNum / st.dayDen,
		Quantity: st.dayQty,
		Samples:  st.daySamples,
	}
	st.dayNum, st.dayDen, st.dayQty, st.daySamples = 0, 0, 0, 0
	return d
}

// Current returns the freshest aggregate for a key: the newest open bucket,
// falling back to the last closed one.
func (a *Aggregator) Current(key repository.Key) (models.AggregatedPrice, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := a.states[key]
	if st == nil {
		return models.AggregatedPrice{}, false
	}
	var newest *bucketAcc
	for _, acc := range st.open {
		if newest == nil || acc.start.After(newest.start) {
			newest = acc
		}
	}
	if newest != nil {
		return a.snapshot(key, newest, newest.lastObserved), true
	}
	if n := len(st.history); n > 0 {
		return st.history[n-1], true
	}
	return models.AggregatedPrice{}, false
}

// History returns up to n most recent closed buckets, oldest first.
func (a *Aggregator) History(key repository.Key, n int) []models.AggregatedPrice {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := a.states[key]
	if st == nil {
		return nil
	}
	h := st.history
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]models.AggregatedPrice, len(h))
	copy(out, h)
	return out
}

// ReportIDs returns the IDs of recently contributing reports for a key.
func (a *Aggregator) ReportIDs(key repository.Key) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := a.states[key]
	if st == nil {
		return nil
	}
	out := make([]string, len(st.recentReports))
	copy(out, st.recentReports)
	return out
}

// CrossRegion combines the freshest aggregates of every region whose centroid
// lies within radiusKM of the anchor region's centroid, weighting each region
// by its traded quantity. Regions without a configured centroid are skipped.
func (a *Aggregator) CrossRegion(commodity, anchorRegion string, radiusKM float64) (models.CrossRegionPrice, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	anchor, ok := a.centroids[anchorRegion]
	if !ok {
		return models.CrossRegionPrice{}, false
	}

	out := models.CrossRegionPrice{
		Commodity:    commodity,
		AnchorRegion: anchorRegion,
		RadiusKM:     radiusKM,
	}
	var num, den float64
	for key, st := range a.states {
		if key.Commodity != commodity {
			continue
		}
		c, ok := a.centroids[key.Region]
		if !ok || haversineKM(anchor, c) > radiusKM {
			continue
		}
		snap, ok := a.currentLocked(key, st)
		if !ok || snap.WeightedPrice <= 0 {
			continue
		}
		w := snap.TotalQuantity
		if w <= 0 {
			w = 1
		}
		num += w * snap.WeightedPrice
		den += w
		out.Regions = append(out.Regions, key.Region)
		out.TotalQuantity += snap.TotalQuantity
		out.SampleCount += snap.SampleCount
		if snap.BucketStart.After(out.BucketStart) {
			out.BucketStart = snap.BucketStart
		}
	}
	if den == 0 {
		return models.CrossRegionPrice{}, false
	}
	sort.Strings(out.Regions)
	out.WeightedPrice = num / den
	return out, true
}

func (a *Aggregator) currentLocked(key repository.Key, st *keyState) (models.AggregatedPrice, bool) {
	var newest *bucketAcc
	for _, acc := range st.open {
		if newest == nil || acc.start.After(newest.start) {
			newest = acc
		}
	}
	if newest != nil {
		return a.snapshot(key, newest, newest.lastObserved), true
	}
	if n := len(st.history); n > 0 {
		return st.history[n-1], true
	}
	return models.AggregatedPrice{}, false
}
