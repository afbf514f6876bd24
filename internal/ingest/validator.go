package ingest

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/pkg/logger"
)

// SourceStats is the per-source acceptance record fed into confidence
// scoring. Counters only ever grow.
type SourceStats struct {
	Accepted int64
	Rejected int64
}

// AcceptRate returns the fraction of submissions accepted, 1 for a source
// that has never submitted.
func (s SourceStats) AcceptRate() float64 {
	total := s.Accepted + s.Rejected
	if total == 0 {
		return 1
	}
	return float64(s.Accepted) / float64(total)
}

type Option func(*Validator)

func WithStalenessBound(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.staleness = d
		}
	}
}

func WithReliabilityFloor(f float64) Option {
	return func(v *Validator) { v.reliabilityFloor = f }
}

func WithClockSkew(d time.Duration) Option {
	return func(v *Validator) {
		if d >= 0 {
			v.clockSkew = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator is the single admission gate for price reports and inventory
// snapshots. Accepted records are normalized in place and assigned an ID;
// rejected records never reach the aggregation pipeline.
type Validator struct {
	log       *logger.Logger
	metrics   repository.Metrics
	staleness time.Duration
	clockSkew time.Duration

	reliabilityFloor float64
	now              func() time.Time

	mu      sync.Mutex
	sources map[string]*SourceStats
}

func NewValidator(log *logger.Logger, metrics repository.Metrics, opts ...Option) *Validator {
	v := &Validator{
		log:              log,
		metrics:          metrics,
		staleness:        2 * time.Hour,
		clockSkew:        time.Minute,
		reliabilityFloor: 0.1,
		now:              time.Now,
		sources:          make(map[string]*SourceStats),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AcceptReport validates and normalizes one price report. On success the
// report carries a fresh ID, canonical commodity and grade, and the source's
// accept counter is bumped. On failure the returned error is a
// *ValidationError or *StaleDataError.
func (v *Validator) AcceptReport(r *models.PriceReport) error {
	if err := v.checkReport(r); err != nil {
		v.recordRejection(r.SourceID, r.Commodity, err)
		return err
	}

	r.ID = uuid.NewString()
	r.Commodity = NormalizeCommodity(r.Commodity)
	r.Region = strings.ToLower(strings.TrimSpace(r.Region))
	r.Grade = models.NormalizeGrade(strings.ToLower(strings.TrimSpace(string(r.Grade))))

	v.bump(r.SourceID, true)
	if v.metrics != nil {
		v.metrics.RecordReportAccepted(r.SourceID, r.Commodity)
	}
	return nil
}

func (v *Validator) checkReport(r *models.PriceReport) error {
	if strings.TrimSpace(r.Commodity) == "" {
		return &ValidationError{Field: "commodity", Reason: "missing"}
	}
	if strings.TrimSpace(r.Region) == "" {
		return &ValidationError{Field: "region", Reason: "missing"}
	}
	if strings.TrimSpace(r.SourceID) == "" {
		return &ValidationError{Field: "source_id", Reason: "missing"}
	}
	if r.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "non_positive"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "non_positive"}
	}
	if r.Reliability < 0 || r.Reliability > 1 {
		return &ValidationError{Field: "reliability", Reason: "out_of_range"}
	}
	// A zero hint is an explicit claim of zero trust, not an absent field;
	// absent hints are defaulted to 1 at the ingress boundaries.
	if r.Reliability < v.reliabilityFloor {
		return &ValidationError{Field: "reliability", Reason: "below_floor"}
	}
	if err := v.checkTimestamp(r.ObservedAt); err != nil {
		return err
	}

	commodity := NormalizeCommodity(r.Commodity)
	if band, ok := plausibleRange(commodity); ok {
		if r.Price < band.Min || r.Price > band.Max {
			return &ValidationError{
				Field:  "price",
				Reason: "implausible_for_commodity",
				Detail: commodity,
			}
		}
	}
	return nil
}

// AcceptSnapshot validates and normalizes one inventory snapshot.
func (v *Validator) AcceptSnapshot(s *models.InventorySnapshot) error {
	if err := v.checkSnapshot(s); err != nil {
		v.recordRejection(s.SourceID, s.Commodity, err)
		return err
	}

	s.ID = uuid.NewString()
	s.Commodity = NormalizeCommodity(s.Commodity)
	s.Region = strings.ToLower(strings.TrimSpace(s.Region))
	s.Location = strings.ToLower(strings.TrimSpace(s.Location))

	v.bump(s.SourceID, true)
	if v.metrics != nil {
		v.metrics.RecordReportAccepted(s.SourceID, s.Commodity)
	}
	return nil
}

func (v *Validator) checkSnapshot(s *models.InventorySnapshot) error {
	if strings.TrimSpace(s.Commodity) == "" {
		return &ValidationError{Field: "commodity", Reason: "missing"}
	}
	if strings.TrimSpace(s.Region) == "" {
		return &ValidationError{Field: "region", Reason: "missing"}
	}
	if strings.TrimSpace(s.Location) == "" {
		return &ValidationError{Field: "location", Reason: "missing"}
	}
	if strings.TrimSpace(s.SourceID) == "" {
		return &ValidationError{Field: "source_id", Reason: "missing"}
	}
	if s.OnHand < 0 {
		return &ValidationError{Field: "on_hand", Reason: "negative"}
	}
	return v.checkTimestamp(s.ObservedAt)
}

func (v *Validator) checkTimestamp(observed time.Time) error {
	if observed.IsZero() {
		return &ValidationError{Field: "observed_at", Reason: "missing"}
	}
	now := v.now()
	if observed.After(now.Add(v.clockSkew)) {
		return &StaleDataError{ObservedAt: observed, Age: -observed.Sub(now)}
	}
	if age := now.Sub(observed); age > v.staleness {
		return &StaleDataError{ObservedAt: observed, Age: age}
	}
	return nil
}

func (v *Validator) recordRejection(sourceID, commodity string, err error) {
	v.bump(sourceID, false)
	reason := "invalid"
	switch e := err.(type) {
	case *ValidationError:
		reason = e.Reason
	case *StaleDataError:
		reason = "stale"
		if e.Age < 0 {
			reason = "future"
		}
	}
	if v.metrics != nil {
		v.metrics.RecordReportRejected(sourceID, reason)
	}
	v.log.Debug("report rejected",
		logger.String("source", sourceID),
		logger.String("commodity", commodity),
		logger.String("reason", reason))
}

func (v *Validator) bump(sourceID string, accepted bool) {
	if sourceID == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.sources[sourceID]
	if !ok {
		st = &SourceStats{}
		v.sources[sourceID] = st
	}
	if accepted {
		st.Accepted++
	} else {
		st.Rejected++
	}
}

// SourceStats returns a copy of the counters for one source.
func (v *Validator) SourceStats(sourceID string) SourceStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	if st, ok := v.sources[sourceID]; ok {
		return *st
	}
	return SourceStats{}
}
