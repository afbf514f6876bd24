package usecase

import (
	"sort"
	"sync"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

// AnomalyFilter narrows registry listings. Zero values match everything.
type AnomalyFilter struct {
	Commodity string
	Region    string
	From      time.Time
	To        time.Time
	Severity  models.Severity
	Status    models.AnomalyStatus
	Limit     int
}

// Registry is the in-memory index of detected anomalies and patterns: the
// authoritative copy for the live query and review API, with every change
// also persisted append-only for audit.
type Registry struct {
	mu        sync.RWMutex
	anomalies map[string]*models.PriceAnomaly
	patterns  map[string]*models.StockpilingPattern
	lastAt    *time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		anomalies: make(map[string]*models.PriceAnomaly),
		patterns:  make(map[string]*models.StockpilingPattern),
	}
}

func (r *Registry) AddAnomaly(a *models.PriceAnomaly) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.anomalies[a.ID] = &cp
	t := a.DetectedAt
	if r.lastAt == nil || t.After(*r.lastAt) {
		r.lastAt = &t
	}
}

func (r *Registry) AddPattern(p *models.StockpilingPattern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.Locations = append([]string(nil), p.Locations...)
	cp.AnomalyIDs = append([]string(nil), p.AnomalyIDs...)
	r.patterns[p.ID] = &cp
	t := p.DetectedAt
	if r.lastAt == nil || t.After(*r.lastAt) {
		r.lastAt = &t
	}
}

func (r *Registry) GetAnomaly(id string) (models.PriceAnomaly, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.anomalies[id]; ok {
		return *a, true
	}
	return models.PriceAnomaly{}, false
}

// Transition applies a review status change to an anomaly or a pattern.
// Illegal transitions are rejected without mutating anything.
func (r *Registry) Transition(id string, to models.AnomalyStatus, notes string, at time.Time) (*models.PriceAnomaly, *models.StockpilingPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.anomalies[id]; ok {
		if !models.ValidTransition(a.Status, to) {
			return nil, nil, &TransitionError{ID: id, From: a.Status, To: to}
		}
		a.Status = to
		a.ReviewNotes = notes
		if to == models.StatusResolved {
			t := at
			a.ResolvedAt = &t
		}
		cp := *a
		return &cp, nil, nil
	}
	if p, ok := r.patterns[id]; ok {
		if !models.ValidTransition(p.Status, to) {
			return nil, nil, &TransitionError{ID: id, From: p.Status, To: to}
		}
		p.Status = to
		cp := *p
		return nil, &cp, nil
	}
	return nil, nil, ErrNotFound
}

// OpenAnomalyIDs returns the unresolved anomaly IDs for one key, most
// recent first.
func (r *Registry) OpenAnomalyIDs(key repository.Key) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var open []*models.PriceAnomaly
	for _, a := range r.anomalies {
		if a.Status != models.StatusResolved && a.Key() == key.String() {
			open = append(open, a)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].DetectedAt.After(open[j].DetectedAt) })
	ids := make([]string, len(open))
	for i, a := range open {
		ids[i] = a.ID
	}
	return ids
}

func (r *Registry) Anomalies(f AnomalyFilter) []models.PriceAnomaly {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.PriceAnomaly
	for _, a := range r.anomalies {
		if f.Commodity != "" && a.Commodity != f.Commodity {
			continue
		}
		if f.Region != "" && a.Region != f.Region {
			continue
		}
		if !f.From.IsZero() && a.DetectedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.DetectedAt.After(f.To) {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (r *Registry) Patterns(f AnomalyFilter) []models.StockpilingPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.StockpilingPattern
	for _, p := range r.patterns {
		if f.Commodity != "" && p.Commodity != f.Commodity {
			continue
		}
		if f.Region != "" && p.Region != f.Region {
			continue
		}
		if !f.From.IsZero() && p.DetectedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && p.DetectedAt.After(f.To) {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (r *Registry) Stats() models.DetectionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := models.DetectionStats{
		TotalAnomalies:  len(r.anomalies),
		TotalPatterns:   len(r.patterns),
		BySeverity:      make(map[models.Severity]int),
		LastDetectionAt: r.lastAt,
	}
	for _, a := range r.anomalies {
		stats.BySeverity[a.Severity]++
		switch a.Status {
		case models.StatusOpen:
			stats.OpenAnomalies++
		case models.StatusConfirmed:
			stats.Confirmed++
		case models.StatusResolved:
			stats.Resolved++
		}
	}
	return stats
}
