package evidence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

// Builder assembles immutable evidence packages. A re-evaluation of the same
// key never edits an existing package; it produces a new one whose
// Supersedes field references the previous package for that key.
type Builder struct {
	mu   sync.Mutex
	last map[repository.Key]string // key -> most recent package ID
	now  func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{
		last: make(map[repository.Key]string),
		now:  time.Now,
	}
}

func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// ForAnomaly packages the detection context of one price anomaly.
func (b *Builder) ForAnomaly(a *models.PriceAnomaly, history []models.AggregatedPrice, baseline models.Baseline, reportIDs []string) *models.EvidencePackage {
	pkg := b.newPackage(repository.NewKey(a.Commodity, a.Region))
	pkg.AnomalyID = a.ID
	pkg.Commodity = a.Commodity
	pkg.Region = a.Region
	pkg.Severity = a.Severity
	pkg.Confidence = a.Confidence
	pkg.PriceHistory = cloneHistory(history)
	pkg.Baseline = baseline.Clone()
	pkg.ReportIDs = cloneIDs(reportIDs)
	return pkg
}

// ForPattern packages a stockpiling pattern together with the price context
// of its region.
func (b *Builder) ForPattern(p *models.StockpilingPattern, history []models.AggregatedPrice, baseline models.Baseline, reportIDs []string) *models.EvidencePackage {
	pkg := b.newPackage(repository.NewKey(p.Commodity, p.Region))
	pkg.PatternID = p.ID
	pkg.Commodity = p.Commodity
	pkg.Region = p.Region
	pkg.Severity = models.SeverityHigh
	pkg.Confidence = p.Confidence
	pkg.PriceHistory = cloneHistory(history)
	pkg.Baseline = baseline.Clone()
	pkg.ReportIDs = cloneIDs(reportIDs)
	return pkg
}

func (b *Builder) newPackage(key repository.Key) *models.EvidencePackage {
	b.mu.Lock()
	defer b.mu.Unlock()
	pkg := &models.EvidencePackage{
		ID:         uuid.NewString(),
		CreatedAt:  b.now().UTC(),
		Supersedes: b.last[key],
	}
	b.last[key] = pkg.ID
	return pkg
}

func cloneHistory(h []models.AggregatedPrice) []models.AggregatedPrice {
	out := make([]models.AggregatedPrice, len(h))
	copy(out, h)
	return out
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
