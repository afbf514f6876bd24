package usecase

import (
	"errors"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

func testAnomaly(id string, at time.Time, sev models.Severity) *models.PriceAnomaly {
	return &models.PriceAnomaly{
		ID:         id,
		Commodity:  "onion",
		Region:     "nashik",
		DetectedAt: at,
		Severity:   sev,
		Status:     models.StatusOpen,
	}
}

func TestRegistryTransitions(t *testing.T) {
	r := NewRegistry()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.AddAnomaly(testAnomaly("a1", at, models.SeverityMedium))

	a, _, err := r.Transition("a1", models.StatusConfirmed, "verified by field office", at)
	if err != nil {
		t.Fatalf("open -> confirmed rejected: %v", err)
	}
	if a.Status != models.StatusConfirmed || a.ReviewNotes == "" {
		t.Fatalf("transition not applied: %+v", a)
	}

	a, _, err = r.Transition("a1", models.StatusResolved, "", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("confirmed -> resolved rejected: %v", err)
	}
	if a.ResolvedAt == nil || !a.ResolvedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("resolved timestamp not set: %+v", a)
	}

	_, _, err = r.Transition("a1", models.StatusConfirmed, "", at)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("resolved -> confirmed must fail, got %v", err)
	}

	if _, _, err := r.Transition("missing", models.StatusConfirmed, "", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestRegistryFilters(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.AddAnomaly(testAnomaly("a1", base, models.SeverityLow))
	r.AddAnomaly(testAnomaly("a2", base.Add(time.Hour), models.SeverityCritical))
	other := testAnomaly("a3", base.Add(2*time.Hour), models.SeverityLow)
	other.Region = "pune"
	r.AddAnomaly(other)

	all := r.Anomalies(AnomalyFilter{})
	if len(all) != 3 || all[0].ID != "a3" {
		t.Fatalf("expected newest-first listing, got %+v", all)
	}

	nashik := r.Anomalies(AnomalyFilter{Region: "nashik"})
	if len(nashik) != 2 {
		t.Fatalf("region filter returned %d rows", len(nashik))
	}

	crit := r.Anomalies(AnomalyFilter{Severity: models.SeverityCritical})
	if len(crit) != 1 || crit[0].ID != "a2" {
		t.Fatalf("severity filter: %+v", crit)
	}

	windowed := r.Anomalies(AnomalyFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	if len(windowed) != 1 || windowed[0].ID != "a2" {
		t.Fatalf("time window filter: %+v", windowed)
	}

	limited := r.Anomalies(AnomalyFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "a3" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestRegistryOpenAnomalyIDs(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.AddAnomaly(testAnomaly("a1", base, models.SeverityLow))
	r.AddAnomaly(testAnomaly("a2", base.Add(time.Hour), models.SeverityLow))
	r.Transition("a1", models.StatusResolved, "", base.Add(2*time.Hour))

	ids := r.OpenAnomalyIDs(repository.NewKey("onion", "nashik"))
	if len(ids) != 1 || ids[0] != "a2" {
		t.Fatalf("open IDs = %v, want [a2]", ids)
	}
}

func TestRegistryCopiesOnAdd(t *testing.T) {
	r := NewRegistry()
	a := testAnomaly("a1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), models.SeverityLow)
	r.AddAnomaly(a)
	a.Severity = models.SeverityCritical

	got, ok := r.GetAnomaly("a1")
	if !ok || got.Severity != models.SeverityLow {
		t.Fatalf("registry shares memory with the caller: %+v", got)
	}
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.AddAnomaly(testAnomaly("a1", base, models.SeverityLow))
	r.AddAnomaly(testAnomaly("a2", base.Add(time.Hour), models.SeverityHigh))
	r.Transition("a2", models.StatusConfirmed, "", base)

	stats := r.Stats()
	if stats.TotalAnomalies != 2 || stats.OpenAnomalies != 1 || stats.Confirmed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.BySeverity[models.SeverityLow] != 1 || stats.BySeverity[models.SeverityHigh] != 1 {
		t.Fatalf("severity breakdown wrong: %+v", stats.BySeverity)
	}
	if stats.LastDetectionAt == nil || !stats.LastDetectionAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("last detection time wrong: %+v", stats.LastDetectionAt)
	}
}
