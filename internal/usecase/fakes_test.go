package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	"MandiWatch/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type fakeStore struct {
	mu        sync.Mutex
	evidence  []*models.EvidencePackage
	anomalies []*models.PriceAnomaly
	patterns  []*models.StockpilingPattern
	days      []models.DailyAggregate
	failSaves int // SaveEvidence failures remaining
}

func (s *fakeStore) Init(ctx context.Context) error { return nil }

func (s *fakeStore) SaveEvidence(ctx context.Context, pkg *models.EvidencePackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves > 0 {
		s.failSaves--
		return context.DeadlineExceeded
	}
	s.evidence = append(s.evidence, pkg)
	return nil
}

func (s *fakeStore) SaveAnomaly(ctx context.Context, a *models.PriceAnomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, a)
	return nil
}

func (s *fakeStore) SavePattern(ctx context.Context, p *models.StockpilingPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, p)
	return nil
}

func (s *fakeStore) SaveDailyAggregate(ctx context.Context, key repository.Key, day models.DailyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = append(s.days, day)
	return nil
}

func (s *fakeStore) GetEvidence(ctx context.Context, id string) (*models.EvidencePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pkg := range s.evidence {
		if pkg.ID == id {
			return pkg, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) DailyHistory(ctx context.Context, key repository.Key, from, to time.Time) ([]models.DailyAggregate, error) {
	return nil, nil
}

func (s *fakeStore) ExportConfirmed(ctx context.Context, from, to time.Time, region string) ([]*models.EvidencePackage, error) {
	return nil, nil
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                     { return nil }

func (s *fakeStore) counts() (evidence, anomalies, patterns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evidence), len(s.anomalies), len(s.patterns)
}

type queuedMessage struct {
	msgType string
	payload interface{}
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []queuedMessage
	err      error
}

func (q *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, queuedMessage{msgType: msgType, payload: payload})
	return nil
}

func (q *fakeQueue) published() []queuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queuedMessage, len(q.messages))
	copy(out, q.messages)
	return out
}

type fakeSink struct {
	mu     sync.Mutex
	events []*models.AlertEvent
	err    error
}

func (s *fakeSink) Emit(ctx context.Context, ev *models.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordReportAccepted(source, commodity string)           {}
func (nopMetrics) RecordReportRejected(source, reason string)              {}
func (nopMetrics) RecordLastPrice(commodity, region string, price float64) {}
func (nopMetrics) RecordAnomaly(severity string)                           {}
func (nopMetrics) RecordPattern()                                          {}
func (nopMetrics) RecordAlert(result string)                               {}
func (nopMetrics) RecordError(kind string)                                 {}
func (nopMetrics) RecordLatency(op string, seconds float64)                {}
