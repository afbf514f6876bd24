package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MandiWatch/internal/domain/models"
)

func testPackage() *models.EvidencePackage {
	return &models.EvidencePackage{
		ID:        "ev-1",
		AnomalyID: "anom-1",
		Commodity: "onion",
		Region:    "nashik",
		Severity:  models.SeverityMedium,
	}
}

func TestDispatchPersistsThenEnqueues(t *testing.T) {
	store := &fakeStore{}
	q := &fakeQueue{}
	d := NewDispatcher(testLogger(t), store, q, nopMetrics{})

	anomaly := &models.PriceAnomaly{ID: "anom-1", Commodity: "onion", Region: "nashik"}
	d.Dispatch(context.Background(), testPackage(), anomaly, nil)
	d.Wait()

	evidence, anomalies, _ := store.counts()
	if evidence != 1 || anomalies != 1 {
		t.Fatalf("persisted %d evidence / %d anomalies, want 1/1", evidence, anomalies)
	}
	msgs := q.published()
	if len(msgs) != 1 || msgs[0].msgType != AlertMessageType {
		t.Fatalf("unexpected queue state: %+v", msgs)
	}
	ev, ok := msgs[0].payload.(*models.AlertEvent)
	if !ok || ev.EvidenceID != "ev-1" || ev.AnomalyID != "anom-1" {
		t.Fatalf("alert event not derived from the package: %+v", msgs[0].payload)
	}
}

func TestDispatchRetriesPersistence(t *testing.T) {
	store := &fakeStore{failSaves: 1}
	q := &fakeQueue{}
	d := NewDispatcher(testLogger(t), store, q, nopMetrics{})

	d.Dispatch(context.Background(), testPackage(), nil, nil)
	d.Wait()

	if evidence, _, _ := store.counts(); evidence != 1 {
		t.Fatalf("transient store failure not retried")
	}
	if len(q.published()) != 1 {
		t.Fatalf("alert not enqueued after retry")
	}
}

func TestDispatchEnqueueFailureKeepsEvidence(t *testing.T) {
	store := &fakeStore{}
	q := &fakeQueue{err: errors.New("redis down")}
	d := NewDispatcher(testLogger(t), store, q, nopMetrics{})

	d.Dispatch(context.Background(), testPackage(), nil, nil)
	d.Wait()

	// The audit trail survives even when alert delivery cannot start.
	if evidence, _, _ := store.counts(); evidence != 1 {
		t.Fatalf("evidence lost on enqueue failure")
	}
}

func TestAlertJobDeliversToSink(t *testing.T) {
	sink := &fakeSink{}
	j := NewAlertJob(testLogger(t), sink, "kafka", nopMetrics{})

	if j.Type() != AlertMessageType {
		t.Fatalf("job type = %q", j.Type())
	}

	ev := &models.AlertEvent{EvidenceID: "ev-1", Commodity: "onion", Region: "nashik", EmittedAt: time.Now()}
	if err := j.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].EvidenceID != "ev-1" {
		t.Fatalf("sink did not receive the event")
	}
}

func TestAlertJobSinkFailureIsRetriable(t *testing.T) {
	sink := &fakeSink{err: errors.New("connection refused")}
	j := NewAlertJob(testLogger(t), sink, "webhook", nopMetrics{})

	err := j.Handle(context.Background(), &models.AlertEvent{EvidenceID: "ev-1"})
	var serr *SinkUnavailableError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SinkUnavailableError, got %v", err)
	}
	if serr.Sink != "webhook" {
		t.Fatalf("sink name lost: %+v", serr)
	}
}
