package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MandiWatch/internal/domain/models"
	domrepo "MandiWatch/internal/domain/repository"
)

// ReportSubmitter is the minimal pipeline surface the buffer needs.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, r *models.PriceReport) error
	SubmitSnapshot(ctx context.Context, s *models.InventorySnapshot) error
}

// StreamBuffer sits between the websocket feed and the pipeline. It
// throttles chatty sources and absorbs bursts in a bounded channel drained
// by a background worker, so a slow evaluation never stalls the feed reader.
type StreamBuffer struct {
	pipeline ReportSubmitter
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	reports  chan *models.PriceReport
	snaps    chan *models.InventorySnapshot
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-source last accepted time
}

type BufferOption func(*StreamBuffer)

// WithMaxRPS caps accepted reports per second per source.
func WithMaxRPS(n int) BufferOption {
	return func(b *StreamBuffer) {
		if n > 0 {
			b.maxRPS = n
		}
	}
}

// WithBufferSize sets the burst buffer capacity.
func WithBufferSize(n int) BufferOption {
	return func(b *StreamBuffer) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

func NewStreamBuffer(pipeline ReportSubmitter, metrics domrepo.Metrics, opts ...BufferOption) *StreamBuffer {
	b := &StreamBuffer{
		pipeline: pipeline,
		metrics:  metrics,
		maxRPS:   50,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.reports = make(chan *models.PriceReport, b.bufSize)
	b.snaps = make(chan *models.InventorySnapshot, b.bufSize)
	return b
}

// Start launches the drain worker.
func (b *StreamBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-b.stopCh:
				return
			case r := <-b.reports:
				if r == nil {
					continue
				}
				// rejections are counted inside the pipeline
				_ = b.pipeline.SubmitReport(ctx, r)
			case s := <-b.snaps:
				if s == nil {
					continue
				}
				_ = b.pipeline.SubmitSnapshot(ctx, s)
			}
		}
	}()
}

// Stop stops the drain worker.
func (b *StreamBuffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	close(b.stopCh)
}

// OfferReport throttles and enqueues one streamed report. A full buffer
// drops the report rather than blocking the feed reader.
func (b *StreamBuffer) OfferReport(r *models.PriceReport) error {
	if r == nil {
		return fmt.Errorf("report nil")
	}
	if !b.allow(r.SourceID, time.Now()) {
		b.metrics.RecordError("stream_throttle")
		return nil
	}
	select {
	case b.reports <- r:
		b.metrics.RecordLatency("stream_buffer_depth", float64(len(b.reports)))
		return nil
	default:
		b.metrics.RecordError("stream_buffer_full")
		return fmt.Errorf("stream buffer full")
	}
}

// OfferSnapshot enqueues one streamed inventory snapshot.
func (b *StreamBuffer) OfferSnapshot(s *models.InventorySnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	select {
	case b.snaps <- s:
		return nil
	default:
		b.metrics.RecordError("stream_buffer_full")
		return fmt.Errorf("stream buffer full")
	}
}

func (b *StreamBuffer) allow(source string, now time.Time) bool {
	if b.maxRPS <= 0 || source == "" {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	last := b.lastSeen[source]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(b.maxRPS) {
		b.lastSeen[source] = now
		return true
	}
	return false
}
