package usecase

import (
	"context"

	"MandiWatch/internal/domain/models"
	drepo "MandiWatch/internal/domain/repository"
	mid "MandiWatch/internal/middleware"
)

// ReportCollector wires the push feed into the pipeline through the stream
// buffer.
type ReportCollector struct {
	stream  drepo.ReportStream
	buf     *mid.StreamBuffer
	metrics drepo.Metrics
}

func NewReportCollector(stream drepo.ReportStream, buf *mid.StreamBuffer, metrics drepo.Metrics) *ReportCollector {
	return &ReportCollector{stream: stream, buf: buf, metrics: metrics}
}

// IsConnected returns true if the feed is connected.
func (c *ReportCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ReportCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.buf.Start(ctx)
	reports, snaps, errs := c.stream.Read(ctx)
	go c.consume(ctx, reports, snaps, errs)
	return nil
}

func (c *ReportCollector) consume(ctx context.Context, reports <-chan *models.PriceReport, snaps <-chan *models.InventorySnapshot, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case r := <-reports:
			if r == nil {
				continue
			}
			_ = c.buf.OfferReport(r)
		case s := <-snaps:
			if s == nil {
				continue
			}
			_ = c.buf.OfferSnapshot(s)
		}
	}
}

// Shutdown stops the buffer and closes the feed.
func (c *ReportCollector) Shutdown(ctx context.Context) error {
	c.buf.Stop()
	return c.stream.Close()
}
