package repository

import (
	"context"
	"time"

	"MandiWatch/internal/domain/models"
)

// ReportStream is a live push feed of price reports and inventory snapshots
// from a market data collaborator.
type ReportStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceReport, <-chan *models.InventorySnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AlertSink delivers alert events to the notification collaborator.
// Retry on delivery failure is the dispatcher's job, not the sink's.
type AlertSink interface {
	Emit(ctx context.Context, ev *models.AlertEvent) error
	Close() error
}

// EvidenceStore is the append-only persistence layer for evidence packages,
// anomaly and pattern records, and daily aggregate history.
type EvidenceStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	SaveEvidence(ctx context.Context, pkg *models.EvidencePackage) error
	SaveAnomaly(ctx context.Context, a *models.PriceAnomaly) error
	SavePattern(ctx context.Context, p *models.StockpilingPattern) error
	SaveDailyAggregate(ctx context.Context, key Key, day models.DailyAggregate) error
	GetEvidence(ctx context.Context, id string) (*models.EvidencePackage, error)
	DailyHistory(ctx context.Context, key Key, from, to time.Time) ([]models.DailyAggregate, error)
	ExportConfirmed(ctx context.Context, from, to time.Time, region string) ([]*models.EvidencePackage, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordReportAccepted(source, commodity string)
	RecordReportRejected(source, reason string)
	RecordLastPrice(commodity, region string, price float64)
	RecordAnomaly(severity string)
	RecordPattern()
	RecordAlert(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
