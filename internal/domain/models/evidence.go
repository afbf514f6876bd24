package models

import "time"

// EvidencePackage is the immutable audit bundle assembled when an anomaly or
// pattern fires. Packages are append-only: a re-evaluation never edits an
// existing package, it creates a new one with Supersedes set.
type EvidencePackage struct {
	ID           string            `json:"id"`
	AnomalyID    string            `json:"anomaly_id,omitempty"`
	PatternID    string            `json:"pattern_id,omitempty"`
	Commodity    string            `json:"commodity"`
	Region       string            `json:"region"`
	Severity     Severity          `json:"severity"`
	PriceHistory []AggregatedPrice `json:"price_history"` // bucket history for the window
	Baseline     Baseline          `json:"baseline"`      // snapshot used for comparison
	Confidence   float64           `json:"confidence"`
	ReportIDs    []string          `json:"report_ids"` // contributing reports, IDs only
	CreatedAt    time.Time         `json:"created_at"`
	Supersedes   string            `json:"supersedes,omitempty"`
}

// AlertEvent is what the notification collaborator receives: a reference to
// the evidence package plus routing fields, never the full payload.
type AlertEvent struct {
	EvidenceID string    `json:"evidence_id"`
	AnomalyID  string    `json:"anomaly_id,omitempty"`
	PatternID  string    `json:"pattern_id,omitempty"`
	Commodity  string    `json:"commodity"`
	Region     string    `json:"region"`
	Severity   Severity  `json:"severity"`
	EmittedAt  time.Time `json:"emitted_at"`
}
