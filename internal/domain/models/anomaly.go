package models

import (
	"fmt"
	"time"
)

// Severity tiers for anomalies, ordered from least to most severe.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Escalate returns the severity one tier above s, capped at critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	}
	return s
}

// AnomalyStatus is the review lifecycle of a detected anomaly or pattern.
type AnomalyStatus string

const (
	StatusOpen      AnomalyStatus = "open"
	StatusConfirmed AnomalyStatus = "confirmed"
	StatusResolved  AnomalyStatus = "resolved"
)

// ValidTransition reports whether a status change is allowed. Records move
// open -> confirmed -> resolved; open may also be resolved directly
// (dismissed as a false positive).
func ValidTransition(from, to AnomalyStatus) bool {
	switch from {
	case StatusOpen:
		return to == StatusConfirmed || to == StatusResolved
	case StatusConfirmed:
		return to == StatusResolved
	}
	return false
}

// PriceAnomaly is one detected price spike. Immutable except Status and the
// resolution fields, which change only through explicit reviewer operations.
type PriceAnomaly struct {
	ID             string        `json:"id"`
	Commodity      string        `json:"commodity"`
	Region         string        `json:"region"`
	DetectedAt     time.Time     `json:"detected_at"`
	ObservedPrice  float64       `json:"observed_price"`
	BaselineMean   float64       `json:"baseline_mean"`
	BaselineStdDev float64       `json:"baseline_std_dev"`
	DeviationPct   float64       `json:"deviation_pct"` // signed, percent of baseline mean
	ZScore         float64       `json:"z_score"`
	Severity       Severity      `json:"severity"`
	Confidence     float64       `json:"confidence"`
	Status         AnomalyStatus `json:"status"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	ReviewNotes    string        `json:"review_notes,omitempty"`
}

// Key returns the detection key of the anomaly.
func (a *PriceAnomaly) Key() string {
	return fmt.Sprintf("%s|%s", a.Commodity, a.Region)
}

// StockpilingPattern is correlated abnormal inventory accumulation across
// locations, coincident with a price anomaly. AnomalyIDs are references
// only; the pattern does not own the anomaly records.
type StockpilingPattern struct {
	ID                 string        `json:"id"`
	Commodity          string        `json:"commodity"`
	Region             string        `json:"region"`
	Locations          []string      `json:"locations"`
	WindowStart        time.Time     `json:"window_start"`
	WindowEnd          time.Time     `json:"window_end"`
	CoordinationScore  float64       `json:"coordination_score"`
	ConcentrationRatio float64       `json:"concentration_ratio"` // Herfindahl-style
	Confidence         float64       `json:"confidence"`
	AnomalyIDs         []string      `json:"anomaly_ids"`
	DetectedAt         time.Time     `json:"detected_at"`
	Status             AnomalyStatus `json:"status"`
}

// DetectionStats is the summary exposed on the query API.
type DetectionStats struct {
	TotalAnomalies  int              `json:"total_anomalies"`
	TotalPatterns   int              `json:"total_patterns"`
	BySeverity      map[Severity]int `json:"by_severity"`
	OpenAnomalies   int              `json:"open_anomalies"`
	Confirmed       int              `json:"confirmed"`
	Resolved        int              `json:"resolved"`
	LastDetectionAt *time.Time       `json:"last_detection_at,omitempty"`
}
