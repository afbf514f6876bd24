package models

import (
	"fmt"
	"math"
	"time"
)

// SeverityBreakpoints are the deviation-percent boundaries between tiers.
// A deviation d maps to LOW when Low <= |d| < Medium, and so on upward.
type SeverityBreakpoints struct {
	Low      float64 `yaml:"low" json:"low"`           // default 25
	Medium   float64 `yaml:"medium" json:"medium"`     // default 40
	High     float64 `yaml:"high" json:"high"`         // default 60
	Critical float64 `yaml:"critical" json:"critical"` // default 100
}

// ConfidenceWeights are the factor weights of the confidence scorer.
// They must sum to 1.
type ConfidenceWeights struct {
	SampleCount float64 `yaml:"sample_count" json:"sample_count"`
	Diversity   float64 `yaml:"diversity" json:"diversity"`
	Recency     float64 `yaml:"recency" json:"recency"`
	Consistency float64 `yaml:"consistency" json:"consistency"`
}

// DetectionConfig is the single versioned threshold set handed to the
// detector, inventory tracker, and scorer at construction. Updates replace
// the whole struct atomically and take effect on the next evaluation cycle,
// never retroactively.
type DetectionConfig struct {
	Version int `yaml:"-" json:"version"`

	// Price spike detection
	DeviationThresholdPct float64             `yaml:"deviation_threshold_pct" json:"deviation_threshold_pct"` // default 25
	ZScoreThreshold       float64             `yaml:"z_score_threshold" json:"z_score_threshold"`             // default 2.5
	PersistenceBuckets    int                 `yaml:"persistence_buckets" json:"persistence_buckets"`         // default 2
	Severity              SeverityBreakpoints `yaml:"severity" json:"severity"`

	// Baseline
	BaselineWindowDays int `yaml:"baseline_window_days" json:"baseline_window_days"` // default 30
	BaselineMinDays    int `yaml:"baseline_min_days" json:"baseline_min_days"`       // default 10

	// Inventory / stockpiling
	StockpilingThresholdPct float64 `yaml:"stockpiling_threshold_pct" json:"stockpiling_threshold_pct"` // default 30
	StockpilingSustainDays  int     `yaml:"stockpiling_sustain_days" json:"stockpiling_sustain_days"`   // default 7
	MinFlaggedLocations     int     `yaml:"min_flagged_locations" json:"min_flagged_locations"`         // default 2

	// Confidence
	Confidence ConfidenceWeights `yaml:"confidence" json:"confidence"`

	// Alerting
	AlertCooldown time.Duration `yaml:"alert_cooldown" json:"alert_cooldown"` // default 6h
}

// DefaultDetectionConfig returns the regulatory defaults.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Version:                 1,
		DeviationThresholdPct:   25,
		ZScoreThreshold:         2.5,
		PersistenceBuckets:      2,
		Severity:                SeverityBreakpoints{Low: 25, Medium: 40, High: 60, Critical: 100},
		BaselineWindowDays:      30,
		BaselineMinDays:         10,
		StockpilingThresholdPct: 30,
		StockpilingSustainDays:  7,
		MinFlaggedLocations:     2,
		Confidence:              ConfidenceWeights{SampleCount: 0.35, Diversity: 0.3, Recency: 0.2, Consistency: 0.15},
		AlertCooldown:           6 * time.Hour,
	}
}

// SeverityFor maps an absolute deviation percentage and z-score to a tier.
// Extreme z-scores lift the deviation-derived tier by one.
func (c *DetectionConfig) SeverityFor(deviationPct, zScore float64) Severity {
	abs := math.Abs(deviationPct)
	var sev Severity
	switch {
	case abs > c.Severity.Critical:
		sev = SeverityCritical
	case abs >= c.Severity.High:
		sev = SeverityHigh
	case abs >= c.Severity.Medium:
		sev = SeverityMedium
	default:
		sev = SeverityLow
	}
	if math.Abs(zScore) >= 2*c.ZScoreThreshold+1 {
		sev = sev.Escalate()
	}
	return sev
}

// Validate checks internal consistency of the threshold set.
func (c *DetectionConfig) Validate() error {
	if c.DeviationThresholdPct <= 0 {
		return fmt.Errorf("deviation_threshold_pct must be positive")
	}
	if c.ZScoreThreshold <= 0 {
		return fmt.Errorf("z_score_threshold must be positive")
	}
	if c.PersistenceBuckets < 1 {
		return fmt.Errorf("persistence_buckets must be >= 1")
	}
	bp := c.Severity
	if !(bp.Low < bp.Medium && bp.Medium < bp.High && bp.High < bp.Critical) {
		return fmt.Errorf("severity breakpoints must be strictly increasing")
	}
	if c.BaselineWindowDays < 1 || c.BaselineMinDays < 1 || c.BaselineMinDays > c.BaselineWindowDays {
		return fmt.Errorf("baseline window %d / min days %d invalid", c.BaselineWindowDays, c.BaselineMinDays)
	}
	if c.StockpilingThresholdPct <= 0 || c.StockpilingSustainDays < 1 {
		return fmt.Errorf("stockpiling thresholds invalid")
	}
	if c.MinFlaggedLocations < 2 {
		return fmt.Errorf("min_flagged_locations must be >= 2")
	}
	w := c.Confidence
	sum := w.SampleCount + w.Diversity + w.Recency + w.Consistency
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("confidence weights must sum to 1, got %v", sum)
	}
	if w.SampleCount < 0 || w.Diversity < 0 || w.Recency < 0 || w.Consistency < 0 {
		return fmt.Errorf("confidence weights must be non-negative")
	}
	return nil
}
