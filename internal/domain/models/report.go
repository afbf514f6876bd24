package models

import "time"

// QualityGrade is the normalized quality grade of a reported lot.
type QualityGrade string

const (
	GradePremium      QualityGrade = "premium"
	GradeGood         QualityGrade = "good"
	GradeAverage      QualityGrade = "average"
	GradeBelowAverage QualityGrade = "below_average"
)

// NormalizeGrade maps free-form quality strings onto the known grades.
// Unknown input defaults to average.
func NormalizeGrade(s string) QualityGrade {
	switch QualityGrade(s) {
	case GradePremium, GradeGood, GradeAverage, GradeBelowAverage:
		return QualityGrade(s)
	}
	switch s {
	case "a", "grade a", "super", "top", "best":
		return GradePremium
	case "b", "grade b", "fine":
		return GradeGood
	case "d", "grade d", "poor", "low", "inferior":
		return GradeBelowAverage
	}
	return GradeAverage
}

// PriceReport is one observed price for a commodity at a mandi.
// Immutable once accepted; ID is assigned by the validator on acceptance.
type PriceReport struct {
	ID          string       `json:"id"`
	Commodity   string       `json:"commodity"`
	Region      string       `json:"region"`
	Price       float64      `json:"price"`    // per quintal
	Quantity    float64      `json:"quantity"` // quintals
	Grade       QualityGrade `json:"grade"`
	SourceID    string       `json:"source_id"`
	ObservedAt  time.Time    `json:"observed_at"`
	Reliability float64      `json:"reliability"` // source-supplied hint in [0,1]
}

// InventorySnapshot is one stock-level observation at a storage location.
// Immutable once accepted.
type InventorySnapshot struct {
	ID         string    `json:"id"`
	Location   string    `json:"location"`
	Region     string    `json:"region"`
	Commodity  string    `json:"commodity"`
	OnHand     float64   `json:"on_hand"` // quintals
	ObservedAt time.Time `json:"observed_at"`
	SourceID   string    `json:"source_id"`
}
