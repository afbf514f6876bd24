package models

import (
	"testing"
)

func TestDefaultDetectionConfigValid(t *testing.T) {
	cfg := DefaultDetectionConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DetectionConfig)
	}{
		{"zero deviation threshold", func(c *DetectionConfig) { c.DeviationThresholdPct = 0 }},
		{"negative z threshold", func(c *DetectionConfig) { c.ZScoreThreshold = -1 }},
		{"zero persistence", func(c *DetectionConfig) { c.PersistenceBuckets = 0 }},
		{"unordered breakpoints", func(c *DetectionConfig) { c.Severity.Medium = c.Severity.High + 1 }},
		{"min days above window", func(c *DetectionConfig) { c.BaselineMinDays = c.BaselineWindowDays + 1 }},
		{"single flagged location", func(c *DetectionConfig) { c.MinFlaggedLocations = 1 }},
		{"weights not summing to one", func(c *DetectionConfig) { c.Confidence.Recency = 0.9 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultDetectionConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}

func TestSeverityFor(t *testing.T) {
	cfg := DefaultDetectionConfig()
	cases := []struct {
		dev, z float64
		want   Severity
	}{
		{30, 3, SeverityLow},
		{-30, -3, SeverityLow},
		{45, 3, SeverityMedium},
		{70, 3, SeverityHigh},
		{120, 3, SeverityCritical},
		{30, 6, SeverityMedium},    // z escalation lifts low one tier
		{70, 8, SeverityCritical},  // and high to critical
		{120, 20, SeverityCritical}, // critical stays critical
	}
	for _, tc := range cases {
		if got := cfg.SeverityFor(tc.dev, tc.z); got != tc.want {
			t.Fatalf("SeverityFor(%v, %v) = %s, want %s", tc.dev, tc.z, got, tc.want)
		}
	}
}

func TestSeverityRankOrder(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s must outrank %s", order[i], order[i-1])
		}
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to AnomalyStatus
		want     bool
	}{
		{StatusOpen, StatusConfirmed, true},
		{StatusOpen, StatusResolved, true},
		{StatusConfirmed, StatusResolved, true},
		{StatusConfirmed, StatusOpen, false},
		{StatusResolved, StatusConfirmed, false},
		{StatusResolved, StatusOpen, false},
	}
	for _, tc := range cases {
		if got := ValidTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNormalizeGrade(t *testing.T) {
	if NormalizeGrade("premium") != GradePremium {
		t.Fatalf("known grade must pass through")
	}
	if NormalizeGrade("fancy") != GradeAverage {
		t.Fatalf("unknown grade must map to average")
	}
}
