package models

import "time"

// AggregatedPrice is the weighted aggregate for one (commodity, region,
// bucket) key. Owned exclusively by the aggregator; callers receive copies.
type AggregatedPrice struct {
	Commodity     string    `json:"commodity"`
	Region        string    `json:"region"`
	BucketStart   time.Time `json:"bucket_start"`
	WeightedPrice float64   `json:"weighted_price"`
	TotalQuantity float64   `json:"total_quantity"`
	SampleCount   int       `json:"sample_count"`
	SourceCount   int       `json:"source_count"`
	Confidence    float64   `json:"confidence"` // scored at read time
	LastObserved  time.Time `json:"last_observed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CrossRegionPrice is the radius-scoped weighted average across regions.
type CrossRegionPrice struct {
	Commodity     string    `json:"commodity"`
	AnchorRegion  string    `json:"anchor_region"`
	RadiusKM      float64   `json:"radius_km"`
	Regions       []string  `json:"regions"`
	WeightedPrice float64   `json:"weighted_price"`
	TotalQuantity float64   `json:"total_quantity"`
	SampleCount   int       `json:"sample_count"`
	BucketStart   time.Time `json:"bucket_start"`
}

// DailyAggregate is one day's closing aggregate, the unit the baseline
// window is built from.
type DailyAggregate struct {
	Day      time.Time `json:"day"` // midnight UTC
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Samples  int       `json:"samples"`
}

// Baseline is the rolling statistical reference for one (commodity, region).
// Days holds at most the configured window length, oldest first; Mean and
// StdDev are always the statistics of exactly the retained set.
type Baseline struct {
	Commodity  string           `json:"commodity"`
	Region     string           `json:"region"`
	Days       []DailyAggregate `json:"days"`
	Mean       float64          `json:"mean"`
	StdDev     float64          `json:"std_dev"` // sample standard deviation
	WindowDays int              `json:"window_days"`
	MinDays    int              `json:"min_days"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Sufficient reports whether the window holds enough days for detection.
func (b *Baseline) Sufficient() bool {
	return len(b.Days) >= b.MinDays
}

// Clone returns a deep copy, safe to hand outside the per-key lock.
func (b *Baseline) Clone() Baseline {
	cp := *b
	cp.Days = make([]DailyAggregate, len(b.Days))
	copy(cp.Days, b.Days)
	return cp
}
