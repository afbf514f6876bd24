package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type ReportRequest struct {
	Commodity  string  `json:"commodity" validate:"required"`
	Region     string  `json:"region" validate:"required"`
	Price      float64 `json:"price" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	Grade      string  `json:"grade" default:"average"`
	SourceID   string  `json:"source_id" validate:"required"`
	ObservedAt string  `json:"observed_at" validate:"required"` // RFC3339 or unix seconds
	// Pointer so an explicit 0 survives to the validator; omitted means 1.
	Reliability *float64 `json:"reliability" validate:"omitempty,gte=0,lte=1"`
}

type ReportBatchRequest struct {
	Reports []ReportRequest `json:"reports" validate:"required,min=1,max=1000,dive"`
}

type InventoryRequest struct {
	Location   string  `json:"location" validate:"required"`
	Region     string  `json:"region" validate:"required"`
	Commodity  string  `json:"commodity" validate:"required"`
	OnHand     float64 `json:"on_hand" validate:"gte=0"`
	SourceID   string  `json:"source_id" validate:"required"`
	ObservedAt string  `json:"observed_at" validate:"required"`
}

type InventoryBatchRequest struct {
	Snapshots []InventoryRequest `json:"snapshots" validate:"required,min=1,max=1000,dive"`
}

type CurrentPriceRequest struct {
	Commodity string  `query:"commodity" json:"commodity" validate:"required"`
	Region    string  `query:"region" json:"region" validate:"required"`
	RadiusKM  float64 `query:"radius_km" json:"radius_km" default:"0" validate:"gte=0,lte=2000"`
}

type AnomalyQueryRequest struct {
	Commodity string `query:"commodity" json:"commodity"`
	Region    string `query:"region" json:"region"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Severity  string `query:"severity" json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Status    string `query:"status" json:"status" validate:"omitempty,oneof=open confirmed resolved"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type PatternQueryRequest struct {
	Commodity string `query:"commodity" json:"commodity"`
	Region    string `query:"region" json:"region"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ReviewRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type ExportRequest struct {
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
	Region string `query:"region" json:"region"`
}
