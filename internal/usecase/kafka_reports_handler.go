package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MandiWatch/internal/domain/models"
	domrepo "MandiWatch/internal/domain/repository"
	pkgkafka "MandiWatch/pkg/kafka"
)

// KafkaReportsHandler consumes price reports from the reports topic and
// feeds them through the pipeline. Rejections are terminal: a report the
// validator refuses will be refused on redelivery too, so it is counted and
// acknowledged rather than retried.
type KafkaReportsHandler struct {
	topic    string
	pipeline *Pipeline
	metrics  domrepo.Metrics
}

func NewKafkaReportsHandler(topic string, pipeline *Pipeline, metrics domrepo.Metrics) *KafkaReportsHandler {
	return &KafkaReportsHandler{topic: topic, pipeline: pipeline, metrics: metrics}
}

func (h *KafkaReportsHandler) Topic() string { return h.topic }

// incoming message schema: {commodity, region, price, quantity, grade,
// source_id, observed_at (unix seconds or ms), reliability}
func (h *KafkaReportsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Commodity   string   `json:"commodity"`
		Region      string   `json:"region"`
		Price       float64  `json:"price"`
		Quantity    float64  `json:"quantity"`
		Grade       string   `json:"grade"`
		SourceID    string   `json:"source_id"`
		ObservedAt  int64    `json:"observed_at"`
		Reliability *float64 `json:"reliability"` // absent means 1
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.ObservedAt > 1e11 { // ms
		m.ObservedAt = m.ObservedAt / 1000
	}
	observed := time.Unix(m.ObservedAt, 0).UTC()
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(observed).Seconds())

	reliability := 1.0
	if m.Reliability != nil {
		reliability = *m.Reliability
	}
	report := &models.PriceReport{
		Commodity:   m.Commodity,
		Region:      m.Region,
		Price:       m.Price,
		Quantity:    m.Quantity,
		Grade:       models.QualityGrade(m.Grade),
		SourceID:    m.SourceID,
		ObservedAt:  observed,
		Reliability: reliability,
	}
	if err := h.pipeline.SubmitReport(ctx, report); err != nil {
		// rejected by validation, already counted; not a consumer failure
		return nil
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaReportsHandler)(nil)

// KafkaInventoryHandler consumes inventory snapshots from the snapshots
// topic.
type KafkaInventoryHandler struct {
	topic    string
	pipeline *Pipeline
	metrics  domrepo.Metrics
}

func NewKafkaInventoryHandler(topic string, pipeline *Pipeline, metrics domrepo.Metrics) *KafkaInventoryHandler {
	return &KafkaInventoryHandler{topic: topic, pipeline: pipeline, metrics: metrics}
}

func (h *KafkaInventoryHandler) Topic() string { return h.topic }

func (h *KafkaInventoryHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Location   string  `json:"location"`
		Region     string  `json:"region"`
		Commodity  string  `json:"commodity"`
		OnHand     float64 `json:"on_hand"`
		SourceID   string  `json:"source_id"`
		ObservedAt int64   `json:"observed_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.ObservedAt > 1e11 {
		m.ObservedAt = m.ObservedAt / 1000
	}

	snap := &models.InventorySnapshot{
		Location:   m.Location,
		Region:     m.Region,
		Commodity:  m.Commodity,
		OnHand:     m.OnHand,
		SourceID:   m.SourceID,
		ObservedAt: time.Unix(m.ObservedAt, 0).UTC(),
	}
	if err := h.pipeline.SubmitSnapshot(ctx, snap); err != nil {
		return nil
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaInventoryHandler)(nil)
