package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
)

// ClickHouseEvidenceStore implements EvidenceStore on ClickHouse. Every
// table is append-only MergeTree; review status changes append a new row and
// reads take the latest row per id.
type ClickHouseEvidenceStore struct {
	db *sql.DB
}

func NewClickHouseEvidenceStore(db *sql.DB) repository.EvidenceStore {
	return &ClickHouseEvidenceStore{db: db}
}

func (s *ClickHouseEvidenceStore) Init(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS mandi_evidence (
			id String,
			anomaly_id String,
			pattern_id String,
			commodity LowCardinality(String),
			region LowCardinality(String),
			severity LowCardinality(String),
			confidence Float64,
			supersedes String,
			payload String,
			created_at DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (created_at, id)`,

		`CREATE TABLE IF NOT EXISTS mandi_anomalies (
			id String,
			commodity LowCardinality(String),
			region LowCardinality(String),
			detected_at DateTime64(3),
			observed_price Float64,
			baseline_mean Float64,
			baseline_stddev Float64,
			deviation_pct Float64,
			z_score Float64,
			severity LowCardinality(String),
			confidence Float64,
			status LowCardinality(String),
			review_notes String,
			updated_at DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(detected_at)
		ORDER BY (detected_at, id, updated_at)`,

		`CREATE TABLE IF NOT EXISTS mandi_patterns (
			id String,
			commodity LowCardinality(String),
			region LowCardinality(String),
			window_start DateTime64(3),
			window_end DateTime64(3),
			coordination_score Float64,
			concentration_ratio Float64,
			confidence Float64,
			status LowCardinality(String),
			detected_at DateTime64(3),
			payload String,
			updated_at DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(detected_at)
		ORDER BY (detected_at, id, updated_at)`,

		`CREATE TABLE IF NOT EXISTS mandi_daily_aggregates (
			commodity LowCardinality(String),
			region LowCardinality(String),
			day Date,
			price Float64,
			quantity Float64,
			samples UInt32
		) ENGINE = ReplacingMergeTree()
		ORDER BY (commodity, region, day)`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("evidence store init: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseEvidenceStore) SaveEvidence(ctx context.Context, pkg *models.EvidencePackage) error {
	payload, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	q := `INSERT INTO mandi_evidence
		(id, anomaly_id, pattern_id, commodity, region, severity, confidence, supersedes, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		pkg.ID, pkg.AnomalyID, pkg.PatternID, pkg.Commodity, pkg.Region,
		string(pkg.Severity), pkg.Confidence, pkg.Supersedes, string(payload), pkg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *ClickHouseEvidenceStore) SaveAnomaly(ctx context.Context, a *models.PriceAnomaly) error {
	q := `INSERT INTO mandi_anomalies
		(id, commodity, region, detected_at, observed_price, baseline_mean, baseline_stddev,
		 deviation_pct, z_score, severity, confidence, status, review_notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.Commodity, a.Region, a.DetectedAt, a.ObservedPrice, a.BaselineMean,
		a.BaselineStdDev, a.DeviationPct, a.ZScore, string(a.Severity), a.Confidence,
		string(a.Status), a.ReviewNotes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

func (s *ClickHouseEvidenceStore) SavePattern(ctx context.Context, p *models.StockpilingPattern) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	q := `INSERT INTO mandi_patterns
		(id, commodity, region, window_start, window_end, coordination_score,
		 concentration_ratio, confidence, status, detected_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		p.ID, p.Commodity, p.Region, p.WindowStart, p.WindowEnd, p.CoordinationScore,
		p.ConcentrationRatio, p.Confidence, string(p.Status), p.DetectedAt,
		string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

func (s *ClickHouseEvidenceStore) SaveDailyAggregate(ctx context.Context, key repository.Key, day models.DailyAggregate) error {
	q := `INSERT INTO mandi_daily_aggregates (commodity, region, day, price, quantity, samples)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		key.Commodity, key.Region, day.Day, day.Price, day.Quantity, uint32(day.Samples))
	if err != nil {
		return fmt.Errorf("insert daily aggregate: %w", err)
	}
	return nil
}

func (s *ClickHouseEvidenceStore) GetEvidence(ctx context.Context, id string) (*models.EvidencePackage, error) {
	q := `SELECT payload FROM mandi_evidence WHERE id = ? ORDER BY created_at LIMIT 1`
	var payload string
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("evidence %s not found", id)
		}
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	var pkg models.EvidencePackage
	if err := json.Unmarshal([]byte(payload), &pkg); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return &pkg, nil
}

func (s *ClickHouseEvidenceStore) DailyHistory(ctx context.Context, key repository.Key, from, to time.Time) ([]models.DailyAggregate, error) {
	q := `SELECT day, price, quantity, samples FROM mandi_daily_aggregates FINAL
		WHERE commodity = ? AND region = ? AND day >= ? AND day <= ?
		ORDER BY day`
	rows, err := s.db.QueryContext(ctx, q, key.Commodity, key.Region, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily history: %w", err)
	}
	defer rows.Close()

	var out []models.DailyAggregate
	for rows.Next() {
		var d models.DailyAggregate
		var samples uint32
		if err := rows.Scan(&d.Day, &d.Price, &d.Quantity, &samples); err != nil {
			return nil, err
		}
		d.Samples = int(samples)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ExportConfirmed returns the evidence packages of anomalies and patterns
// whose latest review status is confirmed, for a time range.
func (s *ClickHouseEvidenceStore) ExportConfirmed(ctx context.Context, from, to time.Time, region string) ([]*models.EvidencePackage, error) {
	q := `SELECT payload FROM mandi_evidence
		WHERE created_at >= ? AND created_at <= ?
		AND (
			anomaly_id IN (
				SELECT id FROM mandi_anomalies GROUP BY id
				HAVING argMax(status, updated_at) = 'confirmed'
			)
			OR pattern_id IN (
				SELECT id FROM mandi_patterns GROUP BY id
				HAVING argMax(status, updated_at) = 'confirmed'
			)
		)`
	args := []interface{}{from, to}
	if region != "" {
		q += " AND region = ?"
		args = append(args, region)
	}
	q += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	defer rows.Close()

	var out []*models.EvidencePackage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var pkg models.EvidencePackage
		if err := json.Unmarshal([]byte(payload), &pkg); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
		out = append(out, &pkg)
	}
	return out, rows.Err()
}

func (s *ClickHouseEvidenceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseEvidenceStore) Close() error {
	return nil // connection managed by pkg
}
