package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
environment: test
server:
  port: 9090
  read_timeout: 5s
  write_timeout: 5s
  shutdown_timeout: 5s
logging:
  level: debug
  format: json
  output: stdout
detection:
  deviation_threshold_pct: 20
regions:
  - name: nashik
    lat: 19.9975
    lon: 73.7898
kafka:
  brokers: ["localhost:9092"]
  reports_topic: price.reports
  inventory_topic: inventory.snapshots
  alerts_topic: market.alerts
redis:
  addr: localhost:6379
clickhouse:
  host: localhost
  database: mandiwatch
alerts:
  sink: kafka
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesDetectionDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	// Overridden field takes the YAML value, untouched fields keep defaults.
	if cfg.Detection.DeviationThresholdPct != 20 {
		t.Fatalf("deviation threshold = %v, want 20", cfg.Detection.DeviationThresholdPct)
	}
	if cfg.Detection.ZScoreThreshold != 2.5 {
		t.Fatalf("z threshold default lost: %v", cfg.Detection.ZScoreThreshold)
	}
	if cfg.Detection.AlertCooldown != 6*time.Hour {
		t.Fatalf("cooldown default lost: %v", cfg.Detection.AlertCooldown)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("REDIS_ADDR", "redis-prod:6379")
	t.Setenv("SERVER_PORT", "8081")

	cfg, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker1:9092" {
		t.Fatalf("brokers not overridden: %v", cfg.Kafka.Brokers)
	}
	if cfg.Redis.Addr != "redis-prod:6379" {
		t.Fatalf("redis addr not overridden: %v", cfg.Redis.Addr)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("port not overridden: %d", cfg.Server.Port)
	}
}

func TestValidateRejectsBadSink(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Alerts.Sink = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown sink must fail validation")
	}

	cfg.Alerts.Sink = "webhook"
	cfg.Alerts.WebhookURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("webhook sink without a URL must fail validation")
	}
}

func TestValidateRejectsDuplicateRegions(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Regions = append(cfg.Regions, Region{Name: "nashik", Lat: 1, Lon: 1})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("duplicate region must fail validation")
	}
}

func TestCentroids(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := cfg.Centroids()
	ll, ok := c["nashik"]
	if !ok || ll[0] != 19.9975 {
		t.Fatalf("centroid missing or wrong: %v", c)
	}
}
