package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.QueryTimeout)
	assert.Equal(t, "sql", cfg.Usage.Sink)
	assert.Equal(t, 10000, cfg.Usage.QueueSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Usage.BatchWait)
	assert.False(t, cfg.Redis.Enabled)

	price, err := cfg.Usage.Price()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.001")))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  dsn: /var/lib/linkdb/data.db
usage:
  batch_size: 50
`), 0o600))

	t.Setenv("LINKDB_USAGE_UNIT_PRICE", "0.25")
	t.Setenv("LINKDB_HTTP_ADDR", ":8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/linkdb/data.db", cfg.Storage.DSN)
	assert.Equal(t, 50, cfg.Usage.BatchSize)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "0.25", cfg.Usage.UnitPrice)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"negative price":    {"LINKDB_USAGE_UNIT_PRICE": "-1"},
		"garbage price":     {"LINKDB_USAGE_UNIT_PRICE": "cheap"},
		"unknown driver":    {"LINKDB_STORAGE_DRIVER": "postgres"},
		"unknown sink":      {"LINKDB_USAGE_SINK": "s3"},
		"kafka w/o brokers": {"LINKDB_USAGE_SINK": "kafka", "LINKDB_USAGE_COST_SOURCE": "clickhouse", "LINKDB_CLICKHOUSE_ENABLED": "true"},
		"clickhouse off":    {"LINKDB_USAGE_SINK": "kafka", "LINKDB_USAGE_COST_SOURCE": "clickhouse", "LINKDB_KAFKA_BROKERS": "127.0.0.1:9092"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadUsagePipelines(t *testing.T) {
	cases := []struct {
		name    string
		usage   string
		wantErr bool
	}{
		{"sql to sql", "sink: sql\n  cost_source: sql", false},
		{"kafka to clickhouse", "sink: kafka\n  cost_source: clickhouse", false},
		{"kafka counted in sql", "sink: kafka\n  cost_source: sql", true},
		{"sql counted in clickhouse", "sink: sql\n  cost_source: clickhouse", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(`
clickhouse:
  enabled: true
kafka:
  brokers: ["127.0.0.1:9092"]
usage:
  `+tc.usage+`
`), 0o600))

			_, err := Load(path)
			if tc.wantErr {
				assert.ErrorContains(t, err, "usage.cost_source")
				return
			}
			assert.NoError(t, err)
		})
	}
}
