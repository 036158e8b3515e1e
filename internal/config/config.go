package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig       `mapstructure:"log"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	Storage    StorageConfig   `mapstructure:"storage"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Usage      UsageConfig     `mapstructure:"usage"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

// StorageConfig selects the shared relational store holding credentials,
// the table catalog and every tenant table.
type StorageConfig struct {
	DatabaseConfig `mapstructure:",squash"`
	Driver         string        `mapstructure:"driver"` // mysql | sqlite
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	UsageTopic     string   `mapstructure:"usage_topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"`
}

type UsageConfig struct {
	UnitPrice  string        `mapstructure:"unit_price"`
	Sink       string        `mapstructure:"sink"`        // sql | kafka
	CostSource string        `mapstructure:"cost_source"` // sql | clickhouse
	QueueSize  int           `mapstructure:"queue_size"`
	BatchSize  int           `mapstructure:"batch_size"`
	BatchWait  time.Duration `mapstructure:"batch_wait"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// Price parses the configured unit price of one usage event.
func (u UsageConfig) Price() (decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(u.UnitPrice))
	if err != nil {
		return decimal.Zero, fmt.Errorf("usage.unit_price %q: %w", u.UnitPrice, err)
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("usage.unit_price %q: must not be negative", u.UnitPrice)
	}
	return p, nil
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (LINKDB_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (LINKDB_STORAGE_DSN, LINKDB_USAGE_UNIT_PRICE, ...)
	v.SetEnvPrefix("LINKDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("storage.driver %q: want mysql or sqlite", c.Storage.Driver)
	}
	switch c.Usage.Sink {
	case "sql", "kafka":
	default:
		return fmt.Errorf("usage.sink %q: want sql or kafka", c.Usage.Sink)
	}
	switch c.Usage.CostSource {
	case "sql", "clickhouse":
	default:
		return fmt.Errorf("usage.cost_source %q: want sql or clickhouse", c.Usage.CostSource)
	}
	// cost must be read from where the sink's events end up
	if want := map[string]string{"sql": "sql", "kafka": "clickhouse"}[c.Usage.Sink]; c.Usage.CostSource != want {
		return fmt.Errorf("usage.sink=%s requires usage.cost_source=%s, got %q", c.Usage.Sink, want, c.Usage.CostSource)
	}
	if c.Usage.CostSource == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("usage.cost_source=clickhouse requires clickhouse.enabled")
	}
	if c.Usage.Sink == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("usage.sink=kafka requires kafka.brokers")
	}
	if _, err := c.Usage.Price(); err != nil {
		return err
	}
	return nil
}
