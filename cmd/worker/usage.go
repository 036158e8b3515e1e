package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/kafka"
	"github.com/jmehdipour/linkdb/internal/logger"
	"github.com/jmehdipour/linkdb/internal/metrics"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Ingest usage events from Kafka into ClickHouse",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().Int("batch-size", 1000, "max events per ClickHouse insert")
	usageCmd.Flags().Duration("batch-wait", time.Second, "max time to wait before a flush")
}

func runUsage(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}
	if !cfg.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse.enabled is false")
	}

	// 2) ClickHouse connection
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	// 3) kafka consumer
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "linkdb-usage"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.UsageTopic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewUsageIngest(consumer, repository.NewCHUsageRepository(chDB), log)

	// tune knobs
	if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
		w.BatchSize = n
	}
	if d, _ := cmd.Flags().GetDuration("batch-wait"); d > 0 {
		w.BatchWait = d
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("usage worker started",
		zap.String("topic", cfg.Kafka.UsageTopic),
		zap.String("group", groupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait))

	return w.Run(ctx)
}
