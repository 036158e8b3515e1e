package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	httpSrv "github.com/jmehdipour/linkdb/internal/http"
	"github.com/jmehdipour/linkdb/internal/kafka"
	"github.com/jmehdipour/linkdb/internal/logger"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/service/usage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server and usage meter",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := db.Migrate(cmd.Context(), store.DB, store.Dialect.Name(), log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		var rds *redis.Client
		if cfg.Redis.Enabled {
			rds, err = db.NewRedisClient(db.RedisOpts{
				Addr:        cfg.Redis.Addr,
				Password:    cfg.Redis.Password,
				DB:          cfg.Redis.DB,
				DialTimeout: cfg.Redis.DialTimeout,
			})
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = rds.Close() }()
		}

		meter, closeMeter, err := newMeter(cfg, store, log)
		if err != nil {
			return err
		}
		defer closeMeter()

		server := httpSrv.NewServer(cfg, log, store, meter, rds)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// the meter outlives the server so events of in-flight requests are flushed
		meterCtx, stopMeter := context.WithCancel(context.Background())
		defer stopMeter()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return meter.Run(meterCtx) })
		g.Go(func() error {
			if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down")

			timeout := cfg.HTTP.ShutdownTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			sctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			err := server.Shutdown(sctx)
			stopMeter()
			return err
		})

		return g.Wait()
	},
}

// newMeter builds the usage meter with the configured sink and cost source.
func newMeter(cfg config.Config, store *db.Store, log *zap.Logger) (*usage.Meter, func(), error) {
	price, err := cfg.Usage.Price()
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sqlUsage := repository.NewUsageRepository(store.DB)

	var sink usage.Sink = usage.SinkFunc(sqlUsage.InsertBatch)
	if cfg.Usage.Sink == "kafka" {
		p := kafka.NewUsageProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.UsageTopic,
		})
		closers = append(closers, func() { _ = p.Close() })
		sink = p
	}

	var counter usage.Counter = sqlUsage
	if cfg.Usage.CostSource == "clickhouse" {
		chDB, err := openClickHouse(cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = chDB.Close() })
		counter = repository.NewCHUsageRepository(chDB)
	}

	log.Info("usage meter configured",
		zap.String("sink", cfg.Usage.Sink),
		zap.String("cost_source", cfg.Usage.CostSource),
		zap.String("unit_price", price.String()))

	return usage.NewMeter(sink, counter, price, usage.Options{
		QueueSize:     cfg.Usage.QueueSize,
		BatchSize:     cfg.Usage.BatchSize,
		BatchWait:     cfg.Usage.BatchWait,
		Timeout:       cfg.Storage.QueryTimeout,
		FailThreshold: cfg.Usage.Breaker.FailThreshold,
		OpenFor:       time.Duration(cfg.Usage.Breaker.OpenForMs) * time.Millisecond,
	}, log), closeAll, nil
}
