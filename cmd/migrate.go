package cmd

import (
	"fmt"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create control-plane tables (and the ClickHouse usage table when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := db.Migrate(cmd.Context(), store.DB, store.Dialect.Name(), log); err != nil {
			return fmt.Errorf("migrate %s: %w", store.Dialect.Name(), err)
		}
		log.Info("migration complete", zap.String("dialect", store.Dialect.Name()))

		if cfg.ClickHouse.Enabled {
			chDB, err := openClickHouse(cfg)
			if err != nil {
				return err
			}
			defer chDB.Close()

			if err := db.Migrate(cmd.Context(), chDB, "clickhouse", log); err != nil {
				return fmt.Errorf("migrate clickhouse: %w", err)
			}
			log.Info("migration complete", zap.String("dialect", "clickhouse"))
		}
		return nil
	},
}
