package cmd

import (
	"fmt"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/logger"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/service/credential"
	"github.com/jmehdipour/linkdb/internal/service/records"
	"github.com/jmehdipour/linkdb/internal/service/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Issue demo credentials, each with a populated users table",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)
		count, _ := cmd.Flags().GetInt("count")

		// 2) connect store
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := db.Migrate(cmd.Context(), store.DB, store.Dialect.Name(), log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		// 3) services
		creds := credential.New(store, repository.NewCredentialsRepository(store.DB, db.IsDuplicateKey))
		sch := schema.New(store, repository.NewCatalogRepository(store.DB, db.IsDuplicateKey), log)
		recs := records.New(store, sch)

		users := model.TableDefinition{
			Name:    "users",
			Columns: model.ColumnList{{Name: "name", Type: "TEXT NOT NULL"}, {Name: "age", Type: "INTEGER"}},
		}
		demo := []model.Record{
			{"name": "Ann", "age": 30},
			{"name": "Bob", "age": 41},
			{"name": "Cleo", "age": 27},
		}

		log.Info("seeding demo tenants", zap.Int("count", count))
		for i := 0; i < count; i++ {
			c, err := creds.Issue(cmd.Context())
			if err != nil {
				return fmt.Errorf("issue key: %w", err)
			}
			if err := sch.CreateTable(cmd.Context(), c.Namespace, users); err != nil {
				return fmt.Errorf("create users for %s: %w", c.APIKey, err)
			}
			for _, r := range demo {
				if _, err := recs.Insert(cmd.Context(), c.Namespace, users.Name, r); err != nil {
					return fmt.Errorf("insert demo row: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.APIKey)
		}

		log.Info("seed completed")
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("count", 3, "number of demo tenants")
}
