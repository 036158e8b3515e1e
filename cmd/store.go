package cmd

import (
	"fmt"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmoiron/sqlx"
)

// openStore connects the configured shared store (mysql or sqlite).
func openStore(cfg config.Config) (*db.Store, error) {
	dialect, err := db.DialectFor(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}

	var dbx *sqlx.DB
	switch cfg.Storage.Driver {
	case "sqlite":
		dbx, err = db.NewSQLiteConnection(cfg.Storage.DSN, db.SQLiteOpts{
			PingTimeout: cfg.Storage.PingTimeout,
		})
	default:
		dbx, err = db.NewMySQLConnection(cfg.Storage.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Storage.ConnMaxIdleTime,
			PingTimeout:     cfg.Storage.PingTimeout,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Storage.Driver, err)
	}
	return db.NewStore(dbx, dialect, cfg.Storage.QueryTimeout), nil
}

func openClickHouse(cfg config.Config) (*sqlx.DB, error) {
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return chDB, nil
}
