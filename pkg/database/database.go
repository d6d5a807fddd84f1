// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package database opens the link request store on SQLite or MySQL and
// brings its schema up to date.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/moov-io/banklink/pkg/config"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	"github.com/lopezator/migrator"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	connectionStats = kitprom.NewGaugeFrom(stdprom.GaugeOpts{
		Name: "database_connections",
		Help: "How many database connections and what status they're in.",
	}, []string{"driver", "state"})
)

// Type returns a string for which database is configured.
func Type(cfg config.Database) string {
	if cfg.MySQL != nil {
		return "mysql"
	}
	return "sqlite"
}

type connector interface {
	driver() string
	open(ctx context.Context) (*sql.DB, error)
	migrations() migrator.Option
}

// New establishes a database connection according to the configured database.
// MySQL takes precedence when both are configured.
func New(ctx context.Context, logger log.Logger, cfg config.Database) (*sql.DB, error) {
	var conn connector
	switch Type(cfg) {
	case "mysql":
		conn = mysqlConnection(logger, cfg.MySQL)
	default:
		path := ""
		if cfg.SQLite != nil {
			path = cfg.SQLite.Path
		}
		conn = sqliteConnection(logger, getSqlitePath(path))
	}
	logger.Log("database", fmt.Sprintf("connecting to %s", conn.driver()))
	return connect(ctx, logger, conn)
}

func connect(ctx context.Context, logger log.Logger, conn connector) (*sql.DB, error) {
	db, err := conn.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", conn.driver(), err)
	}

	m, err := migrator.New(conn.migrations())
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := m.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s migrations: %v", conn.driver(), err)
	}
	logger.Log("database", fmt.Sprintf("%s migrations complete", conn.driver()))

	go recordStats(ctx, conn.driver(), db)

	return db, nil
}

func recordStats(ctx context.Context, driver string, db *sql.DB) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			stats := db.Stats()
			connectionStats.With("driver", driver, "state", "idle").Set(float64(stats.Idle))
			connectionStats.With("driver", driver, "state", "inuse").Set(float64(stats.InUse))
			connectionStats.With("driver", driver, "state", "open").Set(float64(stats.OpenConnections))
		}
	}
}

func execsql(name, raw string) *migrator.MigrationNoTx {
	return &migrator.MigrationNoTx{
		Name: name,
		Func: func(db *sql.DB) error {
			_, err := db.Exec(raw)
			return err
		},
	}
}

// UniqueViolation returns true when the provided error matches a database error
// for duplicate entries (violating a unique table constraint).
func UniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return MySQLUniqueViolation(err) || SqliteUniqueViolation(err)
}
