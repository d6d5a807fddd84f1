// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/lopezator/migrator"
	"github.com/mattn/go-sqlite3"
)

const defaultSqlitePath = "banklink.db"

var (
	sqliteVersionLogOnce sync.Once

	sqliteMigrations = migrator.Migrations(
		execsql(
			"create_bank_link_requests",
			`create table if not exists bank_link_requests(request_id primary key not null, merchant_id not null, user_id, state not null, outcome, error_key, created_at datetime not null, resolved_at datetime);`,
		),
		execsql(
			"create_bank_link_requests__merchant_idx",
			`create index bank_link_requests_merchant_idx on bank_link_requests (merchant_id);`,
		),
		execsql(
			"create_bank_link_candidates",
			`create table if not exists bank_link_candidates(request_id primary key not null, institution_number, transit_number, encrypted_account_number, masked_account_number, holder_name, verified boolean, bank_account_id, created_at datetime);`,
		),
	)
)

type sqlite struct {
	path   string
	logger log.Logger
}

func sqliteConnection(logger log.Logger, path string) *sqlite {
	return &sqlite{path: path, logger: logger}
}

func (s *sqlite) driver() string { return "sqlite" }

func (s *sqlite) migrations() migrator.Option { return sqliteMigrations }

func (s *sqlite) open(ctx context.Context) (*sql.DB, error) {
	if s == nil || s.path == "" {
		return nil, fmt.Errorf("sqlite: missing path")
	}
	sqliteVersionLogOnce.Do(func() {
		if v, _, _ := sqlite3.Version(); v != "" {
			s.logger.Log("database", fmt.Sprintf("sqlite version %s", v))
		}
	})
	// pollers resolve links concurrently, so writers wait on the lock instead of failing
	return sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", s.path))
}

// getSqlitePath falls back to the default path when none is set or the
// configured one tries to escape the working directory.
func getSqlitePath(path string) string {
	if path == "" || strings.Contains(path, "..") {
		return defaultSqlitePath
	}
	return path
}

// SqliteUniqueViolation returns true when the provided error matches the SQLite error
// for duplicate entries (violating a unique table constraint).
func SqliteUniqueViolation(err error) bool {
	if e, ok := err.(sqlite3.Error); ok && e.Code == sqlite3.ErrConstraint {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// TestSQLiteDB is a migrated SQLite database in its own temp directory.
// Callers should cleanup with Close() when finished.
type TestSQLiteDB struct {
	DB *sql.DB

	dir    string
	cancel context.CancelFunc
}

func (r *TestSQLiteDB) Close() error {
	r.cancel()

	// every connection must be returned by the code under test
	if conns := r.DB.Stats().OpenConnections; conns != 0 {
		panic(fmt.Sprintf("found %d open sqlite connections", conns))
	}
	if err := r.DB.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dir)
}

// CreateTestSqliteDB returns a clean, migrated SQLite database for tests.
func CreateTestSqliteDB(t *testing.T) *TestSQLiteDB {
	t.Helper()

	dir, err := os.MkdirTemp("", "banklink-sqlite")
	if err != nil {
		t.Fatalf("sqlite test: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	conn := sqliteConnection(log.NewNopLogger(), filepath.Join(dir, defaultSqlitePath))
	db, err := connect(ctx, log.NewNopLogger(), conn)
	if err != nil {
		cancel()
		t.Fatalf("sqlite test: %v", err)
	}
	db.SetMaxIdleConns(0)

	return &TestSQLiteDB{DB: db, dir: dir, cancel: cancel}
}
