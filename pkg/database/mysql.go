// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/base/docker"

	"github.com/go-kit/kit/log"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/lopezator/migrator"
	"github.com/ory/dockertest/v3"
)

// https://dev.mysql.com/doc/refman/8.0/en/server-error-reference.html#error_er_dup_entry
const mySQLErrDuplicateKey uint16 = 1062

var (
	mysqlMigrations = migrator.Migrations(
		execsql(
			"create_bank_link_requests",
			`create table if not exists bank_link_requests(request_id varchar(100) primary key not null, merchant_id varchar(100) not null, user_id varchar(100), state varchar(20) not null, outcome varchar(40), error_key varchar(100), created_at datetime not null, resolved_at datetime, index bank_link_requests_merchant_idx (merchant_id));`,
		),
		execsql(
			"create_bank_link_candidates",
			`create table if not exists bank_link_candidates(request_id varchar(100) primary key not null, institution_number varchar(10), transit_number varchar(10), encrypted_account_number varchar(500), masked_account_number varchar(40), holder_name varchar(200), verified boolean, bank_account_id varchar(100), created_at datetime);`,
		),
	)
)

type discardLogger struct{}

func (l discardLogger) Print(v ...interface{}) {}

func init() {
	gomysql.SetLogger(discardLogger{})
}

type mysql struct {
	dsn    string
	logger log.Logger
}

// mysqlConnection accepts addresses as "host:port" or in the driver's "tcp(host:port)" form.
func mysqlConnection(logger log.Logger, cfg *config.MySQL) *mysql {
	dsn := gomysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.GetPassword()
	dsn.Net = "tcp"
	dsn.Addr = cfg.Address
	if strings.HasSuffix(cfg.Address, ")") {
		if idx := strings.Index(cfg.Address, "("); idx > 0 {
			dsn.Net = cfg.Address[:idx]
			dsn.Addr = cfg.Address[idx+1 : len(cfg.Address)-1]
		}
	}
	dsn.DBName = cfg.Database
	dsn.Timeout = 30 * time.Second
	dsn.ParseTime = true
	dsn.Params = map[string]string{
		"charset": "utf8mb4",
	}
	return &mysql{dsn: dsn.FormatDSN(), logger: logger}
}

func (my *mysql) driver() string { return "mysql" }

func (my *mysql) migrations() migrator.Option { return mysqlMigrations }

func (my *mysql) open(ctx context.Context) (*sql.DB, error) {
	return sql.Open("mysql", my.dsn)
}

// MySQLUniqueViolation returns true when the provided error matches the MySQL code
// for duplicate entries (violating a unique table constraint).
func MySQLUniqueViolation(err error) bool {
	var e *gomysql.MySQLError
	if errors.As(err, &e) && e.Number == mySQLErrDuplicateKey {
		return true
	}
	return strings.Contains(err.Error(), fmt.Sprintf("Error %d: Duplicate entry", mySQLErrDuplicateKey))
}

// TestMySQLDB is a migrated MySQL database running in a docker container.
// Callers should cleanup with Close() when finished.
type TestMySQLDB struct {
	DB *sql.DB

	container *dockertest.Resource
}

func (r *TestMySQLDB) Close() error {
	defer r.container.Close()
	return r.DB.Close()
}

// CreateTestMySQLDB starts mysql:8 in docker and returns a migrated database.
// It skips the test under -short or when docker isn't available.
func CreateTestMySQLDB(t *testing.T) *TestMySQLDB {
	t.Helper()

	if testing.Short() {
		t.Skip("-short flag enabled")
	}
	if !docker.Enabled() {
		t.Skip("Docker not enabled")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatal(err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8",
		Env: []string{
			"MYSQL_USER=moov",
			"MYSQL_PASSWORD=secret",
			"MYSQL_ROOT_PASSWORD=secret",
			"MYSQL_DATABASE=banklink",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	conn := mysqlConnection(log.NewNopLogger(), &config.MySQL{
		Address:  fmt.Sprintf("localhost:%s", resource.GetPort("3306/tcp")),
		Username: "moov",
		Password: "secret",
		Database: "banklink",
	})
	// the container accepts connections well before mysqld is ready
	err = pool.Retry(func() error {
		db, err := conn.open(context.Background())
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	})
	if err != nil {
		resource.Close()
		t.Fatal(err)
	}

	db, err := connect(context.Background(), log.NewNopLogger(), conn)
	if err != nil {
		resource.Close()
		t.Fatal(err)
	}
	return &TestMySQLDB{DB: db, container: resource}
}
