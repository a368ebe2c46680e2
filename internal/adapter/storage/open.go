package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultMaxOpenConns    = 50
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
)

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}

	maxOpen, maxIdle := opts.MaxOpenConns, opts.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	if dialect.Name == DialectSQLite {
		// single writer; a second connection would only add SQLITE_BUSY
		maxOpen, maxIdle = 1, 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}

	return NewSQLStore(db, dialect), nil
}

// SQLiteDSN builds a modernc DSN for a database file with foreign keys enforced.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
