package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// Dialect holds the per-engine differences; queries are written with "?" placeholders.
type Dialect struct {
	Name   string
	Driver string

	schema         []string
	dollarBindvars bool
	uniqueViolated func(error) bool
}

var (
	MySQL = Dialect{
		Name:           DialectMySQL,
		Driver:         "mysql",
		schema:         mysqlSchema,
		uniqueViolated: mysqlUniqueViolated,
	}
	Postgres = Dialect{
		Name:           DialectPostgres,
		Driver:         "pgx",
		schema:         postgresSchema,
		dollarBindvars: true,
		uniqueViolated: postgresUniqueViolated,
	}
	SQLite = Dialect{
		Name:           DialectSQLite,
		Driver:         "sqlite",
		schema:         sqliteSchema,
		uniqueViolated: sqliteUniqueViolated,
	}
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case DialectMySQL:
		return MySQL, nil
	case DialectPostgres, "postgresql", "pgx":
		return Postgres, nil
	case DialectSQLite, "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
}

func (d Dialect) rebind(query string) string {
	if !d.dollarBindvars {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mysqlUniqueViolated(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func postgresUniqueViolated(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == postgresUniqueViolation
}

func sqliteUniqueViolated(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
