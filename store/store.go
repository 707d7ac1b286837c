// Package store implements listwarden.DB against an embedded SQLite
// database. Its schema is applied from the migrations in
// migrations_gen.go (generated by store/gen/main.go from the .sql files
// under migrations/).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/listwarden/listwarden"
)

// migration is one forward/backward schema step.
type migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Profile selects the SQLite authorizer installed on the connection.
// Trusted is used by the admin CLI, which may create/alter tables and
// run migrations. Untrusted is used by the long-running mail processing
// path: it may only read and write the application's own tables, as a
// second line of defense should a future code path ever build SQL from
// untrusted input.
type Profile int

const (
	Trusted Profile = iota
	Untrusted
)

var registerDrivers sync.Once

func registerSQLiteDrivers() {
	sql.Register("listwarden_trusted", &sqlite3.SQLiteDriver{})
	sql.Register("listwarden_untrusted", &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			conn.RegisterAuthorizer(untrustedAuthorizer)
			return nil
		},
	})
}

var allowedTables = map[string]bool{
	"lists":                   true,
	"list_topics":             true,
	"accounts":                true,
	"owners":                  true,
	"subscriptions":           true,
	"candidate_subscriptions": true,
	"post_policies":           true,
	"subscription_policies":   true,
	"filter_settings":         true,
	"posts":                   true,
	"queue_entries":           true,
	"templates":               true,
}

// untrustedAuthorizer permits DML against listwarden's own tables, plain
// reads, and the transaction/savepoint/pragma vocabulary Atomic and Open
// need; everything else, notably schema changes and ATTACH, is denied.
func untrustedAuthorizer(action int, arg1, arg2, _ string, _ string) int {
	switch action {
	case sqlite3.SQLITE_SELECT, sqlite3.SQLITE_READ, sqlite3.SQLITE_FUNCTION:
		return sqlite3.SQLITE_OK
	case sqlite3.SQLITE_INSERT, sqlite3.SQLITE_UPDATE, sqlite3.SQLITE_DELETE:
		if allowedTables[arg1] {
			return sqlite3.SQLITE_OK
		}
		return sqlite3.SQLITE_DENY
	case sqlite3.SQLITE_TRANSACTION, sqlite3.SQLITE_SAVEPOINT:
		return sqlite3.SQLITE_OK
	case sqlite3.SQLITE_PRAGMA:
		switch arg1 {
		case "busy_timeout", "foreign_keys", "journal_mode", "synchronous":
			return sqlite3.SQLITE_OK
		default:
			return sqlite3.SQLITE_DENY
		}
	default:
		return sqlite3.SQLITE_DENY
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting every CRUD
// method in this package run unchanged whether or not it is inside a
// transaction opened by Atomic.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements listwarden.DB. The zero value is not usable; use Open.
type Store struct {
	root  *sql.DB
	q     querier
	tx    *sql.Tx
	depth int
}

var _ listwarden.DB = (*Store)(nil)

// Open opens path under the given profile, applying pending migrations
// first if profile is Trusted. A fresh database is always opened
// Trusted at least once so the schema exists.
func Open(ctx context.Context, path string, profile Profile) (*Store, error) {
	registerDrivers.Do(registerSQLiteDrivers)

	driver := "listwarden_untrusted"
	if profile == Trusted {
		driver = "listwarden_trusted"
	}

	dsn := fmt.Sprintf("file:%s?_txlock=exclusive&_journal_mode=WAL&_busy_timeout=500&_foreign_keys=on", path)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, listwarden.WrapConfiguration(err, "opening database")
	}
	db.SetMaxOpenConns(1) // SQLite allows one writer; avoid pool contention on EXCLUSIVE tx

	s := &Store{root: db, q: db}

	if profile == Trusted {
		if err := migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.root.Close()
}

// migrate applies pending migrations, tracking schema version in the
// database's user_version PRAGMA (spec.md §4.1/§6/§8) rather than a
// bookkeeping table, so it is updated transactionally as part of each
// migration it guards.
func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	row := db.QueryRowContext(ctx, `PRAGMA user_version`)
	if err := row.Scan(&current); err != nil {
		return listwarden.WrapIntegrity(err, "reading schema version")
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return listwarden.WrapIntegrity(err, "beginning migration")
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return listwarden.WrapIntegrity(err, fmt.Sprintf("applying migration %d (%s)", m.Version, m.Name))
		}
		// PRAGMA user_version doesn't accept bound parameters; m.Version
		// comes from the embedded migrations slice, never user input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			tx.Rollback()
			return listwarden.WrapIntegrity(err, "recording schema version")
		}
		if err := tx.Commit(); err != nil {
			return listwarden.WrapIntegrity(err, "committing migration")
		}
	}

	return nil
}

// Atomic implements listwarden.DB. The outermost call opens the
// connection's single EXCLUSIVE transaction (via _txlock=exclusive in
// the DSN); calls nested inside an already-running Atomic open a
// SAVEPOINT rooted in it instead, so nested atomic units (e.g.
// AcceptCandidate called from within Post's transaction) share one
// EXCLUSIVE lock rather than trying to acquire a second one.
func (s *Store) Atomic(ctx context.Context, fn func(listwarden.DB) error) error {
	if s.tx == nil {
		tx, err := s.root.BeginTx(ctx, nil)
		if err != nil {
			return translateBusy(err)
		}
		nested := &Store{root: s.root, q: tx, tx: tx, depth: 0}
		if err := fn(nested); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return translateBusy(err)
		}
		return nil
	}

	name := fmt.Sprintf("sp%d", s.depth+1)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return translateBusy(err)
	}
	nested := &Store{root: s.root, q: s.tx, tx: s.tx, depth: s.depth + 1}
	if err := fn(nested); err != nil {
		s.tx.ExecContext(ctx, "ROLLBACK TO "+name)
		s.tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return translateBusy(err)
	}
	return nil
}

func translateBusy(err error) error {
	if err == nil {
		return nil
	}
	if sqliteErr, ok := err.(sqlite3.Error); ok && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return listwarden.ErrBusy
	}
	return listwarden.WrapIntegrity(err, "database operation failed")
}

// chunk splits ids into groups of at most n, for building "IN (...)"
// clauses that stay under SQLite's default bound-variable limit.
func chunk(ids []int64, n int) [][]int64 {
	var out [][]int64
	for len(ids) > 0 {
		if len(ids) < n {
			n = len(ids)
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
