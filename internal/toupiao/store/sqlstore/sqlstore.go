// Package sqlstore implements store.Store over database/sql. Queries are
// written with "?" placeholders and rebound by the driver's Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	Name() string
	// Placeholder returns the n-th (1 based) bind parameter.
	Placeholder(n int) string
	IsUniqueViolation(err error) bool
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migrator applies the driver's embedded migrations.
type Migrator func(db *sql.DB) error

type Store struct {
	db      *sql.DB
	dialect Dialect
	migrate Migrator
}

func New(db *sql.DB, dialect Dialect, migrate Migrator) *Store {
	return &Store{db: db, dialect: dialect, migrate: migrate}
}

// DB exposes the pool for driver specific tuning and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return errors.New("sqlstore: no migrator configured")
	}
	if err := s.migrate(s.db); err != nil {
		return fmt.Errorf("sqlstore: migrate %s: %w", s.dialect.Name(), err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, q: querier{db: tx, d: s.dialect}}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) q() querier { return querier{db: s.db, d: s.dialect} }

func (s *Store) Users() store.Users                 { return &usersRepo{s.q()} }
func (s *Store) Roles() store.Roles                 { return &rolesRepo{s.q()} }
func (s *Store) Tokens() store.Tokens               { return &tokensRepo{s.q()} }
func (s *Store) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{s.q()} }
func (s *Store) Polls() store.Polls                 { return &pollsRepo{s.q()} }
func (s *Store) Votes() store.Votes                 { return &votesRepo{s.q()} }
func (s *Store) SigningKeys() store.SigningKeys     { return &signingKeysRepo{s.q()} }

type txStore struct {
	tx *sql.Tx
	q  querier
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// The connection is already held by the transaction.
func (t *txStore) Ping(context.Context) error { return nil }
func (t *txStore) Close() error               { return nil }
func (t *txStore) ApplyMigrations() error     { return nil }

func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }
func (t *txStore) WithTx(context.Context, func(store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{t.q} }
func (t *txStore) Roles() store.Roles                 { return &rolesRepo{t.q} }
func (t *txStore) Tokens() store.Tokens               { return &tokensRepo{t.q} }
func (t *txStore) RecoveryCodes() store.RecoveryCodes { return &recoveryCodesRepo{t.q} }
func (t *txStore) Polls() store.Polls                 { return &pollsRepo{t.q} }
func (t *txStore) Votes() store.Votes                 { return &votesRepo{t.q} }
func (t *txStore) SigningKeys() store.SigningKeys     { return &signingKeysRepo{t.q} }

// querier rebinds placeholders and maps driver errors onto store errors.
type querier struct {
	db DBTX
	d  Dialect
}

func (q querier) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		return nil, q.mapErr(err)
	}
	return res, nil
}

func (q querier) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q querier) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

func (q querier) rebind(query string) string {
	if q.d.Placeholder(1) == "?" {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteString(q.d.Placeholder(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func (q querier) mapErr(err error) error {
	if q.d.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
	}
	return err
}

// DollarPlaceholder renders postgres style "$n" parameters.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// expectOne turns "no rows affected" into ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ts normalises times to UTC at the precision both databases keep.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func stringPtrArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// prefixed qualifies each column of a column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
