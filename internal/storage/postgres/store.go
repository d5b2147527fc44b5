// Package postgres implements pipeline.Store on a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const uniqueViolation = "23505"

var errMissingDSN = errors.New("db.dsn is required")

// DB is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Config controls the connection pool.
type Config struct {
	DSN      string
	MaxConns int32
}

// Store is the Postgres pipeline.Store.
type Store struct {
	db DB
}

var _ pipeline.Store = (*Store)(nil)

// New opens a pool and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errMissingDSN
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithPool wraps an existing pool, typically a pgxmock pool in tests.
func NewWithPool(db DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.db != nil {
		s.db.Close()
	}
}

// mapErr translates driver errors into pipeline sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, pipeline.ErrDuplicate)
	}
	return err
}

func mustAffect(tag pgconn.CommandTag, what string, id any) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %v: %w", what, id, pipeline.ErrNotFound)
	}
	return nil
}

func marshalEntities(e []pipeline.Entity) ([]byte, error) {
	if e == nil {
		e = []pipeline.Entity{}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entities: %w", err)
	}
	return data, nil
}

func unmarshalEntities(data []byte) ([]pipeline.Entity, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []pipeline.Entity
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
