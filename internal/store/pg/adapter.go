// Package pg implementa el Directory Store sobre PostgreSQL con pgxpool.
// Cada unidad de trabajo es una pgx.Tx.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/security/secretbox"
	"github.com/dropDatabas3/realmport/internal/store"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Open(ctx context.Context, cfg store.Config) (repository.Directory, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	logger.From(ctx).Info("postgres directory store connected",
		logger.Component("store.pg"),
		logger.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return New(pool, Options{AdminRealm: cfg.AdminRealm, Passwords: cfg.Passwords, Secrets: cfg.Secrets}), nil
}

type Options struct {
	AdminRealm string
	Passwords  *password.Enforcer
	// Secrets cifra secretos de clients y credenciales; nil los guarda en claro.
	Secrets *secretbox.Box
	Now     func() time.Time
}

type Store struct {
	pool  *pgxpool.Pool
	admin string
	pw    *password.Enforcer
	box   *secretbox.Box
	now   func() time.Time
}

var _ repository.Directory = (*Store)(nil)

func New(pool *pgxpool.Pool, opts Options) *Store {
	if opts.AdminRealm == "" {
		opts.AdminRealm = "master"
	}
	if opts.Passwords == nil {
		opts.Passwords = password.NewEnforcer(nil, password.Default)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{pool: pool, admin: opts.AdminRealm, pw: opts.Passwords, box: opts.Secrets, now: opts.Now}
}

// Pool expone el pool (migraciones, métricas).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Tx corre fn dentro de una transacción. Si fn falla se hace rollback.
func (s *Store) Tx(ctx context.Context, fn func(tx repository.DirectoryTx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(t pgx.Tx) error {
		return mapPgError(fn(&tx{s: s, q: t}))
	})
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) seal(v string) (string, error) {
	if s.box == nil {
		return v, nil
	}
	return s.box.Seal(v)
}

func (s *Store) open(v string) (string, error) {
	if s.box == nil {
		return v, nil
	}
	return s.box.Open(v)
}
