// Package memory implementa el Directory Store en memoria. Cada Tx trabaja
// sobre una copia del estado que sólo se publica si fn no falla.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/store"
)

func init() {
	store.RegisterAdapter(adapter{})
}

type adapter struct{}

func (adapter) Name() string { return "memory" }

func (adapter) Open(_ context.Context, cfg store.Config) (repository.Directory, error) {
	return New(Options{AdminRealm: cfg.AdminRealm, Passwords: cfg.Passwords}), nil
}

type Options struct {
	AdminRealm string
	Passwords  *password.Enforcer
	Now        func() time.Time
}

type Store struct {
	mu    sync.Mutex
	st    *state
	admin string
	pw    *password.Enforcer
	now   func() time.Time
}

var _ repository.Directory = (*Store)(nil)

func New(opts Options) *Store {
	if opts.AdminRealm == "" {
		opts.AdminRealm = "master"
	}
	if opts.Passwords == nil {
		opts.Passwords = password.NewEnforcer(nil, password.Default)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{st: newState(), admin: opts.AdminRealm, pw: opts.Passwords, now: opts.Now}
}

// Tx serializa las unidades de trabajo. Si fn retorna error (o el contexto
// se cancela) la copia se descarta.
func (s *Store) Tx(ctx context.Context, fn func(tx repository.DirectoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{s: s, st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Close() {}
