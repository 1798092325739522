// Package store provee el registry de Directory Stores. Cada implementación
// se registra en init() y se elige por nombre desde la config.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/security/secretbox"
)

// Adapter abre un Directory Store.
type Adapter interface {
	// Name retorna el nombre del adapter ("memory", "postgres").
	Name() string
	Open(ctx context.Context, cfg Config) (repository.Directory, error)
}

// Config es lo que necesita cualquier adapter.
type Config struct {
	Driver string
	DSN    string
	// MaxConns tamaño del pool (sólo DBs)
	MaxConns int

	// AdminRealm es el realm que aloja los management clients.
	AdminRealm string
	// Passwords valida y hashea credenciales en texto plano.
	Passwords *password.Enforcer
	// Secrets cifra secretos de clients en reposo (opcional).
	Secrets *secretbox.Box
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter. Llamar en init().
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("store: adapter %q already registered", name))
	}
	adapters[name] = a
}

func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre el Directory Store indicado por cfg.Driver.
func Open(ctx context.Context, cfg Config) (repository.Directory, error) {
	a, ok := GetAdapter(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("store: adapter %q not registered (available: %v)", cfg.Driver, ListAdapters())
	}
	return a.Open(ctx, cfg)
}
