// Package exporter arma el bundle exportable de un realm: export estructural
// con usuarios y secretos, más las credenciales re-derivadas por el codec
// para que conserven sus IDs y blobs tal como están persistidos.
package exporter

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/metrics"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm"
	"github.com/dropDatabas3/realmport/internal/realm/credential"
)

type Assembler struct {
	dir repository.Directory
}

func New(dir repository.Directory) *Assembler {
	return &Assembler{dir: dir}
}

// Export retorna el bundle del realm name, o realm.ErrRealmNotFound.
func (a *Assembler) Export(ctx context.Context, name string) (*types.RealmBundle, error) {
	log := logger.From(ctx).With(logger.Layer("exporter"), logger.Realm(name))

	var out *types.RealmBundle
	err := a.dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		r, err := tx.FindRealmByName(ctx, name)
		if repository.IsNotFound(err) {
			return realm.ErrRealmNotFound
		}
		if err != nil {
			return err
		}
		out, err = Assemble(ctx, tx, r)
		return err
	})
	if err != nil {
		metrics.RealmExports.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RealmExports.WithLabelValues("ok").Inc()
	log.Info("realm exported", logger.Count(len(out.Users)))
	return out, nil
}

// Assemble corre dentro de una unidad de trabajo ya abierta.
func Assemble(ctx context.Context, tx repository.DirectoryTx, r *repository.Realm) (*types.RealmBundle, error) {
	b, err := tx.ExportRealm(ctx, r.ID, repository.ExportOptions{
		IncludeUsers:   true,
		IncludeClients: true,
		IncludeSecrets: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export realm %q: %w", r.Name, err)
	}

	index := make(map[string]int, len(b.Users))
	for i, u := range b.Users {
		index[u.ID] = i
	}

	users, err := tx.ListUsers(ctx, r.ID, true)
	if err != nil {
		return nil, fmt.Errorf("list users of %q: %w", r.Name, err)
	}
	for _, u := range users {
		i, ok := index[u.ID]
		if !ok {
			// el export estructural lo omitió; no hay dónde colgar sus credenciales
			logger.From(ctx).Debug("user missing from structural export", logger.UserID(u.ID))
			continue
		}
		stored, err := tx.ListCredentials(ctx, r.ID, u.ID)
		if err != nil {
			return nil, fmt.Errorf("list credentials of %q: %w", u.Username, err)
		}
		recs := make([]types.CredentialRecord, 0, len(stored))
		for _, c := range stored {
			rec, err := credential.Encode(c)
			if err != nil {
				return nil, fmt.Errorf("encode credential %q of %q: %w", c.ID, u.Username, err)
			}
			recs = append(recs, rec)
		}
		if len(recs) == 0 {
			recs = nil
		}
		b.Users[i].Credentials = recs
	}
	return b, nil
}
