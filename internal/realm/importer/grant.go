package importer

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
)

// Created retorna los realms que este import creó.
func (r *Report) Created() []string {
	var out []string
	for _, res := range r.Results {
		if res.Outcome == OutcomeCreated {
			out = append(out, res.Realm)
		}
	}
	return out
}

// GrantCreator le da al usuario userID del realm admin todos los roles del
// management client de cada realm de la lista. Es lo que recibe quien crea
// un realm con create-realm sin ser admin, para poder administrarlo después.
//
// Retorna repository.ErrNotFound si el usuario no existe en el realm admin.
func (o *Orchestrator) GrantCreator(ctx context.Context, userID string, realms []string) error {
	if len(realms) == 0 {
		return nil
	}
	log := logger.From(ctx).With(logger.Layer("importer"), logger.Op("Orchestrator.GrantCreator"), logger.UserID(userID))

	err := o.dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		admin, err := tx.FindRealmByName(ctx, o.admin)
		if err != nil {
			return fmt.Errorf("find admin realm %q: %w", o.admin, err)
		}
		if _, err := tx.FindUserByID(ctx, admin.ID, userID); err != nil {
			return fmt.Errorf("find realm creator %q: %w", userID, err)
		}
		for _, name := range realms {
			client := repository.ManagementClientName(name)
			if err := tx.GrantClientRoles(ctx, admin.ID, userID, client, repository.ManagementRoles); err != nil {
				return fmt.Errorf("grant %q roles: %w", client, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("realm creator granted management roles", logger.Count(len(realms)))
	return nil
}
