package importer

import (
	"context"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
)

// PlanItem es lo que ImportAll haría con un bundle, sin escribir nada.
type PlanItem struct {
	Realm   string `json:"realm"`
	Action  string `json:"action"` // create | skip | replace | conflict
	Exists  bool   `json:"exists"`
	Users   int    `json:"users"`
	Clients int    `json:"clients"`
}

// Plan calcula el orden de commit y la acción por bundle. Nombres repetidos
// dentro de la entrada cuentan como existentes a partir de la segunda vez.
func (o *Orchestrator) Plan(ctx context.Context, bundles []types.RealmBundle, strategy types.Strategy) ([]PlanItem, error) {
	ordered := Order(bundles, o.admin)
	items := make([]PlanItem, 0, len(ordered))

	err := o.dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		seen := map[string]bool{}
		for _, b := range ordered {
			exists := seen[b.Realm]
			if !exists {
				_, err := tx.FindRealmByName(ctx, b.Realm)
				if err != nil && !repository.IsNotFound(err) {
					return err
				}
				exists = err == nil
			}
			seen[b.Realm] = true

			action := "create"
			if exists {
				switch strategy {
				case types.StrategyIgnoreExisting:
					action = "skip"
				case types.StrategyOverwriteExisting:
					action = "replace"
				default:
					action = "conflict"
				}
			}
			items = append(items, PlanItem{
				Realm: b.Realm, Action: action, Exists: exists,
				Users: len(b.Users), Clients: len(b.Clients),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
