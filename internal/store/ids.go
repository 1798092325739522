package store

import (
	"github.com/google/uuid"

	"github.com/dropDatabas3/realmport/internal/domain/types"
)

// AssignStructuralIDs completa los IDs faltantes de roles y grupos (recursivo).
func AssignStructuralIDs(b *types.RealmBundle) {
	if rs := b.Roles; rs != nil {
		for i := range rs.Realm {
			if rs.Realm[i].ID == "" {
				rs.Realm[i].ID = uuid.NewString()
			}
		}
		for _, roles := range rs.Client {
			for i := range roles {
				if roles[i].ID == "" {
					roles[i].ID = uuid.NewString()
				}
			}
		}
	}
	assignGroupIDs(b.Groups)
}

func assignGroupIDs(gs []types.GroupDefinition) {
	for i := range gs {
		if gs[i].ID == "" {
			gs[i].ID = uuid.NewString()
		}
		assignGroupIDs(gs[i].SubGroups)
	}
}
