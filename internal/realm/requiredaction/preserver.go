// Package requiredaction conserva los required actions de los usuarios de un
// bundle a través del import estructural, que no los persiste.
package requiredaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm"
)

// CasePolicy decide cómo se normalizan los tags al reatacharlos.
type CasePolicy string

const (
	// CasePreserve guarda el tag tal como vino en el bundle.
	CasePreserve CasePolicy = "preserve"
	// CaseUpper pasa el tag a mayúsculas (UPDATE_PASSWORD, CONFIGURE_TOTP...).
	CaseUpper CasePolicy = "upper"
)

// ParseCasePolicy acepta "preserve" (o vacío) y "upper".
func ParseCasePolicy(s string) (CasePolicy, error) {
	switch CasePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CasePreserve:
		return CasePreserve, nil
	case CaseUpper:
		return CaseUpper, nil
	}
	return "", fmt.Errorf("unknown required action case policy %q", s)
}

func (p CasePolicy) apply(tag string) string {
	if p == CaseUpper {
		return strings.ToUpper(tag)
	}
	return tag
}

// Detached son los tags removidos de un bundle, indexados por el registro de
// usuario original y el ID que tenía antes del commit.
type Detached struct {
	byRecord map[*types.UserRecord]int
	entries  []entry
}

type entry struct {
	record *types.UserRecord
	userID string
	tags   []string
}

// Len retorna cuántos usuarios tenían required actions.
func (d *Detached) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Tags retorna los tags desprendidos de un registro (nil si no tenía).
func (d *Detached) Tags(rec *types.UserRecord) []string {
	if d == nil {
		return nil
	}
	if i, ok := d.byRecord[rec]; ok {
		return d.entries[i].tags
	}
	return nil
}

// Writer es la parte del Directory Store que usa Reattach.
type Writer interface {
	FindUserByID(ctx context.Context, realmID, userID string) (*repository.User, error)
	AddRequiredAction(ctx context.Context, realmID, userID, action string) error
}

type Preserver struct {
	policy CasePolicy
}

func New(policy CasePolicy) *Preserver {
	if policy == "" {
		policy = CasePreserve
	}
	return &Preserver{policy: policy}
}

// Detach vacía RequiredActions de cada usuario del bundle y los devuelve.
// Usuarios sin required actions no aparecen en el resultado.
func (p *Preserver) Detach(bundle *types.RealmBundle) *Detached {
	d := &Detached{byRecord: map[*types.UserRecord]int{}}
	for i := range bundle.Users {
		u := &bundle.Users[i]
		if len(u.RequiredActions) == 0 {
			continue
		}
		d.byRecord[u] = len(d.entries)
		d.entries = append(d.entries, entry{record: u, userID: u.ID, tags: u.RequiredActions})
		u.RequiredActions = nil
	}
	return d
}

// Reattach vuelve a agregar los tags a cada usuario ya persistido. Un usuario
// que no se encuentra por su ID pre-commit (o cuyo ID cambió) se reporta como
// *realm.OrphanedUserRecordError y se sigue con el resto. Errores del store
// al agregar un tag sí son fatales.
func (p *Preserver) Reattach(ctx context.Context, w Writer, target *repository.Realm, d *Detached) ([]*realm.OrphanedUserRecordError, error) {
	if d.Len() == 0 {
		return nil, nil
	}
	log := logger.From(ctx).With(logger.Component("requiredaction"), logger.Realm(target.Name))

	var orphans []*realm.OrphanedUserRecordError
	for _, e := range d.entries {
		orphan := &realm.OrphanedUserRecordError{
			Realm: target.Name, UserID: e.userID, Username: e.record.Username, Actions: e.tags,
		}
		if e.userID == "" || e.record.ID != e.userID {
			orphans = append(orphans, orphan)
			log.Warn("user identifier changed during import, required actions dropped", logger.Err(orphan))
			continue
		}
		user, err := w.FindUserByID(ctx, target.ID, e.userID)
		if repository.IsNotFound(err) {
			orphans = append(orphans, orphan)
			log.Warn("user not found after import, required actions dropped", logger.Err(orphan))
			continue
		}
		if err != nil {
			return orphans, fmt.Errorf("find user %q: %w", e.userID, err)
		}
		for _, tag := range e.tags {
			if err := w.AddRequiredAction(ctx, target.ID, user.ID, p.policy.apply(tag)); err != nil {
				return orphans, fmt.Errorf("add required action %q to %q: %w", tag, user.Username, err)
			}
		}
	}
	return orphans, nil
}
