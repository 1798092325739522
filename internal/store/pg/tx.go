package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/store"
)

// querier es lo que usa tx de pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type tx struct {
	s *Store
	q querier
}

var _ repository.DirectoryTx = (*tx)(nil)

// ─── Realms ───

const realmColumns = `id, name, display_name, enabled, password_policy, management_client_id, created_at`

func scanRealm(row pgx.Row) (*repository.Realm, error) {
	var r repository.Realm
	if err := row.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Enabled, &r.PasswordPolicy, &r.ManagementClientID, &r.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &r, nil
}

func (t *tx) FindRealmByName(ctx context.Context, name string) (*repository.Realm, error) {
	return scanRealm(t.q.QueryRow(ctx, `SELECT `+realmColumns+` FROM realm WHERE name = $1`, name))
}

func (t *tx) findRealmByID(ctx context.Context, id string) (*repository.Realm, error) {
	return scanRealm(t.q.QueryRow(ctx, `SELECT `+realmColumns+` FROM realm WHERE id = $1`, id))
}

func (t *tx) ListRealms(ctx context.Context) ([]repository.Realm, error) {
	rows, err := t.q.Query(ctx, `SELECT `+realmColumns+` FROM realm ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("pg: list realms: %w", err)
	}
	defer rows.Close()

	var out []repository.Realm
	for rows.Next() {
		r, err := scanRealm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (t *tx) CreateRealm(ctx context.Context, b *types.RealmBundle) (*repository.Realm, error) {
	name := strings.TrimSpace(b.Realm)
	if name == "" {
		return nil, fmt.Errorf("%w: realm name is required", repository.ErrInvalidInput)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	store.AssignStructuralIDs(b)

	snap := b.Clone()
	structural, err := json.Marshal(&types.RealmBundle{
		Attributes: snap.Attributes,
		Roles:      snap.Roles,
		Groups:     snap.Groups,
		Sections:   snap.Sections,
	})
	if err != nil {
		return nil, fmt.Errorf("pg: encode realm %q: %w", name, err)
	}

	enabled := b.Enabled == nil || *b.Enabled
	_, err = t.q.Exec(ctx, `
		INSERT INTO realm (id, name, display_name, enabled, password_policy, structural, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, name, b.DisplayName, enabled, b.PasswordPolicy, structural, t.s.now().UTC(),
	)
	if err != nil {
		return nil, mapPgError(err)
	}

	for i := range b.Clients {
		c := &b.Clients[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := t.insertClient(ctx, b.ID, *c, i); err != nil {
			return nil, err
		}
	}

	for i := range b.Users {
		u := &b.Users[i]
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if strings.TrimSpace(u.Username) == "" {
			return nil, fmt.Errorf("%w: user %q without username", repository.ErrInvalidInput, u.ID)
		}
		if err := t.insertUser(ctx, b.ID, *u, i); err != nil {
			return nil, err
		}
	}

	r, err := t.findRealmByID(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if name == t.s.admin {
		err = t.SetupManagementClient(ctx, r)
	} else if _, aerr := t.FindRealmByName(ctx, t.s.admin); aerr == nil {
		err = t.SetupManagementClient(ctx, r)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (t *tx) insertClient(ctx context.Context, realmID string, c types.ClientRegistration, position int) error {
	secret, err := t.s.seal(c.Secret)
	if err != nil {
		return fmt.Errorf("pg: seal client secret %q: %w", c.ClientID, err)
	}
	c.Secret = ""
	reg, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO realm_client (id, realm_id, client_id, position, registration, secret_enc)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, realmID, c.ClientID, position, reg, secret,
	)
	return mapPgError(err)
}

func (t *tx) insertUser(ctx context.Context, realmID string, u types.UserRecord, position int) error {
	created := u.CreatedTimestamp
	if created == 0 {
		created = t.s.now().UnixMilli()
	}
	u.Credentials = nil
	u.RequiredActions = nil
	u.CreatedTimestamp = 0
	rec, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO realm_user (id, realm_id, username, email, service_account_client_id, position, record, created_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, realmID, u.Username, u.Email, u.ServiceAccountClientID, position, rec, created,
	)
	return mapPgError(err)
}

func (t *tx) DeleteRealm(ctx context.Context, realmID string) error {
	r, err := t.findRealmByID(ctx, realmID)
	if err != nil {
		return err
	}

	// el management client de este realm vive en el realm admin
	if r.HasManagementClient() {
		if _, err := t.q.Exec(ctx, `UPDATE realm SET management_client_id = NULL WHERE id = $1`, realmID); err != nil {
			return mapPgError(err)
		}
		if _, err := t.q.Exec(ctx, `DELETE FROM realm_client WHERE id = $1 AND realm_id <> $2`, *r.ManagementClientID, realmID); err != nil {
			return mapPgError(err)
		}
	}

	tag, err := t.q.Exec(ctx, `DELETE FROM realm WHERE id = $1`, realmID)
	if err != nil {
		return fmt.Errorf("realm %q: %w", r.Name, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) SetManagementClient(ctx context.Context, realmID string, clientID *string) error {
	if clientID != nil {
		var exists bool
		if err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM realm_client WHERE id = $1)`, *clientID).Scan(&exists); err != nil {
			return mapPgError(err)
		}
		if !exists {
			return fmt.Errorf("%w: client %q", repository.ErrNotFound, *clientID)
		}
	}
	tag, err := t.q.Exec(ctx, `UPDATE realm SET management_client_id = $2 WHERE id = $1`, realmID, clientID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) SetupManagementClient(ctx context.Context, r *repository.Realm) error {
	admin, err := t.FindRealmByName(ctx, t.s.admin)
	if repository.IsNotFound(err) {
		return fmt.Errorf("%w: admin realm %q", repository.ErrNotFound, t.s.admin)
	}
	if err != nil {
		return err
	}
	clientName := repository.ManagementClientName(r.Name)

	var id string
	err = t.q.QueryRow(ctx, `SELECT id FROM realm_client WHERE realm_id = $1 AND client_id = $2`, admin.ID, clientName).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		var next int
		if err := t.q.QueryRow(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM realm_client WHERE realm_id = $1`, admin.ID).Scan(&next); err != nil {
			return mapPgError(err)
		}
		reg := types.ClientRegistration{
			ID:         uuid.NewString(),
			ClientID:   clientName,
			Name:       r.Name + " Realm",
			BearerOnly: true,
		}
		if err := t.insertClient(ctx, admin.ID, reg, next); err != nil {
			return err
		}
		id = reg.ID
	case err != nil:
		return mapPgError(err)
	}

	if err := t.SetManagementClient(ctx, r.ID, &id); err != nil {
		return err
	}
	r.ManagementClientID = &id
	return nil
}
