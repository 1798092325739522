package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/store"
)

// ─── Users ───

const userColumns = `id, realm_id, username, email, service_account_client_id, required_actions, created_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	if err := row.Scan(&u.ID, &u.RealmID, &u.Username, &u.Email, &u.ServiceAccountClientID, &u.RequiredActions, &u.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &u, nil
}

func (t *tx) FindUserByID(ctx context.Context, realmID, userID string) (*repository.User, error) {
	return scanUser(t.q.QueryRow(ctx, `SELECT `+userColumns+` FROM realm_user WHERE realm_id = $1 AND id = $2`, realmID, userID))
}

func (t *tx) ListUsers(ctx context.Context, realmID string, includeServiceAccounts bool) ([]repository.User, error) {
	if _, err := t.findRealmByID(ctx, realmID); err != nil {
		return nil, err
	}
	rows, err := t.q.Query(ctx, `
		SELECT `+userColumns+` FROM realm_user
		WHERE realm_id = $1 AND ($2 OR service_account_client_id = '')
		ORDER BY position`, realmID, includeServiceAccounts)
	if err != nil {
		return nil, fmt.Errorf("pg: list users: %w", err)
	}
	defer rows.Close()

	out := []repository.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (t *tx) AddRequiredAction(ctx context.Context, realmID, userID, action string) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE realm_user
		SET required_actions = CASE WHEN $3 = ANY(required_actions) THEN required_actions
		                            ELSE array_append(required_actions, $3) END
		WHERE realm_id = $1 AND id = $2`, realmID, userID, action)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) GrantClientRoles(ctx context.Context, realmID, userID, clientID string, roles []string) error {
	var rec []byte
	err := t.q.QueryRow(ctx, `SELECT record FROM realm_user WHERE realm_id = $1 AND id = $2 FOR UPDATE`, realmID, userID).Scan(&rec)
	if err != nil {
		return mapPgError(err)
	}
	var u types.UserRecord
	if err := json.Unmarshal(rec, &u); err != nil {
		return fmt.Errorf("pg: decode user %q: %w", userID, err)
	}
	if u.ClientRoles == nil {
		u.ClientRoles = map[string][]string{}
	}
	u.ClientRoles[clientID] = store.MergeRoles(u.ClientRoles[clientID], roles)
	if rec, err = json.Marshal(u); err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `UPDATE realm_user SET record = $3 WHERE realm_id = $1 AND id = $2`, realmID, userID, rec)
	return mapPgError(err)
}

// ─── Clients ───

func (t *tx) FindClientByClientID(ctx context.Context, realmID, clientID string) (*types.ClientRegistration, error) {
	var reg []byte
	err := t.q.QueryRow(ctx, `SELECT registration FROM realm_client WHERE realm_id = $1 AND client_id = $2`, realmID, clientID).Scan(&reg)
	if err != nil {
		return nil, mapPgError(err)
	}
	var c types.ClientRegistration
	if err := json.Unmarshal(reg, &c); err != nil {
		return nil, fmt.Errorf("pg: decode client %q: %w", clientID, err)
	}
	return &c, nil
}

// ─── Credentials ───

func (t *tx) UpdateCredential(ctx context.Context, r *repository.Realm, user *repository.User, c repository.PlaintextCredential) error {
	if _, err := t.FindUserByID(ctx, r.ID, user.ID); err != nil {
		return err
	}
	cred, err := store.PlaintextToStorage(t.s.pw, r, user, c, t.s.now().UnixMilli())
	if err != nil {
		return err
	}

	// un password nuevo reemplaza al actual
	if cred.Type == repository.CredentialPassword {
		if _, err := t.q.Exec(ctx, `DELETE FROM user_credential WHERE user_id = $1 AND type = $2`, user.ID, repository.CredentialPassword); err != nil {
			return mapPgError(err)
		}
	}
	if err := t.insertCredential(ctx, cred); err != nil {
		return err
	}

	if c.Temporary {
		return t.AddRequiredAction(ctx, r.ID, user.ID, store.UpdatePasswordAction)
	}
	return nil
}

func (t *tx) CreateCredential(ctx context.Context, realmID, userID string, c repository.StorageCredential) error {
	if _, err := t.FindUserByID(ctx, realmID, userID); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UserID = userID
	return t.insertCredential(ctx, c)
}

func (t *tx) insertCredential(ctx context.Context, c repository.StorageCredential) error {
	secret, err := c.SecretJSON()
	if err != nil {
		return err
	}
	if secret, err = t.s.seal(secret); err != nil {
		return fmt.Errorf("pg: seal credential %q: %w", c.ID, err)
	}
	params, err := c.ParamsJSON()
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO user_credential (id, user_id, type, user_label, device, secret_data, credential_data, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.Type, c.UserLabel, c.Device, secret, params, c.CreatedDate,
	)
	return mapPgError(err)
}

func (t *tx) ListCredentials(ctx context.Context, realmID, userID string) ([]repository.StorageCredential, error) {
	if _, err := t.FindUserByID(ctx, realmID, userID); err != nil {
		return nil, err
	}
	rows, err := t.q.Query(ctx, `
		SELECT id, user_id, type, user_label, device, secret_data, credential_data, created_date
		FROM user_credential WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("pg: list credentials: %w", err)
	}
	defer rows.Close()

	var out []repository.StorageCredential
	for rows.Next() {
		var (
			c              repository.StorageCredential
			secret, params string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Type, &c.UserLabel, &c.Device, &secret, &params, &c.CreatedDate); err != nil {
			return nil, err
		}
		if secret, err = t.s.open(secret); err != nil {
			return nil, fmt.Errorf("pg: open credential %q: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(secret), &c.Secret); err != nil {
			return nil, fmt.Errorf("pg: decode secret of credential %q: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(params), &c.Params); err != nil {
			return nil, fmt.Errorf("pg: decode params of credential %q: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ─── Export ───

func (t *tx) ExportRealm(ctx context.Context, realmID string, opts repository.ExportOptions) (*types.RealmBundle, error) {
	r, err := t.findRealmByID(ctx, realmID)
	if err != nil {
		return nil, err
	}
	var structural []byte
	if err := t.q.QueryRow(ctx, `SELECT structural FROM realm WHERE id = $1`, realmID).Scan(&structural); err != nil {
		return nil, mapPgError(err)
	}
	var b types.RealmBundle
	if err := json.Unmarshal(structural, &b); err != nil {
		return nil, fmt.Errorf("pg: decode realm %q: %w", r.Name, err)
	}
	enabled := r.Enabled
	b.ID, b.Realm, b.DisplayName, b.Enabled, b.PasswordPolicy = r.ID, r.Name, r.DisplayName, &enabled, r.PasswordPolicy

	if opts.IncludeClients {
		if b.Clients, err = t.exportClients(ctx, realmID, opts.IncludeSecrets); err != nil {
			return nil, err
		}
	}
	if opts.IncludeUsers {
		if b.Users, err = t.exportUsers(ctx, realmID); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func (t *tx) exportClients(ctx context.Context, realmID string, withSecrets bool) ([]types.ClientRegistration, error) {
	rows, err := t.q.Query(ctx, `SELECT registration, secret_enc FROM realm_client WHERE realm_id = $1 ORDER BY position`, realmID)
	if err != nil {
		return nil, fmt.Errorf("pg: export clients: %w", err)
	}
	defer rows.Close()

	var out []types.ClientRegistration
	for rows.Next() {
		var (
			reg    []byte
			secret string
			c      types.ClientRegistration
		)
		if err := rows.Scan(&reg, &secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(reg, &c); err != nil {
			return nil, err
		}
		if withSecrets {
			if c.Secret, err = t.s.open(secret); err != nil {
				return nil, fmt.Errorf("pg: open secret of client %q: %w", c.ClientID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *tx) exportUsers(ctx context.Context, realmID string) ([]types.UserRecord, error) {
	rows, err := t.q.Query(ctx, `
		SELECT record, required_actions, created_timestamp
		FROM realm_user WHERE realm_id = $1 ORDER BY position`, realmID)
	if err != nil {
		return nil, fmt.Errorf("pg: export users: %w", err)
	}
	defer rows.Close()

	var out []types.UserRecord
	for rows.Next() {
		var (
			rec     []byte
			actions []string
			created int64
			u       types.UserRecord
		)
		if err := rows.Scan(&rec, &actions, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rec, &u); err != nil {
			return nil, err
		}
		u.RequiredActions = actions
		u.CreatedTimestamp = created
		out = append(out, u)
	}
	return out, rows.Err()
}
