package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/store"
)

type tx struct {
	s  *Store
	st *state
}

var _ repository.DirectoryTx = (*tx)(nil)

// ─── Realms ───

func (t *tx) FindRealmByName(_ context.Context, name string) (*repository.Realm, error) {
	id, ok := t.st.byName[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := t.st.realms[id].realm
	return &r, nil
}

func (t *tx) ListRealms(_ context.Context) ([]repository.Realm, error) {
	out := make([]repository.Realm, 0, len(t.st.realms))
	for _, r := range t.st.realms {
		out = append(out, r.realm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) CreateRealm(ctx context.Context, b *types.RealmBundle) (*repository.Realm, error) {
	name := strings.TrimSpace(b.Realm)
	if name == "" {
		return nil, fmt.Errorf("%w: realm name is required", repository.ErrInvalidInput)
	}
	if _, exists := t.st.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", repository.ErrRealmNameTaken, name)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := t.st.realms[b.ID]; exists {
		return nil, fmt.Errorf("%w: realm id %q", repository.ErrConflict, b.ID)
	}

	row := &realmRow{
		realm: repository.Realm{
			ID:             b.ID,
			Name:           name,
			DisplayName:    b.DisplayName,
			Enabled:        b.Enabled == nil || *b.Enabled,
			PasswordPolicy: b.PasswordPolicy,
			CreatedAt:      t.s.now().UTC(),
		},
	}
	store.AssignStructuralIDs(b)
	snap := b.Clone()
	row.structural = types.RealmBundle{
		ID:             b.ID,
		Realm:          name,
		DisplayName:    b.DisplayName,
		Enabled:        b.Enabled,
		PasswordPolicy: b.PasswordPolicy,
		Attributes:     b.Attributes,
		Roles:          snap.Roles,
		Groups:         snap.Groups,
		Sections:       snap.Sections,
	}
	t.st.realms[row.realm.ID] = row
	t.st.byName[name] = row.realm.ID

	for i := range b.Clients {
		c := &b.Clients[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, exists := t.st.clients[c.ID]; exists {
			return nil, fmt.Errorf("%w: client id %q", repository.ErrConflict, c.ID)
		}
		if t.clientByClientID(row, c.ClientID) != nil {
			return nil, fmt.Errorf("%w: client %q in realm %q", repository.ErrConflict, c.ClientID, name)
		}
		t.st.clients[c.ID] = &clientRow{realmID: row.realm.ID, reg: *c}
		row.clientOrder = append(row.clientOrder, c.ID)
	}

	seen := map[string]bool{}
	for i := range b.Users {
		u := &b.Users[i]
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		key := strings.ToLower(u.Username)
		if key == "" {
			return nil, fmt.Errorf("%w: user %q without username", repository.ErrInvalidInput, u.ID)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: username %q in realm %q", repository.ErrConflict, u.Username, name)
		}
		seen[key] = true
		if _, exists := t.st.users[u.ID]; exists {
			return nil, fmt.Errorf("%w: user id %q", repository.ErrConflict, u.ID)
		}
		rec := *u
		rec.Credentials = nil
		rec.RequiredActions = nil
		created := u.CreatedTimestamp
		if created == 0 {
			created = t.s.now().UnixMilli()
		}
		t.st.users[u.ID] = &userRow{realmID: row.realm.ID, rec: rec, createdAt: created}
		row.userOrder = append(row.userOrder, u.ID)
	}

	if name == t.s.admin || t.st.byName[t.s.admin] != "" {
		r := row.realm
		if err := t.SetupManagementClient(ctx, &r); err != nil {
			return nil, err
		}
	}
	out := t.st.realms[row.realm.ID].realm
	return &out, nil
}

func (t *tx) DeleteRealm(_ context.Context, realmID string) error {
	row, ok := t.st.realms[realmID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range t.st.realms {
		if id == realmID || !other.realm.HasManagementClient() {
			continue
		}
		if cl, ok := t.st.clients[*other.realm.ManagementClientID]; ok && cl.realmID == realmID {
			return fmt.Errorf("%w: realm %q manages %q", repository.ErrReferenced, row.realm.Name, other.realm.Name)
		}
	}

	// el management client de este realm vive en el realm admin
	if row.realm.HasManagementClient() {
		mc := *row.realm.ManagementClientID
		if cl, ok := t.st.clients[mc]; ok && cl.realmID != realmID {
			if owner, ok := t.st.realms[cl.realmID]; ok {
				owner.clientOrder = removeID(owner.clientOrder, mc)
			}
			delete(t.st.clients, mc)
		}
	}
	for _, id := range row.clientOrder {
		delete(t.st.clients, id)
	}
	for _, id := range row.userOrder {
		delete(t.st.users, id)
	}
	delete(t.st.byName, row.realm.Name)
	delete(t.st.realms, realmID)
	return nil
}

func (t *tx) SetManagementClient(_ context.Context, realmID string, clientID *string) error {
	row, ok := t.st.realms[realmID]
	if !ok {
		return repository.ErrNotFound
	}
	if clientID == nil {
		row.realm.ManagementClientID = nil
		return nil
	}
	if _, ok := t.st.clients[*clientID]; !ok {
		return fmt.Errorf("%w: client %q", repository.ErrNotFound, *clientID)
	}
	v := *clientID
	row.realm.ManagementClientID = &v
	return nil
}

func (t *tx) SetupManagementClient(ctx context.Context, r *repository.Realm) error {
	adminID, ok := t.st.byName[t.s.admin]
	if !ok {
		return fmt.Errorf("%w: admin realm %q", repository.ErrNotFound, t.s.admin)
	}
	admin := t.st.realms[adminID]
	clientName := repository.ManagementClientName(r.Name)

	cl := t.clientByClientID(admin, clientName)
	if cl == nil {
		reg := types.ClientRegistration{
			ID:         uuid.NewString(),
			ClientID:   clientName,
			Name:       r.Name + " Realm",
			BearerOnly: true,
		}
		t.st.clients[reg.ID] = &clientRow{realmID: adminID, reg: reg}
		admin.clientOrder = append(admin.clientOrder, reg.ID)
		cl = t.st.clients[reg.ID]
	}
	id := cl.reg.ID
	if err := t.SetManagementClient(ctx, r.ID, &id); err != nil {
		return err
	}
	r.ManagementClientID = &id
	return nil
}

func (t *tx) clientByClientID(row *realmRow, clientID string) *clientRow {
	for _, id := range row.clientOrder {
		if cl, ok := t.st.clients[id]; ok && cl.reg.ClientID == clientID {
			return cl
		}
	}
	return nil
}

func (t *tx) FindClientByClientID(_ context.Context, realmID, clientID string) (*types.ClientRegistration, error) {
	row, ok := t.st.realms[realmID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cl := t.clientByClientID(row, clientID)
	if cl == nil {
		return nil, repository.ErrNotFound
	}
	reg := cl.reg
	reg.Secret = ""
	return &reg, nil
}

// ─── Users ───

func (t *tx) user(realmID, userID string) (*userRow, error) {
	u, ok := t.st.users[userID]
	if !ok || u.realmID != realmID {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (t *tx) FindUserByID(_ context.Context, realmID, userID string) (*repository.User, error) {
	u, err := t.user(realmID, userID)
	if err != nil {
		return nil, err
	}
	return u.toModel(), nil
}

func (t *tx) ListUsers(_ context.Context, realmID string, includeServiceAccounts bool) ([]repository.User, error) {
	row, ok := t.st.realms[realmID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]repository.User, 0, len(row.userOrder))
	for _, id := range row.userOrder {
		u := t.st.users[id]
		if u.rec.IsServiceAccount() && !includeServiceAccounts {
			continue
		}
		out = append(out, *u.toModel())
	}
	return out, nil
}

func (u *userRow) toModel() *repository.User {
	return &repository.User{
		ID:                     u.rec.ID,
		RealmID:                u.realmID,
		Username:               u.rec.Username,
		Email:                  u.rec.Email,
		ServiceAccountClientID: u.rec.ServiceAccountClientID,
		RequiredActions:        append([]string(nil), u.actions...),
	}
}

func (t *tx) AddRequiredAction(_ context.Context, realmID, userID, action string) error {
	u, err := t.user(realmID, userID)
	if err != nil {
		return err
	}
	for _, a := range u.actions {
		if a == action {
			return nil
		}
	}
	u.actions = append(u.actions, action)
	return nil
}

func (t *tx) GrantClientRoles(_ context.Context, realmID, userID, clientID string, roles []string) error {
	u, err := t.user(realmID, userID)
	if err != nil {
		return err
	}
	// el mapa es compartido con el snapshot anterior
	cr := make(map[string][]string, len(u.rec.ClientRoles)+1)
	for k, v := range u.rec.ClientRoles {
		cr[k] = v
	}
	cr[clientID] = store.MergeRoles(cr[clientID], roles)
	u.rec.ClientRoles = cr
	return nil
}

// ─── Credentials ───

func (t *tx) UpdateCredential(ctx context.Context, r *repository.Realm, user *repository.User, c repository.PlaintextCredential) error {
	u, err := t.user(r.ID, user.ID)
	if err != nil {
		return err
	}
	cred, err := store.PlaintextToStorage(t.s.pw, r, user, c, t.s.now().UnixMilli())
	if err != nil {
		return err
	}

	// un password nuevo reemplaza al actual
	if cred.Type == repository.CredentialPassword {
		kept := u.creds[:0:0]
		for _, existing := range u.creds {
			if existing.Type != repository.CredentialPassword {
				kept = append(kept, existing)
			}
		}
		u.creds = kept
	}
	u.creds = append(u.creds, cred)

	if c.Temporary {
		return t.AddRequiredAction(ctx, r.ID, user.ID, store.UpdatePasswordAction)
	}
	return nil
}

func (t *tx) CreateCredential(_ context.Context, realmID, userID string, c repository.StorageCredential) error {
	u, err := t.user(realmID, userID)
	if err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	for _, existing := range u.creds {
		if existing.ID == c.ID {
			return fmt.Errorf("%w: credential id %q", repository.ErrConflict, c.ID)
		}
	}
	c.UserID = userID
	u.creds = append(u.creds, c)
	return nil
}

func (t *tx) ListCredentials(_ context.Context, realmID, userID string) ([]repository.StorageCredential, error) {
	u, err := t.user(realmID, userID)
	if err != nil {
		return nil, err
	}
	return append([]repository.StorageCredential(nil), u.creds...), nil
}

// ─── Export ───

func (t *tx) ExportRealm(_ context.Context, realmID string, opts repository.ExportOptions) (*types.RealmBundle, error) {
	row, ok := t.st.realms[realmID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b := *row.structural.Clone()
	b.ID = row.realm.ID
	b.Realm = row.realm.Name

	if opts.IncludeClients {
		for _, id := range row.clientOrder {
			reg := t.st.clients[id].reg
			if !opts.IncludeSecrets {
				reg.Secret = ""
			}
			b.Clients = append(b.Clients, reg)
		}
	}
	if opts.IncludeUsers {
		for _, id := range row.userOrder {
			u := t.st.users[id]
			rec := u.rec
			rec.CreatedTimestamp = u.createdAt
			rec.RequiredActions = append([]string(nil), u.actions...)
			b.Users = append(b.Users, rec)
		}
	}
	return &b, nil
}
