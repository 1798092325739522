package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(Options{AdminRealm: "master", Passwords: password.NewEnforcer(password.NewBlacklist("123456789"), password.Fast)})
}

func create(t *testing.T, s *Store, b types.RealmBundle) *repository.Realm {
	t.Helper()
	var out *repository.Realm
	require.NoError(t, s.Tx(context.Background(), func(tx repository.DirectoryTx) error {
		var err error
		out, err = tx.CreateRealm(context.Background(), &b)
		return err
	}))
	return out
}

func TestTx_RollbackOnError(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Tx(ctx, func(tx repository.DirectoryTx) error {
		if _, err := tx.CreateRealm(ctx, &types.RealmBundle{Realm: "acme"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		_, err := tx.FindRealmByName(ctx, "acme")
		require.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	}))
}

func TestCreateRealm_ConflictAndIDs(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	b := types.RealmBundle{
		Realm:   "acme",
		Clients: []types.ClientRegistration{{ClientID: "web"}},
		Users:   []types.UserRecord{{Username: "alice", RequiredActions: []string{"X"}, Credentials: []types.CredentialRecord{{Value: "x"}}}},
	}
	r := create(t, s, b)
	require.NotEmpty(t, r.ID)
	require.Equal(t, "acme", r.Name)
	require.True(t, r.Enabled)
	require.False(t, r.HasManagementClient(), "no admin realm yet")

	err := s.Tx(ctx, func(tx repository.DirectoryTx) error {
		_, err := tx.CreateRealm(ctx, &types.RealmBundle{Realm: "acme"})
		return err
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	// el import estructural ignora credenciales y required actions
	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		users, err := tx.ListUsers(ctx, r.ID, true)
		require.NoError(t, err)
		require.Len(t, users, 1)
		require.Empty(t, users[0].RequiredActions)
		creds, err := tx.ListCredentials(ctx, r.ID, users[0].ID)
		require.NoError(t, err)
		require.Empty(t, creds)
		return nil
	}))
}

func TestCreateRealm_DuplicateUsername(t *testing.T) {
	s := newTestStore()
	err := s.Tx(context.Background(), func(tx repository.DirectoryTx) error {
		_, err := tx.CreateRealm(context.Background(), &types.RealmBundle{
			Realm: "acme",
			Users: []types.UserRecord{{Username: "Alice"}, {Username: "alice"}},
		})
		return err
	})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestManagementClients_AndReferencedDelete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	master := create(t, s, types.RealmBundle{Realm: "master"})
	require.True(t, master.HasManagementClient())
	acme := create(t, s, types.RealmBundle{Realm: "acme"})
	require.True(t, acme.HasManagementClient())

	// el realm admin no puede borrarse mientras acme lo referencie
	err := s.Tx(ctx, func(tx repository.DirectoryTx) error {
		return tx.DeleteRealm(ctx, master.ID)
	})
	require.ErrorIs(t, err, repository.ErrReferenced)

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		require.NoError(t, tx.SetManagementClient(ctx, acme.ID, nil))
		require.NoError(t, tx.DeleteRealm(ctx, master.ID))
		got, err := tx.FindRealmByName(ctx, "acme")
		require.NoError(t, err)
		require.False(t, got.HasManagementClient())
		return nil
	}))

	// sin realm admin no se puede recrear
	err = s.Tx(ctx, func(tx repository.DirectoryTx) error {
		return tx.SetupManagementClient(ctx, acme)
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteRealm_RemovesItsManagementClient(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	master := create(t, s, types.RealmBundle{Realm: "master"})
	acme := create(t, s, types.RealmBundle{Realm: "acme"})

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		require.NoError(t, tx.DeleteRealm(ctx, acme.ID))
		exp, err := tx.ExportRealm(ctx, master.ID, repository.ExportOptions{IncludeClients: true})
		require.NoError(t, err)
		for _, c := range exp.Clients {
			require.NotEqual(t, "acme-realm", c.ClientID)
		}
		return nil
	}))
}

func TestUpdateCredential_PolicyAndTemporary(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	r := create(t, s, types.RealmBundle{
		Realm:          "acme",
		PasswordPolicy: "length(8) and digits(1)",
		Users:          []types.UserRecord{{ID: "u1", Username: "alice"}},
	})

	err := s.Tx(ctx, func(tx repository.DirectoryTx) error {
		u, err := tx.FindUserByID(ctx, r.ID, "u1")
		require.NoError(t, err)
		return tx.UpdateCredential(ctx, r, u, repository.PlaintextCredential{Type: "password", Value: "short"})
	})
	require.ErrorIs(t, err, repository.ErrPolicyViolation)
	var pe *repository.PolicyError
	require.ErrorAs(t, err, &pe)
	require.Contains(t, pe.Reasons, "missing_digit")

	err = s.Tx(ctx, func(tx repository.DirectoryTx) error {
		u, _ := tx.FindUserByID(ctx, r.ID, "u1")
		return tx.UpdateCredential(ctx, r, u, repository.PlaintextCredential{Type: "password", Value: "123456789"})
	})
	require.ErrorIs(t, err, repository.ErrPolicyViolation, "blacklisted")

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		u, _ := tx.FindUserByID(ctx, r.ID, "u1")
		require.NoError(t, tx.UpdateCredential(ctx, r, u, repository.PlaintextCredential{Type: "password", Value: "longer-pass-1", Temporary: true}))
		require.NoError(t, tx.UpdateCredential(ctx, r, u, repository.PlaintextCredential{Type: "password", Value: "longer-pass-2"}))

		creds, err := tx.ListCredentials(ctx, r.ID, "u1")
		require.NoError(t, err)
		require.Len(t, creds, 1, "un password nuevo reemplaza al anterior")
		require.Equal(t, password.Algorithm, creds[0].Params.Algorithm)
		require.True(t, password.Verify("longer-pass-2", creds[0].Secret.Value))
		require.NotNil(t, creds[0].CreatedDate)

		u, _ = tx.FindUserByID(ctx, r.ID, "u1")
		require.Equal(t, []string{store.UpdatePasswordAction}, u.RequiredActions)
		return nil
	}))
}

func TestUpdateCredential_UsesRealmArgumentPolicy(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	r := create(t, s, types.RealmBundle{Realm: "acme", Users: []types.UserRecord{{ID: "u1", Username: "alice"}}})

	strict := *r
	strict.PasswordPolicy = "length(50)"
	err := s.Tx(ctx, func(tx repository.DirectoryTx) error {
		u, _ := tx.FindUserByID(ctx, r.ID, "u1")
		return tx.UpdateCredential(ctx, &strict, u, repository.PlaintextCredential{Type: "password", Value: "whatever-123"})
	})
	require.ErrorIs(t, err, repository.ErrPolicyViolation)
}

func TestCreateCredential_AndRequiredActions(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	r := create(t, s, types.RealmBundle{Realm: "acme", Users: []types.UserRecord{{ID: "u1", Username: "alice"}}})

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		c := repository.StorageCredential{ID: "c1", Type: "password", Secret: repository.SecretData{Value: "h"}}
		require.NoError(t, tx.CreateCredential(ctx, r.ID, "u1", c))
		require.ErrorIs(t, tx.CreateCredential(ctx, r.ID, "u1", c), repository.ErrConflict)
		require.ErrorIs(t, tx.CreateCredential(ctx, r.ID, "nobody", c), repository.ErrNotFound)

		require.NoError(t, tx.AddRequiredAction(ctx, r.ID, "u1", "VERIFY_EMAIL"))
		require.NoError(t, tx.AddRequiredAction(ctx, r.ID, "u1", "VERIFY_EMAIL"))
		u, err := tx.FindUserByID(ctx, r.ID, "u1")
		require.NoError(t, err)
		require.Equal(t, []string{"VERIFY_EMAIL"}, u.RequiredActions)

		_, err = tx.FindUserByID(ctx, "other-realm", "u1")
		require.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	}))
}

func TestExportRealm_Secrets(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	r := create(t, s, types.RealmBundle{
		Realm:   "acme",
		Clients: []types.ClientRegistration{{ClientID: "api", Secret: "s3cr3t"}},
		Users:   []types.UserRecord{{ID: "u1", Username: "alice"}, {ID: "sa", Username: "service-account-api", ServiceAccountClientID: "api"}},
	})

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		exp, err := tx.ExportRealm(ctx, r.ID, repository.ExportOptions{IncludeClients: true, IncludeUsers: true})
		require.NoError(t, err)
		require.Equal(t, "", exp.Clients[0].Secret)
		require.Len(t, exp.Users, 2)

		exp, err = tx.ExportRealm(ctx, r.ID, repository.ExportOptions{IncludeClients: true, IncludeSecrets: true})
		require.NoError(t, err)
		require.Equal(t, "s3cr3t", exp.Clients[0].Secret)
		require.Empty(t, exp.Users)

		users, err := tx.ListUsers(ctx, r.ID, false)
		require.NoError(t, err)
		require.Len(t, users, 1)
		return nil
	}))
}

func TestGrantClientRoles_RollbackLeavesRolesIntact(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	r := create(t, s, types.RealmBundle{
		Realm: "master",
		Users: []types.UserRecord{{ID: "ops", Username: "ops", ClientRoles: map[string][]string{"web": {"viewer"}}}},
	})

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx repository.DirectoryTx) error {
		require.NoError(t, tx.GrantClientRoles(ctx, r.ID, "ops", "acme-realm", []string{"manage-users"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		b, err := tx.ExportRealm(ctx, r.ID, repository.ExportOptions{IncludeUsers: true})
		require.NoError(t, err)
		require.Equal(t, map[string][]string{"web": {"viewer"}}, b.Users[0].ClientRoles)

		require.NoError(t, tx.GrantClientRoles(ctx, r.ID, "ops", "web", []string{"viewer", "editor"}))
		require.ErrorIs(t, tx.GrantClientRoles(ctx, r.ID, "ghost", "web", []string{"x"}), repository.ErrNotFound)
		return nil
	}))

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		b, err := tx.ExportRealm(ctx, r.ID, repository.ExportOptions{IncludeUsers: true})
		require.NoError(t, err)
		require.Equal(t, []string{"viewer", "editor"}, b.Users[0].ClientRoles["web"])
		return nil
	}))
}

func TestFindClientByClientID(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	r := create(t, s, types.RealmBundle{Realm: "acme", Clients: []types.ClientRegistration{{ClientID: "web", Secret: "s3cr3t"}}})

	require.NoError(t, s.Tx(ctx, func(tx repository.DirectoryTx) error {
		c, err := tx.FindClientByClientID(ctx, r.ID, "web")
		require.NoError(t, err)
		require.Equal(t, "web", c.ClientID)
		require.Empty(t, c.Secret)

		_, err = tx.FindClientByClientID(ctx, r.ID, "api")
		require.ErrorIs(t, err, repository.ErrNotFound)
		_, err = tx.FindClientByClientID(ctx, "nope", "web")
		require.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	}))
}
