package importer

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/lock"
	"github.com/dropDatabas3/realmport/internal/realm"
	"github.com/dropDatabas3/realmport/internal/realm/credential"
	"github.com/dropDatabas3/realmport/internal/realm/requiredaction"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newDir() *memory.Store {
	return memory.New(memory.Options{
		AdminRealm: "master",
		Passwords:  password.NewEnforcer(nil, password.Fast),
	})
}

func newOrchestrator(dir repository.Directory, opts Options) *Orchestrator {
	opts.AdminRealm = "master"
	return New(dir, opts)
}

func realmNamed(t *testing.T, dir repository.Directory, name string) *repository.Realm {
	t.Helper()
	var out *repository.Realm
	require.NoError(t, dir.Tx(context.Background(), func(tx repository.DirectoryTx) error {
		r, err := tx.FindRealmByName(context.Background(), name)
		if repository.IsNotFound(err) {
			return nil
		}
		out = r
		return err
	}))
	return out
}

func usersOf(t *testing.T, dir repository.Directory, realmID string) []repository.User {
	t.Helper()
	var out []repository.User
	require.NoError(t, dir.Tx(context.Background(), func(tx repository.DirectoryTx) error {
		var err error
		out, err = tx.ListUsers(context.Background(), realmID, true)
		return err
	}))
	return out
}

func outcomes(r *Report) []string {
	var out []string
	for _, res := range r.Results {
		out = append(out, res.Realm+":"+string(res.Outcome))
	}
	return out
}

func TestOrder_AdminFirstStable(t *testing.T) {
	in := []types.RealmBundle{{Realm: "a"}, {Realm: "b"}, {Realm: "master"}, {Realm: "c"}}
	got := Order(in, "master")
	var names []string
	for _, b := range got {
		names = append(names, b.Realm)
	}
	require.Equal(t, []string{"master", "a", "b", "c"}, names)

	got = Order([]types.RealmBundle{{Realm: "x"}, {Realm: "y"}}, "master")
	require.Equal(t, "x", got[0].Realm)
	require.Equal(t, "y", got[1].Realm)
}

func TestImportAll_AdminFirstAndManagementClients(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})

	report, err := o.ImportAll(context.Background(), []types.RealmBundle{
		{Realm: "acme"}, {Realm: "master"}, {Realm: "beta"},
	}, types.StrategyIgnoreExisting)
	require.NoError(t, err)
	require.Equal(t, []string{"master:created", "acme:created", "beta:created"}, outcomes(report))
	require.True(t, report.AdminCommitted)
	require.Empty(t, report.Repaired, "los realms creados después del admin ya nacen con management client")

	for _, name := range []string{"master", "acme", "beta"} {
		require.True(t, realmNamed(t, dir, name).HasManagementClient(), name)
	}
}

func TestImportAll_IgnoreExisting(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})
	ctx := context.Background()

	_, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme", Users: []types.UserRecord{{ID: "u1", Username: "alice"}}}}, types.StrategyFail)
	require.NoError(t, err)

	report, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme", Users: []types.UserRecord{{ID: "u2", Username: "bob"}}}}, types.StrategyIgnoreExisting)
	require.NoError(t, err)
	require.Equal(t, []string{"acme:skipped"}, outcomes(report))
	require.False(t, report.AdminCommitted)

	users := usersOf(t, dir, realmNamed(t, dir, "acme").ID)
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].Username)
}

func TestImportAll_OverwriteExisting(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})
	ctx := context.Background()

	_, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme", Users: []types.UserRecord{{ID: "u1", Username: "alice"}}}}, types.StrategyFail)
	require.NoError(t, err)

	report, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme", Users: []types.UserRecord{{ID: "u2", Username: "bob"}}}}, types.StrategyOverwriteExisting)
	require.NoError(t, err)
	require.Equal(t, []string{"acme:replaced"}, outcomes(report))

	users := usersOf(t, dir, realmNamed(t, dir, "acme").ID)
	require.Len(t, users, 1)
	require.Equal(t, "bob", users[0].Username)
}

func TestImportAll_OverwriteAdminRepairsManagementClients(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})
	ctx := context.Background()

	_, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "master"}, {Realm: "acme"}, {Realm: "beta"}}, types.StrategyFail)
	require.NoError(t, err)
	oldClient := *realmNamed(t, dir, "acme").ManagementClientID

	report, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "master", DisplayName: "Admin v2"}}, types.StrategyOverwriteExisting)
	require.NoError(t, err)
	require.Equal(t, []string{"master:replaced"}, outcomes(report))
	require.True(t, report.AdminCommitted)
	require.ElementsMatch(t, []string{"acme", "beta"}, report.Repaired)

	master := realmNamed(t, dir, "master")
	require.Equal(t, "Admin v2", master.DisplayName)
	acme := realmNamed(t, dir, "acme")
	require.True(t, acme.HasManagementClient())
	require.NotEqual(t, oldClient, *acme.ManagementClientID)
}

func TestImportAll_NoRepairWithoutAdminCommit(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})
	ctx := context.Background()

	// acme nace sin management client porque no hay realm admin
	_, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme"}}, types.StrategyFail)
	require.NoError(t, err)
	require.False(t, realmNamed(t, dir, "acme").HasManagementClient())

	report, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "beta"}}, types.StrategyFail)
	require.NoError(t, err)
	require.False(t, report.AdminCommitted)
	require.Empty(t, report.Repaired)
	require.False(t, realmNamed(t, dir, "acme").HasManagementClient())

	report, err = o.ImportAll(ctx, []types.RealmBundle{{Realm: "master"}}, types.StrategyFail)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"acme", "beta"}, report.Repaired)
	require.True(t, realmNamed(t, dir, "acme").HasManagementClient())
}

// cancelOnRelease cancela el contexto al liberar el lock de key.
type cancelOnRelease struct {
	lock.Locker
	key    string
	cancel context.CancelFunc
}

func (c *cancelOnRelease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	release, err := c.Locker.Acquire(ctx, key, ttl)
	if err != nil || key != c.key {
		return release, err
	}
	return func() { release(); c.cancel() }, nil
}

func TestImportAll_CancelAfterAdminStillRepairs(t *testing.T) {
	dir := newDir()
	_, err := newOrchestrator(dir, Options{}).ImportAll(context.Background(), []types.RealmBundle{{Realm: "acme"}}, types.StrategyFail)
	require.NoError(t, err)
	require.False(t, realmNamed(t, dir, "acme").HasManagementClient())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o := newOrchestrator(dir, Options{
		Locker:  &cancelOnRelease{Locker: lock.NewMemory(), key: "realm:master", cancel: cancel},
		LockTTL: time.Minute,
	})

	report, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "beta"}, {Realm: "master"}}, types.StrategyFail)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"master:created"}, outcomes(report))
	require.True(t, report.AdminCommitted)
	require.Equal(t, []string{"acme"}, report.Repaired)

	require.True(t, realmNamed(t, dir, "acme").HasManagementClient())
	require.Nil(t, realmNamed(t, dir, "beta"))
}

func TestImportAll_ConflictIsPerBundle(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})
	ctx := context.Background()

	_, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme"}}, types.StrategyFail)
	require.NoError(t, err)

	report, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme"}, {Realm: "beta"}}, types.StrategyFail)
	require.Error(t, err)
	require.True(t, realm.IsConflict(err))
	require.Equal(t, []string{"acme:failed", "beta:created"}, outcomes(report))
	require.NotNil(t, realmNamed(t, dir, "beta"))
}

func TestImportAll_PolicyViolationRollsBackOnlyThatBundle(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})

	bad := types.RealmBundle{
		Realm:          "bad",
		PasswordPolicy: "length(12)",
		Users: []types.UserRecord{
			{ID: "u1", Username: "ok", Credentials: []types.CredentialRecord{{Type: "password", Value: "long-enough-secret"}}},
			{ID: "u2", Username: "weak", Credentials: []types.CredentialRecord{{Type: "password", Value: "short"}}},
		},
	}
	good := types.RealmBundle{
		Realm: "good",
		Users: []types.UserRecord{{ID: "u3", Username: "carol", Credentials: []types.CredentialRecord{{Type: "password", Value: "whatever"}}}},
	}

	report, err := o.ImportAll(context.Background(), []types.RealmBundle{bad, good}, types.StrategyFail)
	require.Error(t, err)
	require.True(t, realm.IsPolicyViolation(err))

	var v *realm.PasswordPolicyViolationError
	require.ErrorAs(t, report.Results[0].Err, &v)
	require.Equal(t, "weak", v.Username)
	require.Equal(t, []string{"bad:failed", "good:created"}, outcomes(report))

	require.Nil(t, realmNamed(t, dir, "bad"), "el bundle con violación se revierte completo")
	require.NotNil(t, realmNamed(t, dir, "good"))
}

func TestImportAll_CredentialBranches(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{Codec: credential.New(credential.Options{})})
	ctx := context.Background()

	_, err := o.ImportAll(ctx, []types.RealmBundle{{
		Realm: "acme",
		Users: []types.UserRecord{
			{ID: "plain", Username: "plain", Credentials: []types.CredentialRecord{{
				Type: "password", Value: "pw-in-clear", HashedSaltedValue: "ignored", Algorithm: "HmacSHA1",
			}}},
			{ID: "hashed", Username: "hashed", Credentials: []types.CredentialRecord{{
				ID: "c-1", Type: "password", HashedSaltedValue: "abc==", Algorithm: "HmacSHA1",
			}}},
			{ID: "otp", Username: "otp", Credentials: []types.CredentialRecord{{ID: "c-2", Type: "totp", HashedSaltedValue: "SEED"}}},
		},
	}}, types.StrategyFail)
	require.NoError(t, err)

	r := realmNamed(t, dir, "acme")
	require.NoError(t, dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		plain, err := tx.ListCredentials(ctx, r.ID, "plain")
		require.NoError(t, err)
		require.Len(t, plain, 1)
		require.Equal(t, password.Algorithm, plain[0].Params.Algorithm)
		require.True(t, password.Verify("pw-in-clear", plain[0].Secret.Value))

		hashed, err := tx.ListCredentials(ctx, r.ID, "hashed")
		require.NoError(t, err)
		require.Equal(t, "c-1", hashed[0].ID)
		require.Equal(t, "abc==", hashed[0].Secret.Value)
		require.Equal(t, credential.DefaultPasswordAlgorithm, hashed[0].Params.Algorithm)

		otp, err := tx.ListCredentials(ctx, r.ID, "otp")
		require.NoError(t, err)
		require.Equal(t, credential.LegacyOTPAlgorithm, otp[0].Params.Algorithm)
		require.Equal(t, 6, *otp[0].Params.Digits)
		require.Equal(t, 30, *otp[0].Params.Period)
		return nil
	}))
}

func TestImportAll_RequiredActionsSurvive(t *testing.T) {
	for _, tc := range []struct {
		policy requiredaction.CasePolicy
		want   []string
	}{
		{requiredaction.CasePreserve, []string{"update_password", "VERIFY_EMAIL"}},
		{requiredaction.CaseUpper, []string{"UPDATE_PASSWORD", "VERIFY_EMAIL"}},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			dir := newDir()
			o := newOrchestrator(dir, Options{Actions: requiredaction.New(tc.policy)})
			in := []types.RealmBundle{{
				Realm: "acme",
				Users: []types.UserRecord{
					{Username: "alice", RequiredActions: []string{"update_password", "VERIFY_EMAIL"}},
					{Username: "bob"},
				},
			}}

			report, err := o.ImportAll(context.Background(), in, types.StrategyFail)
			require.NoError(t, err)
			require.Empty(t, report.Results[0].Orphans)
			require.Equal(t, []string{"update_password", "VERIFY_EMAIL"}, in[0].Users[0].RequiredActions, "la entrada no se muta")

			users := usersOf(t, dir, realmNamed(t, dir, "acme").ID)
			require.Equal(t, tc.want, users[0].RequiredActions)
			require.Empty(t, users[1].RequiredActions)
		})
	}
}

func TestImportAll_LockHeldIsConflict(t *testing.T) {
	dir := newDir()
	locker := lock.NewMemory()
	o := newOrchestrator(dir, Options{Locker: locker, LockTTL: time.Minute})

	release, err := locker.Acquire(context.Background(), "realm:acme", time.Minute)
	require.NoError(t, err)
	defer release()

	report, err := o.ImportAll(context.Background(), []types.RealmBundle{{Realm: "acme"}, {Realm: "beta"}}, types.StrategyFail)
	require.True(t, realm.IsConflict(err))
	require.Equal(t, []string{"acme:failed", "beta:created"}, outcomes(report))
}

func TestPlan(t *testing.T) {
	dir := newDir()
	o := newOrchestrator(dir, Options{})
	ctx := context.Background()
	_, err := o.ImportAll(ctx, []types.RealmBundle{{Realm: "acme"}}, types.StrategyFail)
	require.NoError(t, err)

	in := []types.RealmBundle{{Realm: "acme"}, {Realm: "new", Users: []types.UserRecord{{Username: "x"}}}, {Realm: "master"}, {Realm: "new"}}

	items, err := o.Plan(ctx, in, types.StrategyOverwriteExisting)
	require.NoError(t, err)
	require.Equal(t, []PlanItem{
		{Realm: "master", Action: "create"},
		{Realm: "acme", Action: "replace", Exists: true},
		{Realm: "new", Action: "create", Users: 1},
		{Realm: "new", Action: "replace", Exists: true},
	}, items)

	items, err = o.Plan(ctx, in[:1], types.StrategyFail)
	require.NoError(t, err)
	require.Equal(t, "conflict", items[0].Action)

	require.Nil(t, realmNamed(t, dir, "master"), "plan no escribe")
}
