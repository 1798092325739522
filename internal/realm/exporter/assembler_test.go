package exporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/realm"
	"github.com/dropDatabas3/realmport/internal/realm/bundle"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newDir() *memory.Store {
	return memory.New(memory.Options{AdminRealm: "master", Passwords: password.NewEnforcer(nil, password.Fast)})
}

func sample() types.RealmBundle {
	return types.RealmBundle{
		ID:             "realm-acme",
		Realm:          "acme",
		DisplayName:    "ACME",
		Enabled:        ptr(true),
		PasswordPolicy: "length(8)",
		Roles:          &types.RolesSection{Realm: []types.RoleDefinition{{ID: "role-1", Name: "admin"}}},
		Groups:         []types.GroupDefinition{{ID: "g-1", Name: "staff", Path: "/staff"}},
		Clients:        []types.ClientRegistration{{ID: "cl-1", ClientID: "api", Secret: "s3cr3t"}},
		Users: []types.UserRecord{
			{
				ID: "u-1", Username: "alice", Enabled: true, CreatedTimestamp: 1700000000000,
				RequiredActions: []string{"VERIFY_EMAIL"},
				Credentials: []types.CredentialRecord{{
					ID: "cred-1", Type: "password", HashedSaltedValue: "hash==",
					Salt: base64.StdEncoding.EncodeToString([]byte("salt")), HashIterations: ptr(27500),
					Algorithm: "pbkdf2-sha256", CreatedDate: ptr(int64(1700000000001)),
				}},
			},
			{
				ID: "u-2", Username: "bob", Enabled: true, CreatedTimestamp: 1700000000000,
				Credentials: []types.CredentialRecord{{ID: "cred-2", Type: "totp", HashedSaltedValue: "SEED", CreatedDate: ptr(int64(5))}},
			},
		},
		Sections: []types.Section{{Key: "smtpServer", Raw: json.RawMessage(`{"host":"mail"}`)}},
	}
}

func TestExport_NotFound(t *testing.T) {
	_, err := New(newDir()).Export(context.Background(), "ghost")
	require.ErrorIs(t, err, realm.ErrRealmNotFound)
}

func TestExport_CredentialsCarryIDs(t *testing.T) {
	dir := newDir()
	_, err := importer.New(dir, importer.Options{}).ImportAll(context.Background(), []types.RealmBundle{sample()}, types.StrategyFail)
	require.NoError(t, err)

	out, err := New(dir).Export(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", out.Clients[0].Secret)
	require.Len(t, out.Users, 2)
	require.Equal(t, "cred-1", out.Users[0].Credentials[0].ID)
	require.Equal(t, "cred-2", out.Users[1].Credentials[0].ID)
	require.NotEmpty(t, out.Users[0].Credentials[0].SecretData)
	require.Equal(t, []string{"VERIFY_EMAIL"}, out.Users[0].RequiredActions)
}

// export → import en un store vacío → export produce el mismo bundle.
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	first := newDir()
	_, err := importer.New(first, importer.Options{}).ImportAll(ctx, []types.RealmBundle{sample()}, types.StrategyFail)
	require.NoError(t, err)
	exported, err := New(first).Export(ctx, "acme")
	require.NoError(t, err)

	raw, err := json.Marshal(exported)
	require.NoError(t, err)
	parsed, err := bundle.ParseAll(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, parsed, 1)

	second := newDir()
	report, err := importer.New(second, importer.Options{}).ImportAll(ctx, parsed, types.StrategyFail)
	require.NoError(t, err)
	require.Empty(t, report.Results[0].Orphans)

	again, err := New(second).Export(ctx, "acme")
	require.NoError(t, err)

	raw2, err := json.Marshal(again)
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(raw2))

	// credenciales idénticas campo por campo
	require.NoError(t, second.Tx(ctx, func(tx repository.DirectoryTx) error {
		creds, err := tx.ListCredentials(ctx, "realm-acme", "u-1")
		require.NoError(t, err)
		require.Equal(t, []byte("salt"), creds[0].Secret.Salt)
		require.Equal(t, 27500, *creds[0].Params.HashIterations)
		require.Equal(t, int64(1700000000001), *creds[0].CreatedDate)
		return nil
	}))
}

// Las claves que el bundle no modela en roles, grupos, clients y usuarios
// sobreviven import → export.
func TestRoundTrip_NestedUnknownKeys(t *testing.T) {
	ctx := context.Background()
	in := `{
		"id": "realm-acme",
		"realm": "acme",
		"roles": {"realm": [{"id": "role-1", "name": "admin", "composite": true,
			"composites": {"realm": ["user"]}, "attributes": {"tier": ["gold"]}}]},
		"groups": [{"id": "g-1", "name": "staff", "path": "/staff", "access": {"view": true}}],
		"clients": [{"id": "cl-1", "clientId": "web", "secret": "s3cr3t",
			"rootUrl": "https://web.test",
			"protocolMappers": [{"name": "email", "protocol": "openid-connect"}],
			"defaultClientScopes": ["profile", "email"]}],
		"users": [{"id": "u-1", "username": "alice", "enabled": true, "createdTimestamp": 1700000000000,
			"notBefore": 0,
			"federatedIdentities": [{"identityProvider": "github", "userId": "42"}]}]
	}`
	parsed, err := bundle.ParseAll(bytes.NewReader([]byte(in)))
	require.NoError(t, err)

	dir := newDir()
	_, err = importer.New(dir, importer.Options{}).ImportAll(ctx, parsed, types.StrategyFail)
	require.NoError(t, err)

	out, err := New(dir).Export(ctx, "acme")
	require.NoError(t, err)
	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var got struct {
		Roles struct {
			Realm []map[string]json.RawMessage `json:"realm"`
		} `json:"roles"`
		Groups  []map[string]json.RawMessage `json:"groups"`
		Clients []map[string]json.RawMessage `json:"clients"`
		Users   []map[string]json.RawMessage `json:"users"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))

	require.JSONEq(t, `{"realm":["user"]}`, string(got.Roles.Realm[0]["composites"]))
	require.JSONEq(t, `{"tier":["gold"]}`, string(got.Roles.Realm[0]["attributes"]))
	require.JSONEq(t, `{"view":true}`, string(got.Groups[0]["access"]))

	var web map[string]json.RawMessage
	for _, c := range got.Clients {
		if string(c["clientId"]) == `"web"` {
			web = c
		}
	}
	require.NotNil(t, web)
	require.JSONEq(t, `"https://web.test"`, string(web["rootUrl"]))
	require.JSONEq(t, `[{"name":"email","protocol":"openid-connect"}]`, string(web["protocolMappers"]))
	require.JSONEq(t, `["profile","email"]`, string(web["defaultClientScopes"]))

	require.JSONEq(t, `0`, string(got.Users[0]["notBefore"]))
	require.JSONEq(t, `[{"identityProvider":"github","userId":"42"}]`, string(got.Users[0]["federatedIdentities"]))
}
