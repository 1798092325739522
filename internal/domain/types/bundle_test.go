package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedBundle = `{
	"realm": "acme",
	"roles": {
		"realm": [{"name": "admin", "composite": true, "composites": {"realm": ["user"]}, "attributes": {"tier": ["gold"]}}],
		"client": {"api": [{"name": "reader", "clientRole": true}]}
	},
	"groups": [{"name": "staff", "access": {"view": true}, "subGroups": [{"name": "ops", "clientRoles": {"api": ["reader"]}}]}],
	"clients": [{
		"clientId": "web",
		"rootUrl": "https://web.test",
		"protocolMappers": [{"name": "email", "protocol": "openid-connect"}],
		"defaultClientScopes": ["profile", "email"]
	}],
	"users": [{
		"username": "alice",
		"enabled": true,
		"notBefore": 0,
		"federatedIdentities": [{"identityProvider": "github", "userId": "42"}]
	}],
	"smtpServer": {"host": "mail"}
}`

func TestBundle_NestedUnknownKeys(t *testing.T) {
	var b RealmBundle
	require.NoError(t, json.Unmarshal([]byte(nestedBundle), &b))

	role := b.Roles.Realm[0]
	require.Len(t, role.Extra, 2)
	assert.Equal(t, "composites", role.Extra[0].Key)
	assert.Equal(t, "attributes", role.Extra[1].Key)
	assert.True(t, role.Composite)
	assert.Equal(t, "clientRole", b.Roles.Client["api"][0].Extra[0].Key)

	require.Len(t, b.Groups[0].Extra, 1)
	assert.Equal(t, "access", b.Groups[0].Extra[0].Key)
	assert.Equal(t, "clientRoles", b.Groups[0].SubGroups[0].Extra[0].Key)

	client := b.Clients[0]
	assert.Equal(t, "web", client.ClientID)
	require.Len(t, client.Extra, 3)
	assert.Equal(t, []string{"rootUrl", "protocolMappers", "defaultClientScopes"},
		[]string{client.Extra[0].Key, client.Extra[1].Key, client.Extra[2].Key})

	user := b.Users[0]
	assert.Equal(t, "alice", user.Username)
	require.Len(t, user.Extra, 2)
	assert.Equal(t, "notBefore", user.Extra[0].Key)
	assert.JSONEq(t, `[{"identityProvider":"github","userId":"42"}]`, string(user.Extra[1].Raw))

	require.Len(t, b.Sections, 1)
	assert.Equal(t, "smtpServer", b.Sections[0].Key)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	require.JSONEq(t, nestedBundle, string(out))
}

func TestBundle_KnownKeysOnlyHaveNoExtra(t *testing.T) {
	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(`{"username":"bob","enabled":false}`), &u))
	assert.Nil(t, u.Extra)

	out, err := json.Marshal(UserRecord{Username: "bob", Extra: []Section{{Key: "notBefore", Raw: json.RawMessage(`7`)}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"bob","enabled":false,"notBefore":7}`, string(out))

	out, err = json.Marshal(RoleDefinition{Extra: []Section{{Key: "attributes", Raw: json.RawMessage(`{}`)}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"","attributes":{}}`, string(out))
}

func TestBundle_NullNestedRecord(t *testing.T) {
	var b RealmBundle
	require.NoError(t, json.Unmarshal([]byte(`{"realm":"acme","users":[null]}`), &b))
	require.Len(t, b.Users, 1)
	assert.Nil(t, b.Users[0].Extra)
}
