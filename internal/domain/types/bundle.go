package types

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// RealmBundle es la representación serializada de un realm completo.
// Las claves top-level que este paquete no modela se conservan en
// Sections, en el orden en que aparecieron.
type RealmBundle struct {
	ID             string               `json:"id,omitempty"`
	Realm          string               `json:"realm"`
	DisplayName    string               `json:"displayName,omitempty"`
	Enabled        *bool                `json:"enabled,omitempty"`
	PasswordPolicy string               `json:"passwordPolicy,omitempty"`
	Attributes     map[string]string    `json:"attributes,omitempty"`
	Roles          *RolesSection        `json:"roles,omitempty"`
	Groups         []GroupDefinition    `json:"groups,omitempty"`
	Clients        []ClientRegistration `json:"clients,omitempty"`
	Users          []UserRecord         `json:"users,omitempty"`

	Sections []Section `json:"-"`
}

// Section es una clave JSON no modelada con su valor crudo: en el bundle,
// una sección de configuración opaca (flows, policies, etc).
type Section struct {
	Key string
	Raw json.RawMessage
}

// RolesSection agrupa roles de realm y roles por client (clientId → roles).
type RolesSection struct {
	Realm  []RoleDefinition            `json:"realm,omitempty"`
	Client map[string][]RoleDefinition `json:"client,omitempty"`
}

type RoleDefinition struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`

	// Extra conserva composites, attributes, etc.
	Extra []Section `json:"-"`
}

type GroupDefinition struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Path       string              `json:"path,omitempty"`
	RealmRoles []string            `json:"realmRoles,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	SubGroups  []GroupDefinition   `json:"subGroups,omitempty"`

	Extra []Section `json:"-"`
}

// ClientRegistration describe un client OAuth/OIDC dentro del realm.
type ClientRegistration struct {
	ID                     string            `json:"id,omitempty"`
	ClientID               string            `json:"clientId"`
	Name                   string            `json:"name,omitempty"`
	Enabled                *bool             `json:"enabled,omitempty"`
	PublicClient           bool              `json:"publicClient,omitempty"`
	BearerOnly             bool              `json:"bearerOnly,omitempty"`
	Secret                 string            `json:"secret,omitempty"`
	RedirectURIs           []string          `json:"redirectUris,omitempty"`
	WebOrigins             []string          `json:"webOrigins,omitempty"`
	ServiceAccountsEnabled bool              `json:"serviceAccountsEnabled,omitempty"`
	Attributes             map[string]string `json:"attributes,omitempty"`

	// Extra conserva protocolMappers, rootUrl, defaultClientScopes, etc.
	Extra []Section `json:"-"`
}

// UserRecord es un usuario serializado con sus credenciales y required actions.
type UserRecord struct {
	ID                     string              `json:"id,omitempty"`
	Username               string              `json:"username"`
	Email                  string              `json:"email,omitempty"`
	EmailVerified          bool                `json:"emailVerified,omitempty"`
	FirstName              string              `json:"firstName,omitempty"`
	LastName               string              `json:"lastName,omitempty"`
	Enabled                bool                `json:"enabled"`
	CreatedTimestamp       int64               `json:"createdTimestamp,omitempty"`
	ServiceAccountClientID string              `json:"serviceAccountClientId,omitempty"`
	Attributes             map[string][]string `json:"attributes,omitempty"`
	Credentials            []CredentialRecord  `json:"credentials,omitempty"`
	RequiredActions        []string            `json:"requiredActions,omitempty"`
	RealmRoles             []string            `json:"realmRoles,omitempty"`
	ClientRoles            map[string][]string `json:"clientRoles,omitempty"`
	Groups                 []string            `json:"groups,omitempty"`

	// Extra conserva federatedIdentities, notBefore, etc.
	Extra []Section `json:"-"`
}

// IsServiceAccount indica si el usuario respalda a un client confidencial.
func (u UserRecord) IsServiceAccount() bool { return u.ServiceAccountClientID != "" }

// ─── JSON con secciones opacas ───

type (
	bundleAlias RealmBundle
	roleAlias   RoleDefinition
	groupAlias  GroupDefinition
	clientAlias ClientRegistration
	userAlias   UserRecord
)

var (
	knownBundleKeys = jsonKeys(reflect.TypeOf(bundleAlias{}))
	knownRoleKeys   = jsonKeys(reflect.TypeOf(roleAlias{}))
	knownGroupKeys  = jsonKeys(reflect.TypeOf(groupAlias{}))
	knownClientKeys = jsonKeys(reflect.TypeOf(clientAlias{}))
	knownUserKeys   = jsonKeys(reflect.TypeOf(userAlias{}))
)

func (b *RealmBundle) UnmarshalJSON(data []byte) error {
	var a bundleAlias
	sections, err := decodeWithExtra(data, knownBundleKeys, &a)
	if err != nil {
		return fmt.Errorf("realm bundle: %w", err)
	}
	*b = RealmBundle(a)
	b.Sections = sections
	return nil
}

func (b RealmBundle) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(bundleAlias(b), b.Sections)
}

func (r *RoleDefinition) UnmarshalJSON(data []byte) error {
	var a roleAlias
	extra, err := decodeWithExtra(data, knownRoleKeys, &a)
	if err != nil {
		return fmt.Errorf("role: %w", err)
	}
	*r = RoleDefinition(a)
	r.Extra = extra
	return nil
}

func (r RoleDefinition) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(roleAlias(r), r.Extra)
}

func (g *GroupDefinition) UnmarshalJSON(data []byte) error {
	var a groupAlias
	extra, err := decodeWithExtra(data, knownGroupKeys, &a)
	if err != nil {
		return fmt.Errorf("group: %w", err)
	}
	*g = GroupDefinition(a)
	g.Extra = extra
	return nil
}

func (g GroupDefinition) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(groupAlias(g), g.Extra)
}

func (c *ClientRegistration) UnmarshalJSON(data []byte) error {
	var a clientAlias
	extra, err := decodeWithExtra(data, knownClientKeys, &a)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	*c = ClientRegistration(a)
	c.Extra = extra
	return nil
}

func (c ClientRegistration) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(clientAlias(c), c.Extra)
}

func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var a userAlias
	extra, err := decodeWithExtra(data, knownUserKeys, &a)
	if err != nil {
		return fmt.Errorf("user: %w", err)
	}
	*u = UserRecord(a)
	u.Extra = extra
	return nil
}

func (u UserRecord) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(userAlias(u), u.Extra)
}

// Clone copia el bundle de forma que el importer y los stores puedan
// asignar IDs y desprender credenciales sin tocar el bundle del llamador.
// Los mapas de atributos se comparten: nadie los muta.
func (b *RealmBundle) Clone() *RealmBundle {
	c := *b
	c.Sections = append([]Section(nil), b.Sections...)
	c.Clients = append([]ClientRegistration(nil), b.Clients...)
	c.Groups = cloneGroups(b.Groups)
	if b.Roles != nil {
		roles := RolesSection{Realm: append([]RoleDefinition(nil), b.Roles.Realm...)}
		if b.Roles.Client != nil {
			roles.Client = make(map[string][]RoleDefinition, len(b.Roles.Client))
			for k, v := range b.Roles.Client {
				roles.Client[k] = append([]RoleDefinition(nil), v...)
			}
		}
		c.Roles = &roles
	}
	if b.Users != nil {
		c.Users = make([]UserRecord, len(b.Users))
		for i, u := range b.Users {
			u.Credentials = append([]CredentialRecord(nil), u.Credentials...)
			u.RequiredActions = append([]string(nil), u.RequiredActions...)
			c.Users[i] = u
		}
	}
	return &c
}

func cloneGroups(gs []GroupDefinition) []GroupDefinition {
	if gs == nil {
		return nil
	}
	out := make([]GroupDefinition, len(gs))
	for i, g := range gs {
		g.SubGroups = cloneGroups(g.SubGroups)
		out[i] = g
	}
	return out
}
