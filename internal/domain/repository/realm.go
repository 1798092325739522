package repository

import "time"

// Realm es un realm persistido.
type Realm struct {
	ID             string
	Name           string
	DisplayName    string
	Enabled        bool
	PasswordPolicy string
	// ManagementClientID apunta al client "<name>-realm" que el realm admin
	// usa para administrar este realm. nil cuando está desprendido.
	ManagementClientID *string
	CreatedAt          time.Time
}

// HasManagementClient reporta si el realm tiene back-reference al realm admin.
func (r *Realm) HasManagementClient() bool {
	return r.ManagementClientID != nil && *r.ManagementClientID != ""
}

// ManagementClientName es el clientId que el realm admin usa para un realm.
func ManagementClientName(realmName string) string {
	return realmName + "-realm"
}

// ManagementRoles son los roles del client de administración de un realm.
var ManagementRoles = []string{
	"create-client",
	"view-realm", "view-users", "view-clients", "view-events",
	"view-identity-providers", "view-authorization",
	"manage-realm", "manage-users", "manage-clients", "manage-events",
	"manage-identity-providers", "manage-authorization",
	"query-users", "query-clients", "query-realms", "query-groups",
}

// ExportOptions controla qué incluye el export estructural.
type ExportOptions struct {
	IncludeUsers   bool
	IncludeClients bool
	IncludeSecrets bool
}
