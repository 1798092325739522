package repository

import (
	"context"

	"github.com/dropDatabas3/realmport/internal/domain/types"
)

// Directory es el Directory Store. Toda mutación corre dentro de Tx: si fn
// retorna error la unidad de trabajo completa se descarta.
type Directory interface {
	Tx(ctx context.Context, fn func(tx DirectoryTx) error) error
	Close()
}

// DirectoryTx son las operaciones disponibles dentro de una unidad de trabajo.
type DirectoryTx interface {
	// FindRealmByName retorna ErrNotFound si el realm no existe.
	FindRealmByName(ctx context.Context, name string) (*Realm, error)
	ListRealms(ctx context.Context) ([]Realm, error)

	// CreateRealm es el import estructural genérico: realm, roles, grupos,
	// clients y usuarios. Ignora credenciales y required actions de los
	// usuarios. Asigna IDs faltantes escribiéndolos en el bundle.
	// Retorna ErrConflict si el nombre ya existe.
	CreateRealm(ctx context.Context, bundle *types.RealmBundle) (*Realm, error)

	// DeleteRealm retorna ErrReferenced si otro realm apunta a uno de sus clients.
	DeleteRealm(ctx context.Context, realmID string) error

	SetManagementClient(ctx context.Context, realmID string, clientID *string) error
	// SetupManagementClient crea (o recrea) el client de administración del
	// realm dentro del realm admin y actualiza la back-reference.
	SetupManagementClient(ctx context.Context, realm *Realm) error

	// FindClientByClientID busca por clientId (no por id interno), sin secret.
	// Retorna ErrNotFound si el realm no tiene ese client.
	FindClientByClientID(ctx context.Context, realmID, clientID string) (*types.ClientRegistration, error)

	FindUserByID(ctx context.Context, realmID, userID string) (*User, error)
	ListUsers(ctx context.Context, realmID string, includeServiceAccounts bool) ([]User, error)

	// UpdateCredential aplica la política de passwords del realm recibido.
	// Retorna un *PolicyError (ErrPolicyViolation) si el valor no cumple.
	UpdateCredential(ctx context.Context, realm *Realm, user *User, cred PlaintextCredential) error
	// CreateCredential persiste una credencial ya hasheada, sin validar política.
	CreateCredential(ctx context.Context, realmID, userID string, cred StorageCredential) error
	ListCredentials(ctx context.Context, realmID, userID string) ([]StorageCredential, error)

	AddRequiredAction(ctx context.Context, realmID, userID, action string) error
	// GrantClientRoles agrega al usuario roles del client clientID (clientId).
	// Los roles ya asignados se ignoran.
	GrantClientRoles(ctx context.Context, realmID, userID, clientID string, roles []string) error

	// ExportRealm es el export estructural genérico. No incluye credenciales.
	ExportRealm(ctx context.Context, realmID string, opts ExportOptions) (*types.RealmBundle, error)
}
