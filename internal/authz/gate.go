// Package authz decide si un principal autenticado puede exportar o importar
// un realm. No valida firmas: recibe claims ya verificadas por internal/jwt.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/realm"
)

const (
	RoleAdmin       = "admin"
	RoleCreateRealm = "create-realm"
)

// Principal es el llamador resuelto a partir del bearer token.
type Principal struct {
	Realm   string // último segmento del claim "iss"
	Subject string
	Client  string // claim "azp", puede venir vacío
	Roles   []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrincipalFromClaims arma el Principal. El realm sale del último segmento del
// "iss" y los roles de realm_access.roles.
func PrincipalFromClaims(claims map[string]any) (Principal, error) {
	iss, _ := claims["iss"].(string)
	iss = strings.TrimRight(iss, "/")
	if iss == "" {
		return Principal{}, fmt.Errorf("missing issuer: %w", realm.ErrUnauthorized)
	}
	p := Principal{Realm: iss[strings.LastIndex(iss, "/")+1:]}
	p.Subject, _ = claims["sub"].(string)
	p.Client, _ = claims["azp"].(string)

	if ra, ok := claims["realm_access"].(map[string]any); ok {
		switch roles := ra["roles"].(type) {
		case []string:
			p.Roles = append(p.Roles, roles...)
		case []any:
			for _, r := range roles {
				if s, ok := r.(string); ok {
					p.Roles = append(p.Roles, s)
				}
			}
		}
	}
	return p, nil
}

// Resolve es PrincipalFromClaims más la verificación contra el directorio:
// el realm del token existe y, si el token trae "azp", ese client existe en
// el realm. Ambos fallos son 401, no 403.
func Resolve(ctx context.Context, dir repository.Directory, claims map[string]any) (Principal, error) {
	p, err := PrincipalFromClaims(claims)
	if err != nil {
		return Principal{}, err
	}
	var unknown string
	err = dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		r, err := tx.FindRealmByName(ctx, p.Realm)
		if repository.IsNotFound(err) {
			unknown = fmt.Sprintf("unknown realm %q in token", p.Realm)
			return nil
		}
		if err != nil || p.Client == "" {
			return err
		}
		_, err = tx.FindClientByClientID(ctx, r.ID, p.Client)
		if repository.IsNotFound(err) {
			unknown = fmt.Sprintf("unknown client %q in realm %q", p.Client, p.Realm)
			return nil
		}
		return err
	})
	if err != nil {
		return Principal{}, err
	}
	if unknown != "" {
		return Principal{}, fmt.Errorf("%s: %w", unknown, realm.ErrUnauthorized)
	}
	return p, nil
}

// Gate aplica las reglas de autorización sobre el realm administrativo.
type Gate struct {
	AdminRealm string
}

func New(adminRealm string) *Gate { return &Gate{AdminRealm: adminRealm} }

// IsAdmin: el principal pertenece al realm administrativo y tiene rol admin.
func (g *Gate) IsAdmin(p Principal) bool {
	return p.Realm == g.AdminRealm && p.HasRole(RoleAdmin)
}

// CanExport sólo lo permite a administradores del realm administrativo.
func (g *Gate) CanExport(p Principal) bool { return g.IsAdmin(p) }

// CanImport:
//   - realm existente: admin del realm administrativo y el realm de la URL
//     debe coincidir con el del bundle.
//   - realm nuevo: principal del realm administrativo con create-realm
//     (admin implica create-realm).
func (g *Gate) CanImport(p Principal, urlRealm, bundleRealm string, exists bool) bool {
	if exists {
		return g.IsAdmin(p) && urlRealm == bundleRealm
	}
	return p.Realm == g.AdminRealm && (p.HasRole(RoleCreateRealm) || p.HasRole(RoleAdmin))
}
