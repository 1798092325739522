package realm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized: el llamador no presentó credenciales válidas.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: autenticado pero sin permisos.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorizedExport: el llamador no puede exportar el realm.
	ErrUnauthorizedExport = fmt.Errorf("not allowed to export realm: %w", ErrForbidden)
	// ErrUnauthorizedImport: el llamador no puede importar el realm.
	ErrUnauthorizedImport = fmt.Errorf("not allowed to import realm: %w", ErrForbidden)
	// ErrRealmNotFound: el realm pedido no existe.
	ErrRealmNotFound = errors.New("realm not found")
)

// MalformedBundleError indica JSON inválido a mitad del stream.
type MalformedBundleError struct {
	Offset int64
	Err    error
}

func (e *MalformedBundleError) Error() string {
	return fmt.Sprintf("malformed realm bundle at offset %d: %v", e.Offset, e.Err)
}

func (e *MalformedBundleError) Unwrap() error { return e.Err }

// RealmNameConflictError indica que el nombre del realm ya está en uso.
// Es fatal sólo para el bundle que lo produjo.
type RealmNameConflictError struct {
	Realm string
	Err   error
}

func (e *RealmNameConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("realm %q already exists: %v", e.Realm, e.Err)
	}
	return fmt.Sprintf("realm %q already exists", e.Realm)
}

func (e *RealmNameConflictError) Unwrap() error { return e.Err }

// PasswordPolicyViolationError indica que una credencial en texto plano no
// cumple la política del realm. Revierte el bundle completo.
type PasswordPolicyViolationError struct {
	Realm    string
	Username string
	Reasons  []string
	Err      error
}

func (e *PasswordPolicyViolationError) Error() string {
	msg := fmt.Sprintf("password policy not met for user %q", e.Username)
	if e.Realm != "" {
		msg += fmt.Sprintf(" in realm %q", e.Realm)
	}
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	return msg
}

func (e *PasswordPolicyViolationError) Unwrap() error { return e.Err }

// OrphanedUserRecordError indica que un usuario con required actions
// desprendidas no se encontró después del commit. No es fatal.
type OrphanedUserRecordError struct {
	Realm    string
	UserID   string
	Username string
	Actions  []string
}

func (e *OrphanedUserRecordError) Error() string {
	return fmt.Sprintf("user %q (id %q) not found after import of realm %q; dropped required actions %v",
		e.Username, e.UserID, e.Realm, e.Actions)
}

// IsConflict reporta si err (o alguno de los que envuelve) es un conflicto de nombre.
func IsConflict(err error) bool {
	var c *RealmNameConflictError
	return errors.As(err, &c)
}

// IsPolicyViolation reporta si err es una violación de política de passwords.
func IsPolicyViolation(err error) bool {
	var p *PasswordPolicyViolationError
	return errors.As(err, &p)
}

// IsMalformed reporta si err es un bundle mal formado.
func IsMalformed(err error) bool {
	var m *MalformedBundleError
	return errors.As(err, &m)
}
