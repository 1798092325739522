package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado (ej: nombre de realm ya usado).
	ErrConflict = errors.New("conflict")

	// ErrRealmNameTaken es el ErrConflict específico de un nombre de realm
	// ya usado. errors.Is(err, ErrConflict) también es true.
	ErrRealmNameTaken = fmt.Errorf("realm name taken: %w", ErrConflict)

	// ErrReferenced indica que el recurso sigue referenciado por otro
	// (ej: management client del realm admin apuntado desde otro realm).
	ErrReferenced = errors.New("still referenced")

	// ErrPolicyViolation indica que un password no cumple la política del realm.
	ErrPolicyViolation = errors.New("password policy violation")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")
)

// PolicyError detalla qué reglas de la política fallaron.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrPolicyViolation.Error()
	}
	msg := ErrPolicyViolation.Error() + ":"
	for i, r := range e.Reasons {
		if i > 0 {
			msg += ";"
		}
		msg += " " + r
	}
	return msg
}

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsPolicyViolation verifica si el error es ErrPolicyViolation.
func IsPolicyViolation(err error) bool { return errors.Is(err, ErrPolicyViolation) }
