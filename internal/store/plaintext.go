package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/security/password"
)

// UpdatePasswordAction es el required action que agrega un password temporal.
const UpdatePasswordAction = "UPDATE_PASSWORD"

// PlaintextToStorage valida contra la política del realm recibido y hashea.
func PlaintextToStorage(pw *password.Enforcer, r *repository.Realm, user *repository.User, c repository.PlaintextCredential, nowMillis int64) (repository.StorageCredential, error) {
	cred := repository.StorageCredential{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Type:        c.Type,
		UserLabel:   c.UserLabel,
		CreatedDate: c.CreatedDate,
	}
	if cred.CreatedDate == nil {
		cred.CreatedDate = &nowMillis
	}

	switch {
	case repository.IsPasswordType(c.Type):
		ok, reasons, err := pw.Check(r.PasswordPolicy, c.Value, password.Subject{Username: user.Username, Email: user.Email})
		if err != nil {
			return cred, fmt.Errorf("%w: realm %q: %v", repository.ErrInvalidInput, r.Name, err)
		}
		if !ok {
			return cred, &repository.PolicyError{Reasons: reasons}
		}
		h, err := pw.Hash(c.Value)
		if err != nil {
			return cred, err
		}
		iterations := int(pw.Params.Time)
		cred.Secret = repository.SecretData{Value: h.PHC, Salt: h.Salt}
		cred.Params = repository.CredentialData{Algorithm: password.Algorithm, HashIterations: &iterations}

	case repository.IsOTPType(c.Type):
		digits, period := 6, 30
		cred.Secret = repository.SecretData{Value: c.Value}
		cred.Params = repository.CredentialData{Algorithm: "HmacSHA1", Digits: &digits}
		if c.Type != repository.CredentialHOTP {
			cred.Params.Period = &period
		}

	default:
		return cred, fmt.Errorf("%w: unsupported plaintext credential type %q", repository.ErrInvalidInput, c.Type)
	}
	return cred, nil
}
