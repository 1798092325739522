// Package credential traduce credenciales entre el formato wire de los
// bundles y la forma persistida del Directory Store.
//
// Decode elige exactamente uno de dos caminos: si el registro trae un valor
// en texto plano pasa por la actualización con política del store; si no,
// se reconstruye la credencial hasheada tal cual y se persiste sin política.
package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/metrics"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm"
)

const (
	// LegacyOTPAlgorithm es el identificador OTP que exports viejos dejaban
	// también en credenciales de password.
	LegacyOTPAlgorithm = "HmacSHA1"
	// DefaultPasswordAlgorithm es el algoritmo de hash moderno por defecto.
	DefaultPasswordAlgorithm = "pbkdf2-sha256"

	DefaultDigits = 6
	DefaultPeriod = 30
)

// Path es el camino de decodificación de un registro.
type Path string

const (
	PathPlaintext Path = "plaintext"
	PathBlob      Path = "blob"
	PathLegacy    Path = "legacy"
)

// PathOf clasifica un registro. El valor en texto plano siempre gana.
func PathOf(rec types.CredentialRecord) Path {
	switch {
	case rec.Value != "":
		return PathPlaintext
	case rec.SecretData != "":
		return PathBlob
	default:
		return PathLegacy
	}
}

// Writer es la parte del Directory Store que usa Decode.
type Writer interface {
	UpdateCredential(ctx context.Context, realm *repository.Realm, user *repository.User, cred repository.PlaintextCredential) error
	CreateCredential(ctx context.Context, realmID, userID string, cred repository.StorageCredential) error
}

type Options struct {
	// PasswordAlgorithm reemplaza a DefaultPasswordAlgorithm.
	PasswordAlgorithm string
}

type Codec struct {
	passwordAlgorithm string
}

func New(opts Options) *Codec {
	alg := opts.PasswordAlgorithm
	if alg == "" {
		alg = DefaultPasswordAlgorithm
	}
	return &Codec{passwordAlgorithm: alg}
}

// PasswordAlgorithm retorna el algoritmo moderno configurado.
func (c *Codec) PasswordAlgorithm() string { return c.passwordAlgorithm }

// Decode persiste rec para user dentro de target.
//
// Un rechazo de política se reporta como *realm.PasswordPolicyViolationError
// con el username del titular; el llamador debe revertir el bundle.
func (c *Codec) Decode(ctx context.Context, w Writer, target *repository.Realm, user *repository.User, rec types.CredentialRecord) error {
	path := PathOf(rec)
	metrics.CredentialsDecoded.WithLabelValues(string(path)).Inc()

	if path == PathPlaintext {
		err := w.UpdateCredential(ctx, target, user, repository.PlaintextCredential{
			Type:         typeOrPassword(rec.Type),
			Value:        rec.Value,
			UserLabel:    rec.UserLabel,
			Temporary:    rec.IsTemporary(),
			AdminRequest: false,
			CreatedDate:  rec.CreatedDate,
		})
		if err == nil {
			return nil
		}
		if repository.IsPolicyViolation(err) {
			v := &realm.PasswordPolicyViolationError{Realm: target.Name, Username: user.Username, Err: err}
			var pe *repository.PolicyError
			if errors.As(err, &pe) {
				v.Reasons = pe.Reasons
			}
			return v
		}
		return fmt.Errorf("update credential for %q: %w", user.Username, err)
	}

	cred, err := c.ToStorage(rec)
	if err != nil {
		return fmt.Errorf("credential %q of user %q: %w", rec.ID, user.Username, err)
	}
	cred.UserID = user.ID
	logger.From(ctx).Debug("hashed credential restored",
		logger.Username(user.Username), logger.CredentialType(cred.Type), logger.String("path", string(path)))
	return w.CreateCredential(ctx, target.ID, user.ID, cred)
}

// ToStorage reconstruye la credencial hasheada (camino blob o legacy) y
// aplica las reglas de algoritmo y parámetros OTP por defecto.
func (c *Codec) ToStorage(rec types.CredentialRecord) (repository.StorageCredential, error) {
	cred := repository.StorageCredential{
		ID:          rec.ID,
		Type:        typeOrPassword(rec.Type),
		UserLabel:   rec.UserLabel,
		Device:      rec.Device,
		CreatedDate: rec.CreatedDate,
	}

	if PathOf(rec) == PathBlob {
		if err := json.Unmarshal([]byte(rec.SecretData), &cred.Secret); err != nil {
			return cred, fmt.Errorf("%w: secretData: %v", repository.ErrInvalidInput, err)
		}
		if rec.CredentialData != "" {
			if err := json.Unmarshal([]byte(rec.CredentialData), &cred.Params); err != nil {
				return cred, fmt.Errorf("%w: credentialData: %v", repository.ErrInvalidInput, err)
			}
		}
	} else {
		salt, err := decodeSalt(rec.Salt)
		if err != nil {
			return cred, err
		}
		cred.Secret = repository.SecretData{
			Value:                rec.HashedSaltedValue,
			Salt:                 salt,
			AdditionalParameters: rec.Config,
		}
		cred.Params = repository.CredentialData{
			Algorithm:      rec.Algorithm,
			HashIterations: rec.HashIterations,
			Counter:        rec.Counter,
			Digits:         rec.Digits,
			Period:         rec.Period,
		}
	}

	c.normalize(cred.Type, &cred.Params)
	return cred, nil
}

func (c *Codec) normalize(typ string, p *repository.CredentialData) {
	switch {
	case repository.IsPasswordType(typ):
		if p.Algorithm == "" || p.Algorithm == LegacyOTPAlgorithm {
			p.Algorithm = c.passwordAlgorithm
		}
	case repository.IsOTPType(typ):
		if p.Algorithm == "" {
			p.Algorithm = LegacyOTPAlgorithm
		}
		if p.Digits == nil {
			p.Digits = intPtr(DefaultDigits)
		}
		if isTOTP(typ, p.SubType) && p.Period == nil {
			p.Period = intPtr(DefaultPeriod)
		}
	}
}

// isTOTP: "otp" sin subType se trata como time-based.
func isTOTP(typ, subType string) bool {
	switch typ {
	case repository.CredentialTOTP:
		return true
	case repository.CredentialOTP:
		return subType != repository.CredentialHOTP
	}
	return false
}

func decodeSalt(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not base64: %v", repository.ErrInvalidInput, err)
	}
	return b, nil
}

// Encode produce el registro wire de una credencial persistida. Siempre
// incluye el ID.
func Encode(cred repository.StorageCredential) (types.CredentialRecord, error) {
	secret, err := cred.SecretJSON()
	if err != nil {
		return types.CredentialRecord{}, err
	}
	params, err := cred.ParamsJSON()
	if err != nil {
		return types.CredentialRecord{}, err
	}
	return types.CredentialRecord{
		ID:             cred.ID,
		Type:           cred.Type,
		UserLabel:      cred.UserLabel,
		Device:         cred.Device,
		CreatedDate:    cred.CreatedDate,
		SecretData:     secret,
		CredentialData: params,
	}, nil
}

func typeOrPassword(t string) string {
	if t == "" {
		return repository.CredentialPassword
	}
	return t
}

func intPtr(v int) *int { return &v }
