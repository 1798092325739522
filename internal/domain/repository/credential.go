package repository

import "encoding/json"

// Tipos de credencial conocidos.
const (
	CredentialPassword        = "password"
	CredentialPasswordHistory = "password-history"
	CredentialOTP             = "otp"
	CredentialTOTP            = "totp"
	CredentialHOTP            = "hotp"
)

// IsPasswordType reporta si el tipo es password o password-history.
func IsPasswordType(t string) bool {
	return t == CredentialPassword || t == CredentialPasswordHistory
}

// IsOTPType reporta si el tipo es una variante OTP.
func IsOTPType(t string) bool {
	return t == CredentialOTP || t == CredentialTOTP || t == CredentialHOTP
}

// StorageCredential es la forma persistida de una credencial: un blob secreto
// y un blob de parámetros, más metadatos.
type StorageCredential struct {
	ID          string
	UserID      string
	Type        string
	UserLabel   string
	Device      string
	Secret      SecretData
	Params      CredentialData
	CreatedDate *int64
}

// SecretData es el material secreto (hash o seed OTP) con su salt.
type SecretData struct {
	Value                string              `json:"value"`
	Salt                 []byte              `json:"salt,omitempty"`
	AdditionalParameters map[string][]string `json:"additionalParameters,omitempty"`
}

// CredentialData son los parámetros no secretos del algoritmo.
type CredentialData struct {
	HashIterations *int   `json:"hashIterations,omitempty"`
	Algorithm      string `json:"algorithm,omitempty"`
	Digits         *int   `json:"digits,omitempty"`
	Period         *int   `json:"period,omitempty"`
	Counter        *int   `json:"counter,omitempty"`
	SubType        string `json:"subType,omitempty"`

	AdditionalParameters map[string][]string `json:"additionalParameters,omitempty"`
}

// SecretJSON serializa el blob secreto.
func (c StorageCredential) SecretJSON() (string, error) {
	b, err := json.Marshal(c.Secret)
	return string(b), err
}

// ParamsJSON serializa el blob de parámetros.
func (c StorageCredential) ParamsJSON() (string, error) {
	b, err := json.Marshal(c.Params)
	return string(b), err
}

// PlaintextCredential es un secreto en claro que el store debe validar contra
// la política del realm y hashear antes de persistir.
type PlaintextCredential struct {
	Type      string
	Value     string
	UserLabel string
	Temporary bool
	// AdminRequest relaja reglas que sólo aplican a cambios hechos por el propio usuario.
	AdminRequest bool
	CreatedDate  *int64
}
