package types

// CredentialRecord es una credencial en formato wire. Conviven tres formas:
// texto plano (Value), legacy (HashedSaltedValue + Salt + parámetros sueltos)
// y blobs (SecretData + CredentialData, JSON serializado como string).
type CredentialRecord struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	UserLabel string `json:"userLabel,omitempty"`
	Device    string `json:"device,omitempty"`

	Value     string `json:"value,omitempty"`
	Temporary *bool  `json:"temporary,omitempty"`

	HashedSaltedValue string              `json:"hashedSaltedValue,omitempty"`
	Salt              string              `json:"salt,omitempty"`
	HashIterations    *int                `json:"hashIterations,omitempty"`
	Counter           *int                `json:"counter,omitempty"`
	Algorithm         string              `json:"algorithm,omitempty"`
	Digits            *int                `json:"digits,omitempty"`
	Period            *int                `json:"period,omitempty"`
	Config            map[string][]string `json:"config,omitempty"`

	SecretData     string `json:"secretData,omitempty"`
	CredentialData string `json:"credentialData,omitempty"`

	CreatedDate *int64 `json:"createdDate,omitempty"`
}

// IsTemporary reporta si la credencial en texto plano debe rotarse en el próximo login.
func (c CredentialRecord) IsTemporary() bool {
	return c.Temporary != nil && *c.Temporary
}
