package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrNoSigningKey  = errors.New("jwt: signing key vacío")
)

// Issuer firma access tokens HS256 para los realms. El claim "iss" es
// IssuerBase + "/realms/" + realm, igual que lee authz.
type Issuer struct {
	IssuerBase string
	Key        []byte
	AccessTTL  time.Duration // default 15m
	now        func() time.Time
}

func NewIssuer(issuerBase string, key []byte) (*Issuer, error) {
	if len(key) == 0 {
		return nil, ErrNoSigningKey
	}
	return &Issuer{
		IssuerBase: strings.TrimRight(issuerBase, "/"),
		Key:        key,
		AccessTTL:  15 * time.Minute,
		now:        time.Now,
	}, nil
}

// IssuerFor arma el "iss" de un realm.
func (i *Issuer) IssuerFor(realm string) string {
	return i.IssuerBase + "/realms/" + realm
}

// IssueAccess emite un access token de realm con los roles de realm en
// realm_access.roles (mismo formato que exportan los bundles).
func (i *Issuer) IssueAccess(realm, sub string, roles []string, std map[string]any) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.AccessTTL)

	if roles == nil {
		roles = []string{}
	}
	claims := jwtv5.MapClaims{
		"iss":          i.IssuerFor(realm),
		"sub":          sub,
		"iat":          now.Unix(),
		"nbf":          now.Unix(),
		"exp":          exp.Unix(),
		"realm_access": map[string]any{"roles": roles},
	}
	for k, v := range std {
		claims[k] = v
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.Key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
