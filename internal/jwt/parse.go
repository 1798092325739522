package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Parse valida firma HS256, exige que "iss" empiece con IssuerBase (si no
// es vacío) y valida exp/nbf con 30s de tolerancia.
// Devuelve las claims como map[string]any.
func (i *Issuer) Parse(token string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return i.Key, nil }

	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithLeeway(30*time.Second),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid_jwt")
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}

	if i.IssuerBase != "" {
		iss, _ := claims["iss"].(string)
		if !strings.HasPrefix(iss, i.IssuerBase+"/realms/") {
			return nil, ErrInvalidIssuer
		}
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
