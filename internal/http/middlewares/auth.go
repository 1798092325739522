package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/realmport/internal/authz"
	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/http/errors"
	jwtx "github.com/dropDatabas3/realmport/internal/jwt"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
)

// RequireAuth valida Authorization: Bearer <JWT>, resuelve el principal contra
// el directorio (el realm del token debe existir) y lo guarda en el contexto.
// Responde 401 si falta el token, es inválido o su realm no existe.
func RequireAuth(issuer *jwtx.Issuer, dir repository.Directory) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := issuer.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+err.Error()+`"`)
				errors.WriteError(w, errors.ErrTokenInvalid.WithDetail(err.Error()))
				return
			}

			p, err := authz.Resolve(r.Context(), dir, claims)
			if err != nil {
				logger.From(r.Context()).Warn("bearer token rejected", logger.Op("RequireAuth"), logger.Err(err))
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				errors.WriteError(w, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = WithPrincipal(ctx, p)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.Subject(p.Subject), logger.String("token_realm", p.Realm)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
