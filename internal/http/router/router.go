// Package router arma el chi.Router de la API de realms.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/http/controllers"
	"github.com/dropDatabas3/realmport/internal/http/errors"
	mw "github.com/dropDatabas3/realmport/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/realmport/internal/jwt"
	"github.com/dropDatabas3/realmport/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Dir    repository.Directory
	Issuer *jwtx.Issuer

	Realms      *controllers.RealmController
	AdminImport *controllers.AdminImportController
	Health      *controllers.HealthController

	// ImportLimiter limita los POST que importan; nil no limita.
	ImportLimiter rate.Limiter

	// Gatherer para /metrics; nil usa el default de prometheus.
	Gatherer prometheus.Gatherer
}

// New registra:
//
//	GET  /readyz
//	GET  /metrics
//	GET  /realms/{realm}/export/realm
//	POST /realms/{realm}/export/realm
//	POST /admin/import/plan
//	POST /admin/import/apply
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { errors.WriteError(w, errors.ErrRouteNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { errors.WriteError(w, errors.ErrMethodNotAllowed) })

	if deps.Health != nil {
		r.Get("/readyz", deps.Health.Readyz)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	auth := mw.RequireAuth(deps.Issuer, deps.Dir)
	limit := mw.WithRateLimit(deps.ImportLimiter, "import")
	if deps.Realms != nil {
		r.Route("/realms/{realm}/export/realm", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", deps.Realms.Export)
			r.With(limit).Post("/", deps.Realms.Import)
		})
	}
	if deps.AdminImport != nil {
		r.Route("/admin/import", func(r chi.Router) {
			r.Use(auth)
			r.Post("/plan", deps.AdminImport.Plan)
			r.With(limit).Post("/apply", deps.AdminImport.Apply)
		})
	}
	return r
}
