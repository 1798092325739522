// Package controllers implementa los handlers HTTP de import/export de realms.
package controllers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/realmport/internal/audit"
	"github.com/dropDatabas3/realmport/internal/authz"
	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/http/errors"
	mw "github.com/dropDatabas3/realmport/internal/http/middlewares"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm"
	"github.com/dropDatabas3/realmport/internal/realm/bundle"
	"github.com/dropDatabas3/realmport/internal/realm/exporter"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
)

// RealmDeps agrupa lo que necesitan los controllers de realms.
type RealmDeps struct {
	Dir             repository.Directory
	Gate            *authz.Gate
	Exporter        *exporter.Assembler
	Importer        *importer.Orchestrator
	DefaultStrategy types.Strategy
	MaxBodyBytes    int64
}

// RealmController maneja /realms/{realm}/export/realm.
type RealmController struct {
	deps RealmDeps
	sf   singleflight.Group
}

func NewRealmController(deps RealmDeps) *RealmController {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 64 << 20
	}
	return &RealmController{deps: deps}
}

// Export maneja GET /realms/{realm}/export/realm. Exports concurrentes del
// mismo realm comparten una sola lectura del directorio.
func (c *RealmController) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "realm")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RealmController.Export"), logger.Realm(name))

	p, ok := mw.GetPrincipal(ctx)
	if !ok {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	if _, err := realmExists(ctx, c.deps.Dir, name); err != nil {
		errors.WriteError(w, err)
		return
	}
	if !c.deps.Gate.CanExport(p) {
		log.Warn("export denied", logger.Subject(p.Subject))
		audit.Log(ctx, audit.EventAccessDenied, p, logger.Realm(name), logger.Op("export"))
		errors.WriteError(w, realm.ErrUnauthorizedExport)
		return
	}

	v, err, shared := c.sf.Do(name, func() (any, error) {
		return c.deps.Exporter.Export(context.WithoutCancel(ctx), name)
	})
	if err != nil {
		log.Error("export failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}
	log.Debug("export served", logger.Bool("shared", shared))
	audit.Log(ctx, audit.EventRealmExported, p, logger.Realm(name))
	writeJSON(w, http.StatusOK, v)
}

// Import maneja POST /realms/{realm}/export/realm?strategy=. El body es un
// bundle o un array de bundles. Si algún bundle no está autorizado no se
// importa ninguno.
func (c *RealmController) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	urlRealm := chi.URLParam(r, "realm")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RealmController.Import"), logger.Realm(urlRealm))

	p, ok := mw.GetPrincipal(ctx)
	if !ok {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	if _, err := realmExists(ctx, c.deps.Dir, urlRealm); err != nil {
		errors.WriteError(w, err)
		return
	}

	strategy := c.deps.DefaultStrategy
	if q := r.URL.Query().Get("strategy"); q != "" {
		s, err := types.ParseStrategy(q)
		if err != nil {
			errors.WriteError(w, errors.ErrInvalidParameter.WithDetail(err.Error()))
			return
		}
		strategy = s
	}

	body := http.MaxBytesReader(w, r.Body, c.deps.MaxBodyBytes)
	defer body.Close()
	bundles, err := bundle.NewParser(body).All()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.WriteError(w, errors.ErrBodyTooLarge)
			return
		}
		errors.WriteError(w, err)
		return
	}
	if len(bundles) == 0 {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("no realm bundles in body"))
		return
	}

	for _, b := range bundles {
		exists, err := realmExists(ctx, c.deps.Dir, b.Realm)
		if err != nil && !stderrors.Is(err, realm.ErrRealmNotFound) {
			errors.WriteError(w, err)
			return
		}
		if !c.deps.Gate.CanImport(p, urlRealm, b.Realm, exists) {
			log.Warn("import denied", logger.Subject(p.Subject), logger.String("bundle_realm", b.Realm), logger.Bool("exists", exists))
			audit.Log(ctx, audit.EventAccessDenied, p, logger.Realm(b.Realm), logger.Op("import"))
			errors.WriteError(w, realm.ErrUnauthorizedImport)
			return
		}
	}

	report, err := c.deps.Importer.ImportAll(ctx, bundles, strategy)
	if report == nil {
		errors.WriteError(w, err)
		return
	}
	audit.Imported(ctx, p, strategy.String(), report)
	if !c.deps.Gate.IsAdmin(p) {
		c.grantCreator(ctx, p, report)
	}
	if len(report.Results) == 1 {
		res := report.Results[0]
		switch {
		case res.Err != nil:
			errors.WriteError(w, res.Err)
			return
		case res.Outcome == importer.OutcomeCreated:
			w.Header().Set("Location", "/admin/realms/"+res.Realm)
			writeJSON(w, http.StatusCreated, report)
			return
		}
	}
	if err != nil {
		log.Warn("import finished with errors", logger.Err(err))
	}
	writeJSON(w, http.StatusOK, report)
}

// grantCreator le da al principal no-admin los roles de administración de
// los realms que acaba de crear. No falla el request: los realms ya están
// commiteados.
func (c *RealmController) grantCreator(ctx context.Context, p authz.Principal, report *importer.Report) {
	created := report.Created()
	if len(created) == 0 {
		return
	}
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RealmController.grantCreator"), logger.Subject(p.Subject))

	err := c.deps.Importer.GrantCreator(context.WithoutCancel(ctx), p.Subject, created)
	switch {
	case repository.IsNotFound(err):
		log.Warn("realm creator is not a user of the admin realm, no roles granted")
	case err != nil:
		log.Error("grant realm creator failed", logger.Err(err))
	default:
		for _, name := range created {
			audit.Log(ctx, audit.EventCreatorGrant, p, logger.Realm(name))
		}
	}
}

// realmExists devuelve (true, nil), o realm.ErrRealmNotFound si no existe.
func realmExists(ctx context.Context, dir repository.Directory, name string) (bool, error) {
	err := dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		_, err := tx.FindRealmByName(ctx, name)
		return err
	})
	if repository.IsNotFound(err) {
		return false, realm.ErrRealmNotFound
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
