package controllers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dropDatabas3/realmport/internal/audit"
	"github.com/dropDatabas3/realmport/internal/authz"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/http/errors"
	mw "github.com/dropDatabas3/realmport/internal/http/middlewares"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm"
	"github.com/dropDatabas3/realmport/internal/realm/bundle"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
)

// ImportFileRequest es el body de /admin/import/plan y /admin/import/apply.
type ImportFileRequest struct {
	Path     string `json:"path"`
	Strategy string `json:"strategy,omitempty"`
}

type PlanResponse struct {
	Path     string              `json:"path"`
	Strategy string              `json:"strategy"`
	Items    []importer.PlanItem `json:"items"`
}

// AdminImportController importa archivos locales del servidor. plan y apply
// comparten el parseo a través de bundle.Cache.
type AdminImportController struct {
	Gate            *authz.Gate
	Importer        *importer.Orchestrator
	Cache           *bundle.Cache
	DefaultStrategy types.Strategy
	// AllowedDir, si no es vacío, es el único directorio desde el que se leen archivos.
	AllowedDir string
}

// Plan maneja POST /admin/import/plan
func (c *AdminImportController) Plan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AdminImportController.Plan"))

	req, bundles, strategy, ok := c.load(w, r)
	if !ok {
		return
	}
	items, err := c.Importer.Plan(ctx, bundles, strategy)
	if err != nil {
		log.Error("plan failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{Path: req.Path, Strategy: strategy.String(), Items: items})
}

// Apply maneja POST /admin/import/apply
func (c *AdminImportController) Apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AdminImportController.Apply"))

	_, bundles, strategy, ok := c.load(w, r)
	if !ok {
		return
	}
	report, err := c.Importer.ImportAll(ctx, bundles, strategy)
	if report == nil {
		errors.WriteError(w, err)
		return
	}
	if p, ok := mw.GetPrincipal(ctx); ok {
		audit.Imported(ctx, p, strategy.String(), report)
	}
	if err != nil {
		log.Warn("import finished with errors", logger.Err(err))
	}
	writeJSON(w, http.StatusOK, report)
}

func (c *AdminImportController) load(w http.ResponseWriter, r *http.Request) (ImportFileRequest, []types.RealmBundle, types.Strategy, bool) {
	var req ImportFileRequest

	p, ok := mw.GetPrincipal(r.Context())
	if !ok {
		errors.WriteError(w, errors.ErrUnauthorized)
		return req, nil, "", false
	}
	if !c.Gate.IsAdmin(p) {
		errors.WriteError(w, realm.ErrUnauthorizedImport)
		return req, nil, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.ErrInvalidJSON)
		return req, nil, "", false
	}
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("path is required"))
		return req, nil, "", false
	}
	if !c.allowed(req.Path) {
		errors.WriteError(w, errors.ErrForbidden.WithDetail("path outside allowed import directory"))
		return req, nil, "", false
	}

	strategy := c.DefaultStrategy
	if req.Strategy != "" {
		s, err := types.ParseStrategy(req.Strategy)
		if err != nil {
			errors.WriteError(w, errors.ErrInvalidParameter.WithDetail(err.Error()))
			return req, nil, "", false
		}
		strategy = s
	}

	bundles, err := c.Cache.Load(req.Path)
	if os.IsNotExist(err) {
		errors.WriteError(w, errors.ErrNotFound.WithDetail("import file not found"))
		return req, nil, "", false
	}
	if err != nil {
		errors.WriteError(w, err)
		return req, nil, "", false
	}
	return req, bundles, strategy, true
}

func (c *AdminImportController) allowed(path string) bool {
	if c.AllowedDir == "" {
		return true
	}
	base, err := filepath.Abs(c.AllowedDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
