package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
)

type HealthResponse struct {
	Status  string `json:"status"` // ready | unavailable
	Storage string `json:"storage"`
	Realms  int    `json:"realms"`
	Version string `json:"version,omitempty"`
}

type HealthController struct {
	Dir     repository.Directory
	Driver  string
	Version string
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready", Storage: c.Driver, Version: c.Version}
	err := c.Dir.Tx(ctx, func(tx repository.DirectoryTx) error {
		realms, err := tx.ListRealms(ctx)
		resp.Realms = len(realms)
		return err
	})
	status := http.StatusOK
	if err != nil {
		log.Warn("storage not ready", logger.Err(err))
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if resp.Version != "" {
		w.Header().Set("X-Service-Version", resp.Version)
	}
	writeJSON(w, status, resp)
}
