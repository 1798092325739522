package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/realmport/internal/authz"
	"github.com/dropDatabas3/realmport/internal/config"
	"github.com/dropDatabas3/realmport/internal/http/controllers"
	"github.com/dropDatabas3/realmport/internal/http/router"
	jwtx "github.com/dropDatabas3/realmport/internal/jwt"
	"github.com/dropDatabas3/realmport/internal/metrics"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/rate"
)

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP de import/export",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, ctx, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Dirección de escucha (default server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.log.With(logger.Component("cmd.serve"))

	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	limiter, err := rate.New(rate.Config{
		Kind:      cfg.Import.Lock.Kind,
		Max:       cfg.Import.RateLimit.Max,
		Window:    cfg.Import.RateLimit.Window,
		RedisAddr: cfg.Redis.Addr,
		RedisDB:   cfg.Redis.DB,
		Prefix:    cfg.Redis.Prefix,
	})
	if err != nil {
		return err
	}
	if r, ok := limiter.(*rate.Redis); ok {
		defer func() { _ = r.Close() }()
	}

	gate := authz.New(cfg.Realms.AdminRealm)
	handler := router.New(router.Deps{
		Dir:    a.dir,
		Issuer: issuer,
		Realms: controllers.NewRealmController(controllers.RealmDeps{
			Dir:             a.dir,
			Gate:            gate,
			Exporter:        a.exporter,
			Importer:        a.importer,
			DefaultStrategy: a.strategy,
			MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		}),
		AdminImport: &controllers.AdminImportController{
			Gate:            gate,
			Importer:        a.importer,
			Cache:           a.cache,
			DefaultStrategy: a.strategy,
			AllowedDir:      cfg.Import.AllowedDir,
		},
		Health:        &controllers.HealthController{Dir: a.dir, Driver: cfg.Storage.Driver, Version: version},
		Gatherer:      reg,
		ImportLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("storage", cfg.Storage.Driver),
			logger.String("admin_realm", cfg.Realms.AdminRealm),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newIssuer arma el Issuer; sin issuer_base usa la dirección local.
func newIssuer(cfg *config.Config) (*jwtx.Issuer, error) {
	if cfg.JWT.SigningKey == "" {
		return nil, errors.New("jwt.signing_key es requerido (env JWT_SIGNING_KEY)")
	}
	base := cfg.JWT.IssuerBase
	if base == "" {
		base = "http://localhost" + cfg.Server.Addr
		if !strings.HasPrefix(cfg.Server.Addr, ":") {
			base = "http://" + cfg.Server.Addr
		}
	}
	return jwtx.NewIssuer(base, []byte(cfg.JWT.SigningKey))
}
