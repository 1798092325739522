package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/store/pg"
	migrations "github.com/dropDatabas3/realmport/migrations/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de PostgreSQL pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requiere storage.driver=postgres (actual %q)", cfg.Storage.Driver)
			}
			ctx := logger.ToContext(cmd.Context(), logger.L())
			log := logger.L().With(logger.Component("cmd.migrate"))

			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pg: create pool: %w", err)
			}
			defer pool.Close()

			res, err := pg.NewMigrator(migrations.PostgresFS, migrations.PostgresDir).Run(ctx, pool)
			if res != nil {
				log.Info("migrations",
					logger.Int("applied", len(res.Applied)),
					logger.Int("skipped", len(res.Skipped)),
					logger.Duration(res.Duration),
				)
			}
			return err
		},
	}
}

func tokenCmd(configPath *string) *cobra.Command {
	var realm, sub, roles, client string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un access token firmado con jwt.signing_key (dev/ops)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if realm == "" || sub == "" {
				return errors.New("--realm y --sub son requeridos")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			issuer, err := newIssuer(cfg)
			if err != nil {
				return err
			}
			if ttl > 0 {
				issuer.AccessTTL = ttl
			}
			var extra map[string]any
			if client != "" {
				extra = map[string]any{"azp": client}
			}
			tok, exp, err := issuer.IssueAccess(realm, sub, splitCSV(roles), extra)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			logger.L().Debug("token issued",
				logger.Realm(realm), logger.Subject(sub), logger.String("expires", exp.Format(time.RFC3339)))
			return nil
		},
	}
	cmd.Flags().StringVar(&realm, "realm", "", "Realm emisor (admin realm para operar la API)")
	cmd.Flags().StringVar(&sub, "sub", "", "Subject del token")
	cmd.Flags().StringVar(&roles, "roles", "admin", "Roles de realm separados por coma")
	cmd.Flags().StringVar(&client, "client", "", "Client emisor (claim azp); debe existir en el realm")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Vida del token (default 15m)")
	return cmd
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
