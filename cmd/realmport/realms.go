package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm/bundle"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
	"github.com/dropDatabas3/realmport/internal/util/atomicwrite"
)

func importCmd(configPath *string) *cobra.Command {
	var file, strategy string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Importa un archivo de bundles (objeto o array JSON)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file es requerido")
			}
			a, ctx, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.strategyOr(strategy)
			if err != nil {
				return err
			}
			bundles, err := bundle.NewFileSource(file).Bundles()
			if err != nil {
				return err
			}
			report, err := a.importer.ImportAll(ctx, bundles, st)
			if report == nil {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			a.log.Info("import finished",
				logger.Component("cmd.import"),
				logger.Strategy(st.String()),
				logger.Int("created", report.Count(importer.OutcomeCreated)),
				logger.Int("replaced", report.Count(importer.OutcomeReplaced)),
				logger.Int("skipped", report.Count(importer.OutcomeSkipped)),
				logger.Int("failed", report.Count(importer.OutcomeFailed)),
			)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Archivo JSON con uno o más bundles")
	cmd.Flags().StringVar(&strategy, "strategy", "", "FAIL | IGNORE_EXISTING | OVERWRITE_EXISTING (default import.strategy)")
	return cmd
}

func planCmd(configPath *string) *cobra.Command {
	var file, strategy string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Muestra qué haría import sin escribir nada",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file es requerido")
			}
			a, ctx, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.strategyOr(strategy)
			if err != nil {
				return err
			}
			bundles, err := bundle.NewFileSource(file).Bundles()
			if err != nil {
				return err
			}
			items, err := a.importer.Plan(ctx, bundles, st)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Archivo JSON con uno o más bundles")
	cmd.Flags().StringVar(&strategy, "strategy", "", "FAIL | IGNORE_EXISTING | OVERWRITE_EXISTING (default import.strategy)")
	return cmd
}

func exportCmd(configPath *string) *cobra.Command {
	var name, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exporta un realm completo (con credenciales) a stdout o a un archivo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--realm es requerido")
			}
			a, ctx, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.exporter.Export(ctx, name)
			if err != nil {
				return fmt.Errorf("export %s: %w", name, err)
			}
			if out == "" || out == "-" {
				return printJSON(cmd.OutOrStdout(), b)
			}
			// el bundle lleva secretos de credenciales
			if err := atomicwrite.WriteFunc(out, 0o600, func(w io.Writer) error {
				return printJSON(w, b)
			}); err != nil {
				return err
			}
			a.log.Info("realm exported", logger.Component("cmd.export"), logger.Realm(name), logger.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "realm", "", "Nombre del realm")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Archivo destino (default stdout)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
