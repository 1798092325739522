package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/realmport/internal/observability/logger"

	// Adapters del Directory Store, se registran en init().
	_ "github.com/dropDatabas3/realmport/internal/store/memory"
	_ "github.com/dropDatabas3/realmport/internal/store/pg"
)

var version = "dev"

func main() {
	// .env es opcional; en prod todo viene del entorno.
	_ = godotenv.Load()

	err := newRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	configPath := envOr("REALMPORT_CONFIG", "config/realmport.yaml")

	root := &cobra.Command{
		Use:           "realmport",
		Short:         "Import/export de realms (bundles JSON) contra el Directory Store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Archivo YAML de configuración (env REALMPORT_CONFIG)")

	root.AddCommand(
		serveCmd(&configPath),
		importCmd(&configPath),
		planCmd(&configPath),
		exportCmd(&configPath),
		migrateCmd(&configPath),
		tokenCmd(&configPath),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
