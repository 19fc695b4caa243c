package main

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/service/installer"
	"github.com/sandevgo/factbot/internal/storage/sqlite"
	"github.com/sandevgo/factbot/pkg/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:          "install",
	Short:        "Configure FactBot interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting installation process")

		state, err := installer.RunWizard(filepath.Join(config.GetRuntimePath(), ".env"))
		if err != nil {
			return err
		}

		// Load the new file so the app config sees the values
		if err := godotenv.Load(state.EnvPath); err != nil {
			logger.Warn().Err(err).Str("path", state.EnvPath).Msg("failed to load .env file")
		}

		// Create the database and run migrations now rather than on first start
		cfg := config.NewAppConfig(ctx)
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		logger.Info().Msgf("initialized runtime directory at: %s", cfg.GetRuntimePath())
		logger.Info().Msg("Installation complete! You can now run 'factbot start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
