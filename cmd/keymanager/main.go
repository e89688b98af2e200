package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/app"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := rootCmd().ExecuteContext(ctx); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	var logLevel string
	root := &cobra.Command{
		Use:           "keymanager",
		Short:         "Credential manager for provider and gateway API keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, errLevel := log.ParseLevel(logLevel)
			if errLevel != nil {
				return errLevel
			}
			log.SetLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (or env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	loadConfig := func() (config.AppConfig, error) {
		appCfg, err := config.LoadFromEnv()
		if err != nil {
			return config.AppConfig{}, err
		}
		if strings.TrimSpace(cfgPath) != "" {
			appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
		}
		return appCfg, nil
	}

	root.AddCommand(serveCmd(loadConfig), migrateCmd(loadConfig), importCmd(loadConfig))
	return root
}

func serveCmd(loadConfig func() (config.AppConfig, error)) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API and the gateway config syncer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				if errValidate := validatePort(port); errValidate != nil {
					return errValidate
				}
			}
			appCfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.RunServer(cmd.Context(), appCfg, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides server.port")
	return cmd
}

func migrateCmd(loadConfig func() (config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := loadConfig()
			if err != nil {
				return err
			}
			if errMigrate := app.Migrate(cmd.Context(), appCfg); errMigrate != nil {
				return errMigrate
			}
			log.Info("migration completed")
			return nil
		},
	}
}

func importCmd(loadConfig func() (config.AppConfig, error)) *cobra.Command {
	var params app.ImportParams
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import provider keys for a user from a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, errImport := app.Import(cmd.Context(), appCfg, params)
			if errImport != nil {
				return errImport
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d keys (%d failed)\n", result.Success, result.Total, result.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&params.UserID, "user", "", "owner user id")
	cmd.Flags().StringVar(&params.Provider, "provider", "", "provider name or alias")
	cmd.Flags().StringVar(&params.File, "file", "", "CSV file path")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
