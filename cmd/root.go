/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/shopdesk/apiserver/config"
	"github.com/shopdesk/apiserver/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shopdesk",
	Short: "Admin API for the shopdesk product catalog",
	Long: `shopdesk serves the account and catalog API, runs the background
media worker and applies database migrations. Usage:

	shopdesk server
	shopdesk worker
	shopdesk migrate up
	shopdesk admin create --username root --email root@example.com --password ...
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads the environment and builds the process logger.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
