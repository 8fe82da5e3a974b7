/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopdesk/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the shopdesk API server",
	Long: `Starts the shopdesk API server. Usage:

	shopdesk server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := server.NewApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to start server", zap.Error(err))
			return err
		}
		srv := server.New(app)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err = <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, srv.Shutdown(shutdownCtx))
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
