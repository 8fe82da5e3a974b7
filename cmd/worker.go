/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/shopdesk/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd consumes deferred media cleanup jobs.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume media cleanup jobs",
	Long: `Deletes stored images released by catalog updates and deletions.
Requires MQ_BACKEND and STORAGE_BACKEND to be configured. Usage:

	shopdesk worker
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
			return err
		}
		defer func() { _ = app.Close() }()

		if app.Queue == nil {
			return errors.New("worker requires a message queue backend")
		}
		if !app.Media.Enabled() {
			return errors.New("worker requires a storage backend")
		}

		channel := cfg.MQ.MediaCleanupChannel
		logger.Info("worker consuming", zap.String("channel", channel))
		if err := app.Queue.Subscribe(ctx, channel, app.MediaSvc.HandleCleanup); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
