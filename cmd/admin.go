/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/shopdesk/apiserver/internal/server"
	"github.com/shopdesk/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adminInput types.RegisterInput

// adminCmd groups operator commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		app, err := server.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		in := adminInput
		in.Role = types.RoleAdmin
		result, err := app.Accounts.Register(cmd.Context(), in)
		if err != nil {
			return err
		}
		logger.Info("admin created", zap.String("user_id", result.User.ID), zap.String("email", result.User.Email))
		fmt.Fprintln(cmd.OutOrStdout(), result.Token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminInput.Username, "username", "", "administrator username")
	adminCreateCmd.Flags().StringVar(&adminInput.Email, "email", "", "administrator email")
	adminCreateCmd.Flags().StringVar(&adminInput.Password, "password", "", "administrator password")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
}
