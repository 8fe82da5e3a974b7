/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopdesk/apiserver/config"
	"github.com/shopdesk/apiserver/internal/db"
	"github.com/shopdesk/apiserver/internal/store/mongostore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrationsURL = "file://internal/db/migrations"

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	Long: `Applies the SQL migrations for DB_DRIVER=postgres and creates the
collection indexes for DB_DRIVER=mongo.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		switch cfg.Database.Driver {
		case config.DriverPostgres:
			return withMigrator(cfg, func(m *migrate.Migrate) error {
				if err := m.Up(); err != nil {
					if errors.Is(err, migrate.ErrNoChange) {
						logger.Info("migrations already applied")
						return nil
					}
					return fmt.Errorf("migrate up failed: %w", err)
				}
				logger.Info("migrations applied")
				return nil
			})
		case config.DriverMongo:
			client, err := mongostore.Connect(cmd.Context(), cfg.Database.MongoURI)
			if err != nil {
				return fmt.Errorf("connect mongodb: %w", err)
			}
			defer func() { _ = client.Disconnect(cmd.Context()) }()
			if err := mongostore.EnsureIndexes(cmd.Context(), client.Database(cfg.Database.MongoDatabase)); err != nil {
				return fmt.Errorf("ensure indexes failed: %w", err)
			}
			logger.Info("mongodb indexes ensured", zap.String("database", cfg.Database.MongoDatabase))
			return nil
		default:
			logger.Info("nothing to migrate", zap.String("driver", cfg.Database.Driver))
			return nil
		}
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.Database.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate down is only supported for %s", config.DriverPostgres)
		}
		return withMigrator(cfg, func(m *migrate.Migrate) error {
			if err := m.Steps(-1); err != nil {
				return fmt.Errorf("migrate down failed: %w", err)
			}
			logger.Info("rolled back one migration")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsURL, "source", migrationsURL, "migrations source URL")
}

func withMigrator(cfg config.Config, fn func(*migrate.Migrate) error) error {
	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()
	return fn(migrator)
}
