package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/config"
	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/lifecycle"
	"github.com/trellisdata/trellis/internal/logging"
	"github.com/trellisdata/trellis/internal/registry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Attribute migration commands",
	Long:  "Inspect and resume pending attribute migrations",
}

var migrateResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Re-run attribute renames that never applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		successColor := color.New(color.FgGreen, color.Bold)
		infoColor := color.New(color.FgCyan)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		eng := engine.New(db, logger)
		store := collection.NewStore(db)
		reg := registry.New(eng, logger)
		migrations := lifecycle.NewMigrationLog(db)
		lc := lifecycle.NewService(store, reg, eng, migrations, logger)

		if err := lc.Bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}

		applied, err := lc.ResumeMigrations(ctx)
		if err != nil {
			return err
		}

		if applied == 0 {
			infoColor.Println("No pending attribute migrations")
			return nil
		}
		successColor.Printf("Applied %d attribute migration(s)\n", applied)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List attribute migrations that have not applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		infoColor := color.New(color.FgCyan)
		warningColor := color.New(color.FgYellow, color.Bold)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		migrations := lifecycle.NewMigrationLog(db)
		if err := migrations.Initialize(ctx); err != nil {
			return err
		}

		unapplied, err := migrations.Unapplied(ctx)
		if err != nil {
			return err
		}

		if len(unapplied) == 0 {
			infoColor.Println("All attribute migrations applied")
			return nil
		}

		warningColor.Printf("%d attribute migration(s) pending:\n", len(unapplied))
		for _, m := range unapplied {
			fmt.Printf("  %s: %s -> %s (%s)\n", m.Collection, m.OldAttr, m.NewAttr, m.Status)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateResumeCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
