package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"indor_desk/migrations"
	"indor_desk/platform/config"
	"indor_desk/platform/db"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			applied, err := db.RunMigrations(cmd.Context(), cfg, migrations.FS)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			return runMigrateStatus(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context) ([]db.MigrationStatus, error) {
				return db.MigrationStatuses(ctx, cfg, migrations.FS)
			})
		},
	})

	return cmd
}

func runMigrateStatus(ctx context.Context, out io.Writer, load func(context.Context) ([]db.MigrationStatus, error)) error {
	statuses, err := load(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, st := range statuses {
		state := color.New(color.FgGreen).Sprint("applied")
		if !st.Applied {
			state = color.New(color.FgYellow).Sprint("pending")
			pending++
		}
		fmt.Fprintf(out, "  %05d  %-8s %s\n", st.Version, state, filepath.Base(st.Source))
	}
	fmt.Fprintf(out, "%d migration(s), %d pending\n", len(statuses), pending)
	return nil
}
