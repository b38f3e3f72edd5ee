package main

import (
	"context"
	"fmt"
	"io"

	"indor_desk/internal/workflow/repository"
	"indor_desk/platform/config"
	"indor_desk/platform/db"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type catalogLister interface {
	ListCatalog(ctx context.Context, includeInactive bool) ([]repository.StageWithActivities, error)
}

func newStagesCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Print the stage catalog with its activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			pool, err := db.NewPool(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			return runStages(cmd.Context(), cmd.OutOrStdout(), repository.New(pool), !activeOnly)
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only show active stages")
	return cmd
}

func runStages(ctx context.Context, out io.Writer, lister catalogLister, includeInactive bool) error {
	stages, err := lister.ListCatalog(ctx, includeInactive)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		fmt.Fprintln(out, "no stages configured")
		return nil
	}

	for _, st := range stages {
		flag := color.New(color.FgGreen).Sprint("active")
		if !st.IsActive {
			flag = color.New(color.FgRed).Sprint("inactive")
		}
		fmt.Fprintf(out, "%2d. %s [%s]\n", st.OrderIndex, st.Name, flag)

		for _, a := range st.Activities {
			kind := "optional"
			if a.IsRequired {
				kind = color.New(color.FgCyan).Sprint("required")
			}
			fmt.Fprintf(out, "      - %s (%s, %d profile(s))\n", a.Name, kind, len(a.AllowedProfiles))
		}
	}
	return nil
}
