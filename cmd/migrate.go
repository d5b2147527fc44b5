package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	pgstore "github.com/JakeFAU/yacht-qa-crawler/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "Manage the Postgres schema",
		Annotations: map[string]string{skipAppAnnotation: "true"},
	}
	cmd.AddCommand(
		newMigrateStepCmd(pgstore.Up, "Apply all pending migrations"),
		newMigrateStepCmd(pgstore.Down, "Roll back all migrations"),
		&cobra.Command{
			Use:         "version",
			Short:       "Print the applied schema version",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipAppAnnotation: "true"},
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := resolveConfig(cmd.Context())
				if err != nil {
					return err
				}
				v, dirty, err := pgstore.Version(cfg.DB.DSN)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"version": v, "dirty": dirty})
			},
		},
	)
	return cmd
}

func newMigrateStepCmd(dir pgstore.Direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:         dir.String(),
		Short:       short,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipAppAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			if err := pgstore.Migrate(cfg.DB.DSN, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: ok\n", dir)
			return nil
		},
	}
}
