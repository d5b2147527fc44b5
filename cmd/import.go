package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/yacht-qa-crawler/internal/importer"
)

func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load curated Q&A rows straight into published entries",
		Long: `Reads a CSV with question and answer columns (optional tags and
source_url) and writes the rows as published entries. Imported rows skip
review, so use --dry-run to check the file first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer func() { _ = f.Close() }()

			rows, err := importer.ParseCSV(f)
			if err != nil {
				return err
			}
			res, err := app.Importer.Import(cmd.Context(), rows, dryRun)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and preview without writing")
	return cmd
}
