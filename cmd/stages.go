package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/yacht-qa-crawler/internal/publish"
	"github.com/JakeFAU/yacht-qa-crawler/internal/worker"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the built-in source list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Registry.Seed(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newBatchCmd() *cobra.Command {
	var req worker.BatchRequest
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Fetch due sources and store page snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Batch.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVar(&req.BatchSize, "batch-size", 0, "sources to fetch (0 uses pipeline.batch_size)")
	cmd.Flags().IntVar(&req.MaxTier, "max-tier", 0, "highest source tier to include (0 uses pipeline.max_tier)")
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	var req worker.DiscoverRequest
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Walk registered sites for same-domain pages and register them as sources",
		Long: "Walks each allowed source up to pipeline.discover_depth link hops, stores every " +
			"fetched page as a snapshot under a discover run id, and registers discovered " +
			"article links one tier below their root. Robots rules and the per-domain delay apply.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Discover.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVar(&req.MaxTier, "max-tier", 0, "highest root tier to walk (0 uses pipeline.max_tier)")
	cmd.Flags().StringVar(&req.Domain, "domain", "", "only walk sources on this domain")
	cmd.Flags().IntVar(&req.Roots, "roots", 0, "maximum roots to walk (0 walks all)")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var req worker.ExtractRequest
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract and gate Q&A candidates from pending pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Extract.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "only process pages from this batch run")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "pages to process (0 uses pipeline.extract_limit)")
	return cmd
}

func addFilterFlags(cmd *cobra.Command, f *publish.Filter) {
	cmd.Flags().Float64Var(&f.MinConfidence, "min-confidence", f.MinConfidence, "minimum candidate confidence")
	cmd.Flags().StringSliceVar(&f.Tags, "tags", nil, "require at least one of these tags")
	cmd.Flags().BoolVar(&f.NoFlags, "no-flags", false, "skip candidates carrying quality flags")
}

func newPublishCmd() *cobra.Command {
	var req worker.PublishRequest
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Promote approved candidates into published entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Publish.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	addFilterFlags(cmd, &req.Filter)
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "preview without writing entries")
	return cmd
}

func newPipelineCmd() *cobra.Command {
	var req worker.BatchRequest
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run batch, extract and publish in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Pipeline.Run(cmd.Context(), req)
			if perr := printJSON(cmd, res); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&req.BatchSize, "batch-size", 0, "sources to fetch (0 uses pipeline.batch_size)")
	cmd.Flags().IntVar(&req.MaxTier, "max-tier", 0, "highest source tier to include (0 uses pipeline.max_tier)")
	return cmd
}
