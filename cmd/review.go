package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/yacht-qa-crawler/internal/review"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and act on review candidates",
	}
	cmd.AddCommand(
		newReviewActionCmd(review.ActionApprove, "Approve a pending candidate and publish it"),
		newReviewActionCmd(review.ActionReject, "Reject a pending candidate"),
		newReviewActionCmd(review.ActionEdit, "Rewrite a pending candidate; it stays pending"),
		newReviewShowCmd(),
	)
	return cmd
}

func newReviewActionCmd(action, short string) *cobra.Command {
	req := review.Request{Action: action}
	cmd := &cobra.Command{
		Use:   action + " <candidate-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCandidateID(args[0])
			if err != nil {
				return err
			}
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			req.CandidateID = id
			out, err := app.Review.Apply(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&req.Reason, "reason", "", "audit reason")
	if action == review.ActionEdit {
		cmd.Flags().StringVar(&req.EditedQuestion, "question", "", "replacement question")
		cmd.Flags().StringVar(&req.EditedAnswer, "answer", "", "replacement answer")
	}
	return cmd
}

func newReviewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <candidate-id>",
		Short: "Print a candidate with its review history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCandidateID(args[0])
			if err != nil {
				return err
			}
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			detail, err := app.Review.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, detail)
		},
	}
}

func parseCandidateID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid candidate id %q", raw)
	}
	return id, nil
}
