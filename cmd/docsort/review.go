package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docsort/docsort/internal/cli"
	"github.com/docsort/docsort/internal/ledger"
	"github.com/docsort/docsort/internal/model"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review documents the pipeline was unsure about",
	}

	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewStartCmd())
	cmd.AddCommand(reviewStatsCmd())

	return cmd
}

func reviewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents waiting for review",
		RunE:  runReviewList,
	}
	cmd.Flags().Int("limit", 20, "maximum items to show")
	return cmd
}

func runReviewList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := buildApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.reviews.ListPending(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(cli.FormatSuccess("Review queue is empty."))
		return nil
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("%d documents waiting for review", len(items))))
	for _, item := range items {
		category := item.Result.PrimaryCategory
		if category == "" {
			category = "(none)"
		}
		fmt.Printf("  %s  %.2f  %-20s %s\n",
			item.DocumentID, item.Result.Confidence, category, item.OriginalPath)
	}
	return nil
}

func reviewStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an interactive review session",
		RunE:  runReviewStart,
	}
	cmd.Flags().String("reviewer", "", "reviewer name recorded on the session")
	cmd.Flags().Int("limit", 0, "stop after this many decisions (0 = until queue is empty)")
	return cmd
}

func runReviewStart(cmd *cobra.Command, _ []string) error {
	reviewer, _ := cmd.Flags().GetString("reviewer")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := buildApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	handler := cli.NewInterruptHandler(os.Stdout)
	ctx := handler.HandleInterrupts(cmd.Context())

	sessionID, err := a.reviews.StartSession(ctx, reviewer)
	if err != nil {
		return err
	}
	defer func() { _ = a.reviews.EndSession(ctx, sessionID) }()

	prompter := cli.NewReviewPrompter(os.Stdin, os.Stdout, a.taxonomy)
	decided := 0

	for limit <= 0 || decided < limit {
		items, listErr := a.reviews.ListPending(ctx, 1)
		if listErr != nil {
			return listErr
		}
		if len(items) == 0 {
			fmt.Println(cli.FormatSuccess("Review queue is empty. Well done!"))
			break
		}

		item, claimErr := a.reviews.Claim(ctx, items[0].DocumentID, sessionID)
		if claimErr != nil {
			if errors.Is(claimErr, ledger.ErrAlreadyClaimed) {
				continue
			}
			return claimErr
		}

		decision, promptErr := prompter.Prompt(ctx, item)
		if promptErr != nil {
			if errors.Is(promptErr, cli.ErrInputCancelled) {
				break
			}
			return promptErr
		}
		if decision.Quit {
			break
		}
		if decision.Skip {
			// Release the claim so another session can pick it up.
			if err := a.reviews.Requeue(ctx, item); err != nil {
				return err
			}
			continue
		}

		final, submitErr := a.reviews.Submit(ctx, &model.ReviewDecision{
			DocumentID: item.DocumentID,
			SessionID:  sessionID,
			Action:     decision.Action,
			Override:   decision.Override,
		})
		if submitErr != nil {
			fmt.Println(cli.FormatError(submitErr.Error()))
			continue
		}

		decided++
		switch decision.Action {
		case model.ReviewActionApprove:
			fmt.Println(cli.FormatSuccess("Approved as " + final.PrimaryCategory))
		case model.ReviewActionCorrect:
			fmt.Println(cli.FormatSuccess("Corrected to " + final.PrimaryCategory))
		case model.ReviewActionReject:
			fmt.Println(cli.FormatInfo("Rejected; document stays where it is."))
		}
	}

	stats, err := a.reviews.Stats(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	fmt.Println(cli.FormatInfo(fmt.Sprintf("Session: %d approved, %d corrected, %d rejected.",
		stats.Approved, stats.Corrected, stats.Rejected)))
	return nil
}

func reviewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show global review statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.reviews.Stats(cmd.Context(), "")
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle("Review statistics"))
			fmt.Printf("  Pending:         %d\n", stats.Pending)
			fmt.Printf("  Approved:        %d\n", stats.Approved)
			fmt.Printf("  Corrected:       %d\n", stats.Corrected)
			fmt.Printf("  Rejected:        %d\n", stats.Rejected)
			fmt.Printf("  Correction rate: %.0f%%\n", stats.CorrectionRate*100)
			return nil
		},
	}
}
