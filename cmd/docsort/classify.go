package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/docsort/docsort/internal/cli"
	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/config"
	"github.com/docsort/docsort/internal/engine"
	"github.com/docsort/docsort/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <evidence.json>",
		Short: "Classify documents and move them into the taxonomy",
		Long: `Run a batch of documents through the decision pipeline.

The input file holds a JSON array of evidence objects produced by the
upstream extraction tooling: document attributes, retrieval candidates,
and an optional model verdict. High-confidence documents are moved and
ledgered; uncertain ones are queued for review.`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().Bool("dry-run", false, "plan destinations without moving or recording anything")
	cmd.Flags().Int("workers", 0, "override the configured worker count")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	workers, _ := cmd.Flags().GetInt("workers")

	documents, err := loadEvidence(args[0])
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		fmt.Println(cli.FormatInfo("Nothing to classify."))
		return nil
	}

	a, err := buildApp(cmd.Context(), func(cfg *config.Config) {
		cfg.DryRun = dryRun
		if workers > 0 {
			cfg.Workers = workers
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Classifying %d documents", len(documents))))

	bar := progressbar.NewOptions(len(documents),
		progressbar.OptionSetDescription("classifying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	counts := make(map[engine.Disposition]int)
	var failures []engine.Outcome

	err = a.engine.ProcessBatch(cmd.Context(), documents, func(outcome engine.Outcome) {
		_ = bar.Add(1)
		counts[outcome.Disposition]++
		if outcome.Err != nil {
			failures = append(failures, outcome)
		}
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	printSummary(counts, dryRun)
	for _, f := range failures {
		msg := fmt.Sprintf("%s: %v", f.DocumentID, f.Err)
		if common.IsRetryable(f.Err) {
			msg += " (transient, rerun to retry)"
		}
		fmt.Println(cli.FormatError(msg))
	}
	return nil
}

func loadEvidence(path string) ([]model.Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewUserError("could not read evidence file "+path, err)
	}

	var documents []model.Evidence
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, common.NewUserError("evidence file is not a JSON array of documents", err)
	}
	return documents, nil
}

func printSummary(counts map[engine.Disposition]int, dryRun bool) {
	if dryRun {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d destinations planned, nothing moved.",
			counts[engine.DispositionPlanned])))
		return
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Moved: %d", counts[engine.DispositionMoved])))
	if n := counts[engine.DispositionReview]; n > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Queued for review: %d", n)))
	}
	if n := counts[engine.DispositionRejected]; n > 0 {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Rejected (left in place): %d", n)))
	}
	if n := counts[engine.DispositionFailed]; n > 0 {
		fmt.Println(cli.FormatError(fmt.Sprintf("Failed: %d", n)))
	}
}
