package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docsort/docsort/internal/model"
)

// Decision is what the reviewer chose for one queued document. Skip and
// Quit leave the item claimed-free for a later session.
type Decision struct {
	Override *model.Result
	Action   model.ReviewAction
	Skip     bool
	Quit     bool
}

// ReviewPrompter walks a reviewer through queued documents one at a time.
type ReviewPrompter struct {
	writer   io.Writer
	reader   *NonBlockingReader
	taxonomy model.Taxonomy
}

// NewReviewPrompter creates a prompter. Nil reader/writer default to the
// process's stdin/stdout.
func NewReviewPrompter(reader io.Reader, writer io.Writer, taxonomy model.Taxonomy) *ReviewPrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &ReviewPrompter{
		reader:   NewNonBlockingReader(reader),
		writer:   writer,
		taxonomy: taxonomy,
	}
}

// Prompt shows one review item and collects the reviewer's decision.
func (p *ReviewPrompter) Prompt(ctx context.Context, item *model.ReviewItem) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	if _, err := fmt.Fprintln(p.writer, RenderBox("Document Review", p.formatItem(item))); err != nil {
		return Decision{}, fmt.Errorf("failed to write review box: %w", err)
	}

	options := []string{
		"  [A] Approve suggested classification",
		"  [C] Correct category and tags",
		"  [R] Reject (leave document where it is)",
		"  [S] Skip for now",
		"  [Q] Quit review session",
	}
	if _, err := fmt.Fprintln(p.writer, strings.Join(options, "\n")); err != nil {
		return Decision{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice", []string{"a", "c", "r", "s", "q"})
	if err != nil {
		return Decision{}, err
	}

	switch choice {
	case "a":
		return Decision{Action: model.ReviewActionApprove}, nil
	case "c":
		override, overrideErr := p.promptCorrection(ctx, item)
		if overrideErr != nil {
			return Decision{}, overrideErr
		}
		return Decision{Action: model.ReviewActionCorrect, Override: override}, nil
	case "r":
		return Decision{Action: model.ReviewActionReject}, nil
	case "s":
		return Decision{Skip: true}, nil
	default:
		return Decision{Quit: true}, nil
	}
}

func (p *ReviewPrompter) formatItem(item *model.ReviewItem) string {
	result := &item.Result

	lines := []string{
		fmt.Sprintf("Document:   %s", item.DocumentID),
		fmt.Sprintf("File:       %s", item.OriginalPath),
		fmt.Sprintf("Category:   %s", orNone(result.PrimaryCategory)),
		fmt.Sprintf("Confidence: %s", p.formatConfidence(result.Confidence)),
	}
	if len(result.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("Tags:       %s", strings.Join(result.TagLabels(), ", ")))
	}
	if len(result.RulesApplied) > 0 {
		lines = append(lines, SubtleStyle.Render(fmt.Sprintf("Trace:      %s", strings.Join(result.RulesApplied, ", "))))
	}
	return strings.Join(lines, "\n")
}

func (p *ReviewPrompter) formatConfidence(confidence float64) string {
	text := fmt.Sprintf("%.2f", confidence)
	switch {
	case confidence >= 0.8:
		return SuccessStyle.Render(text)
	case confidence >= 0.5:
		return WarningStyle.Render(text)
	default:
		return ErrorStyle.Render(text)
	}
}

// promptCorrection collects a replacement category and tag list. Labels the
// taxonomy does not know are refused so corrections cannot invent labels.
func (p *ReviewPrompter) promptCorrection(ctx context.Context, item *model.ReviewItem) (*model.Result, error) {
	primary := p.taxonomy.Dimension(p.taxonomy.Primary)
	if primary != nil {
		if _, err := fmt.Fprintln(p.writer, SubtleStyle.Render("Categories: "+strings.Join(primary.Labels, ", "))); err != nil {
			return nil, fmt.Errorf("failed to write categories: %w", err)
		}
	}

	category, err := p.promptLabel(ctx, "New category", primary)
	if err != nil {
		return nil, err
	}

	if _, err := fmt.Fprintln(p.writer, FormatPrompt("Tags (comma separated, empty keeps current)")); err != nil {
		return nil, fmt.Errorf("failed to write tag prompt: %w", err)
	}
	line, err := p.reader.ReadLine(ctx)
	if err != nil {
		return nil, err
	}

	override := item.Result.Clone()
	override.PrimaryCategory = category
	override.Confidence = 1.0

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		override.Tags = nil
		for _, label := range strings.Split(trimmed, ",") {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			dim := p.taxonomy.DimensionOf(label)
			if dim == "" {
				if _, wErr := fmt.Fprintln(p.writer, FormatWarning("Unknown label dropped: "+label)); wErr != nil {
					return nil, fmt.Errorf("failed to write warning: %w", wErr)
				}
				continue
			}
			override.Tags = append(override.Tags, model.Tag{
				Dimension:  dim,
				Label:      label,
				Confidence: 1.0,
			})
		}
	}

	return &override, nil
}

// promptLabel reads a label and validates it against a dimension when one
// is available.
func (p *ReviewPrompter) promptLabel(ctx context.Context, prompt string, dim *model.Dimension) (string, error) {
	for {
		if _, err := fmt.Fprintln(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if dim != nil && !dim.Contains(line) {
			if _, wErr := fmt.Fprintln(p.writer, FormatWarning("Not a known category: "+line)); wErr != nil {
				return "", fmt.Errorf("failed to write warning: %w", wErr)
			}
			continue
		}
		return line, nil
	}
}

func (p *ReviewPrompter) promptChoice(ctx context.Context, prompt string, valid []string) (string, error) {
	for {
		if _, err := fmt.Fprintln(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(strings.TrimSpace(line))
		for _, v := range valid {
			if choice == v {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning("Please choose one of: "+strings.Join(valid, ", "))); err != nil {
			return "", fmt.Errorf("failed to write warning: %w", err)
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return SubtleStyle.Render("(none)")
	}
	return s
}
