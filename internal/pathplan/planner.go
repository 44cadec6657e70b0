// Package pathplan maps a final classification to a destination path,
// plans link placements for non-primary labels, and resolves destination
// collisions. Planning is side-effect-free: nothing here creates
// directories or moves files.
package pathplan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
)

// Policy selects how destination collisions are resolved.
type Policy string

// Conflict resolution policies.
const (
	PolicySuffix    Policy = "suffix"
	PolicyTimestamp Policy = "timestamp"
)

// Options configures the planner. Loaded once at startup; read-only after.
type Options struct {
	BaseDir          string            `yaml:"base_path"`
	Template         string            `yaml:"template"`
	Mapping          map[string]string `yaml:"mapping"`
	ReviewDir        string            `yaml:"review_dir"`
	UncategorizedDir string            `yaml:"uncategorized_dir"`
	ConflictPolicy   Policy            `yaml:"conflict_resolution"`
	MaxPathLength    int               `yaml:"max_path_length"`
	MaxAttempts      int               `yaml:"max_attempts"`
}

// Validate checks the options at load time.
func (o *Options) Validate() error {
	if o.BaseDir == "" {
		return fmt.Errorf("%w: path planning base_path is required", common.ErrInvalidConfig)
	}
	switch o.ConflictPolicy {
	case PolicySuffix, PolicyTimestamp:
	default:
		return fmt.Errorf("%w: unknown conflict_resolution %q", common.ErrInvalidConfig, o.ConflictPolicy)
	}
	if o.MaxPathLength <= 0 {
		return fmt.Errorf("%w: max_path_length must be positive", common.ErrInvalidConfig)
	}
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// Checker answers whether a destination is free. Filesystem presence comes
// from the file-operations collaborator; ownership comes from the ledger's
// latest non-rolled-back claim on the path.
type Checker interface {
	Exists(path string) bool
	Owner(ctx context.Context, path string) (string, error)
}

// Planner plans destination paths for classified documents. It owns no
// durable state.
type Planner struct {
	checker Checker
	now     func() time.Time
	opts    Options
}

// NewPlanner creates a planner after validating its options.
func NewPlanner(opts Options, checker Checker) (*Planner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Planner{opts: opts, checker: checker, now: time.Now}, nil
}

// Plan maps a classification result to a path plan. Results that need
// review, or carry no category, plan into the staging directories instead
// of a category directory. Returns common.ErrConflictExhausted when no free
// destination exists within the attempt budget.
func (p *Planner) Plan(ctx context.Context, result *model.Result, originalPath string, meta map[string]string) (*model.PathPlan, error) {
	filename := filepath.Base(originalPath)

	plan := &model.PathPlan{OriginalPath: originalPath}

	var dir string
	switch {
	case result.Status == model.StatusNeedsReview:
		dir = filepath.Join(p.opts.BaseDir, p.opts.ReviewDir)
		plan.ReviewArea = true
	case result.PrimaryCategory == "":
		dir = filepath.Join(p.opts.BaseDir, p.opts.UncategorizedDir)
		plan.ReviewArea = true
	default:
		dir = filepath.Join(p.opts.BaseDir, p.categoryDir(result.PrimaryCategory), p.expandTemplate(result, originalPath, meta))
	}

	primary := FitPath(filepath.Join(dir, filename), p.opts.MaxPathLength)

	final, conflict, err := p.resolveConflict(ctx, primary, result.DocumentID)
	if err != nil {
		return nil, err
	}
	plan.PrimaryPath = final
	plan.Conflict = conflict

	if !plan.ReviewArea {
		plan.LinkPaths = p.planLinks(result, filepath.Base(final))
	}

	return plan, nil
}

// categoryDir looks up the explicit mapping override for a category, or
// falls back to the category name itself.
func (p *Planner) categoryDir(category string) string {
	if mapped, ok := p.opts.Mapping[category]; ok {
		return mapped
	}
	return category
}

func (p *Planner) expandTemplate(result *model.Result, originalPath string, meta map[string]string) string {
	now := p.now()
	vars := map[string]string{
		"category": result.PrimaryCategory,
		"year":     now.Format("2006"),
		"month":    now.Format("01"),
		"day":      now.Format("02"),
		"date":     now.Format("2006-01-02"),
		"ext":      trimDot(filepath.Ext(originalPath)),
	}
	for k, v := range meta {
		vars["meta."+k] = v
	}
	return filepath.FromSlash(common.ExpandTemplate(p.opts.Template, vars))
}

// planLinks places a reference under every non-primary tag's mapped
// directory, pointing at the primary path. Tags that landed in the primary
// dimension are already represented by the category itself.
func (p *Planner) planLinks(result *model.Result, filename string) []model.LinkPath {
	var links []model.LinkPath
	for _, tag := range result.Tags {
		if tag.Label == result.PrimaryCategory {
			continue
		}
		dir := tag.Label
		if mapped, ok := p.opts.Mapping[tag.Label]; ok {
			dir = mapped
		}
		links = append(links, model.LinkPath{
			Label: tag.Label,
			Path:  FitPath(filepath.Join(p.opts.BaseDir, dir, filename), p.opts.MaxPathLength),
		})
	}
	return links
}

// resolveConflict finds a free destination. A path conflicts when an entry
// already exists there that did not originate from this same logical
// document: either a ledger claim by another document, or a filesystem
// entry nobody in the ledger accounts for.
func (p *Planner) resolveConflict(ctx context.Context, path, documentID string) (string, *model.ConflictInfo, error) {
	conflictType, conflicted, err := p.conflicts(ctx, path, documentID)
	if err != nil {
		return "", nil, err
	}
	if !conflicted {
		return path, nil, nil
	}

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		candidate := FitPath(Variant(path, p.opts.ConflictPolicy, attempt, p.now()), p.opts.MaxPathLength)

		_, taken, cErr := p.conflicts(ctx, candidate, documentID)
		if cErr != nil {
			return "", nil, cErr
		}
		if !taken {
			return candidate, &model.ConflictInfo{
				Type:       conflictType,
				Resolution: string(p.opts.ConflictPolicy),
				FinalPath:  candidate,
			}, nil
		}
	}

	return "", nil, fmt.Errorf("%w: no free path for %s within %d attempts",
		common.ErrConflictExhausted, path, p.opts.MaxAttempts)
}

func trimDot(ext string) string {
	return strings.TrimPrefix(ext, ".")
}

func (p *Planner) conflicts(ctx context.Context, path, documentID string) (model.ConflictType, bool, error) {
	owner, err := p.checker.Owner(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("failed to check path ownership: %w", err)
	}
	if owner != "" {
		if owner == documentID {
			return "", false, nil
		}
		return model.ConflictClaimedPath, true, nil
	}
	if p.checker.Exists(path) {
		return model.ConflictExistingFile, true, nil
	}
	return "", false, nil
}
