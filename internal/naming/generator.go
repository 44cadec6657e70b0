// Package naming derives destination filenames from templates, document
// titles, and the classification result.
package naming

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/pathplan"
)

// Options configures filename generation. Loaded once at startup.
type Options struct {
	DefaultTemplate    string            `yaml:"default_template"`
	CategoryTemplates  map[string]string `yaml:"category_templates"`
	ExtensionTemplates map[string]string `yaml:"extension_templates"`
	InvalidChars       string            `yaml:"invalid_chars"`
	Replacement        string            `yaml:"replacement_char"`
	ConflictPolicy     pathplan.Policy   `yaml:"conflict_resolution"`
	MaxFilenameLength  int               `yaml:"max_filename_length"`
	TitleMaxLength     int               `yaml:"title_max_length"`
	MaxAttempts        int               `yaml:"max_attempts"`
}

// Validate checks the options at load time.
func (o *Options) Validate() error {
	if o.DefaultTemplate == "" {
		return fmt.Errorf("%w: naming default_template is required", common.ErrInvalidConfig)
	}
	if o.MaxFilenameLength <= 0 {
		return fmt.Errorf("%w: max_filename_length must be positive", common.ErrInvalidConfig)
	}
	switch o.ConflictPolicy {
	case pathplan.PolicySuffix, pathplan.PolicyTimestamp:
	default:
		return fmt.Errorf("%w: unknown conflict_resolution %q", common.ErrInvalidConfig, o.ConflictPolicy)
	}
	if o.InvalidChars != "" {
		if _, err := regexp.Compile(o.InvalidChars); err != nil {
			return fmt.Errorf("%w: invalid_chars is not a valid pattern: %w", common.ErrInvalidConfig, err)
		}
	}
	return nil
}

// Name is the outcome of filename generation. FinalPath is the plan's
// primary path with the generated filename applied and conflicts resolved.
type Name struct {
	Filename     string
	TemplateUsed string
	FinalPath    string
}

// Generator produces destination filenames. Owns no durable state; consults
// the same conflict checker as the path planner.
type Generator struct {
	checker pathplan.Checker
	invalid *regexp.Regexp
	now     func() time.Time
	opts    Options
}

// NewGenerator creates a generator after validating its options.
func NewGenerator(opts Options, checker pathplan.Checker) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.TitleMaxLength <= 0 {
		opts.TitleMaxLength = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 100
	}

	g := &Generator{opts: opts, checker: checker, now: time.Now}
	if opts.InvalidChars != "" {
		g.invalid = regexp.MustCompile(opts.InvalidChars)
	}
	return g, nil
}

// Generate derives the destination filename for a planned move. Unknown
// template variables expand to empty strings; a template that expands to
// nothing falls back to the original filename.
func (g *Generator) Generate(ctx context.Context, plan *model.PathPlan, attrs map[string]string, result *model.Result) (Name, error) {
	originalName := filepath.Base(plan.OriginalPath)
	ext := filepath.Ext(originalName)

	template, templateKey := g.selectTemplate(result.PrimaryCategory, ext)
	title := g.resolveTitle(attrs, originalName)

	filename := common.ExpandTemplate(template, g.templateVars(result, attrs, title, ext))
	filename = g.sanitize(filename)

	if strings.Trim(filename, "._- ") == "" {
		filename = originalName
	}
	if filepath.Ext(filename) == "" && ext != "" {
		filename += ext
	}

	filename = pathplan.FitFilename(filename, g.opts.MaxFilenameLength)

	finalPath, err := g.resolveConflict(ctx, filepath.Join(filepath.Dir(plan.PrimaryPath), filename), result.DocumentID)
	if err != nil {
		return Name{}, err
	}

	return Name{
		Filename:     filepath.Base(finalPath),
		TemplateUsed: templateKey,
		FinalPath:    finalPath,
	}, nil
}

// selectTemplate picks the most specific template: exact category, then
// file extension, then the default.
func (g *Generator) selectTemplate(category, ext string) (template, key string) {
	if t, ok := g.opts.CategoryTemplates[category]; ok {
		return t, "category:" + category
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if t, ok := g.opts.ExtensionTemplates[ext]; ok {
		return t, "extension:" + ext
	}
	return g.opts.DefaultTemplate, "default"
}

// resolveTitle picks the document title: an explicitly extracted title
// first, an externally generated one second, the original filename stem
// last. Extracted titles are bounded to the first non-empty line.
func (g *Generator) resolveTitle(attrs map[string]string, originalName string) string {
	if t := firstLine(attrs[model.AttrTitle]); t != "" {
		return truncateRunes(t, g.opts.TitleMaxLength)
	}
	if t := firstLine(attrs[model.AttrGeneratedTitle]); t != "" {
		return truncateRunes(t, g.opts.TitleMaxLength)
	}
	return strings.TrimSuffix(originalName, filepath.Ext(originalName))
}

func (g *Generator) templateVars(result *model.Result, attrs map[string]string, title, ext string) map[string]string {
	now := g.now()
	vars := map[string]string{
		"category": result.PrimaryCategory,
		"title":    title,
		"year":     now.Format("2006"),
		"month":    now.Format("01"),
		"day":      now.Format("02"),
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("150405"),
		"ext":      strings.TrimPrefix(ext, "."),
	}
	for k, v := range attrs {
		vars["attr."+k] = v
	}
	return vars
}

// sanitize replaces configured filesystem-invalid characters with the
// configured substitute.
func (g *Generator) sanitize(name string) string {
	if g.invalid == nil {
		return name
	}
	replacement := g.opts.Replacement
	if replacement == "" {
		replacement = "_"
	}
	return g.invalid.ReplaceAllString(name, replacement)
}

// resolveConflict mirrors the path planner's policy so a generated name can
// never claim a destination another document already holds.
func (g *Generator) resolveConflict(ctx context.Context, path, documentID string) (string, error) {
	taken, err := g.taken(ctx, path, documentID)
	if err != nil {
		return "", err
	}
	if !taken {
		return path, nil
	}

	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		candidate := pathplan.Variant(path, g.opts.ConflictPolicy, attempt, g.now())
		candidate = filepath.Join(filepath.Dir(candidate), pathplan.FitFilename(filepath.Base(candidate), g.opts.MaxFilenameLength))

		isTaken, tErr := g.taken(ctx, candidate, documentID)
		if tErr != nil {
			return "", tErr
		}
		if !isTaken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free filename for %s within %d attempts",
		common.ErrConflictExhausted, path, g.opts.MaxAttempts)
}

func (g *Generator) taken(ctx context.Context, path, documentID string) (bool, error) {
	owner, err := g.checker.Owner(ctx, path)
	if err != nil {
		return false, fmt.Errorf("failed to check path ownership: %w", err)
	}
	if owner != "" {
		return owner != documentID, nil
	}
	return g.checker.Exists(path), nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
