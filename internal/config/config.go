package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/naming"
	"github.com/docsort/docsort/internal/pathplan"
	"github.com/docsort/docsort/internal/review"
	"github.com/docsort/docsort/internal/route"
)

// Config is the full application configuration, assembled from the config
// file, environment, and flags via viper.
type Config struct {
	DatabasePath string
	TaxonomyPath string
	RulesPath    string
	Actor        string
	LogLevel     string
	LogFormat    string

	Thresholds    route.Thresholds
	PathPlan      pathplan.Options
	Naming        naming.Options
	ReviewWeights review.Weights

	Workers          int
	MaxTags          int
	MoveTimeout      time.Duration
	StageReviews     bool
	CleanupEmptyDirs bool

	// DryRun is flag-driven, never read from the config file.
	DryRun bool
}

// Load assembles the configuration from viper. Defaults cover everything a
// minimal setup needs except the base directory and taxonomy.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		DatabasePath: ExpandPath(v.GetString("database.path")),
		TaxonomyPath: ExpandPath(v.GetString("taxonomy.path")),
		RulesPath:    ExpandPath(v.GetString("rules.path")),
		Actor:        v.GetString("actor"),
		LogLevel:     v.GetString("log.level"),
		LogFormat:    v.GetString("log.format"),

		Thresholds: route.Thresholds{
			Auto:   v.GetFloat64("thresholds.auto"),
			Review: v.GetFloat64("thresholds.review"),
			Min:    v.GetFloat64("thresholds.min"),
		},

		PathPlan: pathplan.Options{
			BaseDir:          ExpandPath(v.GetString("paths.base_path")),
			Template:         v.GetString("paths.template"),
			Mapping:          v.GetStringMapString("paths.mapping"),
			ReviewDir:        v.GetString("paths.review_dir"),
			UncategorizedDir: v.GetString("paths.uncategorized_dir"),
			ConflictPolicy:   pathplan.Policy(v.GetString("paths.conflict_resolution")),
			MaxPathLength:    v.GetInt("paths.max_path_length"),
			MaxAttempts:      v.GetInt("paths.max_attempts"),
		},

		Naming: naming.Options{
			DefaultTemplate:    v.GetString("naming.default_template"),
			CategoryTemplates:  v.GetStringMapString("naming.category_templates"),
			ExtensionTemplates: v.GetStringMapString("naming.extension_templates"),
			InvalidChars:       v.GetString("naming.invalid_chars"),
			Replacement:        v.GetString("naming.replacement_char"),
			ConflictPolicy:     pathplan.Policy(v.GetString("naming.conflict_resolution")),
			MaxFilenameLength:  v.GetInt("naming.max_filename_length"),
			TitleMaxLength:     v.GetInt("naming.title_max_length"),
			MaxAttempts:        v.GetInt("naming.max_attempts"),
		},

		ReviewWeights: review.Weights{
			Confidence: v.GetFloat64("review.weights.confidence"),
			Recency:    v.GetFloat64("review.weights.recency"),
		},

		Workers:          v.GetInt("workers"),
		MaxTags:          v.GetInt("taxonomy.max_tags"),
		MoveTimeout:      v.GetDuration("move_timeout"),
		StageReviews:     v.GetBool("review.stage_files"),
		CleanupEmptyDirs: v.GetBool("paths.cleanup_empty_dirs"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/docsort/docsort.db")
	v.SetDefault("actor", "docsort")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("thresholds.auto", 0.85)
	v.SetDefault("thresholds.review", 0.6)
	v.SetDefault("thresholds.min", 0.3)

	v.SetDefault("paths.template", "{year}")
	v.SetDefault("paths.review_dir", "_review")
	v.SetDefault("paths.uncategorized_dir", "_uncategorized")
	v.SetDefault("paths.conflict_resolution", string(pathplan.PolicySuffix))
	v.SetDefault("paths.max_path_length", 255)
	v.SetDefault("paths.max_attempts", 100)

	v.SetDefault("naming.default_template", "{date}_{title}")
	v.SetDefault("naming.invalid_chars", `[<>:"/\\|?*\x00-\x1f]`)
	v.SetDefault("naming.replacement_char", "_")
	v.SetDefault("naming.conflict_resolution", string(pathplan.PolicySuffix))
	v.SetDefault("naming.max_filename_length", 128)
	v.SetDefault("naming.title_max_length", 50)
	v.SetDefault("naming.max_attempts", 100)

	v.SetDefault("review.weights.confidence", 1.0)
	v.SetDefault("review.weights.recency", 0.1)

	v.SetDefault("workers", 4)
	v.SetDefault("taxonomy.max_tags", 10)
	v.SetDefault("move_timeout", 30*time.Second)
}

func (c *Config) validate() error {
	if c.TaxonomyPath == "" {
		return fmt.Errorf("%w: taxonomy.path is required", common.ErrMissingConfig)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.PathPlan.Validate(); err != nil {
		return err
	}
	if err := c.Naming.Validate(); err != nil {
		return err
	}
	return nil
}

// taxonomyFile is the on-disk shape of the taxonomy definition.
type taxonomyFile struct {
	Primary    string `yaml:"primary"`
	Dimensions []struct {
		Name      string   `yaml:"name"`
		Labels    []string `yaml:"labels"`
		Exclusive bool     `yaml:"exclusive"`
	} `yaml:"dimensions"`
}

// LoadTaxonomy reads and validates the taxonomy definition.
func LoadTaxonomy(path string) (model.Taxonomy, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return model.Taxonomy{}, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.Taxonomy{}, fmt.Errorf("%w: failed to parse taxonomy: %v", common.ErrInvalidConfig, err)
	}

	taxonomy := model.Taxonomy{Primary: file.Primary}
	for _, d := range file.Dimensions {
		taxonomy.Dimensions = append(taxonomy.Dimensions, model.Dimension{
			Name:      d.Name,
			Labels:    d.Labels,
			Exclusive: d.Exclusive,
		})
	}

	if err := taxonomy.Validate(); err != nil {
		return model.Taxonomy{}, err
	}
	return taxonomy, nil
}

// rulesFile is the on-disk shape of the rules definition.
type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Name      string  `yaml:"name"`
	Phase     string  `yaml:"phase"`
	Priority  int     `yaml:"priority"`
	Active    *bool   `yaml:"active"`
	Condition condDef `yaml:"condition"`
	Action    actDef  `yaml:"action"`
}

type condDef struct {
	Field  string   `yaml:"field"`
	Op     string   `yaml:"op"`
	Value  string   `yaml:"value"`
	Values []string `yaml:"values"`
}

type actDef struct {
	Kind       string  `yaml:"kind"`
	Target     string  `yaml:"target"`
	Confidence float64 `yaml:"confidence"`
}

// LoadRules reads the rule definitions. Rules default to active; validation
// of each rule happens here so a broken rule file fails at startup, not at
// evaluation time.
func LoadRules(path string) ([]model.Rule, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse rules: %v", common.ErrInvalidConfig, err)
	}

	rules := make([]model.Rule, 0, len(file.Rules))
	for _, entry := range file.Rules {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		r := model.Rule{
			Name:     entry.Name,
			Phase:    model.RulePhase(entry.Phase),
			Priority: entry.Priority,
			Active:   active,
			Condition: model.Condition{
				Field:  entry.Condition.Field,
				Op:     model.ConditionOp(entry.Condition.Op),
				Value:  entry.Condition.Value,
				Values: entry.Condition.Values,
			},
			Action: model.Action{
				Kind:       model.ActionKind(entry.Action.Kind),
				Target:     entry.Action.Target,
				Confidence: entry.Action.Confidence,
			},
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", common.ErrInvalidConfig, entry.Name, err)
		}
		rules = append(rules, r)
	}

	return rules, nil
}
