package rule

import (
	"fmt"
	"regexp"

	"github.com/docsort/docsort/internal/model"
)

var knownOps = map[model.ConditionOp]bool{
	model.OpEquals:       true,
	model.OpContains:     true,
	model.OpRegex:        true,
	model.OpGreaterThan:  true,
	model.OpGreaterEqual: true,
	model.OpLessThan:     true,
	model.OpLessEqual:    true,
	model.OpIn:           true,
}

// ValidateRules reports every load-time problem in a rule set. At runtime a
// bad condition merely skips its rule; this gives rule authors the full
// picture up front.
func ValidateRules(rules []model.Rule) []error {
	var problems []error
	names := make(map[string]bool, len(rules))

	for i := range rules {
		r := &rules[i]

		if err := r.Validate(); err != nil {
			problems = append(problems, err)
			continue
		}

		if names[r.Name] {
			problems = append(problems, fmt.Errorf("duplicate rule name %q", r.Name))
		}
		names[r.Name] = true

		if !knownOps[r.Condition.Op] {
			problems = append(problems, fmt.Errorf("rule %q: unknown operator %q", r.Name, r.Condition.Op))
		}

		if r.Condition.Op == model.OpRegex {
			if _, err := regexp.Compile(r.Condition.Value); err != nil {
				problems = append(problems, fmt.Errorf("rule %q: invalid regex: %w", r.Name, err))
			}
		}

		if r.Condition.Op == model.OpIn && len(r.Condition.Values) == 0 {
			problems = append(problems, fmt.Errorf("rule %q: in operator requires values", r.Name))
		}
	}

	return problems
}
