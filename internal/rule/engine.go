// Package rule implements the ordered, prioritized rule engine that runs
// before and after the primary classification decision.
package rule

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/docsort/docsort/internal/model"
)

// Evaluation is the outcome of one rule pass: the actions to apply and the
// names of the rules that matched, in application order. The engine itself
// has no side effects; callers apply the actions.
type Evaluation struct {
	Actions []model.Action
	Matched []string
}

// Engine evaluates condition/action rules against document attributes and
// the in-flight classification result.
type Engine struct {
	byPhase  map[model.RulePhase][]model.Rule
	compiled map[string]*regexp.Regexp
}

// NewEngine creates a rule engine. Rules are sorted by priority descending
// with declaration order breaking ties; regex conditions are pre-compiled.
// Rules whose regex fails to compile are kept but fail closed at evaluation.
func NewEngine(rules []model.Rule) *Engine {
	e := &Engine{
		byPhase:  make(map[model.RulePhase][]model.Rule),
		compiled: make(map[string]*regexp.Regexp),
	}

	for _, r := range rules {
		if !r.Active {
			continue
		}
		e.byPhase[r.Phase] = append(e.byPhase[r.Phase], r)
		if r.Condition.Op == model.OpRegex {
			if re, err := regexp.Compile(r.Condition.Value); err == nil {
				e.compiled[r.Name] = re
			}
		}
	}

	for phase := range e.byPhase {
		sort.SliceStable(e.byPhase[phase], func(i, j int) bool {
			return e.byPhase[phase][i].Priority > e.byPhase[phase][j].Priority
		})
	}

	return e
}

// Evaluate runs all rules for a phase. For the pre phase current may be nil.
// setConfidence and reject each apply only from the highest-priority
// matching rule; addTag and requireReview accumulate across matches.
// Invalid conditions skip the rule with a warning, never aborting the run.
func (e *Engine) Evaluate(phase model.RulePhase, attrs map[string]string, current *model.Result) Evaluation {
	var eval Evaluation
	confidenceSet := false
	rejected := false

	for i := range e.byPhase[phase] {
		r := &e.byPhase[phase][i]

		ok, err := e.matches(r, attrs, current)
		if err != nil {
			slog.Warn("Skipping rule with invalid condition",
				"rule", r.Name,
				"error", err)
			continue
		}
		if !ok {
			continue
		}

		eval.Matched = append(eval.Matched, r.Name)

		switch r.Action.Kind {
		case model.ActionSetConfidence:
			if confidenceSet {
				continue
			}
			confidenceSet = true
			eval.Actions = append(eval.Actions, r.Action)
		case model.ActionReject:
			if rejected {
				continue
			}
			rejected = true
			eval.Actions = append(eval.Actions, r.Action)
		case model.ActionAddTag, model.ActionRequireReview:
			eval.Actions = append(eval.Actions, r.Action)
		default:
			slog.Warn("Skipping rule with unknown action", "rule", r.Name, "action", r.Action.Kind)
		}
	}

	return eval
}

// matches checks one rule's condition against the document. Conditions are
// pure predicates; an unknown operator or unparsable operand is an error so
// the caller can fail closed.
func (e *Engine) matches(r *model.Rule, attrs map[string]string, current *model.Result) (bool, error) {
	cond := &r.Condition

	switch cond.Field {
	case "tags":
		return e.matchTags(r, current)
	case "category":
		if current == nil {
			return false, nil
		}
		return e.matchString(r, current.PrimaryCategory)
	case "confidence":
		if current == nil {
			return false, nil
		}
		return e.matchNumeric(cond, current.Confidence)
	}

	value, present := "", false
	if attrs != nil {
		value, present = attrs[cond.Field]
	}

	switch cond.Op {
	case model.OpEquals, model.OpContains, model.OpRegex, model.OpIn:
		if !present {
			return false, nil
		}
		return e.matchString(r, value)
	case model.OpGreaterThan, model.OpGreaterEqual, model.OpLessThan, model.OpLessEqual:
		if !present {
			return false, nil
		}
		actual, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false, fmt.Errorf("attribute %q is not numeric: %w", cond.Field, err)
		}
		return e.matchNumeric(cond, actual)
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Op)
	}
}

func (e *Engine) matchTags(r *model.Rule, current *model.Result) (bool, error) {
	if current == nil {
		return false, nil
	}

	switch r.Condition.Op {
	case model.OpContains, model.OpEquals:
		return current.HasTag(r.Condition.Value), nil
	case model.OpIn:
		for _, label := range r.Condition.Values {
			if current.HasTag(label) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("operator %q not valid for tags", r.Condition.Op)
	}
}

func (e *Engine) matchString(r *model.Rule, actual string) (bool, error) {
	cond := &r.Condition

	switch cond.Op {
	case model.OpEquals:
		return actual == cond.Value, nil
	case model.OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(cond.Value)), nil
	case model.OpRegex:
		re, ok := e.compiled[r.Name]
		if !ok {
			return false, fmt.Errorf("invalid regex %q", cond.Value)
		}
		return re.MatchString(actual), nil
	case model.OpIn:
		for _, v := range cond.Values {
			if actual == v {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("operator %q not valid for strings", cond.Op)
	}
}

func (e *Engine) matchNumeric(cond *model.Condition, actual float64) (bool, error) {
	expected, err := strconv.ParseFloat(strings.TrimSpace(cond.Value), 64)
	if err != nil {
		return false, fmt.Errorf("condition value %q is not numeric: %w", cond.Value, err)
	}

	switch cond.Op {
	case model.OpGreaterThan:
		return actual > expected, nil
	case model.OpGreaterEqual:
		return actual >= expected, nil
	case model.OpLessThan:
		return actual < expected, nil
	case model.OpLessEqual:
		return actual <= expected, nil
	case model.OpEquals:
		return actual == expected, nil
	default:
		return false, fmt.Errorf("operator %q not valid for numbers", cond.Op)
	}
}
