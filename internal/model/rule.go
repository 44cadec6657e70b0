package model

import "fmt"

// RulePhase indicates when a rule runs relative to the primary decision.
type RulePhase string

// Rule phase constants.
const (
	PhasePre  RulePhase = "pre"
	PhasePost RulePhase = "post"
)

// ConditionOp is the comparison operator of a rule condition.
type ConditionOp string

// Condition operator constants.
const (
	OpEquals       ConditionOp = "eq"
	OpContains     ConditionOp = "contains"
	OpRegex        ConditionOp = "regex"
	OpGreaterThan  ConditionOp = "gt"
	OpGreaterEqual ConditionOp = "ge"
	OpLessThan     ConditionOp = "lt"
	OpLessEqual    ConditionOp = "le"
	OpIn           ConditionOp = "in"
)

// ActionKind identifies what a matched rule does to the result.
type ActionKind string

// Action kind constants. SetConfidence and Reject are mutually exclusive
// within one evaluation; AddTag and RequireReview accumulate.
const (
	ActionAddTag        ActionKind = "addTag"
	ActionSetConfidence ActionKind = "setConfidence"
	ActionRequireReview ActionKind = "requireReview"
	ActionReject        ActionKind = "reject"
)

// Condition is a pure predicate over document attributes and the current
// classification result. Field names address attributes directly, plus the
// virtual fields "tags", "category" and "confidence".
type Condition struct {
	Field  string      `yaml:"field" json:"field"`
	Op     ConditionOp `yaml:"op" json:"op"`
	Value  string      `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string    `yaml:"values,omitempty" json:"values,omitempty"`
}

// Action is what a matched rule contributes to the decision.
type Action struct {
	Kind       ActionKind `yaml:"kind" json:"kind"`
	Target     string     `yaml:"target,omitempty" json:"target,omitempty"`
	Confidence float64    `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// Rule is a user-authored condition/action record. Rules are data
// interpreted by a single evaluator, not code.
type Rule struct {
	Name      string    `yaml:"name" json:"name"`
	Phase     RulePhase `yaml:"phase" json:"phase"`
	Condition Condition `yaml:"condition" json:"condition"`
	Action    Action    `yaml:"action" json:"action"`
	Priority  int       `yaml:"priority" json:"priority"`
	Active    bool      `yaml:"active" json:"active"`
}

// Validate ensures the rule has a usable shape. Condition operators are
// checked loosely here; an operator the evaluator does not recognize fails
// closed at evaluation time instead of aborting the pipeline.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	switch r.Phase {
	case PhasePre, PhasePost:
	default:
		return fmt.Errorf("rule %q: invalid phase %q", r.Name, r.Phase)
	}

	if r.Condition.Field == "" {
		return fmt.Errorf("rule %q: condition field is required", r.Name)
	}

	switch r.Action.Kind {
	case ActionAddTag:
		if r.Action.Target == "" {
			return fmt.Errorf("rule %q: addTag requires a target label", r.Name)
		}
	case ActionSetConfidence:
		if r.Action.Confidence < 0 || r.Action.Confidence > 1 {
			return fmt.Errorf("rule %q: setConfidence must be between 0 and 1", r.Name)
		}
	case ActionRequireReview, ActionReject:
	default:
		return fmt.Errorf("rule %q: invalid action kind %q", r.Name, r.Action.Kind)
	}

	return nil
}
