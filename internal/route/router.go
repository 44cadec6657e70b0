// Package route decides how a classification confidence score is handled:
// accepted automatically, queued for human review, or rejected.
package route

import (
	"fmt"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
)

// Thresholds are the three routing cut points. They must be strictly
// descending and inside [0,1]; validation happens once at startup.
type Thresholds struct {
	Auto   float64 `yaml:"auto"`
	Review float64 `yaml:"review"`
	Min    float64 `yaml:"min"`
}

// Validate ensures auto > review > min, all within [0,1].
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"auto": t.Auto, "review": t.Review, "min": t.Min} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s threshold %v outside [0,1]", common.ErrInvalidConfig, name, v)
		}
	}
	if !(t.Auto > t.Review && t.Review > t.Min) {
		return fmt.Errorf("%w: thresholds must be strictly descending (auto > review > min), got %v > %v > %v",
			common.ErrInvalidConfig, t.Auto, t.Review, t.Min)
	}
	return nil
}

// Router maps confidence scores to statuses. Pure function of the
// thresholds; owns no state.
type Router struct {
	thresholds Thresholds
}

// NewRouter creates a router after validating the thresholds.
func NewRouter(t Thresholds) (*Router, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Router{thresholds: t}, nil
}

// Route maps a confidence score to a status. Scores in [min, auto) need
// review; the low band [min, review) is still review, only flagged
// low-confidence by LowConfidence.
func (r *Router) Route(confidence float64) model.Status {
	switch {
	case confidence >= r.thresholds.Auto:
		return model.StatusAutoAccepted
	case confidence >= r.thresholds.Min:
		return model.StatusNeedsReview
	default:
		return model.StatusRejected
	}
}

// LowConfidence reports whether a score falls in the flagged low band
// [min, review).
func (r *Router) LowConfidence(confidence float64) bool {
	return confidence >= r.thresholds.Min && confidence < r.thresholds.Review
}

// Apply folds post-rule actions into a routed status. A reject action
// always wins regardless of score; requireReview forces review but can
// never downgrade an existing rejection.
func (r *Router) Apply(status model.Status, actions []model.Action) model.Status {
	for _, a := range actions {
		if a.Kind == model.ActionReject {
			return model.StatusRejected
		}
	}
	if status == model.StatusRejected {
		return status
	}
	for _, a := range actions {
		if a.Kind == model.ActionRequireReview {
			return model.StatusNeedsReview
		}
	}
	return status
}

// MinThreshold exposes the rejection floor for the resolver's verdict check.
func (r *Router) MinThreshold() float64 {
	return r.thresholds.Min
}
