package model

import "fmt"

// Status indicates how a classification decision was routed.
type Status string

// Classification status constants.
const (
	StatusAutoAccepted Status = "AUTO_ACCEPTED"
	StatusNeedsReview  Status = "NEEDS_REVIEW"
	StatusRejected     Status = "REJECTED"
)

// Tag is a dimension-qualified label with the confidence of whatever
// evidence source produced it.
type Tag struct {
	Dimension  string  `json:"dimension"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is a classification decision for a document. It is mutable until
// finalized by routing; a review correction produces a new version linked
// to the prior one rather than mutating it.
type Result struct {
	DocumentID      string   `json:"document_id"`
	PrimaryCategory string   `json:"primary_category"`
	Tags            []Tag    `json:"tags"`
	RulesApplied    []string `json:"rules_applied"`
	Status          Status   `json:"status"`
	Confidence      float64  `json:"confidence"`
	Version         int      `json:"version"`
}

// HasTag reports whether the result carries the given label in any dimension.
func (r *Result) HasTag(label string) bool {
	for _, t := range r.Tags {
		if t.Label == label {
			return true
		}
	}
	return false
}

// TagLabels returns the labels of all tags in order.
func (r *Result) TagLabels() []string {
	labels := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		labels[i] = t.Label
	}
	return labels
}

// Clone returns a deep copy suitable for building a corrected version.
func (r *Result) Clone() Result {
	out := *r
	out.Tags = make([]Tag, len(r.Tags))
	copy(out.Tags, r.Tags)
	out.RulesApplied = make([]string, len(r.RulesApplied))
	copy(out.RulesApplied, r.RulesApplied)
	return out
}

// Validate ensures the result is well formed.
func (r *Result) Validate() error {
	if r.DocumentID == "" {
		return fmt.Errorf("result document ID is required")
	}

	switch r.Status {
	case StatusAutoAccepted, StatusNeedsReview, StatusRejected:
	default:
		return fmt.Errorf("invalid result status %q", r.Status)
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("result confidence must be between 0 and 1")
	}

	// An auto-accepted result must name a category; needs-review and
	// rejected results may carry an empty primary (no-evidence edge case).
	if r.Status == StatusAutoAccepted && r.PrimaryCategory == "" {
		return fmt.Errorf("auto-accepted result requires a primary category")
	}

	return nil
}
