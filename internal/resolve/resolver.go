// Package resolve merges candidate labels from retrieval evidence, the LLM
// verdict, and rule actions into one internally-consistent multi-label
// classification result.
package resolve

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/docsort/docsort/internal/model"
)

// Resolver builds classification results from evidence. Pure over its
// configuration; owns no durable state.
type Resolver struct {
	taxonomy      model.Taxonomy
	minConfidence float64
	maxTags       int
}

// Rule-added tags carry full confidence: user-authored rules outrank model
// evidence when an exclusive dimension has to pick a winner.
const ruleTagConfidence = 1.0

// NewResolver creates a resolver. minConfidence is the router's rejection
// floor: an LLM verdict below it is ignored in favor of retrieval evidence.
func NewResolver(taxonomy model.Taxonomy, minConfidence float64, maxTags int) *Resolver {
	if maxTags <= 0 {
		maxTags = 10
	}
	return &Resolver{
		taxonomy:      taxonomy,
		minConfidence: minConfidence,
		maxTags:       maxTags,
	}
}

// Resolve produces a classification result for the evidence. Malformed or
// empty evidence degrades to a needs-review result; it never errors, so one
// bad document cannot halt a batch. Re-running on identical inputs yields an
// identical result.
func (r *Resolver) Resolve(evidence *model.Evidence, actions []model.Action) model.Result {
	result := model.Result{
		DocumentID: evidence.DocumentID,
		Version:    1,
	}

	if evidence.Verdict != nil && evidence.Verdict.Confidence >= r.minConfidence && evidence.Verdict.PrimaryCategory != "" {
		r.seedFromVerdict(evidence.Verdict, &result)
	} else {
		r.seedFromCandidates(evidence, &result)
	}

	r.applyTagActions(actions, &result)
	r.pruneExclusive(&result)
	r.capTags(&result)

	if result.PrimaryCategory == "" && len(result.Tags) == 0 {
		// No evidence source produced any label. Force review instead of
		// erroring so the document still ends in a defined state.
		result.Status = model.StatusNeedsReview
		slog.Warn("No labels resolved for document", "document_id", evidence.DocumentID)
	}

	return result
}

func (r *Resolver) seedFromVerdict(verdict *model.Verdict, result *model.Result) {
	result.PrimaryCategory = verdict.PrimaryCategory
	result.Confidence = verdict.Confidence

	for _, label := range verdict.Tags {
		if label == verdict.PrimaryCategory {
			continue
		}
		r.addTag(result, model.Tag{
			Dimension:  r.taxonomy.DimensionOf(label),
			Label:      label,
			Confidence: verdict.Confidence,
		})
	}
}

// seedFromCandidates falls back to the highest-scoring retrieval candidate
// per dimension. The primary dimension's winner becomes the category; the
// others become tags.
func (r *Resolver) seedFromCandidates(evidence *model.Evidence, result *model.Result) {
	seen := make(map[string]bool)
	var dimensions []string
	for _, c := range evidence.Candidates {
		if !seen[c.Dimension] {
			seen[c.Dimension] = true
			dimensions = append(dimensions, c.Dimension)
		}
	}

	var topScore float64
	for _, dim := range dimensions {
		top := evidence.TopCandidate(dim)
		if top == nil {
			continue
		}
		if top.Score > topScore {
			topScore = top.Score
		}
		if dim == r.taxonomy.Primary {
			result.PrimaryCategory = top.Label
			result.Confidence = top.Score
			continue
		}
		r.addTag(result, model.Tag{
			Dimension:  dim,
			Label:      top.Label,
			Confidence: top.Score,
		})
	}

	// No candidate in the primary dimension: the top overall score still
	// describes how sure the evidence is.
	if result.PrimaryCategory == "" && result.Confidence == 0 {
		result.Confidence = topScore
	}
}

func (r *Resolver) applyTagActions(actions []model.Action, result *model.Result) {
	for _, a := range actions {
		if a.Kind != model.ActionAddTag {
			continue
		}
		r.addTag(result, model.Tag{
			Dimension:  r.taxonomy.DimensionOf(a.Target),
			Label:      a.Target,
			Confidence: ruleTagConfidence,
		})
	}
}

func (r *Resolver) addTag(result *model.Result, tag model.Tag) {
	for i := range result.Tags {
		if result.Tags[i].Label == tag.Label && result.Tags[i].Dimension == tag.Dimension {
			if tag.Confidence > result.Tags[i].Confidence {
				result.Tags[i].Confidence = tag.Confidence
			}
			return
		}
	}
	result.Tags = append(result.Tags, tag)
}

// pruneExclusive enforces mutually-exclusive dimensions: the label with the
// highest originating confidence stays, the rest are dropped and the drops
// are recorded in the rule trace. The primary category competes as a member
// of its own dimension, so a stronger tag there takes the category over.
func (r *Resolver) pruneExclusive(result *model.Result) {
	for i := range r.taxonomy.Dimensions {
		dim := &r.taxonomy.Dimensions[i]
		if !dim.Exclusive {
			continue
		}

		best := -1
		for j := range result.Tags {
			if result.Tags[j].Dimension != dim.Name {
				continue
			}
			if best < 0 || result.Tags[j].Confidence > result.Tags[best].Confidence {
				best = j
			}
		}
		if best < 0 {
			continue
		}

		if dim.Name == r.taxonomy.Primary {
			r.promotePrimary(result, best, dim.Name)
			continue
		}

		var remaining []model.Tag
		for j := range result.Tags {
			if result.Tags[j].Dimension != dim.Name || j == best {
				remaining = append(remaining, result.Tags[j])
				continue
			}
			result.RulesApplied = append(result.RulesApplied,
				fmt.Sprintf("exclusive:%s:dropped:%s", dim.Name, result.Tags[j].Label))
		}
		result.Tags = remaining
	}
}

// promotePrimary resolves a conflict inside the primary dimension: whichever
// of the current category and the strongest tag has the higher confidence
// becomes the category, the loser is dropped.
func (r *Resolver) promotePrimary(result *model.Result, best int, dimName string) {
	challenger := result.Tags[best]

	if result.PrimaryCategory == "" || challenger.Confidence > result.Confidence {
		if result.PrimaryCategory != "" {
			result.RulesApplied = append(result.RulesApplied,
				fmt.Sprintf("exclusive:%s:dropped:%s", dimName, result.PrimaryCategory))
		}
		result.PrimaryCategory = challenger.Label
		result.Confidence = challenger.Confidence
	} else {
		result.RulesApplied = append(result.RulesApplied,
			fmt.Sprintf("exclusive:%s:dropped:%s", dimName, challenger.Label))
	}

	// The winner lives in PrimaryCategory; drop all primary-dimension tags.
	var remaining []model.Tag
	for j := range result.Tags {
		if result.Tags[j].Dimension == dimName {
			if result.Tags[j].Label != challenger.Label && result.Tags[j].Label != result.PrimaryCategory {
				result.RulesApplied = append(result.RulesApplied,
					fmt.Sprintf("exclusive:%s:dropped:%s", dimName, result.Tags[j].Label))
			}
			continue
		}
		remaining = append(remaining, result.Tags[j])
	}
	result.Tags = remaining
}

// capTags enforces the configured maximum, dropping the lowest-confidence
// tags first while preserving the relative order of the survivors.
func (r *Resolver) capTags(result *model.Result) {
	if len(result.Tags) <= r.maxTags {
		return
	}

	type ranked struct {
		tag   model.Tag
		index int
	}
	byConfidence := make([]ranked, len(result.Tags))
	for i, t := range result.Tags {
		byConfidence[i] = ranked{tag: t, index: i}
	}
	sort.SliceStable(byConfidence, func(i, j int) bool {
		return byConfidence[i].tag.Confidence > byConfidence[j].tag.Confidence
	})

	keep := make(map[int]bool, r.maxTags)
	for _, rk := range byConfidence[:r.maxTags] {
		keep[rk.index] = true
	}

	var kept []model.Tag
	for i, t := range result.Tags {
		if keep[i] {
			kept = append(kept, t)
			continue
		}
		result.RulesApplied = append(result.RulesApplied,
			fmt.Sprintf("cap:dropped:%s", t.Label))
	}
	result.Tags = kept
}
