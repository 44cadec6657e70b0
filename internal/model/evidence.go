// Package model defines the core data structures for the docsort application.
package model

// Well-known document attribute keys populated by the upstream extraction
// collaborators.
const (
	AttrFilename       = "filename"
	AttrExtension      = "extension"
	AttrSize           = "size"
	AttrTitle          = "title"
	AttrGeneratedTitle = "generated_title"
	AttrKeywords       = "keywords"
	AttrExcerpt        = "excerpt"
)

// Candidate is a single retrieval neighbor's vote for a label in one
// taxonomy dimension.
type Candidate struct {
	Dimension string  `json:"dimension"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
}

// Verdict is the external LLM's judgment for a document. The call itself
// happens upstream; the engine only consumes the parsed result.
type Verdict struct {
	PrimaryCategory string   `json:"primary_category"`
	Rationale       string   `json:"rationale"`
	Tags            []string `json:"tags"`
	Confidence      float64  `json:"confidence"`
}

// Evidence is the immutable input to one classification attempt. It is
// created once per document per attempt and never mutated.
type Evidence struct {
	Attributes   map[string]string `json:"attributes"`
	Verdict      *Verdict          `json:"verdict,omitempty"`
	DocumentID   string            `json:"document_id"`
	OriginalPath string            `json:"original_path"`
	Fingerprint  string            `json:"fingerprint"`
	Extension    string            `json:"extension"`
	Candidates   []Candidate       `json:"candidates"`
	Size         int64             `json:"size"`
}

// Attribute returns the named document attribute or an empty string.
func (e *Evidence) Attribute(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// TopCandidate returns the highest-scoring candidate for a dimension, or nil
// if the dimension produced no candidates.
func (e *Evidence) TopCandidate(dimension string) *Candidate {
	var best *Candidate
	for i := range e.Candidates {
		c := &e.Candidates[i]
		if c.Dimension != dimension {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best
}
