package model

// ConflictType describes why a planned destination collided.
type ConflictType string

// Conflict type constants.
const (
	ConflictExistingFile ConflictType = "existing_file"
	ConflictClaimedPath  ConflictType = "claimed_path"
)

// ConflictInfo records a detected destination collision and how it was
// resolved.
type ConflictInfo struct {
	Type       ConflictType `json:"type"`
	Resolution string       `json:"resolution"`
	FinalPath  string       `json:"final_path"`
}

// LinkPath is a reference placement of a document under a non-primary label.
// The link points at the primary path; the content is never duplicated.
type LinkPath struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// PathPlan is the planned destination for one classification result.
// Superseded, never mutated, on reclassification.
type PathPlan struct {
	OriginalPath string        `json:"original_path"`
	PrimaryPath  string        `json:"primary_path"`
	LinkPaths    []LinkPath    `json:"link_paths,omitempty"`
	Conflict     *ConflictInfo `json:"conflict,omitempty"`
	ReviewArea   bool          `json:"review_area,omitempty"`
}
