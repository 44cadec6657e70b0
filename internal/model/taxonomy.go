package model

import "fmt"

// Dimension is one independent axis of classification with its own
// enumerated label set.
type Dimension struct {
	Name      string   `yaml:"name" json:"name"`
	Labels    []string `yaml:"labels" json:"labels"`
	Exclusive bool     `yaml:"exclusive" json:"exclusive"`
}

// Contains reports whether the dimension allows the given label.
func (d *Dimension) Contains(label string) bool {
	for _, l := range d.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Taxonomy is the full set of classification dimensions. Loaded once at
// startup and read-only during a run.
type Taxonomy struct {
	Primary    string      `yaml:"primary" json:"primary"`
	Dimensions []Dimension `yaml:"dimensions" json:"dimensions"`
}

// Dimension returns the named dimension, or nil if it does not exist.
func (t *Taxonomy) Dimension(name string) *Dimension {
	for i := range t.Dimensions {
		if t.Dimensions[i].Name == name {
			return &t.Dimensions[i]
		}
	}
	return nil
}

// DimensionOf returns the name of the dimension whose label set contains
// the given label. Labels not present in any dimension map to an empty
// dimension name, which is treated as non-exclusive.
func (t *Taxonomy) DimensionOf(label string) string {
	for i := range t.Dimensions {
		if t.Dimensions[i].Contains(label) {
			return t.Dimensions[i].Name
		}
	}
	return ""
}

// Validate ensures the taxonomy is internally consistent.
func (t *Taxonomy) Validate() error {
	if t.Primary == "" {
		return fmt.Errorf("taxonomy primary dimension is required")
	}
	if len(t.Dimensions) == 0 {
		return fmt.Errorf("taxonomy must define at least one dimension")
	}

	seen := make(map[string]bool, len(t.Dimensions))
	for i := range t.Dimensions {
		d := &t.Dimensions[i]
		if d.Name == "" {
			return fmt.Errorf("dimension at index %d has no name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate dimension %q", d.Name)
		}
		seen[d.Name] = true
		if len(d.Labels) == 0 {
			return fmt.Errorf("dimension %q has no labels", d.Name)
		}
		labels := make(map[string]bool, len(d.Labels))
		for _, l := range d.Labels {
			if l == "" {
				return fmt.Errorf("dimension %q contains an empty label", d.Name)
			}
			if labels[l] {
				return fmt.Errorf("dimension %q contains duplicate label %q", d.Name, l)
			}
			labels[l] = true
		}
	}

	if !seen[t.Primary] {
		return fmt.Errorf("primary dimension %q is not defined", t.Primary)
	}
	return nil
}
