package audience

import "strings"

// Dimension identifies which recipient attribute a target token addresses.
type Dimension int

const (
	DimUnknown Dimension = iota // Unrecognized dimension, kept but never matches
	DimID                       // Direct user id
	DimRole                     // Role label (admin, staff, teacher, student, guardian)
	DimClass                    // Class name
	DimSection                  // Section name
	DimFaculty                  // Faculty identifier
)

// Wildcard matches any recipient that possesses the dimension at all.
const Wildcard = "all"

// Target is one parsed target descriptor from a notification's target list.
// The wire form is a plain "dimension:value" string, e.g. "role:all" or
// "class:10A".
type Target struct {
	Dim   Dimension
	Value string
}

func (d Dimension) String() string {
	switch d {
	case DimID:
		return "id"
	case DimRole:
		return "role"
	case DimClass:
		return "class"
	case DimSection:
		return "section"
	case DimFaculty:
		return "faculty"
	}
	return "unknown"
}

func (t Target) String() string {
	return t.Dim.String() + ":" + t.Value
}

// IsWildcard reports whether the target value is the "all" wildcard.
func (t Target) IsWildcard() bool {
	return strings.EqualFold(t.Value, Wildcard)
}

// ParseTarget parses one "dimension:value" token. Malformed tokens (missing
// separator or empty value) return ok=false and are skipped by callers, never
// treated as errors. Tokens with an unrecognized dimension parse successfully
// as DimUnknown so the evaluator can ignore them.
func ParseTarget(raw string) (Target, bool) {
	dim, value, found := strings.Cut(raw, ":")
	if !found {
		return Target{}, false
	}
	dim = strings.TrimSpace(dim)
	value = strings.TrimSpace(value)
	if dim == "" || value == "" {
		return Target{}, false
	}
	switch strings.ToLower(dim) {
	case "id":
		return Target{Dim: DimID, Value: value}, true
	case "role":
		return Target{Dim: DimRole, Value: value}, true
	case "class":
		return Target{Dim: DimClass, Value: value}, true
	case "section":
		return Target{Dim: DimSection, Value: value}, true
	case "faculty":
		return Target{Dim: DimFaculty, Value: value}, true
	}
	return Target{Dim: DimUnknown, Value: value}, true
}

// ParseTargets parses a wire target list, dropping malformed entries.
func ParseTargets(raws []string) []Target {
	targets := make([]Target, 0, len(raws))
	for _, raw := range raws {
		if t, ok := ParseTarget(raw); ok {
			targets = append(targets, t)
		}
	}
	return targets
}
