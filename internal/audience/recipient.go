package audience

// Member holds the matchable attributes of one dependent linked to a guardian.
type Member struct {
	ID      string
	Class   string
	Section string
	Faculty string
}

// Recipient is the resolved attribute set a notification's targets are matched
// against. For a guardian it also carries the union of attributes across every
// linked dependent, which is what lets one guardian login receive notifications
// addressed to any of their dependents.
type Recipient struct {
	ID         string
	Roles      []string
	Class      string
	Section    string
	Faculty    string
	Dependents []Member
}

// HasRole reports whether the recipient holds the given role label.
func (r Recipient) HasRole(role string) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// Tokens returns every fully-qualified target token this recipient could be
// addressed by. The batch loader uses them for the coarse "contains any of"
// server query; the list is deliberately over-inclusive and the evaluator
// remains authoritative.
func (r Recipient) Tokens() []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(dim Dimension, value string) {
		if value == "" {
			return
		}
		token := Target{Dim: dim, Value: value}.String()
		if _, dup := seen[token]; dup {
			return
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	add(DimID, r.ID)
	for _, role := range r.Roles {
		add(DimRole, role)
	}
	add(DimRole, Wildcard)
	add(DimClass, r.Class)
	add(DimSection, r.Section)
	add(DimFaculty, r.Faculty)
	if r.Class != "" {
		add(DimClass, Wildcard)
	}
	if r.Section != "" {
		add(DimSection, Wildcard)
	}
	if r.Faculty != "" {
		add(DimFaculty, Wildcard)
	}
	for _, m := range r.Dependents {
		add(DimID, m.ID)
		add(DimClass, m.Class)
		add(DimSection, m.Section)
		add(DimFaculty, m.Faculty)
		if m.Class != "" {
			add(DimClass, Wildcard)
		}
		if m.Section != "" {
			add(DimSection, Wildcard)
		}
		if m.Faculty != "" {
			add(DimFaculty, Wildcard)
		}
	}
	return tokens
}

// Equal reports whether two recipients describe the same attribute set,
// dependents included. Used to detect when a session's subscription must be
// re-established.
func (r Recipient) Equal(other Recipient) bool {
	if r.ID != other.ID || r.Class != other.Class || r.Section != other.Section || r.Faculty != other.Faculty {
		return false
	}
	if len(r.Roles) != len(other.Roles) || len(r.Dependents) != len(other.Dependents) {
		return false
	}
	for i, role := range r.Roles {
		if other.Roles[i] != role {
			return false
		}
	}
	for i, m := range r.Dependents {
		if other.Dependents[i] != m {
			return false
		}
	}
	return true
}
