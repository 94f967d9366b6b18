package audience

import "strings"

// Match reports whether any target in the list addresses the recipient.
// Semantics are OR across the whole target list: the first satisfied target
// wins. An empty target list matches nobody (explicit empty is not a
// broadcast). Validity of the notification itself is checked by the caller
// before targeting is consulted.
func Match(targets []Target, r Recipient) bool {
	for _, t := range targets {
		if matchOne(t, r) {
			return true
		}
	}
	return false
}

func matchOne(t Target, r Recipient) bool {
	switch t.Dim {
	case DimID:
		if t.Value == r.ID {
			return true
		}
		for _, m := range r.Dependents {
			if t.Value == m.ID {
				return true
			}
		}
	case DimRole:
		if t.IsWildcard() {
			return true
		}
		for _, role := range r.Roles {
			if strings.EqualFold(role, t.Value) {
				return true
			}
		}
	case DimClass:
		return matchField(t, r.Class, r.Dependents, func(m Member) string { return m.Class })
	case DimSection:
		return matchField(t, r.Section, r.Dependents, func(m Member) string { return m.Section })
	case DimFaculty:
		return matchField(t, r.Faculty, r.Dependents, func(m Member) string { return m.Faculty })
	}
	// DimUnknown: ignored, neither a match nor an error.
	return false
}

// matchField evaluates one of the class/section/faculty dimensions against the
// recipient's own attribute and, for guardians, each dependent's attribute.
// The wildcard only matches recipients that possess the dimension at all.
func matchField(t Target, own string, deps []Member, attr func(Member) string) bool {
	if t.IsWildcard() {
		if own != "" {
			return true
		}
		for _, m := range deps {
			if attr(m) != "" {
				return true
			}
		}
		return false
	}
	if own != "" && own == t.Value {
		return true
	}
	for _, m := range deps {
		if v := attr(m); v != "" && v == t.Value {
			return true
		}
	}
	return false
}
