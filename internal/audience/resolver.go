package audience

import (
	"context"

	"go.uber.org/zap"
)

// Profile is the narrow projection of a user document the resolver needs.
type Profile struct {
	ID         string
	Roles      []string
	Class      string
	Section    string
	Faculty    string
	Dependents []string // user ids of linked dependents (guardians only)
}

// ProfileSource fetches one user profile by id. Implemented by the auth user
// repository in production and by fakes in tests.
type ProfileSource interface {
	Profile(ctx context.Context, id string) (*Profile, error)
}

// Resolver derives the recipient attribute set for a signed-in principal.
// For guardians it hydrates every linked dependent to collect the union of
// their class/section/faculty/id attributes.
type Resolver struct {
	source ProfileSource
	log    *zap.Logger
}

func NewResolver(source ProfileSource, log *zap.Logger) *Resolver {
	return &Resolver{source: source, log: log}
}

// Resolve builds the Recipient for the given principal profile. A dependent
// that cannot be hydrated is excluded from the union and logged; partial
// failures never abort resolution.
func (rv *Resolver) Resolve(ctx context.Context, p *Profile) Recipient {
	rec := Recipient{
		ID:      p.ID,
		Roles:   append([]string(nil), p.Roles...),
		Class:   p.Class,
		Section: p.Section,
		Faculty: p.Faculty,
	}
	for _, depID := range p.Dependents {
		dep, err := rv.source.Profile(ctx, depID)
		if err != nil {
			rv.log.Warn("skipping unreadable dependent",
				zap.String("guardian", p.ID),
				zap.String("dependent", depID),
				zap.Error(err))
			continue
		}
		if dep == nil {
			rv.log.Warn("skipping missing dependent",
				zap.String("guardian", p.ID),
				zap.String("dependent", depID))
			continue
		}
		rec.Dependents = append(rec.Dependents, Member{
			ID:      dep.ID,
			Class:   dep.Class,
			Section: dep.Section,
			Faculty: dep.Faculty,
		})
	}
	return rec
}
