package classifier

import "specsharp/internal/taxonomy"

type state struct {
	candidates []*candidate
	class      taxonomy.ProjectClass
	reg        *taxonomy.Registry
	demoted    []string
	excluded   []string
}

type rule struct {
	code  Resolution
	apply func(*state)
}

// ruleTable is the precedence order for narrowing several candidates.
// Each rule only removes candidates; the first to leave exactly one
// decides the result.
var ruleTable = []rule{
	{ResolutionExcluded, exclude},
	{ResolutionDomainCollision, demoteCollisions},
	{ResolutionPriority, lowestPriority},
	{ResolutionMatchCount, mostHits},
	{ResolutionAlphabetical, firstSubtype},
}

func keep(st *state, pred func(*candidate) bool) []*candidate {
	var out []*candidate
	for _, c := range st.candidates {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// exclude drops profiles that cannot be built under the requested
// project class.
func exclude(st *state) {
	if st.class == "" {
		return
	}
	st.candidates = keep(st, func(c *candidate) bool {
		if c.profile.Hints.Incompatible(st.class) {
			st.excluded = append(st.excluded, c.profile.Key())
			return false
		}
		return true
	})
}

// demoteCollisions settles a clash between collision types and primary
// subjects. The side with more hits keeps its candidates and the other
// side is reported as demoted features; on equal hits the side mentioned
// first is the subject ("apartments with a garage", "garage with an
// office").
func demoteCollisions(st *state) {
	var coll, primary evidence
	for _, c := range st.candidates {
		switch {
		case st.reg.IsCollisionType(c.profile.Type):
			coll.add(c)
		case st.reg.IsPrimarySubject(c.profile.Type):
			primary.add(c)
		}
	}
	if coll.hits == 0 || primary.hits == 0 {
		return
	}

	collisionWins := coll.hits > primary.hits ||
		(coll.hits == primary.hits && coll.first < primary.first)
	st.candidates = keep(st, func(c *candidate) bool {
		isColl := st.reg.IsCollisionType(c.profile.Type)
		isPrimary := !isColl && st.reg.IsPrimarySubject(c.profile.Type)
		if (collisionWins && isPrimary) || (!collisionWins && isColl) {
			st.demoted = append(st.demoted, c.profile.Key())
			return false
		}
		return true
	})
}

// evidence is the strongest hit count and earliest mention on one side of
// a domain collision.
type evidence struct {
	hits  int
	first int
}

func (e *evidence) add(c *candidate) {
	if e.hits == 0 || c.first < e.first {
		e.first = c.first
	}
	if c.hits > e.hits {
		e.hits = c.hits
	}
}

func lowestPriority(st *state) {
	best := st.candidates[0].profile.Hints.Priority
	for _, c := range st.candidates[1:] {
		if p := c.profile.Hints.Priority; p < best {
			best = p
		}
	}
	st.candidates = keep(st, func(c *candidate) bool { return c.profile.Hints.Priority == best })
}

func mostHits(st *state) {
	best := 0
	for _, c := range st.candidates {
		if c.hits > best {
			best = c.hits
		}
	}
	st.candidates = keep(st, func(c *candidate) bool { return c.hits == best })
}

func firstSubtype(st *state) {
	first := st.candidates[0]
	for _, c := range st.candidates[1:] {
		if c.profile.Subtype < first.profile.Subtype {
			first = c
		}
	}
	st.candidates = []*candidate{first}
}
