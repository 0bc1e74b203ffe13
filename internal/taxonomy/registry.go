// Package taxonomy holds the building-type registry: every (type,
// subtype) profile with its cost factors, financing terms, keywords and
// revenue model. A Registry is validated once when it is built and is
// read-only afterwards, so it can be shared by any number of concurrent
// calculations.
package taxonomy

import (
	"regexp"
	"sort"
	"strings"

	"specsharp/internal/apperr"
)

// CompiledRule is an ExtractionRule with its pattern compiled.
type CompiledRule struct {
	Name string
	Re   *regexp.Regexp
	Min  int
	Max  int
}

type Registry struct {
	version       int
	profiles      map[string]*Profile
	bySubtype     map[string]*Profile
	ordered       []*Profile
	types         map[BuildingType]bool
	aliases       map[string]BuildingType
	classes       map[ProjectClass]float64
	finishes      map[FinishLevel]FinishFactors
	locations     map[string]float64
	cityOverrides map[string]float64
	primary       map[BuildingType]bool
	collision     map[BuildingType]bool
	extraction    []CompiledRule
}

// New validates doc and builds a Registry from a private copy of it.
// Any invariant violation is returned as a single ErrInvalidTaxonomy
// listing every offending key.
func New(doc Document) (*Registry, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}

	r := &Registry{
		version:       doc.Version,
		profiles:      make(map[string]*Profile, len(doc.Profiles)),
		bySubtype:     make(map[string]*Profile, len(doc.Profiles)),
		types:         make(map[BuildingType]bool),
		aliases:       make(map[string]BuildingType, len(doc.Aliases)),
		classes:       make(map[ProjectClass]float64, len(doc.ProjectClasses)),
		finishes:      make(map[FinishLevel]FinishFactors, len(doc.FinishLevels)),
		locations:     normalizeLocations(doc.Locations),
		cityOverrides: normalizeLocations(doc.CityOverrides),
		primary:       make(map[BuildingType]bool),
		collision:     make(map[BuildingType]bool),
	}

	for i := range doc.Profiles {
		p := cloneProfile(doc.Profiles[i])
		r.profiles[p.Key()] = p
		r.bySubtype[p.Subtype] = p
		r.types[p.Type] = true
		r.ordered = append(r.ordered, p)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].Key() < r.ordered[j].Key()
	})

	for alias, t := range doc.Aliases {
		r.aliases[normalizeToken(alias)] = t
	}
	for c, m := range doc.ProjectClasses {
		r.classes[c] = m
	}
	for f, ff := range doc.FinishLevels {
		r.finishes[f] = ff
	}
	for _, t := range doc.PrimarySubjectTypes {
		r.primary[t] = true
	}
	for _, t := range doc.CollisionTypes {
		r.collision[t] = true
	}
	for _, rule := range doc.ExtractionRules {
		// Patterns were compiled once during validation.
		r.extraction = append(r.extraction, CompiledRule{
			Name: rule.Name,
			Re:   regexp.MustCompile(rule.Pattern),
			Min:  rule.Min,
			Max:  rule.Max,
		})
	}

	return r, nil
}

func (r *Registry) Version() int { return r.version }

// Lookup returns the profile for (t, subtype).
func (r *Registry) Lookup(t BuildingType, subtype string) (*Profile, error) {
	p, ok := r.profiles[string(t)+"/"+subtype]
	if !ok {
		return nil, apperr.New(apperr.CodeUnknownProfile, "no profile for %s/%s", t, subtype)
	}
	return p, nil
}

// LookupSubtype finds a profile by its globally unique subtype key.
func (r *Registry) LookupSubtype(subtype string) (*Profile, error) {
	p, ok := r.bySubtype[subtype]
	if !ok {
		return nil, apperr.New(apperr.CodeUnknownProfile, "no profile for subtype %q", subtype)
	}
	return p, nil
}

// Normalize maps a raw building type (any case, aliases such as
// "multifamily" or "hotel") to its canonical type.
func (r *Registry) Normalize(raw string) (BuildingType, error) {
	tok := normalizeToken(raw)
	if tok == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "building type is empty")
	}
	if r.types[BuildingType(tok)] {
		return BuildingType(tok), nil
	}
	if t, ok := r.aliases[tok]; ok {
		return t, nil
	}
	return "", apperr.New(apperr.CodeUnknownProfile, "unknown building type %q", raw)
}

// Profiles returns every profile ordered by key.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ProfilesOfType returns the profiles of t ordered by key.
func (r *Registry) ProfilesOfType(t BuildingType) []*Profile {
	var out []*Profile
	for _, p := range r.ordered {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// DefaultSubtype picks the representative profile of a type: lowest
// priority number, then alphabetical subtype.
func (r *Registry) DefaultSubtype(t BuildingType) (*Profile, error) {
	var best *Profile
	for _, p := range r.ProfilesOfType(t) {
		if best == nil || p.Hints.Priority < best.Hints.Priority {
			best = p
		}
	}
	if best == nil {
		return nil, apperr.New(apperr.CodeUnknownProfile, "no profiles for type %s", t)
	}
	return best, nil
}

func (r *Registry) ProjectClassMultiplier(c ProjectClass) (float64, error) {
	m, ok := r.classes[c]
	if !ok {
		return 0, apperr.New(apperr.CodeInvalidInput, "unknown project class %q", c)
	}
	return m, nil
}

func (r *Registry) Finish(f FinishLevel) (FinishFactors, error) {
	ff, ok := r.finishes[f]
	if !ok {
		return FinishFactors{}, apperr.New(apperr.CodeInvalidInput, "unknown finish level %q", f)
	}
	return ff, nil
}

// SharedLocation resolves a location through the cross-subtype table.
func (r *Registry) SharedLocation(location string) (float64, bool) {
	m, ok := r.locations[NormalizeLocation(location)]
	return m, ok
}

// CityOverride returns a hard override that beats every other regional
// source.
func (r *Registry) CityOverride(location string) (float64, bool) {
	m, ok := r.cityOverrides[NormalizeLocation(location)]
	return m, ok
}

// IsPrimarySubject reports whether t names a building's main purpose
// strongly enough to outrank an incidental collision-type keyword.
func (r *Registry) IsPrimarySubject(t BuildingType) bool { return r.primary[t] }

// IsCollisionType reports whether keywords of t are often incidental
// (a parking garage attached to apartments).
func (r *Registry) IsCollisionType(t BuildingType) bool { return r.collision[t] }

func (r *Registry) ExtractionRules() []CompiledRule {
	out := make([]CompiledRule, len(r.extraction))
	copy(out, r.extraction)
	return out
}

// ProfileRegional resolves a location through a profile's own sparse
// table.
func ProfileRegional(p *Profile, location string) (float64, bool) {
	m, ok := p.RegionalMultipliers[NormalizeLocation(location)]
	return m, ok
}

// NormalizeLocation lower-cases a location and drops everything after
// the first comma, so "Nashville, TN" and "nashville" resolve alike.
func NormalizeLocation(location string) string {
	loc, _, _ := strings.Cut(location, ",")
	return strings.Join(strings.Fields(strings.ToLower(loc)), " ")
}

// NormalizeKeyword lower-cases and collapses whitespace.
func NormalizeKeyword(kw string) string {
	return strings.Join(strings.Fields(strings.ToLower(kw)), " ")
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

func normalizeLocations(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[NormalizeLocation(k)] = v
	}
	return out
}

func cloneProfile(src Profile) *Profile {
	p := src
	p.SoftCosts = cloneMap(src.SoftCosts)
	p.SpecialFeatures = cloneMap(src.SpecialFeatures)
	p.RegionalMultipliers = normalizeLocations(src.RegionalMultipliers)
	p.Revenue.ExpenseRatios = cloneMap(src.Revenue.ExpenseRatios)
	p.Financing = make(map[OwnershipType]FinancingTerms, len(src.Financing))
	for k, v := range src.Financing {
		p.Financing[k] = v
	}
	p.Hints.Keywords = make([]string, len(src.Hints.Keywords))
	for i, kw := range src.Hints.Keywords {
		p.Hints.Keywords[i] = NormalizeKeyword(kw)
	}
	p.Hints.IncompatibleClasses = append([]ProjectClass(nil), src.Hints.IncompatibleClasses...)
	if src.CostClamp != nil {
		c := Clamp{}
		if src.CostClamp.Min != nil {
			v := *src.CostClamp.Min
			c.Min = &v
		}
		if src.CostClamp.Max != nil {
			v := *src.CostClamp.Max
			c.Max = &v
		}
		p.CostClamp = &c
	}
	return &p
}

func cloneMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
