// Package classifier resolves a project description and/or an explicit
// type override to one canonical (type, subtype) of the taxonomy.
//
// Resolution is a fixed pipeline: scan the text phrase-first, collect
// every profile with a keyword hit, then narrow the candidates with an
// ordered rule table. The rule that narrowed the set to a single profile
// is reported as the conflict resolution, so every answer says how it was
// reached.
package classifier

import (
	"regexp"
	"sort"
	"strings"

	"specsharp/internal/apperr"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

// DetectionSource says where the winning classification came from.
type DetectionSource string

const (
	SourceExplicit             DetectionSource = "explicit"
	SourceExplicitTypeWithText DetectionSource = "explicit_type_with_text"
	SourcePhrase               DetectionSource = "phrase"
	SourceKeyword              DetectionSource = "keyword"
)

// Resolution names the rule that settled the classification.
type Resolution string

const (
	ResolutionExplicitOverride Resolution = "explicit_override"
	ResolutionExplicitType     Resolution = "explicit_type"
	ResolutionSingleMatch      Resolution = "single_match"
	ResolutionExcluded         Resolution = "excluded_by_project_class"
	ResolutionDomainCollision  Resolution = "domain_collision_demoted"
	ResolutionPriority         Resolution = "priority"
	ResolutionMatchCount       Resolution = "match_count"
	ResolutionAlphabetical     Resolution = "alphabetical"
)

var confidence = map[Resolution]float64{
	ResolutionExplicitOverride: 1.0,
	ResolutionExplicitType:     0.9,
	ResolutionExcluded:         0.8,
	ResolutionDomainCollision:  0.8,
	ResolutionPriority:         0.75,
	ResolutionMatchCount:       0.7,
	ResolutionAlphabetical:     0.5,
}

const (
	phraseConfidence  = 0.95
	keywordConfidence = 0.85
)

// Input is everything the classifier looks at. All fields are optional,
// but at least one of Text and BuildingType must resolve.
type Input struct {
	Text         string
	BuildingType string
	Subtype      string
	ProjectClass taxonomy.ProjectClass
}

type Result struct {
	Type               taxonomy.BuildingType `json:"building_type"`
	Subtype            string                `json:"subtype,omitempty"`
	Confidence         float64               `json:"confidence"`
	MatchedKeywords    []string              `json:"matched_keywords"`
	DetectionSource    DetectionSource       `json:"detection_source"`
	ConflictResolution Resolution            `json:"conflict_resolution"`
	DemotedFeatures    []string              `json:"demoted_features,omitempty"`
	Excluded           []string              `json:"excluded,omitempty"`
	Counts             map[string]int        `json:"extracted_counts,omitempty"`
}

type keywordMatcher struct {
	keyword  string
	words    int
	re       *regexp.Regexp
	profiles []*taxonomy.Profile
}

// Classifier is built once per Registry and is safe for concurrent use.
type Classifier struct {
	reg      *taxonomy.Registry
	matchers []keywordMatcher
	rules    []taxonomy.CompiledRule
}

func New(reg *taxonomy.Registry) *Classifier {
	byKeyword := make(map[string][]*taxonomy.Profile)
	for _, p := range reg.Profiles() {
		for _, kw := range p.Hints.Keywords {
			byKeyword[kw] = append(byKeyword[kw], p)
		}
	}

	matchers := make([]keywordMatcher, 0, len(byKeyword))
	for kw, profiles := range byKeyword {
		words := strings.Fields(kw)
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		matchers = append(matchers, keywordMatcher{
			keyword:  kw,
			words:    len(words),
			re:       regexp.MustCompile(`\b` + strings.Join(quoted, `\s+`) + `\b`),
			profiles: profiles,
		})
	}
	// Phrases first: more words, then longer text, then alphabetical.
	sort.Slice(matchers, func(i, j int) bool {
		a, b := matchers[i], matchers[j]
		if a.words != b.words {
			return a.words > b.words
		}
		if len(a.keyword) != len(b.keyword) {
			return len(a.keyword) > len(b.keyword)
		}
		return a.keyword < b.keyword
	})

	return &Classifier{
		reg:      reg,
		matchers: matchers,
		rules:    reg.ExtractionRules(),
	}
}

// candidate is one profile with keyword hits in the text.
type candidate struct {
	profile  *taxonomy.Profile
	keywords []string
	hits     int
	phrase   bool
	// first is the byte offset of the earliest hit.
	first int
}

type span struct{ start, end int }

func overlaps(spans []span, s span) bool {
	for _, c := range spans {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

// scan finds keyword hits. A matched phrase consumes its span so a generic
// keyword inside it ("school" in "elementary school") cannot hit again.
func (c *Classifier) scan(text string) []*candidate {
	byKey := make(map[string]*candidate)
	var order []*candidate
	var consumed []span

	for _, m := range c.matchers {
		var claimed []span
		for _, loc := range m.re.FindAllStringIndex(text, -1) {
			s := span{loc[0], loc[1]}
			if overlaps(consumed, s) {
				continue
			}
			claimed = append(claimed, s)
		}
		if len(claimed) == 0 {
			continue
		}
		for _, p := range m.profiles {
			cand, ok := byKey[p.Key()]
			if !ok {
				cand = &candidate{profile: p, first: claimed[0].start}
				byKey[p.Key()] = cand
				order = append(order, cand)
			}
			if claimed[0].start < cand.first {
				cand.first = claimed[0].start
			}
			cand.keywords = append(cand.keywords, m.keyword)
			cand.hits += len(claimed)
			if m.words > 1 {
				cand.phrase = true
			}
		}
		consumed = append(consumed, claimed...)
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].profile.Key() < order[j].profile.Key()
	})
	return order
}

// Classify resolves in to a canonical classification and records the
// outcome in tr.
func (c *Classifier) Classify(in Input, tr *trace.Trace) (*Result, error) {
	text := taxonomy.NormalizeKeyword(in.Text)
	counts := c.extract(text, tr)

	res, err := c.resolve(in, text)
	if err != nil {
		return nil, err
	}
	res.Counts = counts

	tr.Record(trace.StepClassified, map[string]any{
		"building_type":       string(res.Type),
		"subtype":             res.Subtype,
		"detection_source":    string(res.DetectionSource),
		"conflict_resolution": string(res.ConflictResolution),
		"matched_keywords":    res.MatchedKeywords,
		"demoted_features":    res.DemotedFeatures,
		"confidence":          res.Confidence,
	})
	return res, nil
}

func (c *Classifier) resolve(in Input, text string) (*Result, error) {
	if strings.TrimSpace(in.BuildingType) == "" && strings.TrimSpace(in.Subtype) != "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "subtype %q given without a building type", in.Subtype)
	}

	var explicitType taxonomy.BuildingType
	if strings.TrimSpace(in.BuildingType) != "" {
		t, err := c.reg.Normalize(in.BuildingType)
		if err != nil {
			return nil, err
		}
		explicitType = t
	}

	if explicitType != "" && in.Subtype != "" {
		p, err := c.reg.Lookup(explicitType, in.Subtype)
		if err != nil {
			return nil, err
		}
		return &Result{
			Type:               p.Type,
			Subtype:            p.Subtype,
			Confidence:         confidence[ResolutionExplicitOverride],
			MatchedKeywords:    []string{},
			DetectionSource:    SourceExplicit,
			ConflictResolution: ResolutionExplicitOverride,
		}, nil
	}

	cands := c.scan(text)
	if explicitType != "" {
		cands = filterType(cands, explicitType)
		if len(cands) == 0 {
			// The type is known but the text does not pick a subtype.
			return &Result{
				Type:               explicitType,
				Confidence:         confidence[ResolutionExplicitType],
				MatchedKeywords:    []string{},
				DetectionSource:    SourceExplicit,
				ConflictResolution: ResolutionExplicitType,
			}, nil
		}
	}
	if len(cands) == 0 {
		return nil, apperr.New(apperr.CodeAmbiguousInput,
			"no building type recognised in description; supply building_type")
	}

	st := &state{candidates: cands, class: in.ProjectClass, reg: c.reg}
	resolution := ResolutionSingleMatch
	if len(st.candidates) > 1 {
		for _, r := range ruleTable {
			before := len(st.candidates)
			r.apply(st)
			if len(st.candidates) == 0 {
				return nil, apperr.New(apperr.CodeAmbiguousInput,
					"every matching building type is incompatible with project class %s", in.ProjectClass)
			}
			if len(st.candidates) < before {
				resolution = r.code
			}
			if len(st.candidates) == 1 {
				break
			}
		}
	} else {
		// A single hit can still be excluded by the project class.
		exclude(st)
		if len(st.candidates) == 0 {
			return nil, apperr.New(apperr.CodeAmbiguousInput,
				"%s is incompatible with project class %s", cands[0].profile.Key(), in.ProjectClass)
		}
	}

	win := st.candidates[0]
	res := &Result{
		Type:               win.profile.Type,
		Subtype:            win.profile.Subtype,
		MatchedKeywords:    append([]string(nil), win.keywords...),
		ConflictResolution: resolution,
		DemotedFeatures:    st.demoted,
		Excluded:           st.excluded,
	}

	switch {
	case explicitType != "":
		res.DetectionSource = SourceExplicitTypeWithText
	case win.phrase:
		res.DetectionSource = SourcePhrase
	default:
		res.DetectionSource = SourceKeyword
	}

	if resolution == ResolutionSingleMatch {
		res.Confidence = keywordConfidence
		if win.phrase {
			res.Confidence = phraseConfidence
		}
	} else {
		res.Confidence = confidence[resolution]
	}
	return res, nil
}

func filterType(cands []*candidate, t taxonomy.BuildingType) []*candidate {
	var out []*candidate
	for _, c := range cands {
		if c.profile.Type == t {
			out = append(out, c)
		}
	}
	return out
}
