package engine

import (
	"strings"

	"specsharp/internal/apperr"
	"specsharp/internal/taxonomy"
)

// Request is one calculation as received from a caller.
type Request struct {
	Description     string   `json:"description,omitempty"`
	BuildingType    string   `json:"building_type,omitempty"`
	Subtype         string   `json:"subtype,omitempty"`
	SquareFootage   float64  `json:"square_footage"`
	Location        string   `json:"location"`
	ProjectClass    string   `json:"project_class,omitempty"`
	Floors          int      `json:"floors,omitempty"`
	OwnershipType   string   `json:"ownership_type,omitempty"`
	FinishLevel     string   `json:"finish_level,omitempty"`
	SpecialFeatures []string `json:"special_features,omitempty"`
}

type options struct {
	class     taxonomy.ProjectClass
	finish    taxonomy.FinishLevel
	ownership taxonomy.OwnershipType
}

func enumToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// ParseProjectClass normalizes a caller-supplied project class. An empty
// string stays empty.
func ParseProjectClass(raw string) (taxonomy.ProjectClass, error) {
	switch c := taxonomy.ProjectClass(enumToken(raw)); c {
	case "", taxonomy.ClassGroundUp, taxonomy.ClassRenovation, taxonomy.ClassAddition, taxonomy.ClassTenantImprovement:
		return c, nil
	default:
		return "", apperr.New(apperr.CodeInvalidInput, "unknown project_class %q", raw)
	}
}

// parseOptions normalizes the enumerated request fields ("Ground-Up",
// "tenant improvement") and applies defaults.
func (r Request) parseOptions() (options, error) {
	var o options

	class, err := ParseProjectClass(r.ProjectClass)
	if err != nil {
		return o, err
	}
	o.class = class
	if o.class == "" {
		o.class = taxonomy.ClassGroundUp
	}

	switch f := taxonomy.FinishLevel(enumToken(r.FinishLevel)); f {
	case "":
		o.finish = taxonomy.FinishStandard
	case taxonomy.FinishStandard, taxonomy.FinishPremium, taxonomy.FinishLuxury:
		o.finish = f
	default:
		return o, apperr.New(apperr.CodeInvalidInput, "unknown finish_level %q", r.FinishLevel)
	}

	switch ow := taxonomy.OwnershipType(enumToken(r.OwnershipType)); ow {
	case "":
		// Resolved against the profile's financing once it is known.
	case taxonomy.OwnershipForProfit, taxonomy.OwnershipNonprofit, taxonomy.OwnershipGovernment:
		o.ownership = ow
	default:
		return o, apperr.New(apperr.CodeInvalidInput, "unknown ownership_type %q", r.OwnershipType)
	}

	if r.SquareFootage <= 0 {
		return o, apperr.New(apperr.CodeInvalidInput, "square_footage must be > 0")
	}
	if r.Floors < 0 {
		return o, apperr.New(apperr.CodeInvalidInput, "floors must be >= 0")
	}
	return o, nil
}
