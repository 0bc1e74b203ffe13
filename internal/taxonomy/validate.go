package taxonomy

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"specsharp/internal/apperr"
)

const (
	tradeSumTolerance     = 1e-6
	financingSumTolerance = 1e-4
	expenseSumTolerance   = 1e-6
)

var subtypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks every structural invariant of doc. All violations are
// collected so a broken taxonomy reports every bad key at once.
func Validate(doc Document) error {
	v := &validator{}

	if doc.Version < 1 {
		v.addf("version: must be >= 1, got %d", doc.Version)
	}
	v.validateGlobals(doc)

	types := make(map[BuildingType]bool)
	seen := make(map[string]bool)
	if len(doc.Profiles) == 0 {
		v.addf("profiles: at least one profile is required")
	}
	for i := range doc.Profiles {
		p := &doc.Profiles[i]
		if p.Subtype != "" && seen[p.Subtype] {
			v.addf("%s: duplicate subtype", p.Key())
		}
		seen[p.Subtype] = true
		types[p.Type] = true
		v.validateProfile(p)
	}

	for alias, t := range doc.Aliases {
		if !types[t] {
			v.addf("aliases.%s: target type %q has no profiles", alias, t)
		}
	}
	for _, t := range doc.PrimarySubjectTypes {
		if !types[t] {
			v.addf("primary_subject_types: %q has no profiles", t)
		}
	}
	for _, t := range doc.CollisionTypes {
		if !types[t] {
			v.addf("collision_types: %q has no profiles", t)
		}
	}

	if len(v.problems) == 0 {
		return nil
	}
	return apperr.Wrap(apperr.CodeInvalidTaxonomy, errors.Join(v.problems...),
		"taxonomy has %d invalid entries", len(v.problems))
}

type validator struct {
	problems []error
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) validateGlobals(doc Document) {
	for _, c := range ProjectClasses {
		m, ok := doc.ProjectClasses[c]
		switch {
		case !ok:
			v.addf("project_classes.%s: missing", c)
		case m <= 0:
			v.addf("project_classes.%s: multiplier must be > 0, got %v", c, m)
		}
	}
	for c := range doc.ProjectClasses {
		if !knownClass(c) {
			v.addf("project_classes.%s: unknown project class", c)
		}
	}

	for _, f := range FinishLevels {
		ff, ok := doc.FinishLevels[f]
		switch {
		case !ok:
			v.addf("finish_levels.%s: missing", f)
		case ff.Cost <= 0 || ff.Revenue <= 0:
			v.addf("finish_levels.%s: cost and revenue factors must be > 0", f)
		}
	}

	for loc, m := range doc.Locations {
		if m <= 0 {
			v.addf("locations.%s: multiplier must be > 0, got %v", loc, m)
		}
	}
	for loc, m := range doc.CityOverrides {
		if m <= 0 {
			v.addf("city_overrides.%s: multiplier must be > 0, got %v", loc, m)
		}
	}

	names := make(map[string]bool)
	for i, rule := range doc.ExtractionRules {
		key := fmt.Sprintf("extraction_rules[%d]", i)
		if rule.Name == "" {
			v.addf("%s.name: missing", key)
		} else {
			key = "extraction_rules." + rule.Name
			if names[rule.Name] {
				v.addf("%s: duplicate rule name", key)
			}
			names[rule.Name] = true
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			v.addf("%s.pattern: %v", key, err)
		} else if re.NumSubexp() < 1 {
			v.addf("%s.pattern: needs a capture group for the count", key)
		}
		if rule.Min < 0 || rule.Min > rule.Max {
			v.addf("%s: range [%d,%d] is invalid", key, rule.Min, rule.Max)
		}
	}
}

func (v *validator) validateProfile(p *Profile) {
	key := p.Key()

	if p.Type == "" {
		v.addf("%s.type: missing", key)
	}
	if !subtypePattern.MatchString(p.Subtype) {
		v.addf("%s.subtype: %q must be lower snake case", key, p.Subtype)
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		v.addf("%s.display_name: missing", key)
	}

	if p.BaseCostPerSF <= 0 {
		v.addf("%s.base_cost_per_sf: must be > 0", key)
	}
	if p.CostRange.Min <= 0 || p.CostRange.Min > p.CostRange.Max {
		v.addf("%s.cost_range: [%v,%v] is invalid", key, p.CostRange.Min, p.CostRange.Max)
	}
	if p.EquipmentCostPerSF < 0 {
		v.addf("%s.equipment_cost_per_sf: must be >= 0", key)
	}
	if p.TypicalFloors < 1 {
		v.addf("%s.typical_floors: must be >= 1", key)
	}
	if p.MarketCapRate <= 0 || p.MarketCapRate >= 1 {
		v.addf("%s.market_cap_rate: must be in (0,1), got %v", key, p.MarketCapRate)
	}
	if c := p.CostClamp; c != nil {
		if c.Min == nil && c.Max == nil {
			v.addf("%s.cost_clamp: needs min or max", key)
		}
		if c.Min != nil && *c.Min <= 0 {
			v.addf("%s.cost_clamp.min: must be > 0", key)
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			v.addf("%s.cost_clamp: min %v exceeds max %v", key, *c.Min, *c.Max)
		}
	}

	for _, ts := range p.TradeBreakdown.Shares() {
		if ts.Share < 0 || ts.Share > 1 {
			v.addf("%s.trade_breakdown.%s: %v outside [0,1]", key, ts.Trade, ts.Share)
		}
	}
	if sum := p.TradeBreakdown.Sum(); math.Abs(sum-1) > tradeSumTolerance {
		v.addf("%s.trade_breakdown: shares sum to %.8f, want 1.0", key, sum)
	}

	if len(p.SoftCosts) == 0 {
		v.addf("%s.soft_costs: missing", key)
	}
	for _, name := range p.SoftCostKeys() {
		if s := p.SoftCosts[name]; s < 0 || s >= 1 {
			v.addf("%s.soft_costs.%s: %v outside [0,1)", key, name, s)
		}
	}
	if sum := p.SoftCostSum(); sum >= 1 {
		v.addf("%s.soft_costs: sum %v must be < 1.0", key, sum)
	}

	if len(p.Financing) == 0 {
		v.addf("%s.financing: at least one ownership type is required", key)
	}
	for owner, f := range p.Financing {
		fkey := fmt.Sprintf("%s.financing.%s", key, owner)
		for name, r := range map[string]float64{
			"debt_ratio":         f.DebtRatio,
			"equity_ratio":       f.EquityRatio,
			"grants_ratio":       f.GrantsRatio,
			"philanthropy_ratio": f.PhilanthropyRatio,
		} {
			if r < 0 || r > 1 {
				v.addf("%s.%s: %v outside [0,1]", fkey, name, r)
			}
		}
		if sum := f.RatioSum(); math.Abs(sum-1) > financingSumTolerance {
			v.addf("%s: capital ratios sum to %v, want 1.0", fkey, sum)
		}
		if f.DebtRate < 0 || f.DebtRate >= 1 {
			v.addf("%s.debt_rate: %v outside [0,1)", fkey, f.DebtRate)
		}
		if f.TargetDSCR < 0 || f.TargetROI < 0 {
			v.addf("%s: targets must be >= 0", fkey)
		}
	}

	if len(p.Hints.Keywords) == 0 {
		v.addf("%s.classification_hints.keywords: missing", key)
	}
	kws := make(map[string]bool)
	for _, kw := range p.Hints.Keywords {
		n := NormalizeKeyword(kw)
		if n == "" {
			v.addf("%s.classification_hints.keywords: empty keyword", key)
			continue
		}
		if kws[n] {
			v.addf("%s.classification_hints.keywords: duplicate %q", key, n)
		}
		kws[n] = true
	}
	if p.Hints.Priority < 0 {
		v.addf("%s.classification_hints.priority: must be >= 0", key)
	}
	for _, c := range p.Hints.IncompatibleClasses {
		if !knownClass(c) {
			v.addf("%s.classification_hints.incompatible_classes: unknown class %q", key, c)
		}
	}

	for loc, m := range p.RegionalMultipliers {
		if m <= 0 {
			v.addf("%s.regional_multipliers.%s: must be > 0", key, loc)
		}
	}
	for feat, c := range p.SpecialFeatures {
		if c < 0 {
			v.addf("%s.special_features.%s: must be >= 0", key, feat)
		}
	}

	v.validateRevenue(key, p.Revenue)
}

func (v *validator) validateRevenue(key string, rm RevenueModel) {
	key += ".revenue_model"
	if !rm.Basis.valid() {
		v.addf("%s.basis: unknown basis %q", key, rm.Basis)
	}
	if rm.Rate <= 0 {
		v.addf("%s.rate: must be > 0", key)
	}
	if rm.Basis != BasisPerSF && rm.SFPerUnit <= 0 {
		v.addf("%s.sf_per_unit: required for basis %s", key, rm.Basis)
	}
	if rm.Basis == BasisPerSF && rm.SFPerUnit != 0 {
		v.addf("%s.sf_per_unit: not allowed for basis per_sf", key)
	}
	for name, t := range map[string]Tier{"occupancy": rm.Occupancy, "operating_margin": rm.OperatingMargin} {
		if t.Base <= 0 || t.Base > 1 || t.Premium <= 0 || t.Premium > 1 {
			v.addf("%s.%s: base and premium must be in (0,1]", key, name)
		}
	}
	if len(rm.ExpenseRatios) == 0 {
		v.addf("%s.expense_ratios: missing", key)
		return
	}
	sum := 0.0
	for _, name := range sortedKeys(rm.ExpenseRatios) {
		r := rm.ExpenseRatios[name]
		if r < 0 || r > 1 {
			v.addf("%s.expense_ratios.%s: %v outside [0,1]", key, name, r)
		}
		sum += r
	}
	if math.Abs(sum-1) > expenseSumTolerance {
		v.addf("%s.expense_ratios: shares sum to %v, want 1.0", key, sum)
	}
}

func knownClass(c ProjectClass) bool {
	for _, k := range ProjectClasses {
		if k == c {
			return true
		}
	}
	return false
}
