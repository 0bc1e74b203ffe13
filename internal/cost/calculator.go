// Package cost turns a taxonomy profile plus project size, location,
// class and finish into construction, equipment, trade, special-feature
// and soft-cost figures.
//
// PURE business logic: no I/O, no logging, no rounding. Every value is
// carried at full precision and every step is recorded in the trace.
package cost

import (
	"math"
	"sort"
	"strings"

	"specsharp/internal/apperr"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

// RegionalSource names which table supplied the regional multiplier.
type RegionalSource string

const (
	RegionalCityOverride RegionalSource = "city_override"
	RegionalProfile      RegionalSource = "profile"
	RegionalShared       RegionalSource = "shared"
	RegionalDefault      RegionalSource = "default"
)

type Input struct {
	SquareFootage   float64
	Location        string
	ProjectClass    taxonomy.ProjectClass
	FinishLevel     taxonomy.FinishLevel
	Floors          int
	SpecialFeatures []string
}

type TradeCost struct {
	Trade  string  `json:"trade"`
	Share  float64 `json:"share"`
	Amount float64 `json:"amount"`
}

type FeatureCost struct {
	Feature   string  `json:"feature"`
	CostPerSF float64 `json:"cost_per_sf"`
	Amount    float64 `json:"amount"`
}

type SoftCost struct {
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

// Result is the full cost breakdown of one project.
type Result struct {
	Type          taxonomy.BuildingType `json:"building_type"`
	Subtype       string                `json:"subtype"`
	DisplayName   string                `json:"display_name"`
	SquareFootage float64               `json:"square_footage"`
	Floors        int                   `json:"floors"`
	Location      string                `json:"location"`
	ProjectClass  taxonomy.ProjectClass `json:"project_class"`
	FinishLevel   taxonomy.FinishLevel  `json:"finish_level"`

	BaseCostPerSF          float64        `json:"base_cost_per_sf"`
	RegionalMultiplier     float64        `json:"regional_multiplier"`
	RegionalSource         RegionalSource `json:"regional_source"`
	ProjectClassMultiplier float64        `json:"project_class_multiplier"`
	FinishCostFactor       float64        `json:"finish_cost_factor"`
	FinishRevenueFactor    float64        `json:"finish_revenue_factor"`

	// ConstructionCostPerSF is the blended rate after any clamp.
	ConstructionCostPerSF float64 `json:"construction_cost_per_sf"`
	ClampApplied          bool    `json:"clamp_applied"`

	ConstructionTotal    float64       `json:"construction_total"`
	EquipmentTotal       float64       `json:"equipment_total"`
	Trades               []TradeCost   `json:"trade_breakdown"`
	SpecialFeatures      []FeatureCost `json:"special_features"`
	SpecialFeaturesTotal float64       `json:"special_features_total"`
	SoftCosts            []SoftCost    `json:"soft_costs"`
	SoftCostsTotal       float64       `json:"soft_costs_total"`
	TotalProjectCost     float64       `json:"total_project_cost"`
	CostPerSF            float64       `json:"cost_per_sf"`
}

type Calculator struct {
	reg *taxonomy.Registry
}

func New(reg *taxonomy.Registry) *Calculator {
	return &Calculator{reg: reg}
}

// Calculate resolves (t, subtype) and prices the project.
func (c *Calculator) Calculate(t taxonomy.BuildingType, subtype string, in Input, tr *trace.Trace) (*Result, error) {
	p, err := c.reg.Lookup(t, subtype)
	if err != nil {
		return nil, err
	}
	return c.CalculateProfile(p, in, tr)
}

// CalculateProfile prices the project against an already resolved
// profile.
func (c *Calculator) CalculateProfile(p *taxonomy.Profile, in Input, tr *trace.Trace) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	sf := in.SquareFootage

	class := in.ProjectClass
	if class == "" {
		class = taxonomy.ClassGroundUp
	}
	finish := in.FinishLevel
	if finish == "" {
		finish = taxonomy.FinishStandard
	}
	floors := in.Floors
	if floors == 0 {
		floors = p.TypicalFloors
	}

	res := &Result{
		Type:          p.Type,
		Subtype:       p.Subtype,
		DisplayName:   p.DisplayName,
		SquareFootage: sf,
		Floors:        floors,
		Location:      in.Location,
		ProjectClass:  class,
		FinishLevel:   finish,
	}

	// 1. base cost
	res.BaseCostPerSF = p.BaseCostPerSF
	tr.Record(trace.StepBaseCost, map[string]any{
		"profile":          p.Key(),
		"base_cost_per_sf": p.BaseCostPerSF,
	})

	// 2. regional multiplier
	res.RegionalMultiplier, res.RegionalSource = c.regional(p, in.Location)
	if res.RegionalSource == RegionalCityOverride {
		tr.Record(trace.StepRegionalOverride, map[string]any{
			"location":   taxonomy.NormalizeLocation(in.Location),
			"multiplier": res.RegionalMultiplier,
		})
	}
	tr.Record(trace.StepRegionalMultiplier, map[string]any{
		"location":   in.Location,
		"multiplier": res.RegionalMultiplier,
		"source":     string(res.RegionalSource),
	})

	// 3. project class
	classMult, err := c.reg.ProjectClassMultiplier(class)
	if err != nil {
		return nil, err
	}
	res.ProjectClassMultiplier = classMult
	tr.Record(trace.StepProjectClass, map[string]any{
		"project_class": string(class),
		"multiplier":    classMult,
	})

	// 4. finish level; the revenue factor is carried for the analyzer
	ff, err := c.reg.Finish(finish)
	if err != nil {
		return nil, err
	}
	res.FinishCostFactor = ff.Cost
	res.FinishRevenueFactor = ff.Revenue
	tr.Record(trace.StepFinishLevel, map[string]any{
		"finish_level":   string(finish),
		"cost_factor":    ff.Cost,
		"revenue_factor": ff.Revenue,
	})

	// 5. blended rate, clamped, then construction total
	blended := res.BaseCostPerSF * res.RegionalMultiplier * classMult * ff.Cost
	res.ConstructionCostPerSF = blended
	if clamped, ok := applyClamp(p.CostClamp, blended); ok {
		res.ConstructionCostPerSF = clamped
		res.ClampApplied = true
		payload := map[string]any{
			"computed_cost_per_sf": blended,
			"clamped_cost_per_sf":  clamped,
		}
		if p.CostClamp.Min != nil {
			payload["min"] = *p.CostClamp.Min
		}
		if p.CostClamp.Max != nil {
			payload["max"] = *p.CostClamp.Max
		}
		tr.Record(trace.StepCostClampApplied, payload)
	}
	if r := res.ConstructionCostPerSF; r < p.CostRange.Min || r > p.CostRange.Max {
		tr.Record(trace.StepCostRangeOutside, map[string]any{
			"cost_per_sf": r,
			"range_min":   p.CostRange.Min,
			"range_max":   p.CostRange.Max,
		})
	}
	res.ConstructionTotal = res.ConstructionCostPerSF * sf
	tr.Record(trace.StepConstructionTotal, map[string]any{
		"construction_cost_per_sf": res.ConstructionCostPerSF,
		"square_footage":           sf,
		"construction_total":       res.ConstructionTotal,
	})

	// 6. equipment
	res.EquipmentTotal = p.EquipmentCostPerSF * sf
	tr.Record(trace.StepEquipmentTotal, map[string]any{
		"equipment_cost_per_sf": p.EquipmentCostPerSF,
		"equipment_total":       res.EquipmentTotal,
	})

	// 7. trades
	trades := make(map[string]any, 5)
	for _, ts := range p.TradeBreakdown.Shares() {
		amount := ts.Share * res.ConstructionTotal
		res.Trades = append(res.Trades, TradeCost{Trade: ts.Trade, Share: ts.Share, Amount: amount})
		trades[ts.Trade] = amount
	}
	tr.Record(trace.StepTradeBreakdown, trades)

	// 8. special features
	features, err := resolveFeatures(p, in.SpecialFeatures)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		perSF := p.SpecialFeatures[f]
		amount := perSF * sf
		res.SpecialFeatures = append(res.SpecialFeatures, FeatureCost{Feature: f, CostPerSF: perSF, Amount: amount})
		res.SpecialFeaturesTotal += amount
	}
	tr.Record(trace.StepSpecialFeatures, map[string]any{
		"features":               features,
		"special_features_total": res.SpecialFeaturesTotal,
	})

	// 9. soft costs
	soft := make(map[string]any, len(p.SoftCosts))
	for _, name := range p.SoftCostKeys() {
		rate := p.SoftCosts[name]
		amount := rate * res.ConstructionTotal
		res.SoftCosts = append(res.SoftCosts, SoftCost{Name: name, Rate: rate, Amount: amount})
		res.SoftCostsTotal += amount
		soft[name] = amount
	}
	soft["soft_costs_total"] = res.SoftCostsTotal
	tr.Record(trace.StepSoftCosts, soft)

	// 10. total and 11. cost per sf
	res.TotalProjectCost = res.ConstructionTotal + res.EquipmentTotal + res.SpecialFeaturesTotal + res.SoftCostsTotal
	tr.Record(trace.StepTotalProjectCost, map[string]any{
		"construction_total":     res.ConstructionTotal,
		"equipment_total":        res.EquipmentTotal,
		"special_features_total": res.SpecialFeaturesTotal,
		"soft_costs_total":       res.SoftCostsTotal,
		"total_project_cost":     res.TotalProjectCost,
	})
	res.CostPerSF = res.TotalProjectCost / sf
	tr.Record(trace.StepCostPerSF, map[string]any{"cost_per_sf": res.CostPerSF})

	if err := checkInvariants(res); err != nil {
		return nil, err
	}
	return res, nil
}

// regional walks the multiplier chain: city override, the profile's own
// table, the shared location table, then 1.0.
func (c *Calculator) regional(p *taxonomy.Profile, location string) (float64, RegionalSource) {
	if m, ok := c.reg.CityOverride(location); ok {
		return m, RegionalCityOverride
	}
	if m, ok := taxonomy.ProfileRegional(p, location); ok {
		return m, RegionalProfile
	}
	if m, ok := c.reg.SharedLocation(location); ok {
		return m, RegionalShared
	}
	return 1.0, RegionalDefault
}

func applyClamp(c *taxonomy.Clamp, v float64) (float64, bool) {
	if c == nil {
		return v, false
	}
	if c.Min != nil && v < *c.Min {
		return *c.Min, true
	}
	if c.Max != nil && v > *c.Max {
		return *c.Max, true
	}
	return v, false
}

// resolveFeatures normalizes and de-duplicates requested features. A
// feature the profile does not price is an error, never skipped.
func resolveFeatures(p *taxonomy.Profile, requested []string) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	out := []string{}
	var unknown []string
	for _, raw := range requested {
		f := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		if _, ok := p.SpecialFeatures[f]; !ok {
			unknown = append(unknown, f)
			continue
		}
		out = append(out, f)
	}
	if len(unknown) > 0 {
		available := make([]string, 0, len(p.SpecialFeatures))
		for f := range p.SpecialFeatures {
			available = append(available, f)
		}
		sort.Strings(available)
		return nil, apperr.New(apperr.CodeUnknownFeature,
			"special features %v are not offered for %s (available: %s)",
			unknown, p.Key(), strings.Join(available, ", "))
	}
	sort.Strings(out)
	return out, nil
}

func validateInput(in Input) error {
	if math.IsNaN(in.SquareFootage) || math.IsInf(in.SquareFootage, 0) || in.SquareFootage <= 0 {
		return apperr.New(apperr.CodeInvalidInput, "square_footage must be > 0, got %v", in.SquareFootage)
	}
	if in.Floors < 0 {
		return apperr.New(apperr.CodeInvalidInput, "floors must be >= 0, got %d", in.Floors)
	}
	return nil
}

func checkInvariants(res *Result) error {
	values := map[string]float64{
		"construction_cost_per_sf": res.ConstructionCostPerSF,
		"construction_total":       res.ConstructionTotal,
		"equipment_total":          res.EquipmentTotal,
		"special_features_total":   res.SpecialFeaturesTotal,
		"soft_costs_total":         res.SoftCostsTotal,
		"total_project_cost":       res.TotalProjectCost,
		"cost_per_sf":              res.CostPerSF,
	}
	for _, name := range []string{
		"construction_cost_per_sf", "construction_total", "equipment_total",
		"special_features_total", "soft_costs_total", "total_project_cost", "cost_per_sf",
	} {
		v := values[name]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.New(apperr.CodeInternalInvariant, "%s is %v for %s/%s", name, v, res.Type, res.Subtype)
		}
	}
	return nil
}
