package engine

import (
	"math"
	"sort"

	"specsharp/internal/classifier"
	"specsharp/internal/cost"
	"specsharp/internal/dealshield"
	"specsharp/internal/finance"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

type ProjectInfo struct {
	BuildingType    taxonomy.BuildingType  `json:"building_type"`
	Subtype         string                 `json:"subtype"`
	DisplayName     string                 `json:"display_name"`
	Description     string                 `json:"description,omitempty"`
	SquareFootage   float64                `json:"square_footage"`
	Floors          int                    `json:"floors"`
	Location        string                 `json:"location"`
	ProjectClass    taxonomy.ProjectClass  `json:"project_class"`
	FinishLevel     taxonomy.FinishLevel   `json:"finish_level"`
	OwnershipType   taxonomy.OwnershipType `json:"ownership_type"`
	TaxonomyVersion int                    `json:"taxonomy_version"`
}

type ConstructionCosts struct {
	BaseCostPerSF          float64             `json:"base_cost_per_sf"`
	RegionalMultiplier     float64             `json:"regional_multiplier"`
	RegionalSource         cost.RegionalSource `json:"regional_source"`
	ProjectClassMultiplier float64             `json:"project_class_multiplier"`
	FinishCostFactor       float64             `json:"finish_cost_factor"`
	ConstructionCostPerSF  float64             `json:"construction_cost_per_sf"`
	ClampApplied           bool                `json:"clamp_applied"`
	ConstructionTotal      float64             `json:"construction_total"`
	EquipmentTotal         float64             `json:"equipment_total"`
	Trades                 []cost.TradeCost    `json:"trade_breakdown"`
	SpecialFeatures        []cost.FeatureCost  `json:"special_features"`
	SpecialFeaturesTotal   float64             `json:"special_features_total"`
}

type SoftCosts struct {
	Items []cost.SoftCost `json:"items"`
	Total float64         `json:"total"`
}

type Totals struct {
	ConstructionTotal    float64 `json:"construction_total"`
	EquipmentTotal       float64 `json:"equipment_total"`
	SpecialFeaturesTotal float64 `json:"special_features_total"`
	SoftCostsTotal       float64 `json:"soft_costs_total"`
	TotalProjectCost     float64 `json:"total_project_cost"`
	CostPerSF            float64 `json:"cost_per_sf"`
}

// Result is the immutable bundle returned for one calculation.
type Result struct {
	ProjectInfo       ProjectInfo             `json:"project_info"`
	Classification    classifier.Result       `json:"classification"`
	ConstructionCosts ConstructionCosts       `json:"construction_costs"`
	SoftCosts         SoftCosts               `json:"soft_costs"`
	Totals            Totals                  `json:"totals"`
	RevenueAnalysis   finance.RevenueAnalysis `json:"revenue_analysis"`
	Financing         finance.Financing       `json:"financing"`
	ReturnMetrics     finance.ReturnMetrics   `json:"return_metrics"`
	DealShield        dealshield.Decision     `json:"dealshield_scenarios"`
	Trace             []trace.Step            `json:"calculation_trace"`
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func cents(v float64) float64 { return roundTo(v, 2) }

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := roundTo(*v, places)
	return &r
}

// Rounded returns a copy with money rounded to cents and ratios to four
// places. It is the only place rounding happens; the receiver is left at
// full precision.
func (r *Result) Rounded() *Result {
	out := *r

	out.Totals = r.Totals.rounded(r.ProjectInfo.SquareFootage)
	t := out.Totals

	cc := &out.ConstructionCosts
	cc.ConstructionCostPerSF = cents(cc.ConstructionCostPerSF)
	cc.ConstructionTotal = t.ConstructionTotal
	cc.EquipmentTotal = t.EquipmentTotal
	cc.SpecialFeaturesTotal = t.SpecialFeaturesTotal

	trades := make([]float64, len(r.ConstructionCosts.Trades))
	for i, tc := range r.ConstructionCosts.Trades {
		trades[i] = tc.Amount
	}
	tradeCents := allocateCents(toCents(t.ConstructionTotal), trades)
	cc.Trades = make([]cost.TradeCost, len(r.ConstructionCosts.Trades))
	for i, tc := range r.ConstructionCosts.Trades {
		tc.Amount = fromCents(tradeCents[i])
		cc.Trades[i] = tc
	}

	features := make([]float64, len(r.ConstructionCosts.SpecialFeatures))
	for i, f := range r.ConstructionCosts.SpecialFeatures {
		features[i] = f.Amount
	}
	featureCents := allocateCents(toCents(t.SpecialFeaturesTotal), features)
	cc.SpecialFeatures = make([]cost.FeatureCost, len(r.ConstructionCosts.SpecialFeatures))
	for i, f := range r.ConstructionCosts.SpecialFeatures {
		f.Amount = fromCents(featureCents[i])
		cc.SpecialFeatures[i] = f
	}

	soft := make([]float64, len(r.SoftCosts.Items))
	for i, sc := range r.SoftCosts.Items {
		soft[i] = sc.Amount
	}
	softCents := allocateCents(toCents(t.SoftCostsTotal), soft)
	out.SoftCosts.Items = make([]cost.SoftCost, len(r.SoftCosts.Items))
	for i, sc := range r.SoftCosts.Items {
		sc.Amount = fromCents(softCents[i])
		out.SoftCosts.Items[i] = sc
	}
	out.SoftCosts.Total = t.SoftCostsTotal

	rev := &out.RevenueAnalysis
	rev.PotentialRevenue = cents(rev.PotentialRevenue)
	rev.AnnualRevenue = cents(rev.AnnualRevenue)
	rev.NOI = cents(rev.NOI)
	rev.OperatingExpenses = cents(rev.OperatingExpenses)
	rev.Expenses = make([]finance.ExpenseLine, len(r.RevenueAnalysis.Expenses))
	for i, e := range r.RevenueAnalysis.Expenses {
		e.Amount = cents(e.Amount)
		rev.Expenses[i] = e
	}

	fin := &out.Financing
	fin.DebtAmount = cents(fin.DebtAmount)
	fin.EquityAmount = cents(fin.EquityAmount)
	fin.GrantsAmount = cents(fin.GrantsAmount)
	fin.PhilanthropyAmount = cents(fin.PhilanthropyAmount)
	fin.AnnualDebtService = cents(fin.AnnualDebtService)

	ret := &out.ReturnMetrics
	ret.DSCR = roundPtr(ret.DSCR, 4)
	ret.CapRate = roundTo(ret.CapRate, 4)
	ret.PropertyValue = cents(ret.PropertyValue)
	ret.ValueGap = cents(ret.ValueGap)
	ret.AnnualCashFlow = cents(ret.AnnualCashFlow)
	ret.ROI = roundTo(ret.ROI, 4)
	ret.IRR = roundPtr(ret.IRR, 4)

	out.DealShield.Scenarios = make([]dealshield.Scenario, len(r.DealShield.Scenarios))
	for i, s := range r.DealShield.Scenarios {
		s.TotalProjectCost = cents(s.TotalProjectCost)
		s.NOI = cents(s.NOI)
		s.DSCR = roundPtr(s.DSCR, 4)
		s.ROI = roundTo(s.ROI, 4)
		s.IRR = roundPtr(s.IRR, 4)
		s.PropertyValue = cents(s.PropertyValue)
		s.ValueGap = cents(s.ValueGap)
		out.DealShield.Scenarios[i] = s
	}
	return &out
}

// rounded rounds the four components to cents and rebuilds the total from
// them, so the presented total is exactly the sum of the presented parts.
func (t Totals) rounded(sf float64) Totals {
	construction := toCents(t.ConstructionTotal)
	equipment := toCents(t.EquipmentTotal)
	features := toCents(t.SpecialFeaturesTotal)
	soft := toCents(t.SoftCostsTotal)
	total := construction + equipment + features + soft

	out := Totals{
		ConstructionTotal:    fromCents(construction),
		EquipmentTotal:       fromCents(equipment),
		SpecialFeaturesTotal: fromCents(features),
		SoftCostsTotal:       fromCents(soft),
		TotalProjectCost:     fromCents(total),
	}
	if sf > 0 {
		out.CostPerSF = cents(out.TotalProjectCost / sf)
	}
	return out
}

func toCents(v float64) int64 { return int64(math.Round(v * 100)) }

func fromCents(c int64) float64 { return float64(c) / 100 }

// allocateCents rounds parts to whole cents summing to total. Parts are
// floored and the leftover cents go to the largest remainders first.
func allocateCents(total int64, parts []float64) []int64 {
	out := make([]int64, len(parts))
	if len(parts) == 0 {
		return out
	}

	type remainder struct {
		i    int
		frac float64
	}
	rems := make([]remainder, len(parts))
	var sum int64
	for i, p := range parts {
		f := math.Floor(p * 100)
		out[i] = int64(f)
		sum += out[i]
		rems[i] = remainder{i: i, frac: p*100 - f}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })

	for k := 0; sum < total; k = (k + 1) % len(rems) {
		out[rems[k].i]++
		sum++
	}
	for k := len(rems) - 1; sum > total; k = (k + len(rems) - 1) % len(rems) {
		out[rems[k].i]--
		sum--
	}
	return out
}

// Drift is one total that changed between a stored and a recomputed run.
type Drift struct {
	Field      string  `json:"field"`
	Stored     float64 `json:"stored"`
	Recomputed float64 `json:"recomputed"`
	Delta      float64 `json:"delta"`
}

// CompareTotals lists every total whose absolute difference exceeds
// tolerance. Drift is informational; callers log it.
func CompareTotals(stored, recomputed Totals, tolerance float64) []Drift {
	fields := []struct {
		name string
		a, b float64
	}{
		{"construction_total", stored.ConstructionTotal, recomputed.ConstructionTotal},
		{"equipment_total", stored.EquipmentTotal, recomputed.EquipmentTotal},
		{"special_features_total", stored.SpecialFeaturesTotal, recomputed.SpecialFeaturesTotal},
		{"soft_costs_total", stored.SoftCostsTotal, recomputed.SoftCostsTotal},
		{"total_project_cost", stored.TotalProjectCost, recomputed.TotalProjectCost},
		{"cost_per_sf", stored.CostPerSF, recomputed.CostPerSF},
	}
	var out []Drift
	for _, f := range fields {
		if d := f.b - f.a; math.Abs(d) > tolerance {
			out = append(out, Drift{Field: f.name, Stored: f.a, Recomputed: f.b, Delta: d})
		}
	}
	return out
}
