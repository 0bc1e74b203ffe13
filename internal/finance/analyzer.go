// Package finance derives revenue, operating income, debt service and
// return metrics from a profile's revenue model and financing terms.
package finance

import (
	"math"
	"sort"

	"specsharp/internal/apperr"
	"specsharp/internal/cost"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

// Config carries the assumptions that are not part of any profile.
type Config struct {
	AmortizationYears int `yaml:"amortization_years"`
	HoldPeriodYears   int `yaml:"hold_period_years"`
	// ExitCapRate prices the sale at the end of the hold period. Zero
	// uses the profile's market cap rate.
	ExitCapRate float64 `yaml:"exit_cap_rate"`
}

func DefaultConfig() Config {
	return Config{AmortizationYears: 25, HoldPeriodYears: 10}
}

func (c Config) Validate() error {
	if c.AmortizationYears < 1 {
		return apperr.New(apperr.CodeInvalidInput, "amortization_years must be >= 1")
	}
	if c.HoldPeriodYears < 1 {
		return apperr.New(apperr.CodeInvalidInput, "hold_period_years must be >= 1")
	}
	if c.ExitCapRate < 0 || c.ExitCapRate >= 1 {
		return apperr.New(apperr.CodeInvalidInput, "exit_cap_rate must be in [0,1)")
	}
	return nil
}

// Fixed recommendation strings, one per failed check.
const (
	RecommendNOI  = "Operating income does not cover operating expenses; revisit the revenue model or operating costs before committing capital."
	RecommendDSCR = "Debt service coverage is below target; reduce leverage or seek longer amortization."
	RecommendROI  = "Return on equity is below target; reduce project cost or raise achievable revenue."
)

// Check names used in FailedChecks.
const (
	CheckNOI  = "noi_positive"
	CheckDSCR = "dscr"
	CheckROI  = "roi"
)

// Input is what the analyzer needs from the cost stage. Scenario runs
// scale TotalProjectCost and set RevenueFactor.
type Input struct {
	Ownership           taxonomy.OwnershipType
	Counts              map[string]int
	SquareFootage       float64
	TotalProjectCost    float64
	FinishLevel         taxonomy.FinishLevel
	FinishRevenueFactor float64
	// RevenueFactor scales revenue for scenario analysis; zero means 1.
	RevenueFactor float64
}

// InputFromCost builds an Input from a cost result.
func InputFromCost(c *cost.Result, ownership taxonomy.OwnershipType, counts map[string]int) Input {
	return Input{
		Ownership:           ownership,
		Counts:              counts,
		SquareFootage:       c.SquareFootage,
		TotalProjectCost:    c.TotalProjectCost,
		FinishLevel:         c.FinishLevel,
		FinishRevenueFactor: c.FinishRevenueFactor,
	}
}

type ExpenseLine struct {
	Category string  `json:"category"`
	Ratio    float64 `json:"ratio"`
	Amount   float64 `json:"amount"`
}

type RevenueAnalysis struct {
	Basis             taxonomy.RevenueBasis `json:"basis"`
	Rate              float64               `json:"rate"`
	UnitCount         int                   `json:"unit_count,omitempty"`
	CountSource       string                `json:"count_source"`
	PotentialRevenue  float64               `json:"potential_revenue"`
	OccupancyRate     float64               `json:"occupancy_rate"`
	AnnualRevenue     float64               `json:"annual_revenue"`
	OperatingMargin   float64               `json:"operating_margin"`
	NOI               float64               `json:"net_operating_income"`
	OperatingExpenses float64               `json:"operating_expenses"`
	Expenses          []ExpenseLine         `json:"expense_breakdown"`
}

type Financing struct {
	Ownership          taxonomy.OwnershipType `json:"ownership_type"`
	DebtAmount         float64                `json:"debt_amount"`
	EquityAmount       float64                `json:"equity_amount"`
	GrantsAmount       float64                `json:"grants_amount"`
	PhilanthropyAmount float64                `json:"philanthropy_amount"`
	DebtRate           float64                `json:"debt_rate"`
	AmortizationYears  int                    `json:"amortization_years"`
	AnnualDebtService  float64                `json:"annual_debt_service"`
}

type ReturnMetrics struct {
	// DSCR is nil when the project carries no debt.
	DSCR           *float64 `json:"dscr"`
	CapRate        float64  `json:"cap_rate"`
	MarketCapRate  float64  `json:"market_cap_rate"`
	PropertyValue  float64  `json:"property_value"`
	ValueGap       float64  `json:"value_gap"`
	AnnualCashFlow float64  `json:"annual_cash_flow"`
	ROI            float64  `json:"roi"`
	// IRR is nil when the cash flows never change sign.
	IRR             *float64 `json:"irr"`
	HoldPeriodYears int      `json:"hold_period_years"`
	ExitCapRate     float64  `json:"exit_cap_rate"`
	TargetDSCR      float64  `json:"target_dscr"`
	TargetROI       float64  `json:"target_roi"`
	Feasible        bool     `json:"feasible"`
	FailedChecks    []string `json:"failed_checks"`
	Recommendations []string `json:"recommendations"`
}

type Result struct {
	Revenue   RevenueAnalysis `json:"revenue_analysis"`
	Financing Financing       `json:"financing"`
	Returns   ReturnMetrics   `json:"return_metrics"`
}

type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

func (a *Analyzer) Config() Config { return a.cfg }

// Analyze runs the revenue, financing and return model for p.
func (a *Analyzer) Analyze(p *taxonomy.Profile, in Input, tr *trace.Trace) (*Result, error) {
	ownership, source, err := resolveOwnership(p, in.Ownership)
	if err != nil {
		return nil, err
	}
	terms := p.Financing[ownership]
	if in.SquareFootage <= 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "square_footage must be > 0")
	}
	if in.TotalProjectCost <= 0 || math.IsNaN(in.TotalProjectCost) {
		return nil, apperr.New(apperr.CodeInternalInvariant,
			"total project cost %v reached the analyzer", in.TotalProjectCost)
	}

	res := &Result{}
	a.revenue(p, in, &res.Revenue, tr)
	a.financing(ownership, source, terms, in.TotalProjectCost, &res.Financing, tr)
	a.returns(p, terms, in.TotalProjectCost, res, tr)
	return res, nil
}

func (a *Analyzer) revenue(p *taxonomy.Profile, in Input, rev *RevenueAnalysis, tr *trace.Trace) {
	rm := p.Revenue
	premium := in.FinishLevel != "" && in.FinishLevel != taxonomy.FinishStandard

	finish := in.FinishRevenueFactor
	if finish == 0 {
		finish = 1
	}
	scale := in.RevenueFactor
	if scale == 0 {
		scale = 1
	}

	rev.Basis = rm.Basis
	rev.Rate = rm.Rate
	quantity := in.SquareFootage
	rev.CountSource = "square_footage"
	if key := rm.Basis.CountKey(); key != "" {
		if n := in.Counts[key]; n > 0 {
			rev.UnitCount = n
			rev.CountSource = "extracted"
		} else {
			rev.UnitCount = int(math.Max(1, math.Floor(in.SquareFootage/rm.SFPerUnit)))
			rev.CountSource = "derived"
		}
		quantity = float64(rev.UnitCount)
	}

	rev.OccupancyRate = rm.Occupancy.Base
	rev.OperatingMargin = rm.OperatingMargin.Base
	if premium {
		rev.OccupancyRate = rm.Occupancy.Premium
		rev.OperatingMargin = rm.OperatingMargin.Premium
	}

	rev.PotentialRevenue = rm.Rate * quantity * rm.Basis.PeriodsPerYear() * finish * scale
	rev.AnnualRevenue = rev.PotentialRevenue * rev.OccupancyRate
	tr.Record(trace.StepRevenue, map[string]any{
		"basis":             string(rm.Basis),
		"rate":              rm.Rate,
		"quantity":          quantity,
		"count_source":      rev.CountSource,
		"finish_factor":     finish,
		"revenue_factor":    scale,
		"occupancy_rate":    rev.OccupancyRate,
		"potential_revenue": rev.PotentialRevenue,
		"annual_revenue":    rev.AnnualRevenue,
	})

	rev.NOI = rev.AnnualRevenue * rev.OperatingMargin
	rev.OperatingExpenses = rev.AnnualRevenue - rev.NOI
	rev.Expenses = rev.Expenses[:0]
	for _, name := range sortedKeys(rm.ExpenseRatios) {
		ratio := rm.ExpenseRatios[name]
		rev.Expenses = append(rev.Expenses, ExpenseLine{Category: name, Ratio: ratio, Amount: ratio * rev.OperatingExpenses})
	}
	tr.Record(trace.StepNOI, map[string]any{
		"operating_margin":     rev.OperatingMargin,
		"operating_expenses":   rev.OperatingExpenses,
		"net_operating_income": rev.NOI,
	})
}

// defaultOwnershipOrder is searched when a request names no ownership type.
var defaultOwnershipOrder = []taxonomy.OwnershipType{
	taxonomy.OwnershipForProfit,
	taxonomy.OwnershipNonprofit,
	taxonomy.OwnershipGovernment,
}

// resolveOwnership returns the requested ownership type, or the first one
// in defaultOwnershipOrder that p finances when none was requested.
func resolveOwnership(p *taxonomy.Profile, requested taxonomy.OwnershipType) (taxonomy.OwnershipType, string, error) {
	if requested != "" {
		if _, ok := p.Financing[requested]; !ok {
			return "", "", apperr.New(apperr.CodeInvalidInput,
				"ownership type %q is not financed for %s", requested, p.Key())
		}
		return requested, "request", nil
	}
	for _, o := range defaultOwnershipOrder {
		if _, ok := p.Financing[o]; ok {
			return o, "profile_default", nil
		}
	}
	return "", "", apperr.New(apperr.CodeInternalInvariant, "%s has no financing terms", p.Key())
}

func (a *Analyzer) financing(owner taxonomy.OwnershipType, source string, terms taxonomy.FinancingTerms, total float64, fin *Financing, tr *trace.Trace) {
	fin.Ownership = owner
	fin.DebtAmount = total * terms.DebtRatio
	fin.EquityAmount = total * terms.EquityRatio
	fin.GrantsAmount = total * terms.GrantsRatio
	fin.PhilanthropyAmount = total * terms.PhilanthropyRatio
	fin.DebtRate = terms.DebtRate
	fin.AmortizationYears = a.cfg.AmortizationYears
	fin.AnnualDebtService = 12 * MonthlyPayment(fin.DebtAmount, terms.DebtRate, a.cfg.AmortizationYears*12)

	tr.Record(trace.StepFinancing, map[string]any{
		"ownership_type":      string(owner),
		"ownership_source":    source,
		"debt_amount":         fin.DebtAmount,
		"equity_amount":       fin.EquityAmount,
		"grants_amount":       fin.GrantsAmount,
		"philanthropy_amount": fin.PhilanthropyAmount,
		"debt_rate":           terms.DebtRate,
		"amortization_years":  a.cfg.AmortizationYears,
		"annual_debt_service": fin.AnnualDebtService,
	})
}

func (a *Analyzer) returns(p *taxonomy.Profile, terms taxonomy.FinancingTerms, total float64, res *Result, tr *trace.Trace) {
	noi := res.Revenue.NOI
	ds := res.Financing.AnnualDebtService
	ret := &res.Returns

	if ds > 0 {
		dscr := noi / ds
		ret.DSCR = &dscr
	}
	ret.CapRate = noi / total
	ret.MarketCapRate = p.MarketCapRate
	ret.PropertyValue = noi / p.MarketCapRate
	ret.ValueGap = ret.PropertyValue - total
	ret.AnnualCashFlow = noi - ds

	outlay := res.Financing.EquityAmount
	if outlay <= 0 {
		outlay = total
	}
	ret.ROI = ret.AnnualCashFlow / outlay

	ret.HoldPeriodYears = a.cfg.HoldPeriodYears
	ret.ExitCapRate = a.cfg.ExitCapRate
	if ret.ExitCapRate == 0 {
		ret.ExitCapRate = p.MarketCapRate
	}
	if irr, ok := IRR(a.cashFlows(outlay, res, terms)); ok {
		ret.IRR = &irr
	}

	tr.Record(trace.StepReturnMetrics, map[string]any{
		"dscr":             ret.DSCR,
		"cap_rate":         ret.CapRate,
		"property_value":   ret.PropertyValue,
		"value_gap":        ret.ValueGap,
		"annual_cash_flow": ret.AnnualCashFlow,
		"roi":              ret.ROI,
		"irr":              ret.IRR,
		"exit_cap_rate":    ret.ExitCapRate,
	})

	ret.TargetDSCR = terms.TargetDSCR
	ret.TargetROI = terms.TargetROI
	ret.FailedChecks = []string{}
	ret.Recommendations = []string{}
	if noi <= 0 {
		ret.FailedChecks = append(ret.FailedChecks, CheckNOI)
		ret.Recommendations = append(ret.Recommendations, RecommendNOI)
	}
	if ret.DSCR != nil && *ret.DSCR < terms.TargetDSCR {
		ret.FailedChecks = append(ret.FailedChecks, CheckDSCR)
		ret.Recommendations = append(ret.Recommendations, RecommendDSCR)
	}
	if ret.ROI < terms.TargetROI {
		ret.FailedChecks = append(ret.FailedChecks, CheckROI)
		ret.Recommendations = append(ret.Recommendations, RecommendROI)
	}
	ret.Feasible = len(ret.FailedChecks) == 0

	tr.Record(trace.StepFeasibility, map[string]any{
		"feasible":      ret.Feasible,
		"target_dscr":   terms.TargetDSCR,
		"target_roi":    terms.TargetROI,
		"failed_checks": ret.FailedChecks,
	})
}

// cashFlows is the equity investor's view: the outlay at t0, level cash
// flow each year, and net sale proceeds in the final year.
func (a *Analyzer) cashFlows(outlay float64, res *Result, terms taxonomy.FinancingTerms) []float64 {
	hold := a.cfg.HoldPeriodYears
	flows := make([]float64, hold+1)
	flows[0] = -outlay
	for y := 1; y <= hold; y++ {
		flows[y] = res.Returns.AnnualCashFlow
	}

	sale := 0.0
	if res.Revenue.NOI > 0 {
		sale = res.Revenue.NOI / res.Returns.ExitCapRate
	}
	balance := RemainingBalance(res.Financing.DebtAmount, terms.DebtRate, a.cfg.AmortizationYears*12, hold*12)
	flows[hold] += sale - balance
	return flows
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
