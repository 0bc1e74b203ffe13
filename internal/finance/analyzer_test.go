package finance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsharp/internal/apperr"
	"specsharp/internal/cost"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

func setup(t *testing.T) (*taxonomy.Registry, *cost.Calculator, *Analyzer) {
	t.Helper()
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	return reg, cost.New(reg), New(DefaultConfig())
}

func TestAnalyzeBarTavern(t *testing.T) {
	reg, calc, a := setup(t)
	p, err := reg.Lookup(taxonomy.TypeRestaurant, "bar_tavern")
	require.NoError(t, err)

	c, err := calc.CalculateProfile(p, cost.Input{SquareFootage: 4200, Location: "Nashville"}, nil)
	require.NoError(t, err)

	tr := trace.New()
	res, err := a.Analyze(p, InputFromCost(c, "", nil), tr)
	require.NoError(t, err)

	assert.Equal(t, taxonomy.BasisPerSF, res.Revenue.Basis)
	assert.Equal(t, "square_footage", res.Revenue.CountSource)
	assert.InDelta(t, 450*4200*0.85, res.Revenue.AnnualRevenue, 1e-6)
	assert.InDelta(t, 192_780, res.Revenue.NOI, 1e-6)
	assert.InDelta(t, res.Revenue.AnnualRevenue-res.Revenue.NOI, res.Revenue.OperatingExpenses, 1e-6)

	assert.Equal(t, taxonomy.OwnershipForProfit, res.Financing.Ownership)
	assert.InDelta(t, 0.65*c.TotalProjectCost, res.Financing.DebtAmount, 1e-6)
	wantDS := 12 * MonthlyPayment(res.Financing.DebtAmount, 0.068, 25*12)
	assert.InDelta(t, wantDS, res.Financing.AnnualDebtService, 1e-6)

	ret := res.Returns
	require.NotNil(t, ret.DSCR)
	assert.InDelta(t, res.Revenue.NOI/wantDS, *ret.DSCR, 1e-9)
	assert.InDelta(t, res.Revenue.NOI/c.TotalProjectCost, ret.CapRate, 1e-12)
	assert.InDelta(t, res.Revenue.NOI/0.075, ret.PropertyValue, 1e-6)
	assert.InDelta(t, ret.PropertyValue-c.TotalProjectCost, ret.ValueGap, 1e-6)
	assert.InDelta(t, (res.Revenue.NOI-wantDS)/res.Financing.EquityAmount, ret.ROI, 1e-12)
	require.NotNil(t, ret.IRR)
	assert.Greater(t, *ret.IRR, 0.0)

	assert.True(t, ret.Feasible)
	assert.Empty(t, ret.FailedChecks)
	assert.Empty(t, ret.Recommendations)

	assert.Equal(t, []string{
		trace.StepRevenue,
		trace.StepNOI,
		trace.StepFinancing,
		trace.StepReturnMetrics,
		trace.StepFeasibility,
	}, tr.Names())
}

func TestExpenseBreakdownSumsToOperatingExpenses(t *testing.T) {
	reg, calc, a := setup(t)
	for _, p := range reg.Profiles() {
		c, err := calc.CalculateProfile(p, cost.Input{SquareFootage: 25_000}, nil)
		require.NoError(t, err)
		for owner := range p.Financing {
			res, err := a.Analyze(p, InputFromCost(c, owner, nil), nil)
			require.NoError(t, err, p.Key())

			sum := 0.0
			for _, e := range res.Revenue.Expenses {
				sum += e.Amount
			}
			assert.InDelta(t, res.Revenue.OperatingExpenses, sum, 1e-6, p.Key())
			assert.Equal(t, res.Returns.Feasible, len(res.Returns.FailedChecks) == 0)
			assert.Len(t, res.Returns.Recommendations, len(res.Returns.FailedChecks))
		}
	}
}

func TestUnitCounts(t *testing.T) {
	reg, calc, a := setup(t)
	p, err := reg.Lookup(taxonomy.TypeResidential, "luxury_apartments")
	require.NoError(t, err)
	c, err := calc.CalculateProfile(p, cost.Input{SquareFootage: 110_000}, nil)
	require.NoError(t, err)

	derived, err := a.Analyze(p, InputFromCost(c, "", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 100, derived.Revenue.UnitCount)
	assert.Equal(t, "derived", derived.Revenue.CountSource)
	assert.InDelta(t, 3200*100*12.0, derived.Revenue.PotentialRevenue, 1e-6)

	extracted, err := a.Analyze(p, InputFromCost(c, "", map[string]int{"units": 120}), nil)
	require.NoError(t, err)
	assert.Equal(t, 120, extracted.Revenue.UnitCount)
	assert.Equal(t, "extracted", extracted.Revenue.CountSource)

	tiny, err := a.Analyze(p, Input{SquareFootage: 10, TotalProjectCost: 1000}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tiny.Revenue.UnitCount)
}

func TestPremiumFinishUsesPremiumTiers(t *testing.T) {
	reg, calc, a := setup(t)
	p, err := reg.Lookup(taxonomy.TypeOffice, "class_a_office")
	require.NoError(t, err)

	c, err := calc.CalculateProfile(p, cost.Input{SquareFootage: 50_000, FinishLevel: taxonomy.FinishPremium}, nil)
	require.NoError(t, err)
	res, err := a.Analyze(p, InputFromCost(c, "", nil), nil)
	require.NoError(t, err)

	assert.Equal(t, 0.94, res.Revenue.OccupancyRate)
	assert.Equal(t, 0.66, res.Revenue.OperatingMargin)
	assert.InDelta(t, 42*50_000*1.10, res.Revenue.PotentialRevenue, 1e-6)
}

func TestRevenueFactorScalesRevenue(t *testing.T) {
	reg, calc, a := setup(t)
	p, err := reg.Lookup(taxonomy.TypeIndustrial, "warehouse")
	require.NoError(t, err)
	c, err := calc.CalculateProfile(p, cost.Input{SquareFootage: 100_000}, nil)
	require.NoError(t, err)

	in := InputFromCost(c, "", nil)
	base, err := a.Analyze(p, in, nil)
	require.NoError(t, err)

	in.RevenueFactor = 0.9
	worse, err := a.Analyze(p, in, nil)
	require.NoError(t, err)
	assert.InDelta(t, base.Revenue.NOI*0.9, worse.Revenue.NOI, 1e-6)
}

func TestZeroNOIIsInfeasible(t *testing.T) {
	reg, _, a := setup(t)
	src, err := reg.Lookup(taxonomy.TypeRestaurant, "bar_tavern")
	require.NoError(t, err)

	p := *src
	p.Revenue.OperatingMargin = taxonomy.Tier{Base: 0, Premium: 0}

	tr := trace.New()
	res, err := a.Analyze(&p, Input{SquareFootage: 4200, TotalProjectCost: 1_900_000}, tr)
	require.NoError(t, err)

	assert.Zero(t, res.Revenue.NOI)
	assert.False(t, res.Returns.Feasible)
	assert.Equal(t, []string{CheckNOI, CheckDSCR, CheckROI}, res.Returns.FailedChecks)
	assert.Equal(t, []string{RecommendNOI, RecommendDSCR, RecommendROI}, res.Returns.Recommendations)
	assert.Equal(t, false, tr.Find(trace.StepFeasibility).Payload["feasible"])
}

func TestZeroNOIIsInfeasibleWithoutDebt(t *testing.T) {
	reg, _, a := setup(t)
	src, err := reg.Lookup(taxonomy.TypeEducational, "high_school")
	require.NoError(t, err)

	p := *src
	p.Revenue.OperatingMargin = taxonomy.Tier{}
	p.Financing = map[taxonomy.OwnershipType]taxonomy.FinancingTerms{
		taxonomy.OwnershipGovernment: {GrantsRatio: 1, TargetDSCR: 1, TargetROI: 0},
	}

	res, err := a.Analyze(&p, Input{Ownership: taxonomy.OwnershipGovernment, SquareFootage: 50_000, TotalProjectCost: 1e7}, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Returns.DSCR)
	assert.False(t, res.Returns.Feasible)
	assert.Equal(t, []string{CheckNOI}, res.Returns.FailedChecks)
}

func TestGovernmentWithoutEquityUsesTotalAsOutlay(t *testing.T) {
	reg, calc, a := setup(t)
	p, err := reg.Lookup(taxonomy.TypeEducational, "elementary_school")
	require.NoError(t, err)
	c, err := calc.CalculateProfile(p, cost.Input{SquareFootage: 60_000}, nil)
	require.NoError(t, err)

	res, err := a.Analyze(p, InputFromCost(c, taxonomy.OwnershipGovernment, nil), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Financing.EquityAmount)
	assert.InDelta(t, res.Returns.AnnualCashFlow/c.TotalProjectCost, res.Returns.ROI, 1e-12)
}

func TestAnalyzeErrors(t *testing.T) {
	reg, _, a := setup(t)
	p, err := reg.Lookup(taxonomy.TypeRestaurant, "bar_tavern")
	require.NoError(t, err)

	_, err = a.Analyze(p, Input{Ownership: taxonomy.OwnershipNonprofit, SquareFootage: 1, TotalProjectCost: 1}, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = a.Analyze(p, Input{SquareFootage: 1, TotalProjectCost: 0}, nil)
	assert.True(t, errors.Is(err, apperr.ErrInternalInvariant))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{AmortizationYears: 0, HoldPeriodYears: 10}.Validate())
	assert.Error(t, Config{AmortizationYears: 25, HoldPeriodYears: 0}.Validate())
	assert.Error(t, Config{AmortizationYears: 25, HoldPeriodYears: 10, ExitCapRate: 1.2}.Validate())
}

func TestResolveOwnership(t *testing.T) {
	reg, _, _ := setup(t)
	school, err := reg.Lookup(taxonomy.TypeEducational, "elementary_school")
	require.NoError(t, err)

	got, source, err := resolveOwnership(school, "")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.OwnershipNonprofit, got)
	assert.Equal(t, "profile_default", source)

	got, source, err = resolveOwnership(school, taxonomy.OwnershipGovernment)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.OwnershipGovernment, got)
	assert.Equal(t, "request", source)

	_, _, err = resolveOwnership(school, taxonomy.OwnershipForProfit)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}
