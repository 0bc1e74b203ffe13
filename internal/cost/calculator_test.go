package cost

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsharp/internal/apperr"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	return New(reg)
}

func TestBarTavernNashville(t *testing.T) {
	c := newCalculator(t)
	tr := trace.New()

	res, err := c.Calculate(taxonomy.TypeRestaurant, "bar_tavern", Input{
		SquareFootage: 4200,
		Location:      "Nashville, TN",
	}, tr)
	require.NoError(t, err)

	assert.Equal(t, 350.0, res.BaseCostPerSF)
	assert.Equal(t, 1.03, res.RegionalMultiplier)
	assert.Equal(t, RegionalShared, res.RegionalSource)
	assert.InDelta(t, 1_514_100, res.ConstructionTotal, 0.01)
	assert.InDelta(t, 105_000, res.EquipmentTotal, 1e-9)
	assert.InDelta(t, 0.19*res.ConstructionTotal, res.SoftCostsTotal, 0.01)
	assert.InEpsilon(t, 288_021, res.SoftCostsTotal, 0.005)
	assert.InEpsilon(t, 1_909_000, res.TotalProjectCost, 0.005)
	assert.InDelta(t, 454, res.CostPerSF, 1)

	assert.Equal(t, 1, res.Floors)
	assert.Equal(t, taxonomy.ClassGroundUp, res.ProjectClass)
	assert.Equal(t, taxonomy.FinishStandard, res.FinishLevel)
	assert.False(t, res.ClampApplied)

	assert.Equal(t, []string{
		trace.StepBaseCost,
		trace.StepRegionalMultiplier,
		trace.StepProjectClass,
		trace.StepFinishLevel,
		trace.StepConstructionTotal,
		trace.StepEquipmentTotal,
		trace.StepTradeBreakdown,
		trace.StepSpecialFeatures,
		trace.StepSoftCosts,
		trace.StepTotalProjectCost,
		trace.StepCostPerSF,
	}, tr.Names())
}

func TestRegionalChain(t *testing.T) {
	c := newCalculator(t)

	tests := []struct {
		name     string
		typ      taxonomy.BuildingType
		sub      string
		location string
		want     float64
		source   RegionalSource
	}{
		{"city override beats everything", taxonomy.TypeHealthcare, "hospital", "Manhattan, NY", 1.45, RegionalCityOverride},
		{"profile table beats shared", taxonomy.TypeHealthcare, "hospital", "New York", 1.38, RegionalProfile},
		{"shared table", taxonomy.TypeRestaurant, "bar_tavern", "new york", 1.30, RegionalShared},
		{"unknown location defaults", taxonomy.TypeRestaurant, "bar_tavern", "Boise, ID", 1.0, RegionalDefault},
		{"empty location defaults", taxonomy.TypeRestaurant, "bar_tavern", "", 1.0, RegionalDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trace.New()
			res, err := c.Calculate(tt.typ, tt.sub, Input{SquareFootage: 1000, Location: tt.location}, tr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.RegionalMultiplier)
			assert.Equal(t, tt.source, res.RegionalSource)
			assert.Equal(t, tt.source == RegionalCityOverride, tr.Has(trace.StepRegionalOverride))
		})
	}
}

func TestProjectClassAndFinish(t *testing.T) {
	c := newCalculator(t)

	base, err := c.Calculate(taxonomy.TypeOffice, "class_a_office", Input{SquareFootage: 10000}, nil)
	require.NoError(t, err)

	reno, err := c.Calculate(taxonomy.TypeOffice, "class_a_office", Input{
		SquareFootage: 10000,
		ProjectClass:  taxonomy.ClassRenovation,
		FinishLevel:   taxonomy.FinishPremium,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.92, reno.ProjectClassMultiplier)
	assert.Equal(t, 1.18, reno.FinishCostFactor)
	assert.Equal(t, 1.10, reno.FinishRevenueFactor)
	assert.InDelta(t, base.ConstructionTotal*0.92*1.18, reno.ConstructionTotal, 1e-6)
	// Equipment does not scale with class or finish.
	assert.Equal(t, base.EquipmentTotal, reno.EquipmentTotal)
}

func TestUnknownProjectClassOrFinish(t *testing.T) {
	c := newCalculator(t)

	_, err := c.Calculate(taxonomy.TypeOffice, "class_a_office", Input{SquareFootage: 1, ProjectClass: "demolition"}, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = c.Calculate(taxonomy.TypeOffice, "class_a_office", Input{SquareFootage: 1, FinishLevel: "gold"}, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func clampRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	doc, err := taxonomy.Parse(taxonomy.DefaultDocument())
	require.NoError(t, err)
	for i := range doc.Profiles {
		p := &doc.Profiles[i]
		if p.Subtype == "warehouse" {
			floor := 250.0
			p.BaseCostPerSF = 200
			p.CostRange = taxonomy.Range{Min: 150, Max: 300}
			p.CostClamp = &taxonomy.Clamp{Min: &floor}
		}
	}
	reg, err := taxonomy.New(doc)
	require.NoError(t, err)
	return reg
}

func TestClampRaisesToMinimum(t *testing.T) {
	c := New(clampRegistry(t))
	tr := trace.New()

	res, err := c.Calculate(taxonomy.TypeIndustrial, "warehouse", Input{SquareFootage: 1000}, tr)
	require.NoError(t, err)

	assert.True(t, res.ClampApplied)
	assert.Equal(t, 250.0, res.ConstructionCostPerSF)
	assert.InDelta(t, 250_000, res.ConstructionTotal, 1e-9)

	step := tr.Find(trace.StepCostClampApplied)
	require.NotNil(t, step)
	assert.Equal(t, 200.0, step.Payload["computed_cost_per_sf"])
	assert.Equal(t, 250.0, step.Payload["clamped_cost_per_sf"])
	assert.False(t, tr.Has(trace.StepCostRangeOutside))

	// Trades are allocated from the clamped total.
	sum := 0.0
	for _, tc := range res.Trades {
		sum += tc.Amount
	}
	assert.InDelta(t, res.ConstructionTotal, sum, 1e-6)
}

func TestClampLowersToMaximum(t *testing.T) {
	c := newCalculator(t)
	tr := trace.New()

	res, err := c.Calculate(taxonomy.TypeResidential, "luxury_apartments", Input{
		SquareFootage: 200_000,
		Location:      "Manhattan",
		FinishLevel:   taxonomy.FinishLuxury,
	}, tr)
	require.NoError(t, err)

	assert.True(t, res.ClampApplied)
	assert.Equal(t, 450.0, res.ConstructionCostPerSF)
	assert.True(t, tr.Has(trace.StepCostClampApplied))
	assert.True(t, tr.Has(trace.StepRegionalOverride))
	assert.True(t, tr.Has(trace.StepCostRangeOutside))
}

func TestSpecialFeatures(t *testing.T) {
	c := newCalculator(t)

	res, err := c.Calculate(taxonomy.TypeRestaurant, "quick_service", Input{
		SquareFootage:   3000,
		SpecialFeatures: []string{"outdoor_seating", "Drive Thru", "drive_thru"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.SpecialFeatures, 2)
	assert.Equal(t, "drive_thru", res.SpecialFeatures[0].Feature)
	assert.Equal(t, "outdoor_seating", res.SpecialFeatures[1].Feature)
	assert.InDelta(t, (40+15)*3000.0, res.SpecialFeaturesTotal, 1e-9)
}

func TestUnknownFeatureIsRejected(t *testing.T) {
	c := newCalculator(t)

	_, err := c.Calculate(taxonomy.TypeRestaurant, "bar_tavern", Input{
		SquareFootage:   4200,
		SpecialFeatures: []string{"outdoor_patio", "helipad"},
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnknownFeature))
	assert.Contains(t, err.Error(), "helipad")
	assert.Contains(t, err.Error(), "live_music_stage")
}

func TestInvalidInput(t *testing.T) {
	c := newCalculator(t)

	for _, sf := range []float64{0, -100, math.NaN(), math.Inf(1)} {
		_, err := c.Calculate(taxonomy.TypeRestaurant, "bar_tavern", Input{SquareFootage: sf}, nil)
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "sf=%v", sf)
	}

	_, err := c.Calculate(taxonomy.TypeRestaurant, "bar_tavern", Input{SquareFootage: 100, Floors: -1}, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = c.Calculate(taxonomy.TypeRestaurant, "food_truck", Input{SquareFootage: 100}, nil)
	assert.True(t, errors.Is(err, apperr.ErrUnknownProfile))
}

func TestFloorsDefaultToTypical(t *testing.T) {
	c := newCalculator(t)

	res, err := c.Calculate(taxonomy.TypeResidential, "luxury_apartments", Input{SquareFootage: 100_000}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Floors)

	res, err = c.Calculate(taxonomy.TypeResidential, "luxury_apartments", Input{SquareFootage: 100_000, Floors: 22}, nil)
	require.NoError(t, err)
	assert.Equal(t, 22, res.Floors)
}

// Every profile, class, finish and location combination keeps the total
// composition exact and cost_per_sf consistent to the cent.
func TestTotalsAreInternallyConsistent(t *testing.T) {
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	c := New(reg)

	locations := []string{"", "Nashville", "Manhattan", "New York", "Boise"}
	sizes := []float64{1, 850.5, 4200, 123_457}

	for _, p := range reg.Profiles() {
		for _, class := range taxonomy.ProjectClasses {
			for _, finish := range taxonomy.FinishLevels {
				for _, loc := range locations {
					for _, sf := range sizes {
						res, err := c.CalculateProfile(p, Input{
							SquareFootage: sf,
							Location:      loc,
							ProjectClass:  class,
							FinishLevel:   finish,
						}, nil)
						require.NoError(t, err)

						want := res.ConstructionTotal + res.EquipmentTotal + res.SpecialFeaturesTotal + res.SoftCostsTotal
						require.Equal(t, want, res.TotalProjectCost, p.Key())
						require.InDelta(t, res.TotalProjectCost, res.CostPerSF*sf, 0.01, p.Key())

						trades := 0.0
						for _, tc := range res.Trades {
							trades += tc.Amount
						}
						require.InDelta(t, res.ConstructionTotal, trades, res.ConstructionTotal*1e-6, p.Key())
						require.Less(t, res.SoftCostsTotal, res.ConstructionTotal)
					}
				}
			}
		}
	}
}
