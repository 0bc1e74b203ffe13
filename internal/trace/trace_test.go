package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceKeepsOrder(t *testing.T) {
	tr := New()
	tr.Record(StepBaseCost, map[string]any{"base_cost_per_sf": 350.0})
	tr.Record(StepRegionalMultiplier, map[string]any{"multiplier": 1.03})
	tr.Record(StepConstructionTotal, nil)

	assert.Equal(t, []string{StepBaseCost, StepRegionalMultiplier, StepConstructionTotal}, tr.Names())
	assert.Equal(t, 3, tr.Len())
	assert.True(t, tr.Has(StepRegionalMultiplier))
	assert.False(t, tr.Has(StepCostClampApplied))

	step := tr.Find(StepBaseCost)
	require.NotNil(t, step)
	assert.Equal(t, 350.0, step.Payload["base_cost_per_sf"])
}

func TestStepsReturnsCopy(t *testing.T) {
	tr := New()
	tr.Record(StepBaseCost, nil)

	steps := tr.Steps()
	steps[0].Name = "tampered"

	assert.Equal(t, StepBaseCost, tr.Names()[0])
}

func TestNilTraceIsSafe(t *testing.T) {
	var tr *Trace
	tr.Record(StepBaseCost, nil)

	assert.Nil(t, tr.Steps())
	assert.False(t, tr.Has(StepBaseCost))
	assert.Zero(t, tr.Len())
}
