// Package trace records the ordered steps a calculation went through.
// A Trace is local to one request and is only ever appended to.
package trace

// Canonical step names. Tests and audit tooling match on these.
const (
	StepClassified         = "classification_resolved"
	StepExtractionClamped  = "extraction_clamped"
	StepProfileResolved    = "profile_resolved"
	StepBaseCost           = "base_cost_resolved"
	StepRegionalOverride   = "regional_override_applied"
	StepRegionalMultiplier = "regional_multiplier_resolved"
	StepProjectClass       = "project_class_applied"
	StepFinishLevel        = "finish_level_applied"
	StepConstructionTotal  = "construction_total"
	StepCostClampApplied   = "cost_clamp_applied"
	StepCostRangeOutside   = "cost_range_outside"
	StepEquipmentTotal     = "equipment_total"
	StepTradeBreakdown     = "trade_breakdown"
	StepSpecialFeatures    = "special_features_total"
	StepSoftCosts          = "soft_costs_total"
	StepTotalProjectCost   = "total_project_cost"
	StepCostPerSF          = "cost_per_sf"
	StepRevenue            = "revenue_computed"
	StepNOI                = "noi_computed"
	StepFinancing          = "financing_applied"
	StepReturnMetrics      = "return_metrics"
	StepFeasibility        = "feasibility_evaluated"
	StepScenario           = "dealshield_scenario"
	StepDecision           = "dealshield_decision"
)

// Step is one entry in a Trace.
type Step struct {
	Name    string         `json:"step"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Trace struct {
	steps []Step
}

func New() *Trace {
	return &Trace{}
}

// Record appends a step. A nil Trace discards the entry so callers that
// don't care about provenance can pass nil.
func (t *Trace) Record(name string, payload map[string]any) {
	if t == nil {
		return
	}
	t.steps = append(t.steps, Step{Name: name, Payload: payload})
}

// Steps returns a copy of the recorded steps in order.
func (t *Trace) Steps() []Step {
	if t == nil {
		return nil
	}
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

func (t *Trace) Has(name string) bool {
	return t.Find(name) != nil
}

// Find returns the first step with the given name.
func (t *Trace) Find(name string) *Step {
	if t == nil {
		return nil
	}
	for i := range t.steps {
		if t.steps[i].Name == name {
			s := t.steps[i]
			return &s
		}
	}
	return nil
}

func (t *Trace) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.steps))
	for i, s := range t.steps {
		names[i] = s.Name
	}
	return names
}

func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.steps)
}
