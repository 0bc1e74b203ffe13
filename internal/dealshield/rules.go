package dealshield

import "fmt"

type scenarioView struct {
	best, base, worst Scenario
	worstCfg          Perturbation
}

type rule struct {
	code    ReasonCode
	status  Status
	when    func(scenarioView) bool
	explain func(scenarioView) string
	caveat  func(scenarioView) string
}

// rules is evaluated top to bottom; the first match decides. The last
// rule always matches.
var rules = []rule{
	{
		code:   ReasonBaseNOINonPositive,
		status: StatusNoGo,
		when:   func(v scenarioView) bool { return v.base.NOI <= 0 },
		explain: func(v scenarioView) string {
			return fmt.Sprintf("base NOI %.2f <= 0", v.base.NOI)
		},
	},
	{
		code:   ReasonBaseValueGapNegative,
		status: StatusNoGo,
		when:   func(v scenarioView) bool { return !v.base.Feasible && v.base.ValueGap < 0 },
		explain: func(v scenarioView) string {
			return fmt.Sprintf("base infeasible (%s) and value gap %.2f < 0", describeFailures(v.base), v.base.ValueGap)
		},
	},
	{
		code:   ReasonBaseInfeasible,
		status: StatusNoGo,
		when:   func(v scenarioView) bool { return !v.base.Feasible },
		explain: func(v scenarioView) string {
			return fmt.Sprintf("base infeasible (%s)", describeFailures(v.base))
		},
	},
	{
		code:   ReasonWorstCaseInfeasible,
		status: StatusGo,
		when:   func(v scenarioView) bool { return !v.worst.Feasible },
		explain: func(v scenarioView) string {
			return fmt.Sprintf("base feasible, worst infeasible (%s)", describeFailures(v.worst))
		},
		caveat: func(v scenarioView) string {
			return fmt.Sprintf("Fails %s if costs rise %.0f%% and revenue falls %.0f%%.",
				describeFailures(v.worst),
				(v.worstCfg.CostFactor-1)*100,
				(1-v.worstCfg.RevenueFactor)*100)
		},
	},
	{
		code:   ReasonAllScenariosFeasible,
		status: StatusGo,
		when:   func(scenarioView) bool { return true },
		explain: func(scenarioView) string {
			return "base and worst scenarios feasible"
		},
	},
}
