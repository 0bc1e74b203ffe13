// Package dealshield turns a base financial analysis into a GO / NO-GO
// investment decision. Best and worst cases are produced by re-running
// the analyzer with perturbed cost and revenue, then an ordered rule
// table picks the decision. Every derived field carries a provenance
// record so presentation layers never have to re-derive it.
package dealshield

import (
	"fmt"
	"strings"

	"specsharp/internal/apperr"
	"specsharp/internal/finance"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

type Status string

const (
	StatusGo   Status = "GO"
	StatusNoGo Status = "NO-GO"
)

type ReasonCode string

const (
	ReasonBaseNOINonPositive   ReasonCode = "base_noi_non_positive"
	ReasonBaseValueGapNegative ReasonCode = "base_value_gap_negative"
	ReasonBaseInfeasible       ReasonCode = "base_infeasible"
	ReasonWorstCaseInfeasible  ReasonCode = "worst_case_infeasible"
	ReasonAllScenariosFeasible ReasonCode = "all_scenarios_feasible"
)

const (
	ScenarioBest  = "best"
	ScenarioBase  = "base"
	ScenarioWorst = "worst"
)

// Perturbation scales total project cost and revenue for one scenario.
type Perturbation struct {
	CostFactor    float64 `yaml:"cost" json:"cost_factor"`
	RevenueFactor float64 `yaml:"revenue" json:"revenue_factor"`
}

type Config struct {
	Best  Perturbation `yaml:"best"`
	Worst Perturbation `yaml:"worst"`
}

func DefaultConfig() Config {
	return Config{
		Best:  Perturbation{CostFactor: 0.95, RevenueFactor: 1.05},
		Worst: Perturbation{CostFactor: 1.10, RevenueFactor: 0.90},
	}
}

func (c Config) Validate() error {
	for name, p := range map[string]Perturbation{ScenarioBest: c.Best, ScenarioWorst: c.Worst} {
		if p.CostFactor <= 0 || p.RevenueFactor <= 0 {
			return apperr.New(apperr.CodeInvalidInput, "scenario %s: cost and revenue factors must be > 0", name)
		}
	}
	return nil
}

type Scenario struct {
	Name             string   `json:"name"`
	CostFactor       float64  `json:"cost_factor"`
	RevenueFactor    float64  `json:"revenue_factor"`
	TotalProjectCost float64  `json:"total_project_cost"`
	NOI              float64  `json:"net_operating_income"`
	DSCR             *float64 `json:"dscr"`
	ROI              float64  `json:"roi"`
	IRR              *float64 `json:"irr"`
	PropertyValue    float64  `json:"property_value"`
	ValueGap         float64  `json:"value_gap"`
	Feasible         bool     `json:"feasible"`
	FailedChecks     []string `json:"failed_checks"`
}

// Provenance records where a derived decision field came from.
type Provenance struct {
	Source string `json:"source"`
	Rule   string `json:"rule,omitempty"`
	Detail string `json:"detail"`
}

type Decision struct {
	Status     Status                `json:"decision_status"`
	ReasonCode ReasonCode            `json:"reason_code"`
	Caveat     string                `json:"caveat,omitempty"`
	Scenarios  []Scenario            `json:"scenarios"`
	Provenance map[string]Provenance `json:"provenance"`
}

// Scenario returns the named scenario.
func (d *Decision) Scenario(name string) (Scenario, bool) {
	for _, s := range d.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

type Policy struct {
	analyzer *finance.Analyzer
	cfg      Config
}

func New(analyzer *finance.Analyzer, cfg Config) *Policy {
	return &Policy{analyzer: analyzer, cfg: cfg}
}

// Decide builds the three scenarios around base and applies the rule
// table. in must be the input base was computed from.
func (p *Policy) Decide(profile *taxonomy.Profile, in finance.Input, base *finance.Result, tr *trace.Trace) (*Decision, error) {
	if base == nil {
		return nil, apperr.New(apperr.CodeInternalInvariant, "decision requested without a base analysis")
	}

	best, err := p.perturbed(ScenarioBest, profile, in, p.cfg.Best)
	if err != nil {
		return nil, err
	}
	worst, err := p.perturbed(ScenarioWorst, profile, in, p.cfg.Worst)
	if err != nil {
		return nil, err
	}
	scenarios := []Scenario{
		best,
		scenarioFrom(ScenarioBase, Perturbation{CostFactor: 1, RevenueFactor: 1}, in.TotalProjectCost, base),
		worst,
	}

	d := &Decision{
		Scenarios:  scenarios,
		Provenance: make(map[string]Provenance),
	}
	for _, s := range scenarios {
		tr.Record(trace.StepScenario, map[string]any{
			"scenario":       s.Name,
			"cost_factor":    s.CostFactor,
			"revenue_factor": s.RevenueFactor,
			"noi":            s.NOI,
			"value_gap":      s.ValueGap,
			"feasible":       s.Feasible,
		})
		detail := fmt.Sprintf("financial analyzer at cost x%.2f, revenue x%.2f", s.CostFactor, s.RevenueFactor)
		d.Provenance["scenarios."+s.Name+".feasible"] = Provenance{Source: "finance.analyzer", Detail: detail}
		d.Provenance["scenarios."+s.Name+".value_gap"] = Provenance{Source: "finance.analyzer", Detail: detail}
	}

	view := scenarioView{best: scenarios[0], base: scenarios[1], worst: scenarios[2], worstCfg: p.cfg.Worst}
	for _, r := range rules {
		if !r.when(view) {
			continue
		}
		d.Status = r.status
		d.ReasonCode = r.code
		ruleDetail := r.explain(view)
		d.Provenance["decision_status"] = Provenance{Source: "dealshield.rules", Rule: string(r.code), Detail: ruleDetail}
		d.Provenance["reason_code"] = Provenance{Source: "dealshield.rules", Rule: string(r.code), Detail: ruleDetail}
		if r.caveat != nil {
			d.Caveat = r.caveat(view)
			d.Provenance["caveat"] = Provenance{Source: "dealshield.rules", Rule: string(r.code), Detail: "worst scenario failed checks"}
		}
		break
	}
	if d.ReasonCode == "" {
		return nil, apperr.New(apperr.CodeInternalInvariant, "no decision rule matched")
	}

	tr.Record(trace.StepDecision, map[string]any{
		"decision_status": string(d.Status),
		"reason_code":     string(d.ReasonCode),
		"caveat":          d.Caveat,
	})
	return d, nil
}

func (p *Policy) perturbed(name string, profile *taxonomy.Profile, in finance.Input, pert Perturbation) (Scenario, error) {
	scaled := in
	scaled.TotalProjectCost = in.TotalProjectCost * pert.CostFactor
	scaled.RevenueFactor = revenueFactor(in.RevenueFactor) * pert.RevenueFactor

	res, err := p.analyzer.Analyze(profile, scaled, nil)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", name, err)
	}
	return scenarioFrom(name, pert, scaled.TotalProjectCost, res), nil
}

func revenueFactor(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

func scenarioFrom(name string, pert Perturbation, total float64, res *finance.Result) Scenario {
	return Scenario{
		Name:             name,
		CostFactor:       pert.CostFactor,
		RevenueFactor:    pert.RevenueFactor,
		TotalProjectCost: total,
		NOI:              res.Revenue.NOI,
		DSCR:             res.Returns.DSCR,
		ROI:              res.Returns.ROI,
		IRR:              res.Returns.IRR,
		PropertyValue:    res.Returns.PropertyValue,
		ValueGap:         res.Returns.ValueGap,
		Feasible:         res.Returns.Feasible,
		FailedChecks:     append([]string{}, res.Returns.FailedChecks...),
	}
}

func describeFailures(s Scenario) string {
	if len(s.FailedChecks) == 0 {
		return "none"
	}
	return strings.Join(s.FailedChecks, ", ")
}
