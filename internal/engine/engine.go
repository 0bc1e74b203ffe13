// Package engine wires the classifier, cost calculator, financial
// analyzer and decision policy into one synchronous pipeline over a
// single immutable Registry.
package engine

import (
	"specsharp/internal/classifier"
	"specsharp/internal/cost"
	"specsharp/internal/dealshield"
	"specsharp/internal/finance"
	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

type Config struct {
	Finance   finance.Config    `yaml:"finance"`
	Scenarios dealshield.Config `yaml:"scenarios"`
}

func DefaultConfig() Config {
	return Config{
		Finance:   finance.DefaultConfig(),
		Scenarios: dealshield.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Finance.Validate(); err != nil {
		return err
	}
	return c.Scenarios.Validate()
}

// Engine is safe for concurrent use; it holds no mutable state.
type Engine struct {
	reg        *taxonomy.Registry
	classifier *classifier.Classifier
	calculator *cost.Calculator
	analyzer   *finance.Analyzer
	policy     *dealshield.Policy
}

func New(reg *taxonomy.Registry, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	analyzer := finance.New(cfg.Finance)
	return &Engine{
		reg:        reg,
		classifier: classifier.New(reg),
		calculator: cost.New(reg),
		analyzer:   analyzer,
		policy:     dealshield.New(analyzer, cfg.Scenarios),
	}, nil
}

func (e *Engine) Registry() *taxonomy.Registry { return e.reg }

// Classify runs only the classifier.
func (e *Engine) Classify(in classifier.Input) (*classifier.Result, error) {
	return e.classifier.Classify(in, nil)
}

// Calculate runs the full pipeline for req. The returned Result is at
// full precision; call Rounded for presentation.
func (e *Engine) Calculate(req Request) (*Result, error) {
	opts, err := req.parseOptions()
	if err != nil {
		return nil, err
	}
	tr := trace.New()

	cls, err := e.classifier.Classify(classifier.Input{
		Text:         req.Description,
		BuildingType: req.BuildingType,
		Subtype:      req.Subtype,
		ProjectClass: opts.class,
	}, tr)
	if err != nil {
		return nil, err
	}

	profile, err := e.resolveProfile(cls, tr)
	if err != nil {
		return nil, err
	}

	floors := req.Floors
	if floors == 0 {
		floors = cls.Counts["floors"]
	}
	c, err := e.calculator.CalculateProfile(profile, cost.Input{
		SquareFootage:   req.SquareFootage,
		Location:        req.Location,
		ProjectClass:    opts.class,
		FinishLevel:     opts.finish,
		Floors:          floors,
		SpecialFeatures: req.SpecialFeatures,
	}, tr)
	if err != nil {
		return nil, err
	}

	fin := finance.InputFromCost(c, opts.ownership, cls.Counts)
	analysis, err := e.analyzer.Analyze(profile, fin, tr)
	if err != nil {
		return nil, err
	}

	decision, err := e.policy.Decide(profile, fin, analysis, tr)
	if err != nil {
		return nil, err
	}

	return assemble(e.reg, req, cls, c, analysis, decision, tr), nil
}

// resolveProfile turns a classification into a profile. A type-only
// classification falls back to the type's default subtype.
func (e *Engine) resolveProfile(cls *classifier.Result, tr *trace.Trace) (*taxonomy.Profile, error) {
	source := "classification"
	var (
		p   *taxonomy.Profile
		err error
	)
	if cls.Subtype == "" {
		source = "type_default"
		p, err = e.reg.DefaultSubtype(cls.Type)
	} else {
		p, err = e.reg.Lookup(cls.Type, cls.Subtype)
	}
	if err != nil {
		return nil, err
	}
	tr.Record(trace.StepProfileResolved, map[string]any{
		"profile": p.Key(),
		"source":  source,
	})
	return p, nil
}

func assemble(
	reg *taxonomy.Registry,
	req Request,
	cls *classifier.Result,
	c *cost.Result,
	analysis *finance.Result,
	decision *dealshield.Decision,
	tr *trace.Trace,
) *Result {
	return &Result{
		ProjectInfo: ProjectInfo{
			BuildingType:    c.Type,
			Subtype:         c.Subtype,
			DisplayName:     c.DisplayName,
			Description:     req.Description,
			SquareFootage:   c.SquareFootage,
			Floors:          c.Floors,
			Location:        req.Location,
			ProjectClass:    c.ProjectClass,
			FinishLevel:     c.FinishLevel,
			OwnershipType:   analysis.Financing.Ownership,
			TaxonomyVersion: reg.Version(),
		},
		Classification: *cls,
		ConstructionCosts: ConstructionCosts{
			BaseCostPerSF:          c.BaseCostPerSF,
			RegionalMultiplier:     c.RegionalMultiplier,
			RegionalSource:         c.RegionalSource,
			ProjectClassMultiplier: c.ProjectClassMultiplier,
			FinishCostFactor:       c.FinishCostFactor,
			ConstructionCostPerSF:  c.ConstructionCostPerSF,
			ClampApplied:           c.ClampApplied,
			ConstructionTotal:      c.ConstructionTotal,
			EquipmentTotal:         c.EquipmentTotal,
			Trades:                 c.Trades,
			SpecialFeatures:        c.SpecialFeatures,
			SpecialFeaturesTotal:   c.SpecialFeaturesTotal,
		},
		SoftCosts: SoftCosts{Items: c.SoftCosts, Total: c.SoftCostsTotal},
		Totals: Totals{
			ConstructionTotal:    c.ConstructionTotal,
			EquipmentTotal:       c.EquipmentTotal,
			SpecialFeaturesTotal: c.SpecialFeaturesTotal,
			SoftCostsTotal:       c.SoftCostsTotal,
			TotalProjectCost:     c.TotalProjectCost,
			CostPerSF:            c.CostPerSF,
		},
		RevenueAnalysis: analysis.Revenue,
		Financing:       analysis.Financing,
		ReturnMetrics:   analysis.Returns,
		DealShield:      *decision,
		Trace:           tr.Steps(),
	}
}
