package taxonomy

import "sort"

// BuildingType is a canonical building category such as "restaurant".
type BuildingType string

const (
	TypeRestaurant  BuildingType = "restaurant"
	TypeResidential BuildingType = "residential"
	TypeOffice      BuildingType = "office"
	TypeHospitality BuildingType = "hospitality"
	TypeHealthcare  BuildingType = "healthcare"
	TypeEducational BuildingType = "educational"
	TypeIndustrial  BuildingType = "industrial"
	TypeParking     BuildingType = "parking"
)

// ProjectClass is the kind of construction work being estimated.
type ProjectClass string

const (
	ClassGroundUp          ProjectClass = "ground_up"
	ClassRenovation        ProjectClass = "renovation"
	ClassAddition          ProjectClass = "addition"
	ClassTenantImprovement ProjectClass = "tenant_improvement"
)

// ProjectClasses lists every class a taxonomy must price.
var ProjectClasses = []ProjectClass{ClassGroundUp, ClassRenovation, ClassAddition, ClassTenantImprovement}

// FinishLevel is the build-quality tier.
type FinishLevel string

const (
	FinishStandard FinishLevel = "standard"
	FinishPremium  FinishLevel = "premium"
	FinishLuxury   FinishLevel = "luxury"
)

var FinishLevels = []FinishLevel{FinishStandard, FinishPremium, FinishLuxury}

// OwnershipType selects the financing terms applied to a project.
type OwnershipType string

const (
	OwnershipForProfit  OwnershipType = "for_profit"
	OwnershipNonprofit  OwnershipType = "nonprofit"
	OwnershipGovernment OwnershipType = "government"
)

// RevenueBasis is the single authoritative way a profile earns revenue.
type RevenueBasis string

const (
	BasisPerSF           RevenueBasis = "per_sf"
	BasisPerUnitMonthly  RevenueBasis = "per_unit_monthly"
	BasisPerBedAnnual    RevenueBasis = "per_bed_annual"
	BasisPerSeatAnnual   RevenueBasis = "per_seat_annual"
	BasisPerSpaceMonthly RevenueBasis = "per_space_monthly"
)

// CountKey is the extracted count that feeds a basis ("units", "beds",
// ...). Area-based revenue has no count.
func (b RevenueBasis) CountKey() string {
	switch b {
	case BasisPerUnitMonthly:
		return "units"
	case BasisPerBedAnnual:
		return "beds"
	case BasisPerSeatAnnual:
		return "seats"
	case BasisPerSpaceMonthly:
		return "spaces"
	}
	return ""
}

// PeriodsPerYear converts the basis rate to an annual figure.
func (b RevenueBasis) PeriodsPerYear() float64 {
	switch b {
	case BasisPerUnitMonthly, BasisPerSpaceMonthly:
		return 12
	}
	return 1
}

func (b RevenueBasis) valid() bool {
	switch b {
	case BasisPerSF, BasisPerUnitMonthly, BasisPerBedAnnual, BasisPerSeatAnnual, BasisPerSpaceMonthly:
		return true
	}
	return false
}

type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Clamp bounds the blended construction $/sf. Either side may be unset.
type Clamp struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// TradeBreakdown allocates construction cost across the five trades.
type TradeBreakdown struct {
	Structural float64 `yaml:"structural" json:"structural"`
	Mechanical float64 `yaml:"mechanical" json:"mechanical"`
	Electrical float64 `yaml:"electrical" json:"electrical"`
	Plumbing   float64 `yaml:"plumbing" json:"plumbing"`
	Finishes   float64 `yaml:"finishes" json:"finishes"`
}

// TradeShare is one named trade percentage.
type TradeShare struct {
	Trade string
	Share float64
}

// Shares returns the trades in their fixed presentation order.
func (t TradeBreakdown) Shares() []TradeShare {
	return []TradeShare{
		{"structural", t.Structural},
		{"mechanical", t.Mechanical},
		{"electrical", t.Electrical},
		{"plumbing", t.Plumbing},
		{"finishes", t.Finishes},
	}
}

func (t TradeBreakdown) Sum() float64 {
	return t.Structural + t.Mechanical + t.Electrical + t.Plumbing + t.Finishes
}

// FinancingTerms is the capital stack for one ownership type.
type FinancingTerms struct {
	DebtRatio         float64 `yaml:"debt_ratio" json:"debt_ratio"`
	DebtRate          float64 `yaml:"debt_rate" json:"debt_rate"`
	EquityRatio       float64 `yaml:"equity_ratio" json:"equity_ratio"`
	GrantsRatio       float64 `yaml:"grants_ratio" json:"grants_ratio"`
	PhilanthropyRatio float64 `yaml:"philanthropy_ratio" json:"philanthropy_ratio"`
	TargetDSCR        float64 `yaml:"target_dscr" json:"target_dscr"`
	TargetROI         float64 `yaml:"target_roi" json:"target_roi"`
}

func (f FinancingTerms) RatioSum() float64 {
	return f.DebtRatio + f.EquityRatio + f.GrantsRatio + f.PhilanthropyRatio
}

// Hints drive text classification. Lower Priority wins ties.
type Hints struct {
	Keywords            []string       `yaml:"keywords" json:"keywords"`
	Priority            int            `yaml:"priority" json:"priority"`
	IncompatibleClasses []ProjectClass `yaml:"incompatible_classes,omitempty" json:"incompatible_classes,omitempty"`
}

// Incompatible reports whether the profile must not be picked for class.
func (h Hints) Incompatible(class ProjectClass) bool {
	for _, c := range h.IncompatibleClasses {
		if c == class {
			return true
		}
	}
	return false
}

// Tier holds a base value and the value used for premium finishes.
type Tier struct {
	Base    float64 `yaml:"base" json:"base"`
	Premium float64 `yaml:"premium" json:"premium"`
}

type RevenueModel struct {
	Basis RevenueBasis `yaml:"basis" json:"basis"`
	Rate  float64      `yaml:"rate" json:"rate"`
	// SFPerUnit derives the unit/bed/seat/space count from area when the
	// request carries no explicit count.
	SFPerUnit       float64            `yaml:"sf_per_unit,omitempty" json:"sf_per_unit,omitempty"`
	Occupancy       Tier               `yaml:"occupancy" json:"occupancy"`
	OperatingMargin Tier               `yaml:"operating_margin" json:"operating_margin"`
	ExpenseRatios   map[string]float64 `yaml:"expense_ratios" json:"expense_ratios"`
}

// Profile is the cost, financing and revenue configuration of one
// subtype. Profiles are owned by a Registry and must not be modified.
type Profile struct {
	Type        BuildingType `yaml:"type" json:"type"`
	Subtype     string       `yaml:"subtype" json:"subtype"`
	DisplayName string       `yaml:"display_name" json:"display_name"`

	BaseCostPerSF      float64 `yaml:"base_cost_per_sf" json:"base_cost_per_sf"`
	CostRange          Range   `yaml:"cost_range" json:"cost_range"`
	EquipmentCostPerSF float64 `yaml:"equipment_cost_per_sf" json:"equipment_cost_per_sf"`
	TypicalFloors      int     `yaml:"typical_floors" json:"typical_floors"`
	CostClamp          *Clamp  `yaml:"cost_clamp,omitempty" json:"cost_clamp,omitempty"`
	MarketCapRate      float64 `yaml:"market_cap_rate" json:"market_cap_rate"`

	TradeBreakdown TradeBreakdown                   `yaml:"trade_breakdown" json:"trade_breakdown"`
	SoftCosts      map[string]float64               `yaml:"soft_costs" json:"soft_costs"`
	Financing      map[OwnershipType]FinancingTerms `yaml:"financing" json:"financing"`

	Hints               Hints              `yaml:"classification_hints" json:"classification_hints"`
	RegionalMultipliers map[string]float64 `yaml:"regional_multipliers,omitempty" json:"regional_multipliers,omitempty"`
	SpecialFeatures     map[string]float64 `yaml:"special_features,omitempty" json:"special_features,omitempty"`
	Revenue             RevenueModel       `yaml:"revenue_model" json:"revenue_model"`
}

// Key is the registry key "type/subtype".
func (p *Profile) Key() string {
	return string(p.Type) + "/" + p.Subtype
}

// SoftCostKeys returns soft cost names in sorted order so sums and traces
// are reproducible.
func (p *Profile) SoftCostKeys() []string {
	return sortedKeys(p.SoftCosts)
}

func (p *Profile) SoftCostSum() float64 {
	sum := 0.0
	for _, k := range p.SoftCostKeys() {
		sum += p.SoftCosts[k]
	}
	return sum
}

// FinishFactors scale cost and revenue for a finish level.
type FinishFactors struct {
	Cost    float64 `yaml:"cost" json:"cost"`
	Revenue float64 `yaml:"revenue" json:"revenue"`
}

// ExtractionRule pulls a count out of free text. The first capture group
// of Pattern must be the integer.
type ExtractionRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
}

// Document is the on-disk taxonomy.
type Document struct {
	Version             int                           `yaml:"version"`
	Aliases             map[string]BuildingType       `yaml:"aliases"`
	ProjectClasses      map[ProjectClass]float64      `yaml:"project_classes"`
	FinishLevels        map[FinishLevel]FinishFactors `yaml:"finish_levels"`
	Locations           map[string]float64            `yaml:"locations"`
	CityOverrides       map[string]float64            `yaml:"city_overrides"`
	PrimarySubjectTypes []BuildingType                `yaml:"primary_subject_types"`
	CollisionTypes      []BuildingType                `yaml:"collision_types"`
	ExtractionRules     []ExtractionRule              `yaml:"extraction_rules"`
	Profiles            []Profile                     `yaml:"profiles"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
