package calculation

import (
	"time"

	"specsharp/internal/engine"
)

// Run is one persisted calculation. Totals are kept at full precision
// for drift checks; Result is the rounded bundle shown to callers.
type Run struct {
	ID              string         `json:"id"`
	OrgID           string         `json:"org_id"`
	Email           string         `json:"email"`
	BuildingType    string         `json:"building_type"`
	Subtype         string         `json:"subtype"`
	DecisionStatus  string         `json:"decision_status"`
	TaxonomyVersion int            `json:"taxonomy_version"`
	Request         engine.Request `json:"request"`
	Totals          engine.Totals  `json:"totals"`
	Result          *engine.Result `json:"result"`
	CreatedAt       time.Time      `json:"created_at"`
}
