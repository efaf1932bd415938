// Package procurement holds the records the review screens work with, the
// catalogue of AI-derived fields and the pure functions that turn screen state
// into view descriptions.
package procurement

import (
	"github.com/shopspring/decimal"
)

// Notice is a stage-1 row: one procurement notice ingested from the public registry.
type Notice struct {
	RegNumber   string `json:"reg_number"`
	UpdateDate  string `json:"update_date"`
	BidEndDate  string `json:"bid_end_date"`
	Description string `json:"description"`
}

// ReviewItem is a notice enriched with AI-extracted attributes (stage 2).
type ReviewItem struct {
	Notice

	InitialPrice decimal.NullDecimal `json:"initial_price"`
	AreaMin      *float64            `json:"ai_area_min"`
	AreaMax      *float64            `json:"ai_area_max"`

	ZakupkaName       Value  `json:"ai_zakupka_name"`
	City              Value  `json:"ai_city"`
	Address           Value  `json:"ai_address"`
	Rooms             Value  `json:"ai_rooms"`
	Floor             Value  `json:"ai_floor"`
	BuildingFloorsMin Value  `json:"ai_building_floors_min"`
	YearBuild         Value  `json:"ai_year_build"`
	WearPercent       Value  `json:"ai_wear_percent"`
	Zakazchik         Value  `json:"ai_zakazchik"`
	CombinedText      string `json:"combined_text"`
}

// Overrides maps an override key to the operator's replacement value for one
// record. A nil value means the backend holds no override for that key.
type Overrides map[string]*string

// Get reports the override for key when it is present and non-null.
func (o Overrides) Get(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Set stores value under key.
func (o Overrides) Set(key, value string) {
	o[key] = &value
}

// Verdict is the operator's decision on a record at a stage.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// ReviewStage is the stage number decisions are recorded against when
// promoting items to link generation.
const ReviewStage = 2

// Decision is a persisted approval record for one item at one stage.
type Decision struct {
	RegNumber string
	Stage     int
	Verdict   Verdict
	Comment   *string
}

// Approve builds the stage-2 approval sent for every promoted item.
func Approve(regNumber string) Decision {
	return Decision{RegNumber: regNumber, Stage: ReviewStage, Verdict: VerdictApproved}
}
