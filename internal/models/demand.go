package models

import (
	"math"
	"time"
)

// CapacityTypeCSP is the capacity-type tag retained by the downstream views.
const CapacityTypeCSP = "CSP"

// ProviderDemand is one entry from the portal's providerDemandList array.
type ProviderDemand struct {
	CapacityType      string `json:"capacityType"`
	StartTime         int64  `json:"startTime"` // epoch milliseconds
	WaveGroupID       string `json:"waveGroupId"`
	DurationInMinutes int    `json:"durationInMinutes"`
	RequiredQuantity  int    `json:"requiredQuantity"`
	ScheduledQuantity int    `json:"scheduledQuantity"`
}

// ServiceTypeDemand is the per-service-type value of the demand API response.
type ServiceTypeDemand struct {
	ServiceTypeName    string           `json:"serviceTypeName"`
	ProviderDemandList []ProviderDemand `json:"providerDemandList"`
}

// DemandPayload is one successful fetch outcome: the raw demand body for a
// single station, keyed by service-type id.
type DemandPayload struct {
	Station string
	Demand  map[string]ServiceTypeDemand
}

// DemandRecord is one flattened row of workforce-demand data for a time slot.
// Records are never mutated after creation.
type DemandRecord struct {
	Station           string    `json:"station"`
	ServiceType       string    `json:"service_type"`
	WaveGroupID       string    `json:"wave_group_id"`
	StartTime         time.Time `json:"start_time"`
	DurationMinutes   int       `json:"duration_minutes"`
	RequiredQuantity  int       `json:"required_quantity"`
	ScheduledQuantity int       `json:"scheduled_quantity"`
	CapacityType      string    `json:"capacity_type"`
	Date              string    `json:"date"` // OFD date, YYYY-MM-DD
}

// Pending is the unfilled quantity for the slot.
func (r DemandRecord) Pending() int {
	return r.RequiredQuantity - r.ScheduledQuantity
}

// Fill is the scheduled/required ratio rounded to one decimal place.
// When RequiredQuantity is zero the ratio is reported as 0 rather than
// propagating a division by zero; such rows also never reach the pending
// view because Pending is non-positive.
func (r DemandRecord) Fill() float64 {
	if r.RequiredQuantity == 0 {
		return 0
	}
	ratio := float64(r.ScheduledQuantity) / float64(r.RequiredQuantity)
	return math.Round(ratio*10) / 10
}

// NextWaveStart is the start of the following wave, 15 minutes after this one.
func (r DemandRecord) NextWaveStart() time.Time {
	return r.StartTime.Add(15 * time.Minute)
}

// DemandSnapshot is one persisted run of flattened demand records.
type DemandSnapshot struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	Date        string         `json:"date"` // run date, YYYY-MM-DD
	Stations    []string       `json:"stations"`
	RecordCount int            `json:"record_count"`
	Records     []DemandRecord `json:"records"`
	CreatedAt   int64          `json:"created_at"`
}
