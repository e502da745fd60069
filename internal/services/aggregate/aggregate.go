package aggregate

import (
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/models"
)

// Aggregator flattens per-station demand payloads into a uniform record set
// and derives the pending-work reporting view over it. The raw record set
// and the pending view are two views over one dataset, not two datasets.
type Aggregator struct {
	logger arbor.ILogger
}

// New creates an Aggregator.
func New(logger arbor.ILogger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Flatten projects every demand entry of every payload into a DemandRecord,
// keeping only CSP capacity and, when a date window is given, only records
// whose OFD date falls inside it. Records are ordered by start time, then
// station.
func (a *Aggregator) Flatten(payloads []models.DemandPayload, dates []string) []models.DemandRecord {
	window := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		window[d] = struct{}{}
	}

	var records []models.DemandRecord
	total := 0
	for _, payload := range payloads {
		for _, serviceType := range payload.Demand {
			for _, demand := range serviceType.ProviderDemandList {
				total++
				if demand.CapacityType != models.CapacityTypeCSP {
					continue
				}

				start := time.UnixMilli(demand.StartTime)
				date := start.Format("2006-01-02")
				if len(window) > 0 {
					if _, ok := window[date]; !ok {
						continue
					}
				}

				records = append(records, models.DemandRecord{
					Station:           payload.Station,
					ServiceType:       serviceType.ServiceTypeName,
					WaveGroupID:       demand.WaveGroupID,
					StartTime:         start,
					DurationMinutes:   demand.DurationInMinutes,
					RequiredQuantity:  demand.RequiredQuantity,
					ScheduledQuantity: demand.ScheduledQuantity,
					CapacityType:      demand.CapacityType,
					Date:              date,
				})
			}
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartTime.Equal(records[j].StartTime) {
			return records[i].StartTime.Before(records[j].StartTime)
		}
		return records[i].Station < records[j].Station
	})

	a.logger.Info().
		Int("payloads", len(payloads)).
		Int("entries", total).
		Int("records", len(records)).
		Msg("Demand payloads flattened")

	return records
}

// PendingRow is one row of the pending-work view.
type PendingRow struct {
	Runtime       time.Time
	OFDDate       string
	Station       string
	Cycle         string
	ServiceType   string
	Scheduled     int // required quantity, per the report's column naming
	Accepted      int // scheduled quantity
	Pending       int
	Fill          float64
	NextWaveStart time.Time
}

// PendingView derives the pending-work rows: only records with unfilled
// quantity, ordered by start time. Runtime is stamped on every row, floored
// to the minute.
func (a *Aggregator) PendingView(records []models.DemandRecord, runtime time.Time) []PendingRow {
	runtime = runtime.Truncate(time.Minute)

	rows := make([]PendingRow, 0, len(records))
	for _, r := range records {
		if r.Pending() <= 0 {
			continue
		}
		rows = append(rows, PendingRow{
			Runtime:       runtime,
			OFDDate:       r.Date,
			Station:       r.Station,
			Cycle:         r.WaveGroupID,
			ServiceType:   r.ServiceType,
			Scheduled:     r.RequiredQuantity,
			Accepted:      r.ScheduledQuantity,
			Pending:       r.Pending(),
			Fill:          r.Fill(),
			NextWaveStart: r.NextWaveStart(),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].NextWaveStart.Before(rows[j].NextWaveStart)
	})

	a.logger.Info().
		Int("records", len(records)).
		Int("pending_rows", len(rows)).
		Msg("Pending-work view derived")

	return rows
}
