package aggregate

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/models"
)

func demandAt(capacityType string, start time.Time, required, scheduled int) models.ProviderDemand {
	return models.ProviderDemand{
		CapacityType:      capacityType,
		StartTime:         start.UnixMilli(),
		WaveGroupID:       "CYCLE_1",
		DurationInMinutes: 480,
		RequiredQuantity:  required,
		ScheduledQuantity: scheduled,
	}
}

func payload(station, serviceType string, demands ...models.ProviderDemand) models.DemandPayload {
	return models.DemandPayload{
		Station: station,
		Demand: map[string]models.ServiceTypeDemand{
			"st-1": {
				ServiceTypeName:    serviceType,
				ProviderDemandList: demands,
			},
		},
	}
}

func TestFlattenKeepsOnlyCSP(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	payloads := []models.DemandPayload{
		payload("DXE1", "Standard Parcel",
			demandAt(models.CapacityTypeCSP, start, 10, 4),
			demandAt("DSP", start, 99, 0),
			demandAt("FLEX", start, 50, 0),
			demandAt(models.CapacityTypeCSP, start.Add(time.Hour), 8, 8),
		),
	}

	records := New(arbor.NewLogger()).Flatten(payloads, nil)

	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, models.CapacityTypeCSP, r.CapacityType)
	}
}

func TestFlattenProjection(t *testing.T) {
	start := time.Date(2026, 9, 2, 14, 30, 0, 0, time.Local)
	payloads := []models.DemandPayload{
		payload("DSS2", "Multi-Use", demandAt(models.CapacityTypeCSP, start, 12, 5)),
	}

	records := New(arbor.NewLogger()).Flatten(payloads, nil)

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "DSS2", r.Station)
	assert.Equal(t, "Multi-Use", r.ServiceType)
	assert.Equal(t, "CYCLE_1", r.WaveGroupID)
	assert.True(t, r.StartTime.Equal(start), "millisecond timestamp must round-trip")
	assert.Equal(t, "2026-09-02", r.Date)
	assert.Equal(t, 480, r.DurationMinutes)
	assert.Equal(t, 12, r.RequiredQuantity)
	assert.Equal(t, 5, r.ScheduledQuantity)
}

func TestFlattenDateWindowFilter(t *testing.T) {
	inside := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	outside := time.Date(2026, 9, 9, 10, 0, 0, 0, time.Local)
	payloads := []models.DemandPayload{
		payload("DXE1", "Standard Parcel",
			demandAt(models.CapacityTypeCSP, inside, 10, 4),
			demandAt(models.CapacityTypeCSP, outside, 10, 4),
		),
	}

	records := New(arbor.NewLogger()).Flatten(payloads, []string{"2026-09-01", "2026-09-02"})

	require.Len(t, records, 1)
	assert.Equal(t, "2026-09-01", records[0].Date)
}

func TestFlattenOrdering(t *testing.T) {
	early := time.Date(2026, 9, 1, 8, 0, 0, 0, time.Local)
	late := time.Date(2026, 9, 1, 16, 0, 0, 0, time.Local)
	payloads := []models.DemandPayload{
		payload("DZZ9", "Standard Parcel",
			demandAt(models.CapacityTypeCSP, late, 5, 1),
			demandAt(models.CapacityTypeCSP, early, 5, 1),
		),
		payload("DAA1", "Standard Parcel",
			demandAt(models.CapacityTypeCSP, late, 5, 1),
		),
	}

	records := New(arbor.NewLogger()).Flatten(payloads, nil)

	require.Len(t, records, 3)
	assert.True(t, records[0].StartTime.Equal(early))
	// Same start time: station breaks the tie.
	assert.Equal(t, "DAA1", records[1].Station)
	assert.Equal(t, "DZZ9", records[2].Station)
}

func TestPendingViewFiltersFilledWork(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	records := []models.DemandRecord{
		{Station: "DXE1", StartTime: start, Date: "2026-09-01", RequiredQuantity: 10, ScheduledQuantity: 4},
		{Station: "DXE2", StartTime: start, Date: "2026-09-01", RequiredQuantity: 8, ScheduledQuantity: 8},
		{Station: "DXE3", StartTime: start, Date: "2026-09-01", RequiredQuantity: 0, ScheduledQuantity: 0},
		{Station: "DXE4", StartTime: start, Date: "2026-09-01", RequiredQuantity: 3, ScheduledQuantity: 5},
	}

	rows := New(arbor.NewLogger()).PendingView(records, time.Now())

	require.Len(t, rows, 1, "fully filled, empty, and over-filled slots are not pending")
	assert.Equal(t, "DXE1", rows[0].Station)
	assert.Equal(t, 6, rows[0].Pending)
}

func TestPendingViewRowShape(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	runtime := time.Date(2026, 9, 1, 9, 15, 42, 0, time.Local)
	records := []models.DemandRecord{
		{
			Station:           "DXE1",
			ServiceType:       "Standard Parcel",
			WaveGroupID:       "CYCLE_1",
			StartTime:         start,
			Date:              "2026-09-01",
			RequiredQuantity:  10,
			ScheduledQuantity: 4,
		},
	}

	rows := New(arbor.NewLogger()).PendingView(records, runtime)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.True(t, r.Runtime.Equal(runtime.Truncate(time.Minute)), "runtime floors to the minute")
	assert.Equal(t, "2026-09-01", r.OFDDate)
	assert.Equal(t, "CYCLE_1", r.Cycle)
	assert.Equal(t, 10, r.Scheduled)
	assert.Equal(t, 4, r.Accepted)
	assert.Equal(t, 6, r.Pending)
	assert.InDelta(t, 0.4, r.Fill, 0.001)
	assert.True(t, r.NextWaveStart.Equal(start.Add(15*time.Minute)))
}

func TestPendingViewOrderedByNextWave(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	records := []models.DemandRecord{
		{Station: "B", StartTime: base.Add(2 * time.Hour), Date: "2026-09-01", RequiredQuantity: 5, ScheduledQuantity: 0},
		{Station: "A", StartTime: base, Date: "2026-09-01", RequiredQuantity: 5, ScheduledQuantity: 0},
	}

	rows := New(arbor.NewLogger()).PendingView(records, time.Now())

	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Station)
	assert.Equal(t, "B", rows[1].Station)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteRawCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	records := []models.DemandRecord{
		{
			Station:           "DXE1",
			ServiceType:       "Standard Parcel",
			WaveGroupID:       "CYCLE_1",
			StartTime:         start,
			Date:              "2026-09-01",
			DurationMinutes:   480,
			RequiredQuantity:  10,
			ScheduledQuantity: 4,
			CapacityType:      models.CapacityTypeCSP,
		},
	}

	require.NoError(t, WriteRawCSV(path, records))

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, rawHeader, rows[0])
	assert.Equal(t, []string{
		"2026-09-01", "DXE1", "Standard Parcel", "CYCLE_1",
		"2026-09-01 10:00:00", "480", "10", "4", "CSP",
	}, rows[1])
}

func TestWritePendingCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.csv")
	runtime := time.Date(2026, 9, 1, 9, 15, 0, 0, time.Local)
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	rows := []PendingRow{
		{
			Runtime:       runtime,
			OFDDate:       "2026-09-01",
			Station:       "DXE1",
			Cycle:         "CYCLE_1",
			ServiceType:   "Standard Parcel",
			Scheduled:     10,
			Accepted:      4,
			Pending:       6,
			Fill:          0.4,
			NextWaveStart: start.Add(15 * time.Minute),
		},
	}

	require.NoError(t, WritePendingCSV(path, rows))

	got := readCSV(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, pendingHeader, got[0])
	assert.Equal(t, []string{
		"2026-09-01 09:15", "2026-09-01", "DXE1", "CYCLE_1", "Standard Parcel",
		"10", "4", "6", "0.4", "10:15:00",
	}, got[1])
}

func TestWritePendingCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.csv")

	require.NoError(t, WritePendingCSV(path, nil))

	got := readCSV(t, path)
	require.Len(t, got, 1, "header only")
}
