package aggregate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/flexops/flexfill/internal/models"
)

// rawHeader is the column set of the raw flattened export.
var rawHeader = []string{
	"date", "station", "service_type", "wave_group_id", "start_time",
	"duration_minutes", "required_quantity", "scheduled_quantity", "capacity_type",
}

// pendingHeader is the column set the portal-side report consumers expect.
var pendingHeader = []string{
	"Runtime", "OFDDate", "Station", "Cycle", "ServiceType",
	"Scheduled", "Accepted", "Pending", "Fill", "Next Wave Start",
}

// WriteRawCSV writes the full flattened record set.
func WriteRawCSV(path string, records []models.DemandRecord) error {
	return writeCSV(path, rawHeader, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.Date,
			r.Station,
			r.ServiceType,
			r.WaveGroupID,
			r.StartTime.Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.DurationMinutes),
			strconv.Itoa(r.RequiredQuantity),
			strconv.Itoa(r.ScheduledQuantity),
			r.CapacityType,
		}
	})
}

// WritePendingCSV writes the pending-work view.
func WritePendingCSV(path string, rows []PendingRow) error {
	return writeCSV(path, pendingHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.Runtime.Format("2006-01-02 15:04"),
			r.OFDDate,
			r.Station,
			r.Cycle,
			r.ServiceType,
			strconv.Itoa(r.Scheduled),
			strconv.Itoa(r.Accepted),
			strconv.Itoa(r.Pending),
			strconv.FormatFloat(r.Fill, 'f', 1, 64),
			r.NextWaveStart.Format("15:04:05"),
		}
	})
}

// writeCSV writes header plus n rows produced by row, creating the parent
// directory if absent.
func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
