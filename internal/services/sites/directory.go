package sites

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/models"
)

// Directory loads the managed-site mapping and produces scrape targets.
// Loading fails soft: an unreadable mapping (network share offline, file
// missing) logs and yields zero targets rather than aborting the run.
type Directory struct {
	path   string
	logger arbor.ILogger
}

// NewDirectory creates a directory reading from the given CSV path.
func NewDirectory(path string, logger arbor.ILogger) *Directory {
	return &Directory{
		path:   path,
		logger: logger,
	}
}

// ListTargets reads the mapping and returns one target per row. Column
// headers are normalized (lowercased, spaces to underscores) before the
// station and area_id columns are located. Rows missing either value are
// skipped.
func (d *Directory) ListTargets() []models.ScrapeTarget {
	f, err := os.Open(d.path)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("path", d.path).
			Msg("Failed to read site mappings. Is the network share reachable?")
		return nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("path", d.path).
			Msg("Failed to parse site mappings")
		return nil
	}
	if len(rows) < 2 {
		d.logger.Warn().Str("path", d.path).Msg("Site mapping has no data rows")
		return nil
	}

	stationCol, areaCol := -1, -1
	for i, header := range rows[0] {
		switch normalizeHeader(header) {
		case "station":
			stationCol = i
		case "area_id":
			areaCol = i
		}
	}
	if stationCol < 0 || areaCol < 0 {
		d.logger.Error().
			Str("path", d.path).
			Strs("headers", rows[0]).
			Msg("Site mapping is missing station or area_id columns")
		return nil
	}

	targets := make([]models.ScrapeTarget, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if stationCol >= len(row) || areaCol >= len(row) {
			continue
		}
		station := strings.TrimSpace(row[stationCol])
		areaID := strings.TrimSpace(row[areaCol])
		if station == "" || areaID == "" {
			continue
		}
		targets = append(targets, models.ScrapeTarget{Station: station, AreaID: areaID})
	}

	d.logger.Info().
		Int("targets", len(targets)).
		Str("path", d.path).
		Msg("Site mappings loaded")

	return targets
}

// ListTargetsWithPrefix returns only targets whose station matches the
// prefix. An empty prefix returns everything.
func (d *Directory) ListTargetsWithPrefix(prefix string) []models.ScrapeTarget {
	targets := d.ListTargets()
	if prefix == "" {
		return targets
	}

	filtered := targets[:0]
	for _, t := range targets {
		if strings.HasPrefix(t.Station, prefix) {
			filtered = append(filtered, t)
		}
	}

	d.logger.Info().
		Str("prefix", prefix).
		Int("targets", len(filtered)).
		Msg("Filtered site mappings by station prefix")

	return filtered
}

// normalizeHeader lowercases a column header and replaces spaces with
// underscores, so "Area ID" and "area_id" resolve to the same column.
func normalizeHeader(header string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(header)), " ", "_")
}
