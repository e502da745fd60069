package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/common"
	"github.com/flexops/flexfill/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func snapshot(id, runID, date string, records ...models.DemandRecord) *models.DemandSnapshot {
	return &models.DemandSnapshot{
		ID:       id,
		RunID:    runID,
		Date:     date,
		Stations: []string{"DXE1"},
		Records:  records,
	}
}

func TestSaveAndGetSnapshot(t *testing.T) {
	storage := NewSnapshotStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	record := models.DemandRecord{
		Station:           "DXE1",
		ServiceType:       "Standard Parcel",
		WaveGroupID:       "CYCLE_1",
		StartTime:         time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		Date:              "2026-09-01",
		RequiredQuantity:  10,
		ScheduledQuantity: 4,
		CapacityType:      models.CapacityTypeCSP,
	}

	require.NoError(t, storage.SaveSnapshot(ctx, snapshot("snap-1", "run-1", "2026-09-01", record)))

	got, err := storage.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "2026-09-01", got.Date)
	assert.Equal(t, 1, got.RecordCount)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "DXE1", got.Records[0].Station)
	assert.NotZero(t, got.CreatedAt, "created timestamp is stamped on save")
}

func TestSaveSnapshotRequiresID(t *testing.T) {
	storage := NewSnapshotStorage(newTestDB(t), arbor.NewLogger())

	err := storage.SaveSnapshot(context.Background(), snapshot("", "run-1", "2026-09-01"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID is required")
}

func TestSaveSnapshotUpsert(t *testing.T) {
	storage := NewSnapshotStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveSnapshot(ctx, snapshot("snap-1", "run-1", "2026-09-01")))
	require.NoError(t, storage.SaveSnapshot(ctx, snapshot("snap-1", "run-2", "2026-09-01")))

	got, err := storage.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)
}

func TestGetSnapshotMissing(t *testing.T) {
	storage := NewSnapshotStorage(newTestDB(t), arbor.NewLogger())

	_, err := storage.GetSnapshot(context.Background(), "absent")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListSnapshotsByDate(t *testing.T) {
	storage := NewSnapshotStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveSnapshot(ctx, snapshot("snap-1", "run-1", "2026-09-01")))
	require.NoError(t, storage.SaveSnapshot(ctx, snapshot("snap-2", "run-2", "2026-09-01")))
	require.NoError(t, storage.SaveSnapshot(ctx, snapshot("snap-3", "run-3", "2026-09-02")))

	snapshots, err := storage.ListSnapshotsByDate(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	empty, err := storage.ListSnapshotsByDate(ctx, "2026-08-31")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
