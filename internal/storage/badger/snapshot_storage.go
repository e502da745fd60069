package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/flexops/flexfill/internal/interfaces"
	"github.com/flexops/flexfill/internal/models"
)

// SnapshotStorage implements the SnapshotStorage interface for Badger
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, snapshot *models.DemandSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("snapshot ID is required")
	}

	if snapshot.CreatedAt == 0 {
		snapshot.CreatedAt = time.Now().Unix()
	}
	snapshot.RecordCount = len(snapshot.Records)

	if err := s.db.Store().Upsert(snapshot.ID, snapshot); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	s.logger.Debug().
		Str("id", snapshot.ID).
		Str("date", snapshot.Date).
		Int("records", snapshot.RecordCount).
		Msg("Demand snapshot stored")

	return nil
}

func (s *SnapshotStorage) GetSnapshot(ctx context.Context, id string) (*models.DemandSnapshot, error) {
	var snapshot models.DemandSnapshot
	if err := s.db.Store().Get(id, &snapshot); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("snapshot not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *SnapshotStorage) ListSnapshotsByDate(ctx context.Context, date string) ([]*models.DemandSnapshot, error) {
	var snapshots []models.DemandSnapshot
	if err := s.db.Store().Find(&snapshots, badgerhold.Where("Date").Eq(date)); err != nil {
		return nil, fmt.Errorf("failed to find snapshots: %w", err)
	}

	result := make([]*models.DemandSnapshot, len(snapshots))
	for i := range snapshots {
		result[i] = &snapshots[i]
	}
	return result, nil
}
