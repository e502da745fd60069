package interfaces

import (
	"context"

	"github.com/flexops/flexfill/internal/models"
)

// SnapshotStorage persists flattened demand snapshots per run.
type SnapshotStorage interface {
	SaveSnapshot(ctx context.Context, snapshot *models.DemandSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.DemandSnapshot, error)
	ListSnapshotsByDate(ctx context.Context, date string) ([]*models.DemandSnapshot, error)
}
