package interfaces

import (
	"context"

	"github.com/flexops/flexfill/internal/models"
)

// Authenticator is the interactive login collaborator. AcquireCredentials
// blocks on human action in a controlled browser and returns the freshly
// captured credential set. It is the one deliberately blocking step in the
// system and always runs before any fetch starts.
type Authenticator interface {
	AcquireCredentials(ctx context.Context) (models.CredentialSet, error)
}

// CredentialStore persists credential sets. Sets are date-scoped: a store
// only ever loads the current day's file.
type CredentialStore interface {
	// Load returns today's credential set, ErrNotFound when no file exists
	// for today, or a storage error when the file is unreadable or corrupt.
	Load() (models.CredentialSet, error)

	// Save overwrites today's credential file. A later Load never observes
	// a partial write.
	Save(set models.CredentialSet) error
}
