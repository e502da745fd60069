package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/interfaces"
	"github.com/flexops/flexfill/internal/models"
)

var (
	// ErrNotFound indicates no credential file exists for today.
	ErrNotFound = errors.New("no credential file for today")

	// ErrCorrupt indicates today's credential file could not be decoded.
	ErrCorrupt = errors.New("credential file is corrupt")
)

// FileStore persists credential sets as one JSON file per calendar day.
// A file from a prior day is never considered for reuse; the date is part of
// the file name.
type FileStore struct {
	dir    string
	logger arbor.ILogger
	now    func() time.Time
}

// NewFileStore creates a credential store rooted at dir.
func NewFileStore(dir string, logger arbor.ILogger) *FileStore {
	return &FileStore{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}

// Path returns today's credential file path.
func (s *FileStore) Path() string {
	name := fmt.Sprintf("mdw_cookie_%s.json", s.now().Format("2006-01-02"))
	return filepath.Join(s.dir, name)
}

// Load reads today's credential set. Returns ErrNotFound when no file exists
// for today and ErrCorrupt when the file cannot be decoded.
func (s *FileStore) Load() (models.CredentialSet, error) {
	path := s.Path()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("path", path).Msg("No saved credentials found")
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read credential file %s: %w", path, err)
	}

	var set models.CredentialSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	s.logger.Info().
		Str("path", path).
		Int("records", len(set)).
		Msg("Saved credentials loaded")

	return set, nil
}

// Save overwrites today's credential file. The set is written to a temporary
// file first and renamed into place so a concurrent Load never observes a
// partial write. The parent directory is created if absent.
func (s *FileStore) Save(set models.CredentialSet) error {
	path := s.Path()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".mdw_cookie_*")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credential file %s: %w", path, err)
	}

	s.logger.Info().
		Str("path", path).
		Int("records", len(set)).
		Msg("Credentials saved")

	return nil
}

var _ interfaces.CredentialStore = (*FileStore)(nil)
