package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/common"
	"github.com/flexops/flexfill/internal/httpclient"
	"github.com/flexops/flexfill/internal/interfaces"
	"github.com/flexops/flexfill/internal/models"
	"github.com/flexops/flexfill/internal/services/aggregate"
	"github.com/flexops/flexfill/internal/services/alert"
	"github.com/flexops/flexfill/internal/services/auth"
	"github.com/flexops/flexfill/internal/services/browser"
	"github.com/flexops/flexfill/internal/services/fetcher"
	"github.com/flexops/flexfill/internal/services/sites"
	"github.com/flexops/flexfill/internal/services/status"
	"github.com/flexops/flexfill/internal/storage/badger"
)

// ErrNoTargets indicates the site directory produced zero targets when
// targets were expected. Systemic, surfaced to the operator.
var ErrNoTargets = errors.New("no scrape targets available")

// App wires the collection pipeline: auth, site directory, concurrent fetch,
// aggregation, export, and snapshot storage.
type App struct {
	config     *common.Config
	logger     arbor.ILogger
	session    *auth.Session
	directory  *sites.Directory
	fetcher    *fetcher.Fetcher
	aggregator *aggregate.Aggregator
	statusAPI  *status.Client
	notifier   *alert.Notifier
	db         *badger.BadgerDB
	snapshots  interfaces.SnapshotStorage
}

// New initializes the application from configuration.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	login := browser.NewLogin(browser.Config{
		LoginURL:   config.Portal.BaseURL + config.Portal.DemandPath,
		AuthDomain: config.Auth.AuthDomain,
		Timeout:    config.Auth.LoginTimeout,
		Headless:   config.Auth.Headless,
	}, logger)

	store := auth.NewFileStore(config.Auth.CredentialsDir, logger)
	session := auth.NewSession(store, login, config.Auth.ExpiryGrace, logger)

	demandFetcher := fetcher.New(
		config.Portal.BaseURL+config.Portal.DemandPath,
		logger,
		fetcher.WithUserAgent(config.Portal.UserAgent),
		fetcher.WithMaxConcurrency(config.Fetch.MaxConcurrency),
		fetcher.WithRateLimit(config.Fetch.RateLimit),
		fetcher.WithRequestTimeout(config.Fetch.RequestTimeout),
		fetcher.WithHTTPClient(httpclient.NewDefaultHTTPClient(config.Fetch.RequestTimeout)),
	)

	statusAPI := status.NewClient(
		config.Portal.BaseURL+config.Portal.StatusPath,
		logger,
		status.WithUserAgent(config.Portal.UserAgent),
		status.WithPolling(config.Status.MaxAttempts, config.Status.PollInterval),
	)

	return &App{
		config:     config,
		logger:     logger,
		session:    session,
		directory:  sites.NewDirectory(config.Sites.MappingPath, logger),
		fetcher:    demandFetcher,
		aggregator: aggregate.New(logger),
		statusAPI:  statusAPI,
		notifier:   alert.NewNotifier(config.Alert.WebhookURL, logger),
		db:         db,
		snapshots:  badger.NewSnapshotStorage(db, logger),
	}, nil
}

// Run executes one collection pass: ensure credentials, load targets, fetch
// demand concurrently, flatten, persist a snapshot, and write both export
// views. Fatal conditions (no credentials, no targets) return an error and
// trigger the alert webhook; per-target failures are absorbed upstream.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.New().String()
	started := time.Now()

	a.logger.Info().Str("run_id", runID).Msg("Starting collection run")

	header, err := a.session.EnsureReady(ctx)
	if err != nil {
		a.alert(ctx, "ALERT: The Fill Report failed. Re-authentication is necessary.")
		return fmt.Errorf("cannot authenticate: %w", err)
	}

	targets := a.directory.ListTargetsWithPrefix(a.config.Sites.StationPrefix)
	if len(targets) == 0 {
		a.alert(ctx, "ALERT: The Fill Report found no site mappings.")
		return ErrNoTargets
	}

	dates := fetcher.DateWindow(started, a.config.Fetch.Days)
	payloads := a.fetcher.FetchAll(ctx, targets, header, dates)
	if len(payloads) == 0 {
		// A batch with zero successes is a valid, if unhelpful, result.
		a.logger.Error().
			Str("run_id", runID).
			Int("targets", len(targets)).
			Msg("No data retrieved")
		return nil
	}

	records := a.aggregator.Flatten(payloads, dates)

	stations := make([]string, 0, len(payloads))
	for _, p := range payloads {
		stations = append(stations, p.Station)
	}
	snapshot := &models.DemandSnapshot{
		ID:       runID,
		RunID:    runID,
		Date:     started.Format("2006-01-02"),
		Stations: stations,
		Records:  records,
	}
	if err := a.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		a.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to persist demand snapshot")
	}

	rawPath := filepath.Join(a.config.Export.OutputDir, a.config.Export.RawFile)
	if err := aggregate.WriteRawCSV(rawPath, records); err != nil {
		return fmt.Errorf("failed to write raw export: %w", err)
	}

	pending := a.aggregator.PendingView(records, started)
	pendingPath := filepath.Join(a.config.Export.OutputDir, a.config.Export.PendingFile)
	if err := aggregate.WritePendingCSV(pendingPath, pending); err != nil {
		return fmt.Errorf("failed to write pending export: %w", err)
	}

	a.logger.Info().
		Str("run_id", runID).
		Int("targets", len(targets)).
		Int("succeeded", len(payloads)).
		Int("failed", len(targets)-len(payloads)).
		Int("records", len(records)).
		Int("pending_rows", len(pending)).
		Str("raw_export", rawPath).
		Str("pending_export", pendingPath).
		Dur("duration", time.Since(started)).
		Msg("Collection run complete")

	return nil
}

// CheckUploadStatus polls the portal's upload status endpoint for the query
// until the upload settles or the polling budget is exhausted.
func (a *App) CheckUploadStatus(ctx context.Context, q status.Query) (*status.Record, error) {
	header, err := a.session.EnsureReady(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot authenticate: %w", err)
	}
	if q.UploadedBy == "" {
		q.UploadedBy = a.config.Status.UploadedBy
	}
	return a.statusAPI.WaitForSettled(ctx, header, q)
}

// alert sends a failure notification, logging when delivery itself fails.
func (a *App) alert(ctx context.Context, message string) {
	if err := a.notifier.Notify(ctx, message); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to send alert notification")
	}
}

// Close releases application resources.
func (a *App) Close() error {
	return a.db.Close()
}
