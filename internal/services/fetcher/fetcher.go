package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/flexops/flexfill/internal/httpclient"
	"github.com/flexops/flexfill/internal/models"
)

const (
	// DefaultMaxConcurrency bounds in-flight requests across the batch.
	DefaultMaxConcurrency = 15

	// DefaultRequestTimeout is the per-target timeout.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second across the batch.
	DefaultRateLimit = 10

	// providerDemandType is the demand flavour requested from the portal.
	providerDemandType = "Forecast"

	// bodyPreviewLen bounds response bodies quoted in failure logs.
	bodyPreviewLen = 50
)

// Fetcher pulls provider-demand JSON for every target under a global
// concurrency cap. Per-target failures are logged and dropped; they never
// cancel sibling requests or escape the batch call.
type Fetcher struct {
	endpoint       string
	userAgent      string
	client         *http.Client
	limiter        *rate.Limiter
	maxConcurrency int
	requestTimeout time.Duration
	logger         arbor.ILogger
	now            func() time.Time
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent sets the outbound User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		f.userAgent = userAgent
	}
}

// WithMaxConcurrency sets the in-flight request cap.
func WithMaxConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n >= 1 {
			f.maxConcurrency = n
		}
	}
}

// WithRateLimit sets a custom rate limit in requests per second.
func WithRateLimit(requestsPerSecond int) Option {
	return func(f *Fetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithRequestTimeout sets the per-target timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.requestTimeout = timeout
		}
	}
}

// WithClock overrides the fetcher's clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// New creates a Fetcher for the given demand endpoint.
func New(endpoint string, logger arbor.ILogger, opts ...Option) *Fetcher {
	f := &Fetcher{
		endpoint:       endpoint,
		client:         httpclient.NewDefaultHTTPClient(DefaultRequestTimeout),
		limiter:        rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxConcurrency: DefaultMaxConcurrency,
		requestTimeout: DefaultRequestTimeout,
		logger:         logger,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// DateWindow returns the dates from start through the following days-1, as
// YYYY-MM-DD strings.
func DateWindow(start time.Time, days int) []string {
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return dates
}

// FetchAll issues one demand request per target, at most maxConcurrency in
// flight at once, all carrying the shared credential header. Every target is
// scheduled; failed targets are dropped from the result.
//
// The returned slice holds only successful payloads. Relative ordering of
// payloads is not part of the contract: completion order is not enforced,
// only the filtering of failures is deterministic.
func (f *Fetcher) FetchAll(ctx context.Context, targets []models.ScrapeTarget, credentialHeader string, dates []string) []models.DemandPayload {
	if len(targets) == 0 {
		f.logger.Warn().Msg("No targets to fetch")
		return []models.DemandPayload{}
	}

	datesJSON, err := json.Marshal(dates)
	if err != nil {
		// A date list that cannot marshal means no request can be built.
		f.logger.Error().Err(err).Msg("Failed to encode date window")
		return []models.DemandPayload{}
	}

	f.logger.Info().
		Int("targets", len(targets)).
		Int("max_concurrency", f.maxConcurrency).
		Strs("dates", dates).
		Msg("Starting demand fetch")

	sem := make(chan struct{}, f.maxConcurrency)
	results := make([]*models.DemandPayload, len(targets))
	var started atomic.Int64
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		go func(slot int, target models.ScrapeTarget) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			seq := started.Add(1)
			f.logger.Info().
				Int64("site", seq).
				Str("station", target.Station).
				Msg("Scraping site")

			results[slot] = f.fetchOne(ctx, target, credentialHeader, string(datesJSON))
		}(i, target)
	}
	wg.Wait()

	payloads := make([]models.DemandPayload, 0, len(targets))
	for _, r := range results {
		if r != nil {
			payloads = append(payloads, *r)
		}
	}

	f.logger.Info().
		Int("succeeded", len(payloads)).
		Int("failed", len(targets)-len(payloads)).
		Msg("Demand fetch complete")

	return payloads
}

// fetchOne issues a single demand request. Every failure mode converts to a
// nil payload; no error escapes to the batch.
func (f *Fetcher) fetchOne(ctx context.Context, target models.ScrapeTarget, credentialHeader, datesJSON string) *models.DemandPayload {
	reqCtx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	if err := f.limiter.Wait(reqCtx); err != nil {
		f.logger.Error().
			Err(err).
			Str("station", target.Station).
			Msg("Rate limiter wait aborted")
		return nil
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		f.logger.Error().
			Err(err).
			Str("station", target.Station).
			Msg("Failed to build demand request")
		return nil
	}

	query := url.Values{}
	query.Set("dates", datesJSON)
	query.Set("serviceAreaId", target.AreaID)
	query.Set("providerDemandType", providerDemandType)
	query.Set("_", strconv.FormatInt(f.now().UnixMilli(), 10)) // cache buster
	req.URL.RawQuery = query.Encode()

	req.Header.Set("Cookie", credentialHeader)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error().
			Err(err).
			Str("station", target.Station).
			Msg("Failed to scrape site data")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error().
			Err(err).
			Str("station", target.Station).
			Msg("Failed to read response body")
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Error().
			Int("status", resp.StatusCode).
			Str("station", target.Station).
			Str("body_preview", preview(body)).
			Msg("Demand request failed")
		return nil
	}

	var demand map[string]models.ServiceTypeDemand
	if err := json.Unmarshal(body, &demand); err != nil {
		f.logger.Error().
			Err(err).
			Str("station", target.Station).
			Str("body_preview", preview(body)).
			Msg("Failed to parse JSON response")
		return nil
	}

	f.logger.Debug().
		Int("status", resp.StatusCode).
		Str("station", target.Station).
		Int("service_types", len(demand)).
		Msg("Successful scrape")

	return &models.DemandPayload{
		Station: target.Station,
		Demand:  demand,
	}
}

// preview truncates a response body for failure logs.
func preview(body []byte) string {
	if len(body) > bodyPreviewLen {
		return fmt.Sprintf("%s...", body[:bodyPreviewLen])
	}
	return string(body)
}
