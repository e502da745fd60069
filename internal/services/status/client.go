package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/flexops/flexfill/internal/httpclient"
)

const (
	// DefaultMaxAttempts bounds status polling.
	DefaultMaxAttempts = 5

	// DefaultPollInterval is the fixed delay between polls.
	DefaultPollInterval = 30 * time.Second
)

// ErrStillProcessing indicates the upload had not settled within the polling
// budget.
var ErrStillProcessing = errors.New("upload still processing after polling budget")

// Record is one entry of the portal's statusRecordList.
type Record struct {
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	Status     string `json:"status"`
	UploadedBy string `json:"uploadedBy"`
	Message    string `json:"message"`
}

// Settled reports whether the upload has left the in-progress states.
func (r Record) Settled() bool {
	return r.Status != "PROCESSING" && r.Status != "UPLOADING"
}

// Query scopes a status check.
type Query struct {
	FileType         string
	FileName         string
	UploadedBy       string
	UTCStartDateTime string
	UTCEndDateTime   string
}

// Client polls the portal's upload status endpoint.
type Client struct {
	endpoint     string
	userAgent    string
	client       *http.Client
	limiter      *rate.Limiter
	maxAttempts  int
	pollInterval time.Duration
	logger       arbor.ILogger
	now          func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithUserAgent sets the outbound User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithPolling sets the polling budget and delay.
func WithPolling(maxAttempts int, interval time.Duration) Option {
	return func(c *Client) {
		if maxAttempts >= 1 {
			c.maxAttempts = maxAttempts
		}
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithClock overrides the client's clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a status client for the given endpoint.
func NewClient(endpoint string, logger arbor.ILogger, opts ...Option) *Client {
	c := &Client{
		endpoint:     endpoint,
		client:       httpclient.NewDefaultHTTPClient(30 * time.Second),
		limiter:      rate.NewLimiter(rate.Limit(1), 1),
		maxAttempts:  DefaultMaxAttempts,
		pollInterval: DefaultPollInterval,
		logger:       logger,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Check fetches the current status records for the query.
func (c *Client) Check(ctx context.Context, credentialHeader string, q Query) ([]Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	query := url.Values{}
	query.Set("fileType", q.FileType)
	query.Set("fileName", q.FileName)
	query.Set("uploadedBy", q.UploadedBy)
	query.Set("utcStartDateTime", q.UTCStartDateTime)
	query.Set("utcEndDateTime", q.UTCEndDateTime)
	query.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	req.URL.RawQuery = query.Encode()

	req.Header.Set("Cookie", credentialHeader)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("status request returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		StatusRecordList []Record `json:"statusRecordList"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	return payload.StatusRecordList, nil
}

// WaitForSettled polls until the first matching record leaves the
// in-progress states, up to the configured attempt budget with a fixed delay
// between polls. A transient check failure consumes an attempt rather than
// aborting the poll; only context cancellation stops it early. Returns
// ErrStillProcessing when the budget is exhausted.
func (c *Client) WaitForSettled(ctx context.Context, credentialHeader string, q Query) (*Record, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		records, err := c.Check(ctx, credentialHeader, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Msg("Status check failed")
		} else {
			for i := range records {
				if records[i].Settled() {
					c.logger.Info().
						Str("file", records[i].FileName).
						Str("status", records[i].Status).
						Int("attempt", attempt).
						Msg("Upload status settled")
					return &records[i], nil
				}
			}

			c.logger.Info().
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Int("records", len(records)).
				Msg("Upload still processing")
		}

		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w (last check error: %v)", ErrStillProcessing, lastErr)
	}
	return nil, ErrStillProcessing
}
