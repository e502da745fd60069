package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/interfaces"
	"github.com/flexops/flexfill/internal/models"
)

// loginPollInterval is how often the login watcher re-checks the browser URL.
const loginPollInterval = 2 * time.Second

// Login is the interactive, human-in-the-loop authentication collaborator.
// It opens a visible Chrome window on the portal, waits for the operator to
// complete SSO, and captures the session cookies from the browser.
type Login struct {
	loginURL   string
	authDomain string
	timeout    time.Duration
	headless   bool
	logger     arbor.ILogger
}

// Config holds browser login settings.
type Config struct {
	LoginURL   string        // portal page that triggers the SSO redirect
	AuthDomain string        // SSO domain; login is complete once the browser leaves it
	Timeout    time.Duration // how long to wait for the operator
	Headless   bool          // a visible window is required for a human login
}

// NewLogin creates the browser login collaborator.
func NewLogin(config Config, logger arbor.ILogger) *Login {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Login{
		loginURL:   config.LoginURL,
		authDomain: config.AuthDomain,
		timeout:    timeout,
		headless:   config.Headless,
		logger:     logger,
	}
}

// AcquireCredentials opens the browser, blocks until the operator finishes
// logging in, and returns the captured cookies as a credential set.
func (l *Login) AcquireCredentials(ctx context.Context) (models.CredentialSet, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	deadlineCtx, cancelDeadline := context.WithTimeout(browserCtx, l.timeout)
	defer cancelDeadline()

	l.logger.Info().
		Str("url", l.loginURL).
		Msg("Opening browser for login")

	if err := chromedp.Run(deadlineCtx, network.Enable(), chromedp.Navigate(l.loginURL)); err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}

	l.logger.Info().
		Str("auth_domain", l.authDomain).
		Dur("timeout", l.timeout).
		Msg("Please log in manually in the browser window")

	if err := l.waitForLogin(deadlineCtx); err != nil {
		return nil, err
	}

	var cookies []*network.Cookie
	err := chromedp.Run(deadlineCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture cookies: %w", err)
	}

	set := toCredentialSet(cookies)
	l.logger.Info().
		Int("cookies_captured", len(set)).
		Msg("Login complete, cookies captured")

	return set, nil
}

// waitForLogin polls the browser location until it leaves the SSO domain.
func (l *Login) waitForLogin(ctx context.Context) error {
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for login: %w", ctx.Err())
		case <-ticker.C:
			var location string
			if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
				return fmt.Errorf("failed to read browser location: %w", err)
			}
			if location != "" && !strings.Contains(location, l.authDomain) {
				l.logger.Debug().Str("location", location).Msg("Browser left auth domain")
				return nil
			}
		}
	}
}

// toCredentialSet converts captured browser cookies into credential records.
func toCredentialSet(cookies []*network.Cookie) models.CredentialSet {
	set := make(models.CredentialSet, 0, len(cookies))
	for _, c := range cookies {
		record := models.CredentialRecord{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
		// Expires <= 0 marks a session cookie.
		if c.Expires > 0 {
			expiry := int64(c.Expires)
			record.Expiry = &expiry
		}
		if c.Secure {
			secure := true
			record.Secure = &secure
		}
		set = append(set, record)
	}
	return set
}

var _ interfaces.Authenticator = (*Login)(nil)
