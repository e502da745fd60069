package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/flexops/flexfill/internal/httpclient"
)

// Notifier posts failure alerts to a chat webhook. An empty webhook URL
// disables alerting entirely.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     arbor.ILogger
}

// NewNotifier creates a Notifier.
func NewNotifier(webhookURL string, logger arbor.ILogger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     httpclient.NewDefaultHTTPClient(10 * time.Second),
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client. Test hook.
func (n *Notifier) WithHTTPClient(client *http.Client) *Notifier {
	n.client = client
	return n
}

// Notify sends the message to the webhook. A disabled notifier returns nil.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n.webhookURL == "" {
		n.logger.Debug().Msg("Alert webhook not configured, skipping notification")
		return nil
	}

	payload, err := json.Marshal(map[string]string{"Content": message})
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}

	n.logger.Info().Msg("Alert notification sent")
	return nil
}
