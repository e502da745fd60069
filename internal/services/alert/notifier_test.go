package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestNotifySendsContentPayload(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
	}))
	defer server.Close()

	n := NewNotifier(server.URL, arbor.NewLogger())

	err := n.Notify(context.Background(), "Scrape failed: authentication error")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Content": "Scrape failed: authentication error"}, received)
}

func TestNotifyDisabledWithoutURL(t *testing.T) {
	n := NewNotifier("", arbor.NewLogger())

	assert.NoError(t, n.Notify(context.Background(), "never sent"))
}

func TestNotifyWebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, arbor.NewLogger())

	err := n.Notify(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNotifyUnreachableWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	n := NewNotifier(server.URL, arbor.NewLogger())

	assert.Error(t, n.Notify(context.Background(), "hello"))
}
