package notification

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/engine"
)

func TestWebhookInvokeForwardsRequest(t *testing.T) {
	var gotMethod, gotContentType, gotCustom string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	client := NewHTTPWebhookClient(zap.NewNop())
	resp, err := client.Invoke(context.Background(), engine.WebhookRequest{
		URL:     server.URL,
		Headers: map[string]string{"X-Signature": "abc123"},
		Body:    []byte(`{"ticket_id":"t-1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"received":true}`, string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod, "method defaults to POST")
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "abc123", gotCustom)
	assert.Equal(t, `{"ticket_id":"t-1"}`, string(gotBody))
}

func TestWebhookInvokeNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPWebhookClient(zap.NewNop())
	_, err := client.Invoke(context.Background(), engine.WebhookRequest{URL: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookInvokeTimesOutOnHangingTarget(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	client := NewHTTPWebhookClient(zap.NewNop())
	started := time.Now()
	_, err := client.Invoke(context.Background(), engine.WebhookRequest{
		URL:     server.URL,
		Timeout: 150 * time.Millisecond,
	})
	elapsed := time.Since(started)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second, "must give up at the configured timeout, not hang")
}
