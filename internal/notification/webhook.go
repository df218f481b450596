package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/engine"
)

const webhookBodyLimit = 64 * 1024

// HTTPWebhookClient performs outbound webhook calls with a per-request
// timeout. A timeout or non-2xx response is reported as an error so the
// pipeline records the failure.
type HTTPWebhookClient struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPWebhookClient builds the webhook client.
func NewHTTPWebhookClient(logger *zap.Logger) *HTTPWebhookClient {
	return &HTTPWebhookClient{
		client: &http.Client{},
		logger: logger,
	}
}

// Invoke sends the webhook request and returns the response.
func (c *HTTPWebhookClient) Invoke(ctx context.Context, req engine.WebhookRequest) (*engine.WebhookResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, webhookBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}

	c.logger.Debug("webhook invoked",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return &engine.WebhookResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}
