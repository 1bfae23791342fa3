package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultRelayTimeout bounds a single relay attempt
	DefaultRelayTimeout = 5 * time.Second

	maxUpstreamBody = 1024 // only logged, never returned to callers
)

// Relayer delivers a payload to a webhook URL
type Relayer interface {
	Relay(ctx context.Context, webhookURL string, payload []byte) error
}

// UpstreamError describes a non-2xx answer from the webhook
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

// HTTPRelayer posts payloads as JSON with a single, time-bounded attempt
type HTTPRelayer struct {
	client *http.Client
}

// NewHTTPRelayer creates a relayer whose attempts are bounded by timeout
func NewHTTPRelayer(timeout time.Duration) *HTTPRelayer {
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	return &HTTPRelayer{
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPRelayerWithClient relays through client; its Timeout bounds each attempt
func NewHTTPRelayerWithClient(client *http.Client) *HTTPRelayer {
	return &HTTPRelayer{client: client}
}

// Relay sends payload to webhookURL; any non-2xx answer is an *UpstreamError
func (r *HTTPRelayer) Relay(ctx context.Context, webhookURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return nil
}
