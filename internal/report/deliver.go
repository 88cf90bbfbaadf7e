package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultDeliveryTimeout = 30 * time.Second
	deliveryMaxRetries     = 2
)

// Sink delivers a finished dossier. Implementations report failure via
// the returned error; the caller decides what happens to the session.
type Sink interface {
	Deliver(ctx context.Context, d Dossier) error
}

// HTTPSink posts dossiers as JSON to the configured endpoint. Transient
// failures (transport errors, 5xx, 429) are retried with a short
// Fibonacci backoff inside the bounded delivery window; other non-2xx
// statuses fail immediately.
type HTTPSink struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPSink creates a sink for url. A timeout of 0 uses the default
// delivery window.
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &HTTPSink{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Check probes sink reachability for health reporting. Any HTTP
// response counts as reachable; only transport failures surface.
func (s *HTTPSink) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe sink: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Deliver posts the dossier. Any returned error means the dossier was
// not confirmed delivered and the session must be retained.
func (s *HTTPSink) Deliver(ctx context.Context, d Dossier) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dossier: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	b := retry.NewFibonacci(500 * time.Millisecond)
	return retry.Do(ctx, retry.WithMaxRetries(deliveryMaxRetries, b), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("post dossier: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("sink returned %d", resp.StatusCode))
		default:
			return fmt.Errorf("sink returned %d", resp.StatusCode)
		}
	})
}
