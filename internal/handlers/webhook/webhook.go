package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"sheetdrip/internal/domain"
)

const DefaultTimeout = 30 * time.Second

// Webhook POSTs a batch payload as JSON to the configured endpoint. The
// response body is never interpreted: any 2xx/3xx is success.
type Webhook struct {
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*Webhook)

// WithRateLimit caps deliveries to perMinute calls, bursting one at a time.
func WithRateLimit(perMinute int) Option {
	return func(w *Webhook) {
		if perMinute > 0 {
			w.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

func WithClient(c *http.Client) Option {
	return func(w *Webhook) { w.client = c }
}

func New(timeout time.Duration, opts ...Option) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	w := &Webhook{client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (h *Webhook) Submit(ctx context.Context, endpoint string, p domain.Payload) error {
	if endpoint == "" {
		return fmt.Errorf("URL is required")
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d error: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
