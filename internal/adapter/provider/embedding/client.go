// Package embedding provides semantic embedders for record text: an HTTP
// client for an OpenAI-compatible embeddings endpoint and a local hashing
// embedder used when no model server is configured.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// ClientConfig tunes the HTTP embedding client.
type ClientConfig struct {
	URL        string
	Model      string
	Dimensions int
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Client calls a remote embeddings endpoint.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
	log        *slog.Logger
}

// NewClient creates a Client. Every call is bounded by cfg.Timeout and by a
// token-bucket limiter of cfg.RatePerSec with cfg.Burst.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		retryDelay: 200 * time.Millisecond,
		log:        logger.With("adapter", "embedding"),
	}
}

type embedRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for text. Any provider failure, including the
// call deadline, is reported as domain.ErrTransient.
func (c *Client) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding: rate limit wait: %w: %v", domain.ErrTransient, err)
	}

	payload, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: domain.NormalizeText(text)})
	if err != nil {
		return nil, fmt.Errorf("embedding: encode request: %w", err)
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, payload)
	if err != nil {
		c.log.ErrorContext(ctx, "embedding request failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("embedding: request failed: %w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: unexpected status %d: %w", resp.StatusCode, domain.ErrTransient)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read body: %w: %v", domain.ErrTransient, err)
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("embedding: decode json: %w: %v", domain.ErrTransient, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty response: %w", domain.ErrTransient)
	}

	vec := out.Data[0].Embedding
	if len(vec) != c.cfg.Dimensions {
		return nil, fmt.Errorf("embedding: got %d dimensions, want %d: %w", len(vec), c.cfg.Dimensions, domain.ErrTransient)
	}

	c.log.DebugContext(ctx, "embedding response",
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	return domain.Embedding(vec), nil
}

// doWithRetry posts payload with a single retry on 5xx, 429 or network
// errors. A 429 waits for Retry-After when the provider sends one.
func (c *Client) doWithRetry(ctx context.Context, payload []byte) (*http.Response, error) {
	resp, err := c.post(ctx, payload)

	shouldRetry := err != nil || resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	if !shouldRetry {
		return resp, nil
	}

	// Don't retry if the deadline already passed.
	if ctx.Err() != nil {
		if err == nil {
			resp.Body.Close()
			err = ctx.Err()
		}
		return nil, err
	}

	reason := "network error"
	delay := c.retryDelay
	if err == nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				delay = d
			}
		}
		resp.Body.Close()
	}
	c.log.WarnContext(ctx, "embedding retry", slog.String("reason", reason), slog.Duration("delay", delay))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0), true
	}
	return 0, false
}
