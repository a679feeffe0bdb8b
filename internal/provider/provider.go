// Package provider contains the shared plumbing for talking to upstream
// HTTP services: a retrying JSON client and the tolerant response
// envelope decoder.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mkb/internal/logging"
)

const defaultMaxRetries = 3

// Client issues JSON requests against provider endpoints. Transient
// failures (network errors, 429, 5xx) are retried with exponential
// backoff; a Retry-After header overrides the computed delay.
type Client struct {
	httpClient *http.Client
	maxRetries int
	logger     *logging.Logger
}

// NewClient creates a provider client. A zero timeout disables the
// transport-level timeout; callers are expected to bound requests
// through the context instead.
func NewClient(timeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}
}

// GetJSON fetches url and returns the raw response body. 4xx statuses
// other than 429 fail immediately; retryable failures are attempted up
// to the retry limit while the context stays alive.
func (c *Client) GetJSON(ctx context.Context, url string) ([]byte, error) {
	return c.doJSON(ctx, http.MethodGet, url, nil, nil)
}

// PostJSON marshals payload, posts it to url with the extra headers,
// and returns the raw response body under the same retry policy as
// GetJSON.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, headers, body)
}

func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt < c.maxRetries {
				if serr := sleepCtx(ctx, retryDelay(attempt)); serr != nil {
					return nil, serr
				}
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retryAfter := resp.Header.Get("Retry-After")
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("provider returned %s", resp.Status)

			if attempt < c.maxRetries {
				delay := retryDelay(attempt)
				if secs, perr := strconv.Atoi(retryAfter); perr == nil && secs >= 0 {
					delay = time.Duration(secs) * time.Second
				}
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, serr
				}
				continue
			}
			break
		}

		if resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("provider returned %s", resp.Status)
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				if serr := sleepCtx(ctx, retryDelay(attempt)); serr != nil {
					return nil, serr
				}
				continue
			}
			break
		}

		if c.logger != nil && attempt > 0 {
			c.logger.Debug("provider request recovered after retry", map[string]interface{}{
				"url":     url,
				"attempt": attempt + 1,
			})
		}
		return respBody, nil
	}

	return nil, fmt.Errorf("provider request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
