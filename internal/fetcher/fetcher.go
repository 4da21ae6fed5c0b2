// Package fetcher provides a rate-limited, retrying HTTP client used by the
// crawler to pull pages from the open web.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient provides HTTP client functionality with timeout, retry logic, and rate limiting
type HTTPClient struct {
	client      *http.Client
	maxRetries  int
	rateLimiter *rate.Limiter
	userAgent   string
}

// NewHTTPClient creates a new HTTP client with the specified timeout, max retries, and request rate.
// The client implements exponential backoff retry mechanism and token-bucket rate limiting of Fetch calls.
//
// Parameters:
//   - timeout: HTTP request timeout duration
//   - maxRetries: Maximum number of retry attempts (not including the initial request)
//   - maxConcurrent: Fetch calls allowed to start per second, and the burst size; it does not bound requests in flight
//   - userAgent: User-Agent header sent on every request, including robots.txt fetches
//
// Returns a configured HTTPClient ready for use.
func NewHTTPClient(timeout time.Duration, maxRetries int, maxConcurrent int, userAgent string) *HTTPClient {
	// Create HTTP client with timeout
	httpClient := &http.Client{
		Timeout: timeout,
	}

	// Create rate limiter for Fetch calls
	// The limiter refills maxConcurrent tokens per second with a burst of maxConcurrent
	rateLimiter := rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent)

	return &HTTPClient{
		client:      httpClient,
		maxRetries:  maxRetries,
		rateLimiter: rateLimiter,
		userAgent:   userAgent,
	}
}

// Response is the outcome of a successful fetch: the raw body, the response's
// Content-Type header, and the final URL after any redirects.
type Response struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Fetch retrieves content from the specified URL with retry logic and rate limiting.
// It implements exponential backoff for retries, starting with 1 second and doubling on each retry,
// with a maximum delay of 60 seconds between retries.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - url: The URL to fetch
//
// Returns the response and any error encountered.
// Retries on 5xx errors and network errors, but not on 4xx client errors.
func (c *HTTPClient) Fetch(ctx context.Context, url string) (*Response, error) {
	// Wait for rate limiter token
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var lastErr error
	initialDelay := 1 * time.Second
	maxDelay := 60 * time.Second

	// Initial attempt + retries
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// If this is a retry, apply exponential backoff
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay

			// Cap delay at maxDelay (60 seconds)
			if delay > maxDelay {
				delay = maxDelay
			}

			// Wait for backoff delay or context cancellation
			select {
			case <-time.After(delay):
				// Continue with retry
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Create request
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", c.userAgent)

		// Execute request
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			// Retry on network errors
			continue
		}

		// Read response body
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		// Check status code
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Response{
				Body:        body,
				ContentType: resp.Header.Get("Content-Type"),
				FinalURL:    resp.Request.URL.String(),
			}, nil
		}

		// 4xx errors are client errors - don't retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("client error: HTTP %d", resp.StatusCode)
		}

		// 5xx errors are server errors - retry
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: HTTP %d", resp.StatusCode)
			continue
		}

		// Other status codes - don't retry
		return nil, fmt.Errorf("unexpected status code: HTTP %d", resp.StatusCode)
	}

	// All retries exhausted
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
