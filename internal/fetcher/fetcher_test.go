package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testUserAgent = "kestrel-crawler-test/1.0"

// TestNewHTTPClient verifies that NewHTTPClient creates a client with proper configuration
func TestNewHTTPClient(t *testing.T) {
	timeout := 30 * time.Second
	maxRetries := 3
	maxConcurrent := 5

	client := NewHTTPClient(timeout, maxRetries, maxConcurrent, testUserAgent)

	if client == nil {
		t.Fatal("Expected NewHTTPClient to return non-nil client")
	}

	// Verify client has timeout configured
	if client.client.Timeout != timeout {
		t.Errorf("Expected client timeout to be %v, got %v", timeout, client.client.Timeout)
	}

	// Verify retry configuration
	if client.maxRetries != maxRetries {
		t.Errorf("Expected maxRetries to be %d, got %d", maxRetries, client.maxRetries)
	}

	// Verify rate limiter is configured
	if client.rateLimiter == nil {
		t.Error("Expected rateLimiter to be configured")
	}
}

// TestHTTPClientSuccessfulFetch verifies that a successful HTTP request works
func TestHTTPClientSuccessfulFetch(t *testing.T) {
	// Create a test server that returns success
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test content"))
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	resp, err := client.Fetch(ctx, server.URL)
	if err != nil {
		t.Fatalf("Expected successful fetch, got error: %v", err)
	}

	if string(resp.Body) != "test content" {
		t.Errorf("Expected body to be 'test content', got '%s'", string(resp.Body))
	}
	if resp.ContentType != "text/html" {
		t.Errorf("Expected Content-Type 'text/html', got '%s'", resp.ContentType)
	}
}

// TestHTTPClientTimeout verifies that timeout is enforced
func TestHTTPClientTimeout(t *testing.T) {
	// Create a test server that delays response
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Use a very short timeout
	client := NewHTTPClient(100*time.Millisecond, 1, 5, testUserAgent)
	ctx := context.Background()

	_, err := client.Fetch(ctx, server.URL)
	if err == nil {
		t.Error("Expected timeout error, got nil")
	}
}

// TestHTTPClientRetryOnFailure verifies that retries happen on failure
func TestHTTPClientRetryOnFailure(t *testing.T) {
	var attemptCount int32

	// Create a test server that fails first 2 times, then succeeds
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&attemptCount, 1)
		if count < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success after retries"))
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	resp, err := client.Fetch(ctx, server.URL)
	if err != nil {
		t.Fatalf("Expected successful fetch after retries, got error: %v", err)
	}

	if string(resp.Body) != "success after retries" {
		t.Errorf("Expected body to be 'success after retries', got '%s'", string(resp.Body))
	}

	// Verify that retries happened
	if atomic.LoadInt32(&attemptCount) != 3 {
		t.Errorf("Expected 3 attempts, got %d", atomic.LoadInt32(&attemptCount))
	}
}

// TestHTTPClientMaxRetriesExceeded verifies that max retries is enforced
func TestHTTPClientMaxRetriesExceeded(t *testing.T) {
	var attemptCount int32

	// Create a test server that always fails
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	_, err := client.Fetch(ctx, server.URL)
	if err == nil {
		t.Error("Expected error after max retries exceeded, got nil")
	}

	// Should have attempted initial request + 3 retries = 4 total
	expectedAttempts := int32(4)
	if atomic.LoadInt32(&attemptCount) != expectedAttempts {
		t.Errorf("Expected %d attempts (1 initial + 3 retries), got %d", expectedAttempts, atomic.LoadInt32(&attemptCount))
	}
}

// TestHTTPClientExponentialBackoff verifies that retry delays increase exponentially
func TestHTTPClientExponentialBackoff(t *testing.T) {
	var attemptTimes []time.Time

	// Create a test server that always fails
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptTimes = append(attemptTimes, time.Now())
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	_, err := client.Fetch(ctx, server.URL)
	if err == nil {
		t.Error("Expected error after retries, got nil")
	}

	// Verify we have 4 attempts (1 initial + 3 retries)
	if len(attemptTimes) != 4 {
		t.Fatalf("Expected 4 attempts, got %d", len(attemptTimes))
	}

	// Calculate delays between attempts
	delays := make([]time.Duration, len(attemptTimes)-1)
	for i := 1; i < len(attemptTimes); i++ {
		delays[i-1] = attemptTimes[i].Sub(attemptTimes[i-1])
	}

	// Verify delays are increasing (exponential backoff)
	// Allow some tolerance for timing variations
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Errorf("Expected delay %d (%v) to be greater than delay %d (%v)", i, delays[i], i-1, delays[i-1])
		}
	}

	// Verify first delay is approximately 1 second (initial backoff)
	if delays[0] < 900*time.Millisecond || delays[0] > 1100*time.Millisecond {
		t.Errorf("Expected first delay to be ~1s, got %v", delays[0])
	}

	// Verify no delay exceeds 60 seconds (max delay cap)
	maxDelay := 60 * time.Second
	for i, delay := range delays {
		if delay > maxDelay+100*time.Millisecond { // Allow small tolerance
			t.Errorf("Expected delay %d to be <= 60s, got %v", i, delay)
		}
	}
}

// TestHTTPClientContextCancellation verifies that context cancellation is respected
func TestHTTPClientContextCancellation(t *testing.T) {
	// Create a test server that delays response
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(10*time.Second, 3, 5, testUserAgent)
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel context after a short delay
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := client.Fetch(ctx, server.URL)
	if err == nil {
		t.Error("Expected context cancellation error, got nil")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
}

// TestHTTPClientRateLimiting verifies that concurrent requests are rate limited
func TestHTTPClientRateLimiting(t *testing.T) {
	var concurrentCount int32
	var maxConcurrent int32

	// Create a test server that tracks concurrent requests
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&concurrentCount, 1)

		// Track max concurrent
		for {
			max := atomic.LoadInt32(&maxConcurrent)
			if current <= max || atomic.CompareAndSwapInt32(&maxConcurrent, max, current) {
				break
			}
		}

		// Simulate some work
		time.Sleep(100 * time.Millisecond)

		atomic.AddInt32(&concurrentCount, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	maxConcurrentLimit := 3
	client := NewHTTPClient(5*time.Second, 1, maxConcurrentLimit, testUserAgent)
	ctx := context.Background()

	// Launch many concurrent requests
	numRequests := 10
	done := make(chan error, numRequests)

	for i := 0; i < numRequests; i++ {
		go func() {
			_, err := client.Fetch(ctx, server.URL)
			done <- err
		}()
	}

	// Wait for all requests to complete
	for i := 0; i < numRequests; i++ {
		<-done
	}

	// Verify that max concurrent was not exceeded
	max := atomic.LoadInt32(&maxConcurrent)
	if max > int32(maxConcurrentLimit) {
		t.Errorf("Expected max concurrent to be <= %d, got %d", maxConcurrentLimit, max)
	}
}

// TestHTTPClient404Error verifies that 404 errors are handled properly
func TestHTTPClient404Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	_, err := client.Fetch(ctx, server.URL)
	if err == nil {
		t.Error("Expected error for 404 response, got nil")
	}
}

// TestHTTPClientInvalidURL verifies that invalid URLs are rejected
func TestHTTPClientInvalidURL(t *testing.T) {
	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	invalidURLs := []string{
		"",
		"not-a-url",
		"://invalid",
	}

	for _, url := range invalidURLs {
		_, err := client.Fetch(ctx, url)
		if err == nil {
			t.Errorf("Expected error for invalid URL '%s', got nil", url)
		}
	}
}

// TestHTTPClientUserAgent verifies that the configured User-Agent header is sent
func TestHTTPClientUserAgent(t *testing.T) {
	var receivedUserAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, 3, 5, testUserAgent)
	ctx := context.Background()

	_, err := client.Fetch(ctx, server.URL)
	if err != nil {
		t.Fatalf("Expected successful fetch, got error: %v", err)
	}

	if receivedUserAgent != testUserAgent {
		t.Errorf("Expected User-Agent to be %q, got %q", testUserAgent, receivedUserAgent)
	}
}

// TestHTTPClientMaxDelayCap verifies that retry delays are capped at 60 seconds
func TestHTTPClientMaxDelayCap(t *testing.T) {
	var attemptTimes []time.Time

	// Create a test server that always fails
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptTimes = append(attemptTimes, time.Now())
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Use a high number of retries to test max delay cap
	client := NewHTTPClient(5*time.Second, 10, 5, testUserAgent)
	ctx := context.Background()

	_, err := client.Fetch(ctx, server.URL)
	if err == nil {
		t.Error("Expected error after retries, got nil")
	}

	// Verify we have 11 attempts (1 initial + 10 retries)
	if len(attemptTimes) != 11 {
		t.Fatalf("Expected 11 attempts, got %d", len(attemptTimes))
	}

	// Calculate delays between attempts
	delays := make([]time.Duration, len(attemptTimes)-1)
	for i := 1; i < len(attemptTimes); i++ {
		delays[i-1] = attemptTimes[i].Sub(attemptTimes[i-1])
	}

	// Verify no delay exceeds 60 seconds (max delay cap)
	maxDelay := 60 * time.Second
	for i, delay := range delays {
		if delay > maxDelay+200*time.Millisecond { // Allow tolerance for timing variations
			t.Errorf("Delay %d exceeded max delay: got %v, expected <= 60s", i, delay)
		}
	}

	// Verify that later delays are capped (should be ~60s for later retries)
	// With exponential backoff: 1s, 2s, 4s, 8s, 16s, 32s, 64s (capped to 60s), 60s, 60s, 60s
	// Check that the last few delays are approximately 60s
	if len(delays) >= 3 {
		lastDelays := delays[len(delays)-3:]
		for i, delay := range lastDelays {
			if delay < 59*time.Second || delay > 61*time.Second {
				t.Errorf("Expected last delay %d to be ~60s (capped), got %v", i, delay)
			}
		}
	}
}
