// Package server provides the HTTP query server: route handlers for search,
// document retrieval, and admin index operations, plus the listen/shutdown
// lifecycle that wraps them.
package server

import (
	"context"
	"fmt"
	"net/http"
)

// TransportStarter defines the interface for starting and stopping the
// server's network listener. It exists as a seam between the HTTP handler
// setup and how the process actually listens, leaving room for alternate
// listener implementations; here there is a single HTTP listen-address
// implementation.
type TransportStarter interface {
	// Start binds the listener and serves h until the context is cancelled
	// or an unrecoverable error occurs.
	Start(ctx context.Context, h http.Handler) error

	// Shutdown gracefully stops the listener, allowing in-flight requests to
	// complete.
	Shutdown(ctx context.Context) error

	// Type returns the transport type name for logging and diagnostics.
	Type() string
}

// HTTPTransport serves a http.Handler on a fixed listen address.
type HTTPTransport struct {
	address string
	srv     *http.Server
}

// Start binds the configured address and serves h. It blocks until the
// server stops or ctx is cancelled.
func (t *HTTPTransport) Start(ctx context.Context, h http.Handler) error {
	t.srv = &http.Server{
		Addr:    t.address,
		Handler: h,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return t.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP listener.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	if t.srv == nil {
		return nil
	}
	return t.srv.Shutdown(ctx)
}

// Type returns "http".
func (t *HTTPTransport) Type() string {
	return "http"
}

// transportConfig defines the interface for configuration objects used by
// NewTransport.
type transportConfig interface {
	GetListenAddr() string
}

// NewTransport creates the transport implementation for cfg's listen
// address.
func NewTransport(cfg transportConfig) (TransportStarter, error) {
	addr := cfg.GetListenAddr()
	if addr == "" {
		return nil, fmt.Errorf("listen address must be configured")
	}
	return &HTTPTransport{address: addr}, nil
}
