package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running harness component. Start blocks until Stop is
// called or the component fails.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into a Service.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls StartFn.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls StopFn.
func (f *FuncService) Stop() { f.StopFn() }

// HTTPService serves handler on addr until stopped.
type HTTPService struct {
	srv     *http.Server
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewHTTPService creates an HTTPService. Stop waits up to shutdownTimeout for
// in-flight requests.
//
// Precondition: addr must be a valid "host:port"; handler and logger must be non-nil.
func NewHTTPService(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) *HTTPService {
	return &HTTPService{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger:  logger,
		timeout: shutdownTimeout,
	}
}

// Start listens and serves. It blocks until Stop is called.
//
// Postcondition: Returns nil after a clean Stop, or the listen/serve error.
func (h *HTTPService) Start() error {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.srv.Addr, err)
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()

	h.logger.Info("http listening", zap.String("addr", ln.Addr().String()))
	if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Addr returns the bound address once Start is listening, or "".
func (h *HTTPService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (h *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("http shutdown", zap.Error(err))
	}
}

// TickerService calls fn every interval until stopped or fn fails.
type TickerService struct {
	interval time.Duration
	fn       func(ctx context.Context) error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTickerService creates a TickerService.
//
// Precondition: interval > 0; fn must be non-nil.
func NewTickerService(interval time.Duration, fn func(ctx context.Context) error) *TickerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerService{interval: interval, fn: fn, ctx: ctx, cancel: cancel}
}

// Start ticks until Stop is called.
//
// Postcondition: Returns nil after Stop, or the first error returned by fn.
func (t *TickerService) Start() error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.fn(t.ctx); err != nil {
				return err
			}
		}
	}
}

// Stop ends the tick loop.
func (t *TickerService) Stop() { t.cancel() }
