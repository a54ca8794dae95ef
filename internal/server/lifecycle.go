// Package server runs the long-lived parts of the dev harness (metrics
// endpoint, scenario ticker, config watcher) under one lifecycle with
// graceful shutdown on signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultStopTimeout bounds how long shutdown waits for one service to
// return from Start after Stop.
const DefaultStopTimeout = 10 * time.Second

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithStopTimeout sets the per-service shutdown wait.
func WithStopTimeout(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) { l.stopTimeout = d }
}

// WithSignals replaces the signals that trigger shutdown.
func WithSignals(sigs ...os.Signal) LifecycleOption {
	return func(l *Lifecycle) { l.signals = sigs }
}

// Lifecycle runs the harness services together. A termination signal, the
// cancellation of the parent context or the first service failure stops
// every service in reverse registration order.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	signals     []os.Signal

	mu       sync.Mutex
	services []registered
}

type registered struct {
	name string
	svc  Service
}

// running tracks one started service until its Start returns.
type running struct {
	registered
	since  time.Time
	exited chan struct{}
}

// NewLifecycle creates a Lifecycle that stops on SIGINT and SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add registers a named service. Services start in registration order.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, registered{name: name, svc: svc})
}

// Run starts every registered service and blocks until shutdown.
//
// Postcondition: Stop has been called on every service; the first service
// failure, if any, is returned.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	services := append([]registered(nil), l.services...)
	l.mu.Unlock()

	start := time.Now()
	ctx, stopSignals := signal.NotifyContext(ctx, l.signals...)
	defer stopSignals()

	failures := make(chan error, len(services))
	live := make([]running, len(services))
	names := make([]string, len(services))
	for i, rs := range services {
		live[i] = running{registered: rs, since: time.Now(), exited: make(chan struct{})}
		names[i] = rs.name
		go l.serve(live[i], failures)
	}
	l.logger.Info("harness started", zap.Strings("services", names))

	var runErr error
	select {
	case runErr = <-failures:
		l.logger.Error("service failed, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	}

	l.stopAll(live)
	l.logger.Info("harness stopped", zap.Duration("uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) serve(r running, failures chan<- error) {
	defer close(r.exited)
	l.logger.Debug("starting service", zap.String("service", r.name))
	if err := r.svc.Start(); err != nil {
		l.logger.Error("service exited",
			zap.String("service", r.name),
			zap.Error(err),
			zap.Duration("uptime", time.Since(r.since)),
		)
		failures <- fmt.Errorf("service %s: %w", r.name, err)
	}
}

// stopAll stops services newest first, waiting up to stopTimeout for each to
// leave Start.
func (l *Lifecycle) stopAll(live []running) {
	for i := len(live) - 1; i >= 0; i-- {
		r := live[i]
		began := time.Now()
		r.svc.Stop()
		select {
		case <-r.exited:
			l.logger.Debug("service stopped",
				zap.String("service", r.name),
				zap.Duration("elapsed", time.Since(began)),
			)
		case <-time.After(l.stopTimeout):
			l.logger.Warn("service did not exit after stop",
				zap.String("service", r.name),
				zap.Duration("waited", l.stopTimeout),
			)
		}
	}
}
