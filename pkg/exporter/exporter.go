// Package exporter brings up the web server that answers prometheus
// scrapes out of a metrics registry (e.g., one populated via
// `pkg/collector`).
//
package exporter

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Exporter is responsible for bringing up a web server that serves the
// metrics gathered from a prometheus registry.
//
type Exporter struct {
	// listenAddress is the full address used by prometheus
	// to listen for scraping requests.
	//
	// Examples:
	// - :9113
	// - 127.0.0.2:1313
	//
	listenAddress string

	// telemetryPath configures the path under which
	// the prometheus metrics are reported.
	//
	// For instance:
	// - /metrics
	// - /telemetry
	//
	telemetryPath string

	// gatherer is where the metrics to serve come from.
	//
	gatherer prometheus.Gatherer

	// listener is the TCP listener used by the webserver. `nil` if no
	// server is running.
	//
	listener net.Listener

	log logr.Logger
}

// Option.
//
type Option func(e *Exporter)

// WithBindAddress overrides the default address to listen for scrape
// requests on.
//
func WithBindAddress(v string) Option {
	return func(e *Exporter) {
		e.listenAddress = v
	}
}

// WithTelemetryPath overrides the default path under which metrics are
// reported.
//
func WithTelemetryPath(v string) Option {
	return func(e *Exporter) {
		e.telemetryPath = v
	}
}

// WithGatherer overrides the default (global) prometheus gatherer.
//
func WithGatherer(v prometheus.Gatherer) Option {
	return func(e *Exporter) {
		e.gatherer = v
	}
}

// WithLogger overrides the default development logger.
//
func WithLogger(v logr.Logger) Option {
	return func(e *Exporter) {
		e.log = v
	}
}

// New.
//
func New(opts ...Option) (*Exporter, error) {
	defaultLogger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("zap new development: %w", err)
	}

	e := &Exporter{
		listenAddress: ":9113",
		telemetryPath: "/metrics",
		gatherer:      prometheus.DefaultGatherer,
		log:           zapr.NewLogger(defaultLogger.Named("exporter")),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Addr gives back the address the server is listening on, empty if not
// running yet.
//
// useful when binding to `:0`.
//
func (e *Exporter) Addr() string {
	if e.listener == nil {
		return ""
	}

	return e.listener.Addr().String()
}

// Run initiates the HTTP server to serve the metrics.
//
// ps.: this is a BLOCKING method - make sure you either make use of
// goroutines to not block if needed.
//
func (e *Exporter) Run(ctx context.Context) error {
	var err error

	e.listener, err = net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("listen on '%s': %w", e.listenAddress, err)
	}

	doneChan := make(chan error, 1)

	go func() {
		defer close(doneChan)

		e.log.WithValues(
			"addr", e.listenAddress,
			"path", e.telemetryPath,
		).Info("listening")

		if err := http.Serve(e.listener, e.router()); err != nil {
			doneChan <- fmt.Errorf(
				"failed listening on address %s: %w",
				e.listenAddress, err,
			)
		}
	}()

	select {
	case err = <-doneChan:
		if err != nil {
			return fmt.Errorf("donechan err: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("ctx err: %w", ctx.Err())
	}

	return nil
}

// Close gracefully closes the tcp listener associated with it.
//
func (e *Exporter) Close() (err error) {
	if e.listener == nil {
		return nil
	}

	e.log.Info("closing")
	if err := e.listener.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (e *Exporter) router() http.Handler {
	r := chi.NewRouter()

	r.Use(e.logRequests)

	r.Handle(e.telemetryPath, promhttp.HandlerFor(
		e.gatherer, promhttp.HandlerOpts{},
	))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// logRequests logs every request served at a verbosity that keeps
// ordinary scrape traffic out of the default output.
//
// a client going away mid-response is not our problem to solve - the
// write error is swallowed by the http server and the next scrape starts
// from the cached snapshot anyway.
//
func (e *Exporter) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()

		next.ServeHTTP(w, r)

		e.log.V(1).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(begin),
		)
	})
}
