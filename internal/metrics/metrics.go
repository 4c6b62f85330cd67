// Package metrics wires the crypto-tracer pipeline driver to
// github.com/prometheus/client_golang, exposed optionally as an HTTP
// /metrics endpoint (spec section 9 supplemented feature: statistics and
// dropped-event counters surfaced for operational visibility). This is
// ambient infrastructure, not part of the record stream itself.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects the pipeline counters under one prometheus.Registry so a
// command can choose not to expose them at all. The pipeline driver updates
// PoolExhausted, EventsFiltered, PollBatches and EventsWritten; EventsDropped
// is registered but nothing updates it (producer drop counts are read from
// kerneltrace.Producer.Stats instead). The zero value of Registry has nil
// counters and is not usable; callers always go through New.
type Registry struct {
	reg *prometheus.Registry

	PoolExhausted  prometheus.Counter
	EventsFiltered prometheus.Counter
	EventsDropped  prometheus.Counter
	PollBatches    prometheus.Counter
	EventsWritten  prometheus.Counter
}

// New constructs a Registry with every counter registered under the
// "crypto_tracer" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		PoolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crypto_tracer",
			Name:      "pool_exhausted_total",
			Help:      "Number of times the event pool had no free record available.",
		}),
		EventsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crypto_tracer",
			Name:      "events_filtered_total",
			Help:      "Number of decoded events rejected by the filter set.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crypto_tracer",
			Name:      "events_dropped_total",
			Help:      "Number of events the kernel producer reported as dropped.",
		}),
		PollBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crypto_tracer",
			Name:      "poll_batches_total",
			Help:      "Number of producer poll calls made by the pipeline driver.",
		}),
		EventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crypto_tracer",
			Name:      "events_written_total",
			Help:      "Number of events successfully written to the output sink.",
		}),
	}
	reg.MustRegister(r.PoolExhausted, r.EventsFiltered, r.EventsDropped, r.PollBatches, r.EventsWritten)
	return r
}

// Serve starts an HTTP server exposing /metrics at addr and blocks until
// ctx is cancelled, at which point it shuts down with a short grace period.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
