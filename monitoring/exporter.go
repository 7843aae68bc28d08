package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds how long Stop waits for open scrapes.
const shutdownTimeout = 5 * time.Second

// Exporter serves the metrics of a gatherer on /metrics.
type Exporter struct {
	started sync.Once
	stopped sync.Once

	listen   string
	gatherer prometheus.Gatherer

	listener net.Listener
	server   *http.Server

	wg sync.WaitGroup
}

// NewExporter creates an exporter that will listen on the given address.
func NewExporter(listen string, gatherer prometheus.Gatherer) *Exporter {
	return &Exporter{
		listen:   listen,
		gatherer: gatherer,
	}
}

// Start binds the listen address and starts serving.
func (e *Exporter) Start() error {
	var startErr error
	e.started.Do(func() {
		listener, err := net.Listen("tcp", e.listen)
		if err != nil {
			startErr = err
			return
		}
		e.listener = listener

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			e.gatherer, promhttp.HandlerOpts{},
		))
		e.server = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		log.Infof("Prometheus exporter started on %v/metrics",
			listener.Addr())

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()

			err := e.server.Serve(listener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Prometheus exporter failed: %v", err)
			}
		}()
	})

	return startErr
}

// Addr returns the address the exporter listens on, or nil before Start.
func (e *Exporter) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}

	return e.listener.Addr()
}

// Stop shuts the HTTP server down.
func (e *Exporter) Stop() error {
	var stopErr error
	e.stopped.Do(func() {
		if e.server == nil {
			return
		}

		log.Info("Prometheus exporter shutting down...")

		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		stopErr = e.server.Shutdown(ctx)
		e.wg.Wait()
	})

	return stopErr
}
