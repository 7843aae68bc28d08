package llmqd

import (
	"fmt"
	"os"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/piratecash/llmqd/build"
	"github.com/piratecash/llmqd/monitoring"
	"github.com/piratecash/llmqd/signal"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/prometheus/client_golang/prometheus"
)

// Main is the true entry point for llmqd. It accepts a fully populated and
// validated main configuration struct and an interceptor whose shutdown
// channel ends the daemon. This function is required since defers created in
// the top-level scope of a main method aren't executed if os.Exit() is called.
func Main(cfg *Config, interceptor signal.Interceptor) error {
	defer func() {
		ltndLog.Info("Shutdown complete")
		if err := cfg.LogRotator.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Could not close log rotator: "+
				"%v\n", err)
		}
	}()

	// Show version at startup.
	ltndLog.Infof("Version: %s commit=%s, build=%v, network=%s",
		build.Version(), build.Commit, build.Deployment,
		cfg.NetParams.Name)

	// Open the snapshot database, which holds the quorum snapshots of
	// every rotation cycle computed so far.
	dbDir := cfg.networkDir()
	backend, err := cfg.DB.GetBackend(dbDir)
	if err != nil {
		return mkErr("unable to open snapshot database in %s: %v",
			dbDir, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			ltndLog.Errorf("Unable to close snapshot database: %v",
				err)
		}
	}()

	snapshots, err := snapshot.NewStore(backend, cfg.DB.CacheSize)
	if err != nil {
		return mkErr("unable to create snapshot store: %v", err)
	}

	// Run the health checks before anything depends on the data
	// directory.
	healthMonitor := newHealthMonitor(cfg)
	if err := healthMonitor.Start(); err != nil {
		return mkErr("unable to start health monitor: %v", err)
	}
	defer func() {
		if err := healthMonitor.Stop(); err != nil {
			ltndLog.Errorf("Unable to stop health monitor: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	metrics, err := monitoring.NewQuorumMetrics(registry)
	if err != nil {
		return mkErr("unable to create metrics: %v", err)
	}

	server, err := newServer(
		cfg, snapshots, metrics, clock.NewDefaultClock(),
	)
	if err != nil {
		return mkErr("unable to create server: %v", err)
	}

	if cfg.Prometheus.Enabled() {
		if err := exportPrometheusStats(registry, server); err != nil {
			return mkErr("unable to export stats: %v", err)
		}

		exporter := monitoring.NewExporter(
			cfg.Prometheus.Listen, registry,
		)
		if err := exporter.Start(); err != nil {
			return mkErr("unable to start prometheus exporter: %v",
				err)
		}
		defer func() {
			if err := exporter.Stop(); err != nil {
				ltndLog.Errorf("Unable to stop prometheus "+
					"exporter: %v", err)
			}
		}()
	}

	if err := server.Start(); err != nil {
		return mkErr("unable to start server: %v", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			ltndLog.Errorf("Unable to stop server: %v", err)
		}
	}()

	ltndLog.Infof("Following simnet %q with %d masternodes",
		cfg.Simnet.Seed, cfg.Simnet.Masternodes)

	// Wait for shutdown signal from either a graceful server stop or from
	// the interrupt handler.
	<-interceptor.ShutdownChannel()

	return nil
}

// newHealthMonitor creates the monitor of the data directory disk space.
// A failing check shuts the daemon down through the critical logger.
func newHealthMonitor(cfg *Config) *healthcheck.Monitor {
	diskCfg := cfg.HealthChecks.DiskCheck

	diskCheck := healthcheck.NewObservation(
		"disk space",
		func() error {
			free, err := healthcheck.AvailableDiskSpaceRatio(
				cfg.DataDir,
			)
			if err != nil {
				return err
			}

			// If we have more free space than we require,
			// we return a nil error.
			if free > diskCfg.RequiredRemaining {
				return nil
			}

			return fmt.Errorf("require: %v free space, got: %v",
				diskCfg.RequiredRemaining, free)
		},
		diskCfg.Interval,
		diskCfg.Timeout,
		diskCfg.Backoff,
		diskCfg.Attempts,
	)

	var checks []*healthcheck.Observation
	if diskCfg.Attempts > 0 {
		checks = append(checks, diskCheck)
	}

	return healthcheck.NewMonitor(&healthcheck.Config{
		Checks:   checks,
		Shutdown: ltndLog.Criticalf,
	})
}

// mkErr logs the formatted error and returns it.
func mkErr(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	ltndLog.Error(err.Error())

	return err
}
