package llmqd

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/build"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/monitoring"
	"github.com/piratecash/llmqd/quorumconn"
	"github.com/piratecash/llmqd/signal"
	"github.com/piratecash/llmqd/simnet"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/piratecash/llmqd/spork"
	"github.com/piratecash/llmqd/versionbits"
)

// Subsystem is the logging code of the daemon itself.
const Subsystem = "LLMD"

// ltndLog is the daemon logger. It is replaced by SetupLoggers once the log
// handlers are known.
var ltndLog = build.NewSubLogger(Subsystem, nil)

// genSubLogger creates a logger for a subsystem. We provide an instance of
// a signal.Interceptor to be able to shutdown in the case of a critical
// error.
func genSubLogger(root *build.SubLoggerManager,
	interceptor signal.Interceptor) func(string) btclog.Logger {

	// Create a shutdown function which will request shutdown from our
	// interceptor if it is listening.
	shutdown := func() {
		if !interceptor.Alive() {
			return
		}

		interceptor.RequestShutdown()
	}

	// Return a function which will create a sublogger from our root
	// logger without shutdown fn.
	return func(tag string) btclog.Logger {
		return root.GenSubLogger(tag, shutdown)
	}
}

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager,
	interceptor signal.Interceptor) {

	genLogger := genSubLogger(root, interceptor)

	ltndLog = build.NewSubLogger(Subsystem, genLogger)
	root.RegisterSubLogger(Subsystem, ltndLog)

	AddSubLogger(root, signal.Subsystem, interceptor, signal.UseLogger)
	AddSubLogger(root, llmq.Subsystem, interceptor, llmq.UseLogger)
	AddSubLogger(root, snapshot.Subsystem, interceptor, snapshot.UseLogger)
	AddSubLogger(root, mnlist.Subsystem, interceptor, mnlist.UseLogger)
	AddSubLogger(
		root, blockindex.Subsystem, interceptor, blockindex.UseLogger,
	)
	AddSubLogger(
		root, versionbits.Subsystem, interceptor, versionbits.UseLogger,
	)
	AddSubLogger(root, spork.Subsystem, interceptor, spork.UseLogger)
	AddSubLogger(
		root, quorumconn.Subsystem, interceptor, quorumconn.UseLogger,
	)
	AddSubLogger(root, simnet.Subsystem, interceptor, simnet.UseLogger)
	AddSubLogger(
		root, monitoring.Subsystem, interceptor, monitoring.UseLogger,
	)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	interceptor signal.Interceptor, useLoggers ...func(btclog.Logger)) {

	// genSubLogger will return a callback for creating a logger instance,
	// which we will give to the root logger.
	genLogger := genSubLogger(root, interceptor)

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, genLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.SubLoggerManager, subsystem string,
	logger btclog.Logger, useLoggers ...func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
