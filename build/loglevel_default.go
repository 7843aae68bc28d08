//go:build !dev

package build

// LogLevel specifies a default log level for the stdout logger used in unit
// tests.
const LogLevel = "info"
