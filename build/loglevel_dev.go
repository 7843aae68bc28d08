//go:build dev

package build

// LogLevel specifies a more verbose default log level for dev builds.
const LogLevel = "debug"
