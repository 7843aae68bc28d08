package build

// DeploymentType selects the flavour of the binary at compile time.
type DeploymentType byte

const (
	// Development builds may log to stdout from unit tests and default to
	// a more verbose log level.
	Development DeploymentType = iota

	// Production builds always log through the daemon's handlers.
	Production
)

// String returns the name of the deployment as printed at startup.
func (b DeploymentType) String() string {
	switch b {
	case Development:
		return "dev"

	case Production:
		return "prod"

	default:
		return "unknown"
	}
}
