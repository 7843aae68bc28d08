package lncfg

import (
	"fmt"
	"net"
)

// DefaultPrometheusListen is the default address of the metrics exporter.
const DefaultPrometheusListen = "127.0.0.1:8989"

// Prometheus configures the Prometheus exporter.
type Prometheus struct {
	Enable bool `long:"enable" description:"Export Prometheus metrics."`

	Listen string `long:"listen" description:"The address the Prometheus exporter listens on."`
}

// DefaultPrometheus is the default configuration for the Prometheus metrics
// exporter.
func DefaultPrometheus() Prometheus {
	return Prometheus{
		Listen: DefaultPrometheusListen,
	}
}

// Enabled returns whether or not Prometheus monitoring is enabled.
func (p *Prometheus) Enabled() bool {
	return p.Enable
}

// Validate checks the listen address when the exporter is enabled.
func (p *Prometheus) Validate() error {
	if !p.Enable {
		return nil
	}

	if _, _, err := net.SplitHostPort(p.Listen); err != nil {
		return fmt.Errorf("invalid prometheus.listen %q: %w", p.Listen,
			err)
	}

	return nil
}

// Compile-time constraint to ensure Prometheus implements the Validator
// interface.
var _ Validator = (*Prometheus)(nil)
