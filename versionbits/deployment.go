package versionbits

import (
	"fmt"
	"math"
)

// DeploymentID identifies a version bits deployment.
type DeploymentID uint8

const (
	// DeploymentDIP0020 gates the platform quorum types.
	DeploymentDIP0020 DeploymentID = iota

	// DeploymentDIP0024 gates quorum rotation and the rotated
	// InstantSend quorum types.
	DeploymentDIP0024

	// DefinedDeployments is the number of currently defined deployments.
	// It must always come last.
	DefinedDeployments
)

// String returns the deployment name.
func (id DeploymentID) String() string {
	switch id {
	case DeploymentDIP0020:
		return "dip0020"
	case DeploymentDIP0024:
		return "dip0024"
	default:
		return fmt.Sprintf("deployment(%d)", uint8(id))
	}
}

const (
	// AlwaysActive is a StartTime that makes a deployment active from the
	// genesis block.
	AlwaysActive int64 = -1

	// NoTimeout is an ExpireTime that never passes.
	NoTimeout int64 = math.MaxInt64

	// topBits is the value the top three version bits must have for a
	// block to signal for any deployment.
	topBits = 0x20000000

	// topMask selects the top three version bits.
	topMask = 0xe0000000
)

// Deployment defines one soft fork signalled through block version bits. The
// activation threshold falls off with every period that fails to lock in.
type Deployment struct {
	// BitNumber is the version bit the deployment signals on.
	BitNumber uint8

	// StartTime is the median time past after which signalling counts.
	// AlwaysActive short-circuits the state machine.
	StartTime int64

	// ExpireTime is the median time past after which a deployment that
	// has not locked in fails.
	ExpireTime int64

	// WindowSize overrides the chain's confirmation window if non-zero.
	WindowSize uint32

	// ThresholdStart is the number of signalling blocks per window
	// required in the first period. Zero falls back to the chain's
	// activation threshold.
	ThresholdStart uint32

	// ThresholdMin is the lowest the threshold can fall to.
	ThresholdMin uint32

	// FalloffCoeff controls how fast the threshold falls.
	FalloffCoeff uint32
}

// Params are the chain-wide version bits parameters.
type Params struct {
	// RuleChangeActivationThreshold is the default number of signalling
	// blocks per window.
	RuleChangeActivationThreshold uint32

	// MinerConfirmationWindow is the default window size.
	MinerConfirmationWindow uint32

	// Deployments holds one entry per DeploymentID.
	Deployments [DefinedDeployments]Deployment
}

// period returns the window size of the deployment.
func (p *Params) period(id DeploymentID) int32 {
	if w := p.Deployments[id].WindowSize; w != 0 {
		return int32(w)
	}

	return int32(p.MinerConfirmationWindow)
}

// Threshold returns the number of signalling blocks required to lock in
// during the given attempt, counting from zero for the first started period:
//
//	max(ThresholdMin, ThresholdStart - attempt^2 * window / 100 / FalloffCoeff)
func (p *Params) Threshold(id DeploymentID, attempt int64) int64 {
	d := &p.Deployments[id]
	if d.ThresholdStart == 0 {
		return int64(p.RuleChangeActivationThreshold)
	}
	if d.ThresholdMin == 0 || d.FalloffCoeff == 0 {
		return int64(d.ThresholdStart)
	}

	calc := int64(d.ThresholdStart) - attempt*attempt*
		int64(p.period(id))/100/int64(d.FalloffCoeff)

	return max(int64(d.ThresholdMin), calc)
}

// SignalVersion returns a block version signalling for the given bits.
func SignalVersion(bits ...uint8) int32 {
	version := uint32(topBits)
	for _, bit := range bits {
		version |= 1 << bit
	}

	return int32(version)
}

// signals reports whether a block version signals for the bit.
func signals(version int32, bit uint8) bool {
	v := uint32(version)
	return v&topMask == topBits && v&(1<<bit) != 0
}
