package llmq

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/spork"
	"github.com/piratecash/llmqd/versionbits"
)

// IsDIP0024Active reports whether DIP0024 is active for the block following
// pindex.
func (e *Engine) IsDIP0024Active(pindex *blockindex.Node) (bool, error) {
	return e.cfg.Deployments.IsActive(
		versionbits.DeploymentDIP0024, pindex,
	)
}

// IsDIP0020Active reports whether DIP0020 is active for the block following
// pindex.
func (e *Engine) IsDIP0020Active(pindex *blockindex.Node) (bool, error) {
	return e.cfg.Deployments.IsActive(
		versionbits.DeploymentDIP0020, pindex,
	)
}

// IsInstantSendLLMQTypeShared reports whether the InstantSend quorum type
// also serves another role. Such a type is never retired by DIP0024.
func (e *Engine) IsInstantSendLLMQTypeShared() bool {
	n := e.cfg.NetParams

	return n.InstantSend == n.ChainLocks ||
		n.InstantSend == n.Platform ||
		n.InstantSend == n.Mnhf
}

// hasDIP0024InstantSendQuorums reports whether at least one rotated
// InstantSend quorum was mined up to pindex.
func (e *Engine) hasDIP0024InstantSendQuorums(pindex *blockindex.Node) bool {
	t := e.cfg.NetParams.DIP0024InstantSend

	return len(e.cfg.Quorums.ScanQuorums(uint8(t), pindex, 1)) > 0
}

// IsQuorumTypeEnabled reports whether quorums of the type may form on top of
// pindex.
func (e *Engine) IsQuorumTypeEnabled(t Type, pindex *blockindex.Node) (bool,
	error) {

	switch t {
	case Type50_60, TypeDevnet, TypeTestInstantSend:
		if e.IsInstantSendLLMQTypeShared() {
			return true, nil
		}

		dip0024, err := e.IsDIP0024Active(pindex)
		if err != nil {
			return false, err
		}

		// The legacy InstantSend quorums retire once the first rotated
		// one exists.
		if dip0024 && e.hasDIP0024InstantSendQuorums(pindex) {
			return false, nil
		}

		return true, nil

	case TypeTest, Type400_60, Type400_85:
		return true, nil

	case Type100_67, TypeTestV17:
		return e.IsDIP0020Active(pindex)

	case Type60_75, TypeDevnetDIP0024, TypeTestDIP0024:
		return e.IsDIP0024Active(pindex)

	default:
		return false, fmt.Errorf("%w: %v", ErrUnknownQuorumType, t)
	}
}

// IsQuorumRotationEnabled reports whether the quorum built at pindex uses
// quarter rotation. DIP0024 must be active one block before the cycle starts.
func (e *Engine) IsQuorumRotationEnabled(p Params,
	pindex *blockindex.Node) (bool, error) {

	if !p.UseRotation {
		return false, nil
	}

	height := pindex.Height()
	cycleBaseHeight := height - height%int32(p.DKGInterval)
	if cycleBaseHeight < 1 {
		// Only a deployment that is active from genesis covers the
		// first cycle.
		return e.IsDIP0024Active(nil)
	}

	return e.IsDIP0024Active(pindex.Ancestor(cycleBaseHeight - 1))
}

// GetEnabledQuorumTypes returns the network's quorum types enabled on top of
// pindex, in network order.
func (e *Engine) GetEnabledQuorumTypes(pindex *blockindex.Node) ([]Type,
	error) {

	params, err := e.GetEnabledQuorumParams(pindex)
	if err != nil {
		return nil, err
	}

	types := make([]Type, len(params))
	for i := range params {
		types[i] = params[i].Type
	}

	return types, nil
}

// GetEnabledQuorumParams returns the parameters of the network's quorum types
// enabled on top of pindex, in network order.
func (e *Engine) GetEnabledQuorumParams(pindex *blockindex.Node) ([]Params,
	error) {

	var enabled []Params
	for _, p := range e.cfg.NetParams.LLMQs {
		ok, err := e.IsQuorumTypeEnabled(p.Type, pindex)
		if err != nil {
			return nil, err
		}
		if ok {
			enabled = append(enabled, p)
		}
	}

	return enabled, nil
}

// GetInstantSendLLMQType returns the quorum type signing InstantSend locks on
// top of pindex.
func (e *Engine) GetInstantSendLLMQType(pindex *blockindex.Node) (Type,
	error) {

	dip0024, err := e.IsDIP0024Active(pindex)
	if err != nil {
		return TypeNone, err
	}

	n := e.cfg.NetParams
	if dip0024 && e.hasDIP0024InstantSendQuorums(pindex) {
		return n.DIP0024InstantSend, nil
	}

	return n.InstantSend, nil
}

// evalSpork maps a quorum spork value to its effect on a quorum type. Zero
// enables the feature for every type, one for every type but the big
// ChainLocks and platform quorums.
func evalSpork(t Type, value int64) bool {
	switch {
	case value == 0:
		return true

	case value == 1:
		return t != Type100_67 && t != Type400_60 && t != Type400_85

	default:
		return false
	}
}

// IsAllMembersConnectedEnabled reports whether members of the quorum type
// connect to every other member.
func (e *Engine) IsAllMembersConnectedEnabled(t Type) bool {
	return evalSpork(
		t, e.cfg.Sporks.SporkValue(spork.SporkQuorumAllConnected),
	)
}

// IsQuorumPoseEnabled reports whether members of the quorum type are probed
// for proof of service.
func (e *Engine) IsQuorumPoseEnabled(t Type) bool {
	return evalSpork(t, e.cfg.Sporks.SporkValue(spork.SporkQuorumPoSe))
}

// IsQuorumActive reports whether the quorum with the given base block hash is
// among the most recent quorums of its type that keep connections at tip.
func (e *Engine) IsQuorumActive(t Type, tip *blockindex.Node,
	quorumHash chainhash.Hash) (bool, error) {

	p, err := e.cfg.NetParams.Params(t)
	if err != nil {
		return false, err
	}

	scanned := e.cfg.Quorums.ScanQuorums(
		uint8(t), tip, p.KeepOldConnections,
	)
	for _, h := range scanned {
		if h == quorumHash {
			return true, nil
		}
	}

	return false, nil
}
