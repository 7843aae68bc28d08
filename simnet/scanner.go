package simnet

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/versionbits"
)

// requiredDeployment returns the deployment a quorum type waits for.
func requiredDeployment(t llmq.Type) (versionbits.DeploymentID, bool) {
	switch t {
	case llmq.Type100_67, llmq.TypeTestV17:
		return versionbits.DeploymentDIP0020, true

	case llmq.Type60_75, llmq.TypeDevnetDIP0024, llmq.TypeTestDIP0024:
		return versionbits.DeploymentDIP0024, true

	default:
		return 0, false
	}
}

// deploymentActive reports whether the deployment is active for the block
// following prev. Lookup errors count as inactive.
func (n *Network) deploymentActive(id versionbits.DeploymentID,
	prev *blockindex.Node) bool {

	active, err := n.deployments.IsActive(id, prev)
	if err != nil {
		log.Errorf("Unable to evaluate %v: %v", id, err)
		return false
	}

	return active
}

// quorumFormed reports whether a quorum of the type was formed with the given
// base block. Rotating types form one quorum per index at the start of a
// cycle once DIP0024 was active before the cycle started, and one quorum per
// interval before that.
func (n *Network) quorumFormed(p *llmq.Params, base *blockindex.Node) bool {
	if id, ok := requiredDeployment(p.Type); ok {
		if !n.deploymentActive(id, base.Parent()) {
			return false
		}
	}

	offset := int(base.Height()) % p.DKGInterval
	if offset == 0 {
		return true
	}
	if !p.UseRotation || offset >= p.SigningActiveQuorumCount {
		return false
	}

	cycleStart := base.Ancestor(base.Height() - int32(offset))

	return n.deploymentActive(
		versionbits.DeploymentDIP0024, cycleStart.Parent(),
	)
}

// ScanQuorums returns the base block hashes of the newest quorums of the type
// whose commitments were mined up to tip, newest first. A commitment is mined
// at the end of the mining window of its DKG. It implements
// llmq.QuorumScanner.
func (n *Network) ScanQuorums(llmqType uint8, tip *blockindex.Node,
	maxCount int) []chainhash.Hash {

	if tip == nil || maxCount <= 0 {
		return nil
	}

	p, err := n.netParams.Params(llmq.Type(llmqType))
	if err != nil {
		return nil
	}

	last := tip.Height() - int32(p.DKGMiningWindowEnd)
	if last < 0 {
		return nil
	}

	interval := int32(p.DKGInterval)
	lastIdx := int32(0)
	if p.UseRotation {
		lastIdx = int32(p.SigningActiveQuorumCount) - 1
	}

	var quorums []chainhash.Hash
	for cycle := last - last%interval; cycle >= 0; cycle -= interval {
		for h := min(cycle+lastIdx, last); h >= cycle; h-- {
			base := tip.Ancestor(h)
			if !n.quorumFormed(&p, base) {
				continue
			}

			quorums = append(quorums, base.Hash())
			if len(quorums) == maxCount {
				return quorums
			}
		}

		// Deployments never deactivate, so a cycle without any
		// quorum ends the scan.
		if id, ok := requiredDeployment(p.Type); ok &&
			!n.deploymentActive(id, tip.Ancestor(cycle).Parent()) {

			break
		}
	}

	return quorums
}

// A compile time check to ensure Network satisfies the QuorumScanner
// interface.
var _ llmq.QuorumScanner = (*Network)(nil)
