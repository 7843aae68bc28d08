package llmq

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/lnutils"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/quorumconn"
)

// GetQuorumConnections returns the members forMember keeps connections to in
// the quorum with the given base block. With onlyOutbound set, only the
// connections forMember initiates itself are returned.
func (e *Engine) GetQuorumConnections(p Params, base *blockindex.Node,
	forMember chainhash.Hash,
	onlyOutbound bool) (fn.Set[chainhash.Hash], error) {

	if !e.IsAllMembersConnectedEnabled(p.Type) {
		return e.GetQuorumRelayMembers(p, base, forMember, onlyOutbound)
	}

	members, err := e.GetAllQuorumMembers(p.Type, base, false)
	if err != nil {
		return nil, err
	}

	result := fn.NewSet[chainhash.Hash]()
	for _, mn := range members {
		if mn.ProTxHash == forMember {
			continue
		}

		// Both sides agree on who initiates, so a connection made
		// twice can be resolved by dropping the other one.
		outbound := DeterministicOutboundConnection(
			forMember, mn.ProTxHash,
		)
		if !onlyOutbound || outbound == mn.ProTxHash {
			result.Add(mn.ProTxHash)
		}
	}

	return result, nil
}

// relayTargets returns the positions member i relays to in a ring of n
// members: i+1, i+2, i+4, ... up to roughly half the ring, and at least two
// steps. Every member is then reachable within log2(n) hops.
func relayTargets(i, n int) []int {
	if n <= 1 {
		return nil
	}

	var targets []int
	gap, gapMax, k := 1, n-1, 0
	for {
		gapMax >>= 1
		if gapMax == 0 && k > 1 {
			break
		}

		idx := (i + gap) % n
		gap <<= 1
		k++

		if idx == i {
			continue
		}
		targets = append(targets, idx)
	}

	return targets
}

// relayOutbound returns the identifiers member i of the quorum relays to.
func relayOutbound(members []*mnlist.Masternode,
	i int) fn.Set[chainhash.Hash] {

	result := fn.NewSet[chainhash.Hash]()
	for _, idx := range relayTargets(i, len(members)) {
		result.Add(members[idx].ProTxHash)
	}

	return result
}

// GetQuorumRelayMembers returns the members forMember relays quorum messages
// to. Unless onlyOutbound is set, the members relaying to forMember are
// included as well.
func (e *Engine) GetQuorumRelayMembers(p Params, base *blockindex.Node,
	forMember chainhash.Hash,
	onlyOutbound bool) (fn.Set[chainhash.Hash], error) {

	members, err := e.GetAllQuorumMembers(p.Type, base, false)
	if err != nil {
		return nil, err
	}

	result := fn.NewSet[chainhash.Hash]()
	for i, mn := range members {
		if mn.ProTxHash == forMember {
			for id := range relayOutbound(members, i) {
				result.Add(id)
			}

			continue
		}

		if onlyOutbound {
			continue
		}
		if relayOutbound(members, i).Contains(forMember) {
			result.Add(mn.ProTxHash)
		}
	}

	return result, nil
}

// CalcDeterministicWatchConnections picks connectionCount member positions of
// the quorum with the given base block for a node that watches the quorum.
// The picks depend on a seed drawn per engine, so observers do not all pick
// the same members.
func (e *Engine) CalcDeterministicWatchConnections(t Type,
	base *blockindex.Node, memberCount, connectionCount int) fn.Set[int] {

	result := fn.NewSet[int]()
	if memberCount <= 0 {
		return result
	}

	baseHash := base.Hash()

	var buf [2*chainhash.HashSize + 1]byte
	rnd := e.watchSeed
	for i := 0; i < connectionCount; i++ {
		copy(buf[:chainhash.HashSize], rnd[:])
		buf[chainhash.HashSize] = byte(t)
		copy(buf[chainhash.HashSize+1:], baseHash[:])

		rnd = chainhash.DoubleHashH(buf[:])

		idx := binary.LittleEndian.Uint64(rnd[:8]) % uint64(memberCount)
		result.Add(int(idx))
	}

	return result
}

// EnsureQuorumConnections hands the connection and relay sets of the quorum
// with the given base block to the connection manager. It returns false when
// the node has no business with the quorum. A zero myProTxHash marks a node
// that is not a masternode.
func (e *Engine) EnsureQuorumConnections(p Params, base *blockindex.Node,
	myProTxHash chainhash.Hash) (bool, error) {

	if e.cfg.ConnMan == nil {
		return false, ErrNoConnectionManager
	}

	isMasternode := myProTxHash != chainhash.Hash{}
	if !isMasternode && !e.cfg.WatchQuorums {
		return false, nil
	}

	members, err := e.GetAllQuorumMembers(p.Type, base, false)
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		return false, nil
	}

	isMember := false
	for _, mn := range members {
		if mn.ProTxHash == myProTxHash {
			isMember = true
			break
		}
	}
	if !isMember && !e.cfg.WatchQuorums {
		return false, nil
	}

	quorumHash := base.Hash()
	log.Debugf("Ensuring connections for %v quorum %v: isMember=%v",
		p.Type, quorumHash, isMember)

	var connections, relays fn.Set[chainhash.Hash]
	if isMember {
		connections, err = e.GetQuorumConnections(
			p, base, myProTxHash, true,
		)
		if err != nil {
			return false, err
		}

		relays, err = e.GetQuorumRelayMembers(
			p, base, myProTxHash, true,
		)
		if err != nil {
			return false, err
		}
	} else {
		connections = fn.NewSet[chainhash.Hash]()
		watch := e.CalcDeterministicWatchConnections(
			p.Type, base, len(members), 1,
		)
		for idx := range watch {
			connections.Add(members[idx].ProTxHash)
		}
		relays = connections
	}

	connMan := e.cfg.ConnMan
	llmqType := uint8(p.Type)
	if len(connections) > 0 {
		if !connMan.HasMasternodeQuorumNodes(llmqType, quorumHash) {
			log.Debugf("Adding connections for %v quorum %v:\n%v",
				p.Type, quorumHash, lnutils.NewLogClosure(
					func() string {
						return describeConnections(
							members, connections,
						)
					},
				))
		}

		connMan.SetMasternodeQuorumNodes(
			llmqType, quorumHash, connections,
		)
	}
	if len(relays) > 0 {
		connMan.SetMasternodeQuorumRelayMembers(
			llmqType, quorumHash, relays,
		)
	}

	return true, nil
}

// describeConnections lists the connection targets with their addresses.
func describeConnections(members []*mnlist.Masternode,
	connections fn.Set[chainhash.Hash]) string {

	var b strings.Builder
	for _, mn := range members {
		if !connections.Contains(mn.ProTxHash) {
			continue
		}

		fmt.Fprintf(&b, "  %v (%s)\n", mn.ProTxHash, mn.Addr)
	}

	return b.String()
}

// AddQuorumProbeConnections asks the connection manager to probe the members
// of the quorum that were not reached recently. Nothing happens unless
// proof-of-service probing is enabled for the quorum type.
func (e *Engine) AddQuorumProbeConnections(p Params, base *blockindex.Node,
	myProTxHash chainhash.Hash) error {

	if !e.IsQuorumPoseEnabled(p.Type) {
		return nil
	}

	if e.cfg.ConnMan == nil || e.cfg.Meta == nil {
		return ErrNoConnectionManager
	}

	members, err := e.GetAllQuorumMembers(p.Type, base, false)
	if err != nil {
		return err
	}

	now := e.cfg.Clock.Now()
	probes := fn.NewSet[chainhash.Hash]()
	for _, mn := range members {
		if mn.ProTxHash == myProTxHash {
			continue
		}

		if quorumconn.NeedsProbe(e.cfg.Meta, mn.ProTxHash, now) {
			probes.Add(mn.ProTxHash)
		}
	}

	if len(probes) == 0 {
		return nil
	}

	log.Debugf("Probing %d members of %v quorum %v", len(probes), p.Type,
		base.Hash())

	e.cfg.ConnMan.AddPendingProbeConnections(probes)

	return nil
}
