package llmq

import (
	"fmt"

	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/snapshot"
)

// GetQuorumQuarterMembersBySnapshot reconstructs the quarters drawn in the
// cycle starting at cycleBase from the cycle's snapshot, without replaying
// the cycles before it.
func (e *Engine) GetQuorumQuarterMembersBySnapshot(p Params,
	cycleBase *blockindex.Node,
	snap *snapshot.Snapshot) ([][]*mnlist.Masternode, error) {

	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot",
			snapshot.ErrMalformedSnapshot)
	}

	nQuorums := p.SigningActiveQuorumCount
	quarters := emptyQuarters(nQuorums)

	work := workBlock(cycleBase)
	modifier := BuildModifier(p.Type, work.Hash())

	list, err := e.cfg.Lists.ListForBlock(work)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch masternode list at "+
			"%v: %w", work.Hash(), err)
	}

	ranking := list.CalculateQuorum(list.AllCount(), modifier)
	if len(snap.ActiveMembers) < len(ranking) {
		return nil, fmt.Errorf("%w: %d active member bits for a "+
			"ranking of %d", snapshot.ErrMalformedSnapshot,
			len(snap.ActiveMembers), len(ranking))
	}

	// Both partitions keep the ranking order, which is the order a fresh
	// ranking of each would produce.
	var used, notUsed []*mnlist.Masternode
	for k, mn := range ranking {
		switch {
		case snap.ActiveMembers[k]:
			used = append(used, mn)

		case mn.IsValid():
			notUsed = append(notUsed, mn)
		}
	}
	combined := append(notUsed, used...)

	e.metrics.SnapshotReplayed(p.Type)

	if len(combined) == 0 {
		return quarters, nil
	}

	walker := newRotationWalker(combined)

	switch snap.SkipMode {
	case snapshot.NoSkipping:
		if len(snap.SkipList) != 0 {
			return nil, fmt.Errorf("%w: %d entries without "+
				"skipping", snapshot.ErrMalformedSkipList,
				len(snap.SkipList))
		}

		keepAll := func(*mnlist.Masternode, int) bool {
			return false
		}
		for i := range quarters {
			quarters[i] = walker.fill(p.QuarterSize(), keepAll)
		}

	case snapshot.SkippingEntries:
		positions, err := snapshot.DecodeSkipList(
			snap.SkipList, len(combined),
		)
		if err != nil {
			return nil, err
		}

		// Only members an index used in earlier cycles are skipped,
		// and those sit behind the unused ones.
		for _, pos := range positions {
			if pos < len(notUsed) {
				return nil, fmt.Errorf("%w: skip position %d "+
					"names an unused candidate",
					snapshot.ErrMalformedSkipList, pos)
			}
		}

		next := 0
		skipRecorded := func(_ *mnlist.Masternode, pos int) bool {
			if next < len(positions) && positions[next] == pos {
				next++
				return true
			}

			return false
		}
		for i := range quarters {
			quarters[i] = walker.fill(p.QuarterSize(), skipRecorded)
		}

		if next != len(positions) {
			return nil, fmt.Errorf("%w: %d of %d skip positions "+
				"not reached", snapshot.ErrMalformedSkipList,
				len(positions)-next, len(positions))
		}

	case snapshot.NoSkippingEntries, snapshot.AllSkipped:
		// Nothing was drawn in this cycle.

	default:
		return nil, fmt.Errorf("%w: skip mode %v",
			snapshot.ErrMalformedSnapshot, snap.SkipMode)
	}

	return quarters, nil
}
