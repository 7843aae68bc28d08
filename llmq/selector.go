package llmq

import (
	"fmt"

	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/mnlist"
)

// GetAllQuorumMembers returns the ordered members of the quorum of type t
// whose base block is base. A disabled type or an inactive quorum index
// yields an empty membership. With resetCache set, the cached memberships of
// the type are dropped first.
func (e *Engine) GetAllQuorumMembers(t Type, base *blockindex.Node,
	resetCache bool) ([]*mnlist.Masternode, error) {

	p, mc, err := e.params(t)
	if err != nil {
		return nil, err
	}

	enabled, err := e.IsQuorumTypeEnabled(t, base.Parent())
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}

	if resetCache {
		mc.reset()
	} else if members, ok := mc.lookupBlock(base.Hash()); ok {
		e.metrics.CacheHit(t, "block")
		return members, nil
	}
	e.metrics.CacheMiss(t, "block")

	rotated, err := e.IsQuorumRotationEnabled(p, base)
	if err != nil {
		return nil, err
	}

	var members []*mnlist.Masternode
	if rotated {
		members, err = e.rotatedQuorumMembers(&p, mc, base)
	} else {
		members, err = e.computeQuorumMembers(&p, base)
	}
	if err != nil {
		e.metrics.ComputeFailed(t)
		return nil, err
	}

	mc.storeBlock(base.Hash(), members)

	return members, nil
}

// computeQuorumMembers draws a whole quorum from the ranking at its base
// block.
func (e *Engine) computeQuorumMembers(p *Params,
	base *blockindex.Node) ([]*mnlist.Masternode, error) {

	list, err := e.cfg.Lists.ListForBlock(base)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch masternode list at "+
			"%v: %w", base.Hash(), err)
	}

	modifier := BuildModifier(p.Type, base.Hash())

	return list.CalculateQuorum(p.Size, modifier), nil
}

// rotatedQuorumMembers returns the members of one quorum index of a rotation
// cycle, building and caching the whole cycle on a miss.
func (e *Engine) rotatedQuorumMembers(p *Params, mc *memberCache,
	base *blockindex.Node) ([]*mnlist.Masternode, error) {

	quorumIdx := int(base.Height() % int32(p.DKGInterval))
	if quorumIdx >= p.SigningActiveQuorumCount {
		log.Debugf("No %v quorum at height %d: index %d is not "+
			"active", p.Type, base.Height(), quorumIdx)

		return nil, nil
	}

	cycleBase := base.Ancestor(base.Height() - int32(quorumIdx))
	members, ok := mc.lookupIndex(cycleBase.Hash(), quorumIdx)
	if ok {
		e.metrics.CacheHit(p.Type, "index")
		return members, nil
	}
	e.metrics.CacheMiss(p.Type, "index")

	quarters, err := e.buildCycle(p, mc, cycleBase)
	if err != nil {
		return nil, err
	}

	return quarters[quorumIdx], nil
}

// buildCycle computes every quorum of a rotation cycle and caches them by
// index. Concurrent calls for the same cycle share one build.
func (e *Engine) buildCycle(p *Params, mc *memberCache,
	cycleBase *blockindex.Node) ([][]*mnlist.Masternode, error) {

	key := fmt.Sprintf("%d:%v", p.Type, cycleBase.Hash())
	v, err, shared := e.cycles.Do(key, func() (any, error) {
		start := e.cfg.Clock.Now()

		quarters, err := e.ComputeQuorumMembersByQuarterRotation(
			p.Type, cycleBase,
		)
		if err != nil {
			return nil, err
		}

		e.metrics.CycleComputed(p.Type, e.cfg.Clock.Now().Sub(start))

		for i := range quarters {
			mc.storeIndex(cycleBase.Hash(), i, quarters[i])
		}

		return quarters, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Tracef("Shared %v cycle build at height %d", p.Type,
			cycleBase.Height())
	}

	return v.([][]*mnlist.Masternode), nil
}

// PreComputeQuorumMembers builds the memberships of every enabled rotating
// quorum type whose cycle starts at base, so later lookups hit the cache.
func (e *Engine) PreComputeQuorumMembers(base *blockindex.Node,
	resetCache bool) error {

	params, err := e.GetEnabledQuorumParams(base.Parent())
	if err != nil {
		return err
	}

	for _, p := range params {
		if base.Height()%int32(p.DKGInterval) != 0 {
			continue
		}

		rotated, err := e.IsQuorumRotationEnabled(p, base)
		if err != nil {
			return err
		}
		if !rotated {
			continue
		}

		_, err = e.GetAllQuorumMembers(p.Type, base, resetCache)
		if err != nil {
			return fmt.Errorf("unable to precompute %v members at "+
				"height %d: %w", p.Type, base.Height(), err)
		}
	}

	return nil
}
