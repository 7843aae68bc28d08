package versionbits

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
)

// ThresholdState define the various threshold states used when voting on
// consensus changes.
type ThresholdState byte

// These constants are used to identify specific threshold states.
const (
	// ThresholdDefined is the first state for each deployment and is the
	// state for the genesis block has by definition for all deployments.
	ThresholdDefined ThresholdState = iota

	// ThresholdStarted is the state for a deployment once its start time
	// has been reached.
	ThresholdStarted

	// ThresholdLockedIn is the state for a deployment during the retarget
	// period which is after the ThresholdStarted state period and the
	// number of blocks that have voted for the deployment equal or exceed
	// the required number of votes for the deployment.
	ThresholdLockedIn

	// ThresholdActive is the state for a deployment for all blocks after a
	// retarget period in which the deployment was in the ThresholdLockedIn
	// state.
	ThresholdActive

	// ThresholdFailed is the state for a deployment once its expiration
	// time has been reached and it did not reach the ThresholdLockedIn
	// state.
	ThresholdFailed
)

var thresholdStateStrings = map[ThresholdState]string{
	ThresholdDefined:  "ThresholdDefined",
	ThresholdStarted:  "ThresholdStarted",
	ThresholdLockedIn: "ThresholdLockedIn",
	ThresholdActive:   "ThresholdActive",
	ThresholdFailed:   "ThresholdFailed",
}

// String returns the ThresholdState as a human-readable name.
func (t ThresholdState) String() string {
	if s := thresholdStateStrings[t]; s != "" {
		return s
	}

	return fmt.Sprintf("Unknown ThresholdState (%d)", int(t))
}

// stateEntry is a cached state together with the height of the first block
// of the started phase, which the falloff threshold depends on.
type stateEntry struct {
	state       ThresholdState
	startHeight int32
}

// Checker evaluates deployment states over a block index. States are cached
// per deployment by the hash of the last block of each period, so a cached
// value stays correct across reorgs.
type Checker struct {
	params *Params

	mu     sync.Mutex
	caches [DefinedDeployments]map[chainhash.Hash]stateEntry
}

// NewChecker creates a version bits checker for the given chain parameters.
func NewChecker(params *Params) *Checker {
	c := &Checker{params: params}
	for i := range c.caches {
		c.caches[i] = make(map[chainhash.Hash]stateEntry)
	}

	return c
}

// Params returns the chain parameters of the checker.
func (c *Checker) Params() *Params {
	return c.params
}

// State returns the deployment state for the block following prev. A nil prev
// asks for the state of the genesis block.
func (c *Checker) State(id DeploymentID,
	prev *blockindex.Node) (ThresholdState, error) {

	if id >= DefinedDeployments {
		return ThresholdFailed, fmt.Errorf("unknown deployment %d", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stateUnsafe(id, prev), nil
}

// IsActive reports whether the deployment is active for the block following
// prev.
func (c *Checker) IsActive(id DeploymentID,
	prev *blockindex.Node) (bool, error) {

	state, err := c.State(id, prev)
	if err != nil {
		return false, err
	}

	return state == ThresholdActive, nil
}

// stateUnsafe runs the threshold state machine.
//
// NOTE: the checker mutex must be held.
func (c *Checker) stateUnsafe(id DeploymentID,
	prev *blockindex.Node) ThresholdState {

	d := &c.params.Deployments[id]
	if d.StartTime == AlwaysActive {
		return ThresholdActive
	}

	cache := c.caches[id]
	period := c.params.period(id)

	// A block's state is always the same as that of the first of its
	// period, so it is computed based on a prev whose height equals a
	// multiple of the period minus one.
	if prev != nil {
		prev = prev.Ancestor(prev.Height() - (prev.Height()+1)%period)
	}

	// Walk backwards in steps of one period until a known state is found.
	var (
		toCompute []*blockindex.Node
		entry     stateEntry
	)
	for {
		if prev == nil {
			// The genesis block is by definition defined.
			entry = stateEntry{state: ThresholdDefined}
			break
		}

		if cached, ok := cache[prev.Hash()]; ok {
			entry = cached
			break
		}

		// Every earlier block is before the start time as well.
		if prev.MedianTimePast() < d.StartTime {
			entry = stateEntry{state: ThresholdDefined}
			cache[prev.Hash()] = entry
			break
		}

		toCompute = append(toCompute, prev)
		prev = prev.Ancestor(prev.Height() - period)
	}

	// Now walk forward and compute the state of descendants.
	for i := len(toCompute) - 1; i >= 0; i-- {
		prev = toCompute[i]
		next := entry

		switch entry.state {
		case ThresholdDefined:
			mtp := prev.MedianTimePast()
			switch {
			case mtp >= d.ExpireTime:
				next.state = ThresholdFailed

			case mtp >= d.StartTime:
				next.state = ThresholdStarted
				next.startHeight = prev.Height() + 1
			}

		case ThresholdStarted:
			if prev.MedianTimePast() >= d.ExpireTime {
				next.state = ThresholdFailed
				break
			}

			var count int64
			countNode := prev
			for j := int32(0); j < period && countNode != nil; j++ {
				if signals(countNode.Version(), d.BitNumber) {
					count++
				}
				countNode = countNode.Parent()
			}

			attempt := int64(prev.Height()+1-entry.startHeight)/
				int64(period) - 1
			if attempt < 0 {
				attempt = 0
			}

			if count >= c.params.Threshold(id, attempt) {
				next.state = ThresholdLockedIn
			}

		case ThresholdLockedIn:
			next.state = ThresholdActive

		case ThresholdActive, ThresholdFailed:
		}

		if next.state != entry.state {
			log.Debugf("Deployment %v moves to %v at height %d", id,
				next.state, prev.Height()+1)
		}

		cache[prev.Hash()] = next
		entry = next
	}

	return entry.state
}
