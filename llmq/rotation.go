package llmq

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/lnutils"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/snapshot"
)

// workBlockOffset is the distance between a cycle base block and the block
// whose masternode list and hash drive the cycle. It keeps the inputs out of
// reach of the miner of the cycle base block.
const workBlockOffset = 8

// previousCycles is the number of earlier cycles whose quarters are carried
// into a rotated quorum.
const previousCycles = 3

// previousQuarters holds, per earlier cycle, the quarter every quorum index
// drew in that cycle. Index 0 is the cycle before the current one.
type previousQuarters [previousCycles][][]*mnlist.Masternode

// rotationWalker walks the combined candidate list of a cycle. The cursor is
// shared by all quorum indices of the cycle, so each index continues where
// the previous one stopped.
type rotationWalker struct {
	combined []*mnlist.Masternode

	// cursor is the position in combined, wrapping around. Skip lists
	// record these positions.
	cursor int
}

func newRotationWalker(combined []*mnlist.Masternode) *rotationWalker {
	return &rotationWalker{combined: combined}
}

// next returns the candidate under the cursor together with its position and
// advances.
func (w *rotationWalker) next() (*mnlist.Masternode, int) {
	mn, pos := w.combined[w.cursor], w.cursor

	w.cursor++
	if w.cursor == len(w.combined) {
		w.cursor = 0
	}

	return mn, pos
}

// fill draws one quarter. Candidates for which skip returns true are passed
// over. The walk stops at quarterSize members or after one lap of the
// candidate list, so no candidate is visited twice for the same quarter.
func (w *rotationWalker) fill(quarterSize int,
	skip func(mn *mnlist.Masternode, pos int) bool) []*mnlist.Masternode {

	quarter := make([]*mnlist.Masternode, 0, quarterSize)
	for steps := 0; len(quarter) < quarterSize &&
		steps < len(w.combined); steps++ {

		mn, pos := w.next()
		if skip(mn, pos) {
			continue
		}

		quarter = append(quarter, mn)
	}

	return quarter
}

// usedSet collects masternodes in insertion order, adding each at most once.
type usedSet struct {
	ids   fn.Set[chainhash.Hash]
	nodes []*mnlist.Masternode
}

func newUsedSet() *usedSet {
	return &usedSet{ids: fn.NewSet[chainhash.Hash]()}
}

// add inserts the masternode unless it is already present.
func (u *usedSet) add(mn *mnlist.Masternode) {
	if u.ids.Contains(mn.ProTxHash) {
		return
	}

	u.ids.Add(mn.ProTxHash)
	u.nodes = append(u.nodes, mn)
}

// contains reports whether the masternode was added.
func (u *usedSet) contains(id chainhash.Hash) bool {
	return u.ids.Contains(id)
}

// emptyQuarters returns n empty quarters.
func emptyQuarters(n int) [][]*mnlist.Masternode {
	return make([][]*mnlist.Masternode, n)
}

// workBlock returns the block whose list and hash drive the cycle starting at
// cycleBase.
func workBlock(cycleBase *blockindex.Node) *blockindex.Node {
	return cycleBase.Ancestor(max(0, cycleBase.Height()-workBlockOffset))
}

// ComputeQuorumMembersByQuarterRotation builds every quorum of the rotation
// cycle starting at cycleBase and stores the snapshot of the cycle. Each
// quorum consists of the quarters its index drew in the three previous
// cycles followed by a newly drawn quarter.
func (e *Engine) ComputeQuorumMembersByQuarterRotation(t Type,
	cycleBase *blockindex.Node) ([][]*mnlist.Masternode, error) {

	p, err := e.cfg.NetParams.Params(t)
	if err != nil {
		return nil, err
	}
	if !p.UseRotation {
		return nil, fmt.Errorf("%w: %v does not rotate",
			ErrInvalidParams, t)
	}

	nQuorums := p.SigningActiveQuorumCount
	quarterSize := p.QuarterSize()

	work := workBlock(cycleBase)
	modifier := BuildModifier(t, work.Hash())

	list, err := e.cfg.Lists.ListForBlock(work)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch masternode list at "+
			"%v: %w", work.Hash(), err)
	}

	if list.ValidCount() < quarterSize {
		log.Infof("Not enough masternodes for %v at height %d: "+
			"valid=%d, quarter=%d", t, cycleBase.Height(),
			list.ValidCount(), quarterSize)

		return emptyQuarters(nQuorums), nil
	}

	prev, err := e.previousQuarters(&p, cycleBase)
	if err != nil {
		return nil, err
	}

	newQuarters, snap := buildNewQuarters(&p, list, modifier, prev)

	err = e.cfg.Snapshots.StoreSnapshot(uint8(t), cycleBase.Hash(), snap)
	if err != nil {
		return nil, fmt.Errorf("unable to store %v snapshot at "+
			"height %d: %w", t, cycleBase.Height(), err)
	}

	quorums := make([][]*mnlist.Masternode, nQuorums)
	for i := range quorums {
		members := make([]*mnlist.Masternode, 0, p.Size)
		for c := previousCycles - 1; c >= 0; c-- {
			members = append(members, prev[c][i]...)
		}
		quorums[i] = append(members, newQuarters[i]...)
	}

	log.Debugf("Computed %v cycle at height %d: %v", t,
		cycleBase.Height(), snap)
	log.Tracef("Quarter composition of %v cycle at height %d:\n%v", t,
		cycleBase.Height(), lnutils.NewLogClosure(func() string {
			return describeQuarters(prev, newQuarters)
		}))

	return quorums, nil
}

// previousQuarters replays the snapshots of the three cycles before
// cycleBase. The first missing snapshot leaves its cycle and every older one
// empty.
func (e *Engine) previousQuarters(p *Params,
	cycleBase *blockindex.Node) (previousQuarters, error) {

	var prev previousQuarters
	for c := range prev {
		prev[c] = emptyQuarters(p.SigningActiveQuorumCount)
	}

	for c := 0; c < previousCycles; c++ {
		height := cycleBase.Height() - int32((c+1)*p.DKGInterval)
		if height < 0 {
			break
		}
		block := cycleBase.Ancestor(height)

		snapOpt, err := e.cfg.Snapshots.FetchSnapshot(
			uint8(p.Type), block.Hash(),
		)
		if err != nil {
			return prev, fmt.Errorf("unable to fetch %v "+
				"snapshot at height %d: %w", p.Type, height,
				err)
		}
		if snapOpt.IsNone() {
			log.Debugf("No %v snapshot at height %d, treating it "+
				"and older cycles as empty", p.Type, height)
			break
		}

		quarters, err := e.GetQuorumQuarterMembersBySnapshot(
			*p, block, snapOpt.UnwrapOr(nil),
		)
		if err != nil {
			return prev, fmt.Errorf("unable to replay %v snapshot "+
				"at height %d: %w", p.Type, height, err)
		}
		prev[c] = quarters
	}

	return prev, nil
}

// buildNewQuarters draws the new quarter of every quorum index and returns it
// together with the snapshot that lets others replay the draw.
func buildNewQuarters(p *Params, list *mnlist.List, modifier chainhash.Hash,
	prev previousQuarters) ([][]*mnlist.Masternode, *snapshot.Snapshot) {

	nQuorums := p.SigningActiveQuorumCount

	// Collect the members every index used in the previous cycles, as
	// they are described at the work block. Banned and deregistered
	// masternodes drop out.
	usedAtH := newUsedSet()
	usedAtIdx := make([]*usedSet, nQuorums)
	for i := range usedAtIdx {
		usedAtIdx[i] = newUsedSet()
		for c := range prev {
			for _, old := range prev[c][i] {
				mn, ok := list.Get(old.ProTxHash)
				if !ok || !mn.IsValid() {
					continue
				}

				usedAtH.add(mn)
				usedAtIdx[i].add(mn)
			}
		}
	}

	var notUsed []*mnlist.Masternode
	list.ForEach(true, func(mn *mnlist.Masternode) {
		if !usedAtH.contains(mn.ProTxHash) {
			notUsed = append(notUsed, mn)
		}
	})

	combined := append(
		mnlist.CalculateQuorum(notUsed, len(notUsed), modifier),
		mnlist.CalculateQuorum(
			usedAtH.nodes, len(usedAtH.nodes), modifier,
		)...,
	)

	walker := newRotationWalker(combined)
	newQuarters := emptyQuarters(nQuorums)

	var skipped []int
	for i := range newQuarters {
		used := usedAtIdx[i]
		newQuarters[i] = walker.fill(
			p.QuarterSize(),
			func(mn *mnlist.Masternode, pos int) bool {
				if !used.contains(mn.ProTxHash) {
					return false
				}

				skipped = append(skipped, pos)
				return true
			},
		)
	}

	return newQuarters, buildSnapshot(list, modifier, usedAtH, skipped)
}

// buildSnapshot records which members of the full ranking were used in the
// previous cycles and where the walk skipped.
func buildSnapshot(list *mnlist.List, modifier chainhash.Hash,
	usedAtH *usedSet, skipped []int) *snapshot.Snapshot {

	ranking := list.CalculateQuorum(list.AllCount(), modifier)

	active := make([]bool, list.AllCount())
	for k, mn := range ranking {
		active[k] = usedAtH.contains(mn.ProTxHash)
	}

	mode := snapshot.NoSkipping
	if len(skipped) > 0 {
		mode = snapshot.SkippingEntries
	}

	return &snapshot.Snapshot{
		ActiveMembers: active,
		SkipMode:      mode,
		SkipList:      snapshot.NewSkipList(skipped),
	}
}

// describeQuarters renders the quarters of a cycle, one line per quorum
// index.
func describeQuarters(prev previousQuarters,
	newQuarters [][]*mnlist.Masternode) string {

	var b strings.Builder
	for i := range newQuarters {
		fmt.Fprintf(&b, "  index %d: H-3C=%s H-2C=%s H-C=%s "+
			"new=%s\n", i,
			lnutils.ShortHashes(mnlist.ProTxHashes(prev[2][i])),
			lnutils.ShortHashes(mnlist.ProTxHashes(prev[1][i])),
			lnutils.ShortHashes(mnlist.ProTxHashes(prev[0][i])),
			lnutils.ShortHashes(mnlist.ProTxHashes(newQuarters[i])))
	}

	return b.String()
}
