package snapshot

import (
	"fmt"
	"strings"
)

// SkipMode describes how the skip list of a snapshot is to be interpreted
// when the quarter it describes is replayed.
type SkipMode int32

const (
	// NoSkipping means no candidate was skipped while the quarters were
	// drawn. The skip list is empty.
	NoSkipping SkipMode = 0

	// SkippingEntries means the skip list holds the delta encoded
	// candidate list positions of the candidates that were skipped.
	SkippingEntries SkipMode = 1

	// NoSkippingEntries marks a cycle for which nothing could be drawn
	// without skipping. Replaying it yields empty quarters.
	NoSkippingEntries SkipMode = 2

	// AllSkipped marks a cycle in which every candidate was skipped.
	// Replaying it yields empty quarters.
	AllSkipped SkipMode = 3
)

// String returns a human readable name of the skip mode.
func (m SkipMode) String() string {
	switch m {
	case NoSkipping:
		return "no_skipping"
	case SkippingEntries:
		return "skipping_entries"
	case NoSkippingEntries:
		return "no_skipping_entries"
	case AllSkipped:
		return "all_skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(m))
	}
}

// valid reports whether m is one of the defined skip modes.
func (m SkipMode) valid() bool {
	return m >= NoSkipping && m <= AllSkipped
}

// Snapshot is the compact record of one rotation cycle. It is written once
// when the cycle's new quarters are drawn and is never mutated afterwards, so
// a single instance may be shared between goroutines.
type Snapshot struct {
	// ActiveMembers holds one bit per masternode of the cycle's canonical
	// ranking. A set bit marks a member that already served in one of the
	// three previous quarters.
	ActiveMembers []bool

	// SkipMode tells how SkipList is to be read.
	SkipMode SkipMode

	// SkipList holds the candidate list positions skipped while drawing
	// the new quarters, in walk order. The first entry is absolute, every
	// following entry is the distance to the previous one.
	SkipList []int32
}

// Size returns the cost of the snapshot in the front cache. Every snapshot
// counts as one entry.
func (s *Snapshot) Size() (uint64, error) {
	return 1, nil
}

// ActiveCount returns the number of set bits in ActiveMembers.
func (s *Snapshot) ActiveCount() int {
	var n int
	for _, active := range s.ActiveMembers {
		if active {
			n++
		}
	}

	return n
}

// String renders the snapshot in a compact single line form suitable for
// logging.
func (s *Snapshot) String() string {
	var bits strings.Builder
	for _, active := range s.ActiveMembers {
		if active {
			bits.WriteByte('1')
		} else {
			bits.WriteByte('0')
		}
	}

	return fmt.Sprintf("snapshot(mode=%v, active=%s, skips=%v)",
		s.SkipMode, bits.String(), s.SkipList)
}

// NewSkipList delta encodes the candidate list positions passed over by a
// rotation walk, in walk order. The first position is stored as is, every
// following one as the difference to its predecessor. A walk that wraps
// around the candidate list yields a negative delta.
func NewSkipList(positions []int) []int32 {
	if len(positions) == 0 {
		return nil
	}

	skips := make([]int32, 0, len(positions))
	prev := 0
	for _, pos := range positions {
		skips = append(skips, int32(pos-prev))
		prev = pos
	}

	return skips
}

// DecodeSkipList turns a delta encoded skip list back into candidate list
// positions by a running sum. Every position must lie in [0, candidates).
func DecodeSkipList(skips []int32, candidates int) ([]int, error) {
	positions := make([]int, 0, len(skips))

	var sum int64
	for i, delta := range skips {
		sum += int64(delta)
		if sum < 0 || sum >= int64(candidates) {
			return nil, newError(ErrMalformedSkipList, fmt.Sprintf(
				"skip position %d at entry %d outside of %d "+
					"candidates", sum, i, candidates), nil)
		}

		positions = append(positions, int(sum))
	}

	return positions, nil
}
