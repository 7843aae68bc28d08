package mnlist

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Score pairs a masternode with its ranking score for one modifier.
type Score struct {
	// Value is sha256d(ConfirmedHashWithProRegTxHash || modifier). It is
	// compared as a little-endian 256-bit integer.
	Value chainhash.Hash

	// Node is the scored masternode.
	Node *Masternode
}

// CompareHashes compares two hashes as little-endian 256-bit unsigned
// integers, the way scores and hash values are ordered on the network. It
// returns -1, 0 or 1.
func CompareHashes(a, b *chainhash.Hash) int {
	for i := chainhash.HashSize - 1; i >= 0; i-- {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}

	return 0
}

// LessIdentifier orders identifiers by their serialized bytes. This is the
// ordering used for picking the smaller of two identifiers.
func LessIdentifier(a, b *chainhash.Hash) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// CalculateScores scores every valid, confirmed masternode in nodes against
// the modifier. Unconfirmed masternodes are left out so that nobody can grind
// a registration hash into a future quorum.
func CalculateScores(nodes []*Masternode, modifier chainhash.Hash) []Score {
	scores := make([]Score, 0, len(nodes))

	var buf [chainhash.HashSize * 2]byte
	copy(buf[chainhash.HashSize:], modifier[:])

	for _, mn := range nodes {
		if !mn.IsValid() || !mn.IsConfirmed() {
			continue
		}

		h := mn.ConfirmedHashWithProRegTxHash()
		copy(buf[:chainhash.HashSize], h[:])

		scores = append(scores, Score{
			Value: chainhash.DoubleHashH(buf[:]),
			Node:  mn,
		})
	}

	return scores
}

// CalculateQuorum is the deterministic ranking primitive. It returns up to
// maxSize masternodes ordered by descending score under the modifier. Equal
// scores are ordered by identifier.
func CalculateQuorum(nodes []*Masternode, maxSize int,
	modifier chainhash.Hash) []*Masternode {

	scores := CalculateScores(nodes, modifier)
	sort.Slice(scores, func(i, j int) bool {
		cmp := CompareHashes(&scores[i].Value, &scores[j].Value)
		if cmp != 0 {
			return cmp > 0
		}

		return LessIdentifier(
			&scores[i].Node.ProTxHash, &scores[j].Node.ProTxHash,
		)
	})

	if maxSize > len(scores) {
		maxSize = len(scores)
	}
	if maxSize < 0 {
		maxSize = 0
	}

	result := make([]*Masternode, maxSize)
	for i := range result {
		result[i] = scores[i].Node
	}

	return result
}
