package llmq

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BuildModifier returns the ranking modifier of a quorum type at a block:
// sha256d(type || blockHash).
func BuildModifier(t Type, blockHash chainhash.Hash) chainhash.Hash {
	var b [1 + chainhash.HashSize]byte
	b[0] = byte(t)
	copy(b[1:], blockHash[:])

	return chainhash.DoubleHashH(b[:])
}

// DeterministicOutboundConnection picks which of two masternodes initiates the
// connection between them. Taking the smaller identifier would favour
// numerically small hashes, so the one whose hash of
// (min, max, self) is smaller wins instead. The result does not depend on the
// argument order.
func DeterministicOutboundConnection(a, b chainhash.Hash) chainhash.Hash {
	lo, hi := a, b
	if bytes.Compare(b[:], a[:]) < 0 {
		lo, hi = b, a
	}

	pairHash := func(self chainhash.Hash) chainhash.Hash {
		var buf [3 * chainhash.HashSize]byte
		copy(buf[:], lo[:])
		copy(buf[chainhash.HashSize:], hi[:])
		copy(buf[2*chainhash.HashSize:], self[:])

		return chainhash.DoubleHashH(buf[:])
	}

	ha, hb := pairHash(a), pairHash(b)
	if bytes.Compare(ha[:], hb[:]) < 0 {
		return a
	}

	return b
}
