package mnlist

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Masternode is the read-only descriptor of one registered masternode as of a
// given block.
type Masternode struct {
	// ProTxHash is the hash of the registration transaction. It is the
	// identifier of the masternode everywhere in the quorum code.
	ProTxHash chainhash.Hash

	// ConfirmedHash is the hash of the block that confirmed the
	// registration. It is zero until the registration is confirmed.
	ConfirmedHash chainhash.Hash

	// Addr is the host:port the masternode accepts connections on.
	Addr string

	// PoSeBanned is set while the masternode is banned by the
	// proof-of-service scoring.
	PoSeBanned bool
}

// IsValid reports whether the masternode may take part in quorums.
func (m *Masternode) IsValid() bool {
	return !m.PoSeBanned
}

// IsConfirmed reports whether the registration has been confirmed.
func (m *Masternode) IsConfirmed() bool {
	return m.ConfirmedHash != chainhash.Hash{}
}

// ConfirmedHashWithProRegTxHash returns sha256d(ProTxHash || ConfirmedHash).
// It is fixed once the registration is confirmed and therefore cannot be
// ground by the owner of the masternode.
func (m *Masternode) ConfirmedHashWithProRegTxHash() chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], m.ProTxHash[:])
	copy(buf[chainhash.HashSize:], m.ConfirmedHash[:])

	return chainhash.DoubleHashH(buf[:])
}

// ProTxHashes extracts the identifiers of the given masternodes, keeping the
// order.
func ProTxHashes(nodes []*Masternode) []chainhash.Hash {
	hashes := make([]chainhash.Hash, len(nodes))
	for i, mn := range nodes {
		hashes[i] = mn.ProTxHash
	}

	return hashes
}
