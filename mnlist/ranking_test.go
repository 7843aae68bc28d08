package mnlist

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// makeNodes creates n confirmed masternodes with deterministic identifiers.
func makeNodes(n int) []Masternode {
	nodes := make([]Masternode, n)
	for i := range nodes {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(i))
		nodes[i] = Masternode{
			ProTxHash:     chainhash.HashH(b[:]),
			ConfirmedHash: chainhash.DoubleHashH(b[:]),
			Addr:          "127.0.0.1:9999",
		}
	}

	return nodes
}

// TestCompareHashes checks the little-endian integer ordering.
func TestCompareHashes(t *testing.T) {
	t.Parallel()

	var a, b chainhash.Hash
	a[0] = 0xff
	b[31] = 0x01

	// b has a set high byte, so it is the larger number even though a
	// is larger bytewise.
	require.Equal(t, -1, CompareHashes(&a, &b))
	require.Equal(t, 1, CompareHashes(&b, &a))
	require.Equal(t, 0, CompareHashes(&a, &a))
	require.False(t, LessIdentifier(&a, &b))
}

// TestCalculateQuorum checks ordering, truncation and filtering.
func TestCalculateQuorum(t *testing.T) {
	t.Parallel()

	nodes := makeNodes(30)
	nodes[3].PoSeBanned = true
	nodes[7].ConfirmedHash = chainhash.Hash{}

	l, err := NewList(chainhash.Hash{1}, 10, nodes)
	require.NoError(t, err)
	require.Equal(t, 30, l.AllCount())
	require.Equal(t, 29, l.ValidCount())

	modifier := chainhash.DoubleHashH([]byte("modifier"))
	full := l.CalculateQuorum(100, modifier)
	require.Len(t, full, 28)

	scores := make(map[chainhash.Hash]chainhash.Hash)
	for _, s := range l.CalculateScores(modifier) {
		scores[s.Node.ProTxHash] = s.Value
	}
	for i := 1; i < len(full); i++ {
		prev := scores[full[i-1].ProTxHash]
		cur := scores[full[i].ProTxHash]
		require.Equal(t, 1, CompareHashes(&prev, &cur))
	}
	for _, mn := range full {
		require.NotEqual(t, nodes[3].ProTxHash, mn.ProTxHash)
		require.NotEqual(t, nodes[7].ProTxHash, mn.ProTxHash)
	}

	top := l.CalculateQuorum(10, modifier)
	require.Equal(t, ProTxHashes(full[:10]), ProTxHashes(top))

	require.Empty(t, l.CalculateQuorum(0, modifier))
}

// TestCalculateQuorumDeterministic checks that input order never affects the
// ranking.
func TestCalculateQuorumDeterministic(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 60).Draw(t, "n")
		nodes := makeNodes(n)
		seed := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "modifier")

		var modifier chainhash.Hash
		copy(modifier[:], seed)

		ptrs := make([]*Masternode, n)
		for i := range nodes {
			ptrs[i] = &nodes[i]
		}
		shuffled := rapid.Permutation(ptrs).Draw(t, "shuffled")

		a := ProTxHashes(CalculateQuorum(ptrs, n, modifier))
		b := ProTxHashes(CalculateQuorum(shuffled, n, modifier))
		require.Equal(t, a, b)
	})
}

// TestNewListDuplicate makes sure a list cannot hold an identifier twice.
func TestNewListDuplicate(t *testing.T) {
	t.Parallel()

	nodes := makeNodes(3)
	nodes = append(nodes, nodes[1])

	_, err := NewList(chainhash.Hash{}, 0, nodes)
	require.ErrorIs(t, err, ErrDuplicateMasternode)
}

// TestListWith checks list derivation with upserts and removals.
func TestListWith(t *testing.T) {
	t.Parallel()

	nodes := makeNodes(5)
	l, err := NewList(chainhash.Hash{1}, 1, nodes)
	require.NoError(t, err)

	banned := nodes[2]
	banned.PoSeBanned = true
	extra := makeNodes(6)[5]

	next, err := l.With(
		chainhash.Hash{2}, 2, []Masternode{banned, extra},
		[]chainhash.Hash{nodes[0].ProTxHash},
	)
	require.NoError(t, err)

	require.Equal(t, 5, next.AllCount())
	require.Equal(t, 4, next.ValidCount())
	require.False(t, next.Has(nodes[0].ProTxHash))
	require.True(t, next.Has(extra.ProTxHash))
	require.True(t, next.IsBanned(banned.ProTxHash))

	// The original list is untouched.
	require.Equal(t, 5, l.ValidCount())
	require.False(t, l.IsBanned(banned.ProTxHash))
}

// TestManagerListForBlock checks the closest-ancestor lookup.
func TestManagerListForBlock(t *testing.T) {
	t.Parallel()

	chain := blockindex.NewChain(chainhash.Hash{0}, 1, 0)
	var parent chainhash.Hash
	for h := 1; h <= 10; h++ {
		hash := chainhash.Hash{byte(h)}
		_, err := chain.AddBlock(parent, hash, 1, int64(h))
		require.NoError(t, err)
		parent = hash
	}

	m := NewManager()

	l, err := m.ListForBlock(chain.NodeByHeight(3))
	require.NoError(t, err)
	require.Zero(t, l.AllCount())

	at5, err := NewList(chainhash.Hash{5}, 5, makeNodes(4))
	require.NoError(t, err)
	m.AddList(at5)

	l, err = m.ListForBlock(chain.NodeByHeight(5))
	require.NoError(t, err)
	require.Same(t, at5, l)

	l, err = m.ListForBlock(chain.NodeByHeight(9))
	require.NoError(t, err)
	require.Equal(t, 4, l.AllCount())
	require.EqualValues(t, 9, l.Height())
	require.Equal(t, chainhash.Hash{9}, l.BlockHash())

	m.RemoveList(chainhash.Hash{5})
	l, err = m.ListForBlock(chain.NodeByHeight(9))
	require.NoError(t, err)
	require.Zero(t, l.AllCount())
}
