package blockindex

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testHash derives a unique block hash from a height and a branch tag.
func testHash(height int32, branch byte) chainhash.Hash {
	var b [5]byte
	binary.LittleEndian.PutUint32(b[:], uint32(height))
	b[4] = branch

	return chainhash.DoubleHashH(b[:])
}

// buildLinear creates a chain with blocks 0..tipHeight spaced 150s apart.
func buildLinear(t *testing.T, tipHeight int32) *Chain {
	t.Helper()

	c := NewChain(testHash(0, 0), 1, 1_000_000)
	for h := int32(1); h <= tipHeight; h++ {
		_, err := c.AddBlock(
			testHash(h-1, 0), testHash(h, 0), 1,
			1_000_000+int64(h)*150,
		)
		require.NoError(t, err)
	}

	return c
}

// TestAncestor checks that skip-pointer traversal agrees with a walk over
// parent pointers.
func TestAncestor(t *testing.T) {
	t.Parallel()

	c := buildLinear(t, 1000)
	tip := c.Tip()
	require.EqualValues(t, 1000, tip.Height())

	rapid.Check(t, func(t *rapid.T) {
		from := rapid.Int32Range(0, 1000).Draw(t, "from")
		to := rapid.Int32Range(-5, 1005).Draw(t, "to")

		start := tip.Ancestor(from)
		got := start.Ancestor(to)

		if to < 0 || to > from {
			if got != nil {
				t.Fatalf("expected nil ancestor for %d from %d",
					to, from)
			}
			return
		}

		walk := start
		for walk.Height() > to {
			walk = walk.Parent()
		}
		if got != walk {
			t.Fatalf("ancestor mismatch at %d from %d", to, from)
		}
		if got.Hash() != testHash(to, 0) {
			t.Fatalf("wrong hash at height %d", to)
		}
	})
}

// TestMedianTimePast checks the median over the trailing eleven blocks.
func TestMedianTimePast(t *testing.T) {
	t.Parallel()

	c := buildLinear(t, 20)

	// Timestamps are strictly increasing, so the median of blocks 10..20
	// is the timestamp of block 15.
	require.Equal(
		t, int64(1_000_000+15*150), c.NodeByHeight(20).MedianTimePast(),
	)

	// The genesis block only has itself.
	require.Equal(t, int64(1_000_000), c.Genesis().MedianTimePast())
}

// TestChainTipSelection makes sure the highest branch becomes the tip and
// that bad inserts are rejected.
func TestChainTipSelection(t *testing.T) {
	t.Parallel()

	c := buildLinear(t, 5)

	// A competing branch of equal height does not replace the tip.
	_, err := c.AddBlock(testHash(4, 0), testHash(5, 1), 1, 0)
	require.NoError(t, err)
	require.Equal(t, testHash(5, 0), c.Tip().Hash())

	// Extending it makes it the best chain.
	_, err = c.AddBlock(testHash(5, 1), testHash(6, 1), 1, 0)
	require.NoError(t, err)
	require.Equal(t, testHash(6, 1), c.Tip().Hash())
	require.Equal(t, testHash(5, 1), c.NodeByHeight(5).Hash())

	_, err = c.AddBlock(testHash(6, 1), testHash(6, 1), 1, 0)
	require.ErrorIs(t, err, ErrDuplicateBlock)

	_, err = c.AddBlock(testHash(99, 9), testHash(100, 9), 1, 0)
	require.ErrorIs(t, err, ErrUnknownParent)

	require.Nil(t, c.LookupNode(testHash(42, 0)))
	require.NotNil(t, c.LookupNode(testHash(3, 0)))
}
