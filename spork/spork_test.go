package spork

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	t.Parallel()

	testClock := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	m := NewManager(testClock)

	require.Equal(t, ValueOff, m.SporkValue(SporkQuorumAllConnected))
	require.False(t, m.IsSporkActive(SporkQuorumAllConnected))

	m.SetSporkValue(SporkQuorumAllConnected, 0)
	require.Zero(t, m.SporkValue(SporkQuorumAllConnected))
	require.True(t, m.IsSporkActive(SporkQuorumAllConnected))

	m.SetSporkValue(SporkQuorumPoSe, 1_800_000_000)
	require.False(t, m.IsSporkActive(SporkQuorumPoSe))

	testClock.SetTime(time.Unix(1_800_000_001, 0))
	require.True(t, m.IsSporkActive(SporkQuorumPoSe))
}

func TestNames(t *testing.T) {
	t.Parallel()

	require.Equal(
		t, "SPORK_21_QUORUM_ALL_CONNECTED",
		SporkQuorumAllConnected.String(),
	)
	require.Equal(t, "SPORK_42", ID(42).String())

	id, ok := IDFromName("SPORK_23_QUORUM_POSE")
	require.True(t, ok)
	require.Equal(t, SporkQuorumPoSe, id)

	_, ok = IDFromName("SPORK_0")
	require.False(t, ok)
}
