package llmq

import (
	"math"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/versionbits"
	"github.com/stretchr/testify/require"
)

// TestIsQuorumTypeEnabled checks the deployment gating of every regtest
// quorum type.
func TestIsQuorumTypeEnabled(t *testing.T) {
	t.Parallel()

	rotatedQuorum := chainhash.HashH([]byte("rotated"))

	tests := []struct {
		name      string
		dip0020   int32
		dip0024   int32
		rotatedIS bool
		enabled   map[Type]bool
	}{
		{
			name:    "nothing active",
			dip0020: math.MaxInt32,
			dip0024: math.MaxInt32,
			enabled: map[Type]bool{
				TypeTest:            true,
				TypeTestInstantSend: true,
				TypeTestV17:         false,
				TypeTestDIP0024:     false,
			},
		},
		{
			name:    "dip0020 active",
			dip0024: math.MaxInt32,
			enabled: map[Type]bool{
				TypeTest:            true,
				TypeTestInstantSend: true,
				TypeTestV17:         true,
				TypeTestDIP0024:     false,
			},
		},
		{
			name:    "dip0024 active without rotated quorums",
			dip0020: math.MaxInt32,
			enabled: map[Type]bool{
				TypeTest:            true,
				TypeTestInstantSend: true,
				TypeTestV17:         false,
				TypeTestDIP0024:     true,
			},
		},
		{
			name:      "dip0024 active with rotated quorums",
			rotatedIS: true,
			enabled: map[Type]bool{
				TypeTest:            true,
				TypeTestInstantSend: false,
				TypeTestV17:         true,
				TypeTestDIP0024:     true,
			},
		},
		{
			name:      "rotated quorums before dip0024",
			dip0024:   math.MaxInt32,
			rotatedIS: true,
			enabled: map[Type]bool{
				TypeTest:            true,
				TypeTestInstantSend: true,
				TypeTestV17:         true,
				TypeTestDIP0024:     false,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(
				t, 10, nil, withNetParams(&RegTestParams),
			)
			h.deployments.set(
				versionbits.DeploymentDIP0020, tc.dip0020,
			)
			h.deployments.set(
				versionbits.DeploymentDIP0024, tc.dip0024,
			)
			if tc.rotatedIS {
				h.scanner.set(TypeTestDIP0024, rotatedQuorum)
			}

			for typ, want := range tc.enabled {
				got, err := h.engine.IsQuorumTypeEnabled(
					typ, h.node(10),
				)
				require.NoError(t, err)
				require.Equal(t, want, got, "%v", typ)
			}
		})
	}

	t.Run("shared instantsend type", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, 10, nil, withNetParams(&TestNetParams))
		h.scanner.set(Type60_75, rotatedQuorum)

		require.True(t, h.engine.IsInstantSendLLMQTypeShared())

		enabled, err := h.engine.IsQuorumTypeEnabled(
			Type50_60, h.node(10),
		)
		require.NoError(t, err)
		require.True(t, enabled)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, 0, nil)

		_, err := h.engine.IsQuorumTypeEnabled(Type(77), h.node(0))
		require.ErrorIs(t, err, ErrUnknownQuorumType)
	})
}

// TestIsQuorumRotationEnabled checks that rotation follows the activation
// state one block before the cycle starts.
func TestIsQuorumRotationEnabled(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, 100, nil, withNetParams(&RegTestParams))
	h.deployments.set(versionbits.DeploymentDIP0024, 50)

	rotating := h.params(TypeTestDIP0024)
	plain := h.params(TypeTest)

	tests := []struct {
		height int32
		want   bool
	}{
		{0, false},
		{23, false},
		{48, false},
		{50, false},
		{71, false},
		{72, true},
		{80, true},
		{96, true},
	}
	for _, tc := range tests {
		got, err := h.engine.IsQuorumRotationEnabled(
			rotating, h.node(tc.height),
		)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "height %d", tc.height)

		got, err = h.engine.IsQuorumRotationEnabled(
			plain, h.node(tc.height),
		)
		require.NoError(t, err)
		require.False(t, got)
	}

	// A deployment active from genesis covers the first cycle.
	h.deployments.set(versionbits.DeploymentDIP0024, 0)
	got, err := h.engine.IsQuorumRotationEnabled(rotating, h.node(5))
	require.NoError(t, err)
	require.True(t, got)
}

// TestGetInstantSendLLMQType checks the switch from the legacy to the rotated
// InstantSend quorums.
func TestGetInstantSendLLMQType(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, 10, nil, withNetParams(&RegTestParams))
	tip := h.node(10)

	h.deployments.set(versionbits.DeploymentDIP0024, math.MaxInt32)
	h.scanner.set(TypeTestDIP0024, chainhash.HashH([]byte("rotated")))

	isType, err := h.engine.GetInstantSendLLMQType(tip)
	require.NoError(t, err)
	require.Equal(t, TypeTestInstantSend, isType)

	h.deployments.set(versionbits.DeploymentDIP0024, 0)
	h.scanner.set(TypeTestDIP0024)

	isType, err = h.engine.GetInstantSendLLMQType(tip)
	require.NoError(t, err)
	require.Equal(t, TypeTestInstantSend, isType)

	h.scanner.set(TypeTestDIP0024, chainhash.HashH([]byte("rotated")))

	isType, err = h.engine.GetInstantSendLLMQType(tip)
	require.NoError(t, err)
	require.Equal(t, TypeTestDIP0024, isType)
}

// TestGetEnabledQuorumTypes checks that enabled types keep network order.
func TestGetEnabledQuorumTypes(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, 10, nil, withNetParams(&RegTestParams))
	tip := h.node(10)

	h.deployments.set(versionbits.DeploymentDIP0020, math.MaxInt32)
	h.deployments.set(versionbits.DeploymentDIP0024, math.MaxInt32)

	types, err := h.engine.GetEnabledQuorumTypes(tip)
	require.NoError(t, err)
	require.Equal(t, []Type{TypeTest, TypeTestInstantSend}, types)

	h.deployments.set(versionbits.DeploymentDIP0020, 0)
	h.deployments.set(versionbits.DeploymentDIP0024, 0)

	types, err = h.engine.GetEnabledQuorumTypes(tip)
	require.NoError(t, err)
	require.Equal(t, []Type{
		TypeTest, TypeTestInstantSend, TypeTestV17, TypeTestDIP0024,
	}, types)

	h.scanner.set(TypeTestDIP0024, chainhash.HashH([]byte("rotated")))

	params, err := h.engine.GetEnabledQuorumParams(tip)
	require.NoError(t, err)
	require.Len(t, params, 3)
	require.Equal(t, TypeTest, params[0].Type)
	require.Equal(t, TypeTestV17, params[1].Type)
	require.Equal(t, TypeTestDIP0024, params[2].Type)
}

// TestIsQuorumActive checks that only the newest quorums within the
// connection window are active.
func TestIsQuorumActive(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, 10, nil, withNetParams(&RegTestParams))
	tip := h.node(10)

	quorums := []chainhash.Hash{
		chainhash.HashH([]byte("q0")),
		chainhash.HashH([]byte("q1")),
		chainhash.HashH([]byte("q2")),
		chainhash.HashH([]byte("q3")),
	}
	h.scanner.set(TypeTest, quorums...)

	// llmq_test keeps connections to three quorums.
	for i, q := range quorums {
		active, err := h.engine.IsQuorumActive(TypeTest, tip, q)
		require.NoError(t, err)
		require.Equal(t, i < 3, active, "quorum %d", i)
	}

	active, err := h.engine.IsQuorumActive(
		TypeTest, tip, chainhash.HashH([]byte("other")),
	)
	require.NoError(t, err)
	require.False(t, active)

	_, err = h.engine.IsQuorumActive(Type400_60, tip, quorums[0])
	require.ErrorIs(t, err, ErrUnknownQuorumType)
}
