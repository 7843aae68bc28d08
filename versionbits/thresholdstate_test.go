package versionbits

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/stretchr/testify/require"
)

// buildChain creates a chain whose block at height h has the version returned
// by versionAt(h) and timestamp h*10.
func buildChain(t *testing.T, tip int32,
	versionAt func(int32) int32) *blockindex.Chain {

	t.Helper()

	hash := func(h int32) chainhash.Hash {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(h))
		return chainhash.HashH(b[:])
	}

	c := blockindex.NewChain(hash(0), versionAt(0), 0)
	for h := int32(1); h <= tip; h++ {
		_, err := c.AddBlock(hash(h-1), hash(h), versionAt(h), int64(h)*10)
		require.NoError(t, err)
	}

	return c
}

func testParams(d Deployment) *Params {
	p := &Params{
		RuleChangeActivationThreshold: 9,
		MinerConfirmationWindow:       10,
	}
	p.Deployments[DeploymentDIP0024] = d

	return p
}

// TestThreshold checks the falloff formula.
func TestThreshold(t *testing.T) {
	t.Parallel()

	p := &Params{
		RuleChangeActivationThreshold: 1916,
		MinerConfirmationWindow:       2016,
	}
	p.Deployments[DeploymentDIP0020] = Deployment{
		WindowSize:     4032,
		ThresholdStart: 3226,
		ThresholdMin:   2420,
		FalloffCoeff:   5,
	}
	p.Deployments[DeploymentDIP0024] = Deployment{
		WindowSize:     100,
		ThresholdStart: 80,
	}

	tests := []struct {
		attempt int64
		want    int64
	}{
		{0, 3226},
		{1, 3226 - 4032/100/5},
		{5, 3226 - 25*4032/100/5},
		{10, 2420},
		{50, 2420},
	}
	for _, test := range tests {
		require.Equal(
			t, test.want,
			p.Threshold(DeploymentDIP0020, test.attempt),
			"attempt %d", test.attempt,
		)
	}

	// Without a minimum or falloff the start threshold is used.
	require.EqualValues(t, 80, p.Threshold(DeploymentDIP0024, 20))

	// Without a start threshold the chain default is used.
	p.Deployments[DeploymentDIP0024].ThresholdStart = 0
	require.EqualValues(t, 1916, p.Threshold(DeploymentDIP0024, 0))
}

// TestStateFullSignalling locks in after the first counted period.
func TestStateFullSignalling(t *testing.T) {
	t.Parallel()

	c := buildChain(t, 40, func(int32) int32 {
		return SignalVersion(7)
	})
	checker := NewChecker(testParams(Deployment{
		BitNumber:      7,
		StartTime:      0,
		ExpireTime:     NoTimeout,
		ThresholdStart: 8,
		ThresholdMin:   5,
		FalloffCoeff:   1,
	}))

	state := func(prevHeight int32) ThresholdState {
		var prev *blockindex.Node
		if prevHeight >= 0 {
			prev = c.NodeByHeight(prevHeight)
		}
		s, err := checker.State(DeploymentDIP0024, prev)
		require.NoError(t, err)
		return s
	}

	require.Equal(t, ThresholdDefined, state(-1))
	require.Equal(t, ThresholdDefined, state(8))
	require.Equal(t, ThresholdStarted, state(9))
	require.Equal(t, ThresholdStarted, state(18))
	require.Equal(t, ThresholdLockedIn, state(19))
	require.Equal(t, ThresholdLockedIn, state(28))
	require.Equal(t, ThresholdActive, state(29))
	require.Equal(t, ThresholdActive, state(40))

	active, err := checker.IsActive(DeploymentDIP0024, c.NodeByHeight(29))
	require.NoError(t, err)
	require.True(t, active)
}

// TestStateFalloff checks that a partially signalling chain locks in once the
// threshold has fallen far enough.
func TestStateFalloff(t *testing.T) {
	t.Parallel()

	// Seven out of every ten blocks signal.
	c := buildChain(t, 70, func(h int32) int32 {
		if h%10 < 7 {
			return SignalVersion(7)
		}
		return SignalVersion()
	})
	checker := NewChecker(testParams(Deployment{
		BitNumber:      7,
		StartTime:      0,
		ExpireTime:     NoTimeout,
		ThresholdStart: 8,
		ThresholdMin:   5,
		FalloffCoeff:   1,
	}))

	// Thresholds per attempt are 8, 8, 8, 8, 7: the fifth counted period
	// (blocks 50..59) locks in.
	for prev, want := range map[int32]ThresholdState{
		49: ThresholdStarted,
		58: ThresholdStarted,
		59: ThresholdLockedIn,
		68: ThresholdLockedIn,
		69: ThresholdActive,
	} {
		s, err := checker.State(DeploymentDIP0024, c.NodeByHeight(prev))
		require.NoError(t, err)
		require.Equal(t, want, s, "prev height %d", prev)
	}
}

// TestStateSpecialCases covers always active, expiry, bad signalling bits and
// unknown deployments.
func TestStateSpecialCases(t *testing.T) {
	t.Parallel()

	c := buildChain(t, 30, func(int32) int32 {
		return SignalVersion(7)
	})

	always := NewChecker(testParams(Deployment{StartTime: AlwaysActive}))
	active, err := always.IsActive(DeploymentDIP0024, nil)
	require.NoError(t, err)
	require.True(t, active)

	// The deployment expires before it could lock in.
	expired := NewChecker(testParams(Deployment{
		BitNumber:      7,
		StartTime:      0,
		ExpireTime:     100,
		ThresholdStart: 8,
	}))
	s, err := expired.State(DeploymentDIP0024, c.NodeByHeight(29))
	require.NoError(t, err)
	require.Equal(t, ThresholdFailed, s)

	// Blocks signal on a different bit.
	other := NewChecker(testParams(Deployment{
		BitNumber:      3,
		StartTime:      0,
		ExpireTime:     NoTimeout,
		ThresholdStart: 8,
	}))
	s, err = other.State(DeploymentDIP0024, c.NodeByHeight(29))
	require.NoError(t, err)
	require.Equal(t, ThresholdStarted, s)

	_, err = other.State(DefinedDeployments, nil)
	require.Error(t, err)
}

// TestSignals checks the top bits requirement.
func TestSignals(t *testing.T) {
	t.Parallel()

	require.True(t, signals(SignalVersion(6, 7), 6))
	require.True(t, signals(SignalVersion(6, 7), 7))
	require.False(t, signals(SignalVersion(6), 7))
	require.False(t, signals(1<<7, 7))
}
