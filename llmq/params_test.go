package llmq

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// TestAvailableParams checks that every known quorum type is consistent and
// round trips through its name.
func TestAvailableParams(t *testing.T) {
	t.Parallel()

	seen := make(map[Type]struct{})
	for _, p := range AvailableParams {
		require.NoError(t, p.Validate(), p.Name)

		_, dup := seen[p.Type]
		require.False(t, dup, "%v listed twice", p.Type)
		seen[p.Type] = struct{}{}

		typ, err := TypeFromName(p.Name)
		require.NoError(t, err)
		require.Equal(t, p.Type, typ)
		require.Equal(t, p.Name, p.Type.String())

		lookedUp, err := LookupParams(p.Type)
		require.NoError(t, err)
		require.Equal(t, p, lookedUp)

		if p.UseRotation {
			require.Zero(t, p.Size%4, "%v size", p.Type)
		}
	}

	require.Equal(t, "llmq_none", TypeNone.String())
	require.Equal(t, "llmq_unknown(77)", Type(77).String())

	_, err := TypeFromName("llmq_bogus")
	require.ErrorIs(t, err, ErrUnknownQuorumType)

	_, err = LookupParams(Type(77))
	require.ErrorIs(t, err, ErrUnknownQuorumType)
}

// TestParamsValidate checks the consistency rules of quorum parameters.
func TestParamsValidate(t *testing.T) {
	t.Parallel()

	base, err := LookupParams(TypeTestDIP0024)
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero size", func(p *Params) { p.Size = 0 }},
		{"min size above size", func(p *Params) { p.MinSize = 5 }},
		{"zero min size", func(p *Params) { p.MinSize = 0 }},
		{"threshold above size", func(p *Params) { p.Threshold = 5 }},
		{"zero interval", func(p *Params) { p.DKGInterval = 0 }},
		{"no active quorums", func(p *Params) {
			p.SigningActiveQuorumCount = 0
		}},
		{"no kept connections", func(p *Params) {
			p.KeepOldConnections = 0
		}},
		{"empty quarter", func(p *Params) {
			p.Size, p.MinSize, p.Threshold = 3, 2, 2
		}},
		{"indices exceed interval", func(p *Params) {
			p.SigningActiveQuorumCount = 25
		}},
	}
	for _, tc := range tests {
		p := base
		tc.modify(&p)
		require.ErrorIs(t, p.Validate(), ErrInvalidParams, tc.name)
	}

	// A plain quorum does not need quarters.
	plain := base
	plain.UseRotation = false
	plain.Size, plain.MinSize, plain.Threshold = 3, 2, 2
	require.NoError(t, plain.Validate())
}

// TestNetParamsTable checks the built-in networks and the role checks.
func TestNetParamsTable(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"mainnet", "testnet", "devnet", "regtest"} {
		n, err := ParamsForNetwork(name)
		require.NoError(t, err)
		require.Equal(t, name, n.Name)
		require.NoError(t, n.Validate())

		for _, role := range []Type{
			n.ChainLocks, n.InstantSend, n.DIP0024InstantSend,
			n.Platform, n.Mnhf,
		} {
			require.True(t, n.HasType(role), "%s: %v", name, role)
		}

		isParams, err := n.Params(n.DIP0024InstantSend)
		require.NoError(t, err)
		require.True(t, isParams.UseRotation)
	}

	_, err := ParamsForNetwork("moonnet")
	require.ErrorIs(t, err, ErrUnknownNetwork)

	dup := RegTestParams
	dup.LLMQs = append(netLLMQs(TypeTest), RegTestParams.LLMQs...)
	require.ErrorIs(t, dup.Validate(), ErrInvalidParams)

	orphanRole := RegTestParams
	orphanRole.Mnhf = Type400_85
	require.ErrorIs(t, orphanRole.Validate(), ErrInvalidParams)

	_, err = RegTestParams.Params(Type400_85)
	require.ErrorIs(t, err, ErrUnknownQuorumType)
}

// TestBuildModifier checks that the modifier binds both the type and the
// block.
func TestBuildModifier(t *testing.T) {
	t.Parallel()

	block := chainhash.HashH([]byte("block"))

	var raw [1 + chainhash.HashSize]byte
	raw[0] = byte(TypeTest)
	copy(raw[1:], block[:])
	require.Equal(
		t, chainhash.DoubleHashH(raw[:]), BuildModifier(TypeTest, block),
	)

	require.NotEqual(
		t, BuildModifier(TypeTest, block),
		BuildModifier(TypeTestDIP0024, block),
	)
	require.NotEqual(
		t, BuildModifier(TypeTest, block),
		BuildModifier(TypeTest, chainhash.HashH([]byte("other"))),
	)
}

// TestParseQvvecSyncEntries checks parsing of the quorum vector sync option.
func TestParseQvvecSyncEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []string
		want    map[Type]QvvecSyncMode
		errMsg  string
	}{
		{
			name: "empty",
			want: map[Type]QvvecSyncMode{},
		},
		{
			name: "both modes",
			entries: []string{
				"llmq_test:0", "llmq_test_dip0024:1",
			},
			want: map[Type]QvvecSyncMode{
				TypeTest:        QvvecSyncAlways,
				TypeTestDIP0024: QvvecSyncOnlyIfTypeMember,
			},
		},
		{
			name:    "missing mode",
			entries: []string{"llmq_test"},
			errMsg:  "invalid format",
		},
		{
			name:    "too many parts",
			entries: []string{"llmq_test:0:1"},
			errMsg:  "invalid format",
		},
		{
			name:    "type of another network",
			entries: []string{"llmq_400_60:0"},
			errMsg:  "invalid llmq type",
		},
		{
			name:    "duplicate",
			entries: []string{"llmq_test:0", "llmq_test:1"},
			errMsg:  "duplicated llmq type",
		},
		{
			name:    "mode out of range",
			entries: []string{"llmq_test:2"},
			errMsg:  "invalid mode",
		},
		{
			name:    "negative mode",
			entries: []string{"llmq_test:-1"},
			errMsg:  "invalid mode",
		},
		{
			name:    "mode overflowing int8",
			entries: []string{"llmq_test:256"},
			errMsg:  "invalid mode",
		},
		{
			name:    "mode not a number",
			entries: []string{"llmq_test:always"},
			errMsg:  "invalid mode",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			modes, err := ParseQvvecSyncEntries(
				tc.entries, &RegTestParams,
			)
			if tc.errMsg != "" {
				require.ErrorIs(t, err, ErrInvalidQvvecSync)
				require.ErrorContains(t, err, tc.errMsg)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, modes)
		})
	}

	require.Equal(t, "always", QvvecSyncAlways.String())
	require.Equal(t, "only_if_type_member",
		QvvecSyncOnlyIfTypeMember.String())
	require.Equal(t, "invalid", QvvecSyncInvalid.String())
}
