package llmq

import (
	"errors"
	"fmt"
)

// Type identifies a long living masternode quorum type. The set of types is
// closed: every value has an entry in AvailableParams and a row in the
// enablement table of the engine.
type Type uint8

const (
	// TypeNone is the zero value used where no quorum type applies.
	TypeNone Type = 0xff

	// Type50_60 has 50 members and a 60% threshold, one per hour.
	Type50_60 Type = 1

	// Type400_60 has 400 members and a 60% threshold, one every 12 hours.
	Type400_60 Type = 2

	// Type400_85 has 400 members and an 85% threshold, one every 24
	// hours.
	Type400_85 Type = 3

	// Type100_67 has 100 members and a 67% threshold, one per hour.
	Type100_67 Type = 4

	// Type60_75 has 60 members and a 75% threshold. It rotates.
	Type60_75 Type = 5

	// TypeTest is a three member quorum used on regtest.
	TypeTest Type = 100

	// TypeDevnet is a twelve member quorum used on devnets.
	TypeDevnet Type = 101

	// TypeTestV17 is the legacy regtest platform quorum.
	TypeTestV17 Type = 102

	// TypeTestDIP0024 is the rotating regtest quorum.
	TypeTestDIP0024 Type = 103

	// TypeTestInstantSend is the regtest InstantSend quorum.
	TypeTestInstantSend Type = 104

	// TypeDevnetDIP0024 is the rotating devnet quorum.
	TypeDevnetDIP0024 Type = 105
)

// String returns the network name of the quorum type.
func (t Type) String() string {
	if t == TypeNone {
		return "llmq_none"
	}

	if p, ok := availableByType[t]; ok {
		return p.Name
	}

	return fmt.Sprintf("llmq_unknown(%d)", uint8(t))
}

var (
	// ErrUnknownQuorumType is returned for a quorum type that is not part
	// of the available or the network parameters.
	ErrUnknownQuorumType = errors.New("unknown quorum type")

	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid quorum parameters")
)

// Params are the immutable parameters of one quorum type.
type Params struct {
	Type Type
	Name string

	// UseRotation selects quarter rotation instead of drawing the whole
	// quorum from the ranking at once.
	UseRotation bool

	// Size is the number of members of a quorum.
	Size int

	// MinSize is the minimum number of valid members for a quorum to be
	// considered valid.
	MinSize int

	// Threshold is the number of signature shares needed to recover a
	// threshold signature.
	Threshold int

	// DKGInterval is the number of blocks between two DKG sessions, the
	// length of a rotation cycle for rotating types.
	DKGInterval int

	// DKGPhaseBlocks is the number of blocks per DKG phase.
	DKGPhaseBlocks int

	// DKGMiningWindowStart and DKGMiningWindowEnd bound the offsets into
	// the interval at which commitments may be mined.
	DKGMiningWindowStart int
	DKGMiningWindowEnd   int

	// DKGBadVotesThreshold is the number of complaints after which a
	// member is considered bad.
	DKGBadVotesThreshold int

	// SigningActiveQuorumCount is the number of quorums that may sign at
	// the same time. For rotating types it is also the number of quorum
	// indices per cycle.
	SigningActiveQuorumCount int

	// KeepOldConnections is the number of quorums to keep connections to
	// and the capacity of the membership caches.
	KeepOldConnections int

	// RecoveryMembers is the number of members asked for quorum data
	// during recovery.
	RecoveryMembers int
}

// QuarterSize returns the number of members drawn per cycle for a rotating
// quorum.
func (p *Params) QuarterSize() int {
	return p.Size / 4
}

// Validate checks the parameters for internal consistency.
func (p *Params) Validate() error {
	switch {
	case p.Size <= 0:
		return fmt.Errorf("%w: %v: size must be positive",
			ErrInvalidParams, p.Name)

	case p.MinSize <= 0 || p.MinSize > p.Size:
		return fmt.Errorf("%w: %v: min size %d out of range",
			ErrInvalidParams, p.Name, p.MinSize)

	case p.Threshold <= 0 || p.Threshold > p.Size:
		return fmt.Errorf("%w: %v: threshold %d out of range",
			ErrInvalidParams, p.Name, p.Threshold)

	case p.DKGInterval <= 0:
		return fmt.Errorf("%w: %v: dkg interval must be positive",
			ErrInvalidParams, p.Name)

	case p.SigningActiveQuorumCount <= 0:
		return fmt.Errorf("%w: %v: signing active quorum count must "+
			"be positive", ErrInvalidParams, p.Name)

	case p.KeepOldConnections < 1:
		return fmt.Errorf("%w: %v: keep old connections must be at "+
			"least one", ErrInvalidParams, p.Name)
	}

	if !p.UseRotation {
		return nil
	}

	switch {
	case p.QuarterSize() == 0:
		return fmt.Errorf("%w: %v: rotating quorum needs a size of "+
			"at least four", ErrInvalidParams, p.Name)

	case p.SigningActiveQuorumCount > p.DKGInterval:
		return fmt.Errorf("%w: %v: %d active quorums do not fit a "+
			"cycle of %d blocks", ErrInvalidParams, p.Name,
			p.SigningActiveQuorumCount, p.DKGInterval)
	}

	return nil
}

// AvailableParams holds the parameters of every known quorum type. Networks
// pick their quorums from this table.
var AvailableParams = []Params{
	{
		Type:                     TypeTest,
		Name:                     "llmq_test",
		Size:                     3,
		MinSize:                  2,
		Threshold:                2,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     2,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       3,
		RecoveryMembers:          3,
	},
	{
		Type:                     TypeTestInstantSend,
		Name:                     "llmq_test_instantsend",
		Size:                     3,
		MinSize:                  2,
		Threshold:                2,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     2,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       3,
		RecoveryMembers:          3,
	},
	{
		Type:                     TypeTestV17,
		Name:                     "llmq_test_v17",
		Size:                     3,
		MinSize:                  2,
		Threshold:                2,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     2,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       3,
		RecoveryMembers:          3,
	},
	{
		Type:                     TypeTestDIP0024,
		Name:                     "llmq_test_dip0024",
		UseRotation:              true,
		Size:                     4,
		MinSize:                  3,
		Threshold:                2,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     12,
		DKGMiningWindowEnd:       20,
		DKGBadVotesThreshold:     2,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       4,
		RecoveryMembers:          3,
	},
	{
		Type:                     TypeDevnet,
		Name:                     "llmq_devnet",
		Size:                     12,
		MinSize:                  7,
		Threshold:                6,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     7,
		SigningActiveQuorumCount: 4,
		KeepOldConnections:       5,
		RecoveryMembers:          6,
	},
	{
		Type:                     TypeDevnetDIP0024,
		Name:                     "llmq_devnet_dip0024",
		UseRotation:              true,
		Size:                     8,
		MinSize:                  6,
		Threshold:                4,
		DKGInterval:              48,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     12,
		DKGMiningWindowEnd:       20,
		DKGBadVotesThreshold:     7,
		SigningActiveQuorumCount: 2,
		KeepOldConnections:       4,
		RecoveryMembers:          4,
	},
	{
		Type:                     Type50_60,
		Name:                     "llmq_50_60",
		Size:                     50,
		MinSize:                  40,
		Threshold:                30,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     40,
		SigningActiveQuorumCount: 24,
		KeepOldConnections:       25,
		RecoveryMembers:          25,
	},
	{
		Type:                     Type60_75,
		Name:                     "llmq_60_75",
		UseRotation:              true,
		Size:                     60,
		MinSize:                  50,
		Threshold:                45,
		DKGInterval:              24 * 12,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     42,
		DKGMiningWindowEnd:       50,
		DKGBadVotesThreshold:     48,
		SigningActiveQuorumCount: 32,
		KeepOldConnections:       64,
		RecoveryMembers:          25,
	},
	{
		Type:                     Type400_60,
		Name:                     "llmq_400_60",
		Size:                     400,
		MinSize:                  300,
		Threshold:                240,
		DKGInterval:              24 * 12,
		DKGPhaseBlocks:           4,
		DKGMiningWindowStart:     20,
		DKGMiningWindowEnd:       28,
		DKGBadVotesThreshold:     300,
		SigningActiveQuorumCount: 4,
		KeepOldConnections:       5,
		RecoveryMembers:          100,
	},
	{
		Type:                     Type400_85,
		Name:                     "llmq_400_85",
		Size:                     400,
		MinSize:                  350,
		Threshold:                340,
		DKGInterval:              24 * 24,
		DKGPhaseBlocks:           4,
		DKGMiningWindowStart:     20,
		DKGMiningWindowEnd:       48,
		DKGBadVotesThreshold:     300,
		SigningActiveQuorumCount: 4,
		KeepOldConnections:       5,
		RecoveryMembers:          100,
	},
	{
		Type:                     Type100_67,
		Name:                     "llmq_100_67",
		Size:                     100,
		MinSize:                  80,
		Threshold:                67,
		DKGInterval:              24,
		DKGPhaseBlocks:           2,
		DKGMiningWindowStart:     10,
		DKGMiningWindowEnd:       18,
		DKGBadVotesThreshold:     80,
		SigningActiveQuorumCount: 24,
		KeepOldConnections:       25,
		RecoveryMembers:          50,
	},
}

var availableByType = func() map[Type]Params {
	m := make(map[Type]Params, len(AvailableParams))
	for _, p := range AvailableParams {
		m[p.Type] = p
	}

	return m
}()

// LookupParams returns the available parameters of a quorum type.
func LookupParams(t Type) (Params, error) {
	p, ok := availableByType[t]
	if !ok {
		return Params{}, fmt.Errorf("%w: %d", ErrUnknownQuorumType,
			uint8(t))
	}

	return p, nil
}

// TypeFromName returns the quorum type with the given network name.
func TypeFromName(name string) (Type, error) {
	for _, p := range AvailableParams {
		if p.Name == name {
			return p.Type, nil
		}
	}

	return TypeNone, fmt.Errorf("%w: %q", ErrUnknownQuorumType, name)
}
