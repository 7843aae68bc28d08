package llmq

import (
	"errors"
	"fmt"

	"github.com/piratecash/llmqd/versionbits"
)

// ErrUnknownNetwork is returned when network parameters are requested for a
// network name that is not known.
var ErrUnknownNetwork = errors.New("unknown network")

// NetParams are the quorum related consensus parameters of one network.
type NetParams struct {
	// Name is the name of the network.
	Name string

	// LLMQs lists the quorum types active on the network, in the order
	// they are iterated.
	LLMQs []Params

	// ChainLocks is the quorum type signing chain locks.
	ChainLocks Type

	// InstantSend is the quorum type signing InstantSend locks before
	// DIP0024 quorums exist.
	InstantSend Type

	// DIP0024InstantSend is the rotating quorum type signing InstantSend
	// locks once DIP0024 is active.
	DIP0024InstantSend Type

	// Platform is the quorum type used by the platform chain.
	Platform Type

	// Mnhf is the quorum type signing hard fork signals.
	Mnhf Type

	// VersionBits holds the DIP0020 and DIP0024 deployments.
	VersionBits versionbits.Params
}

// Params returns the parameters of a quorum type on this network.
func (n *NetParams) Params(t Type) (Params, error) {
	for _, p := range n.LLMQs {
		if p.Type == t {
			return p, nil
		}
	}

	return Params{}, fmt.Errorf("%w: %v on %s", ErrUnknownQuorumType, t,
		n.Name)
}

// HasType reports whether the network runs quorums of the given type.
func (n *NetParams) HasType(t Type) bool {
	_, err := n.Params(t)
	return err == nil
}

// Validate checks every quorum of the network and the role assignments.
func (n *NetParams) Validate() error {
	seen := make(map[Type]struct{}, len(n.LLMQs))
	for i := range n.LLMQs {
		p := &n.LLMQs[i]
		if _, ok := seen[p.Type]; ok {
			return fmt.Errorf("%w: %v listed twice on %s",
				ErrInvalidParams, p.Type, n.Name)
		}
		seen[p.Type] = struct{}{}

		if err := p.Validate(); err != nil {
			return err
		}
	}

	roles := []Type{
		n.ChainLocks, n.InstantSend, n.DIP0024InstantSend, n.Platform,
		n.Mnhf,
	}
	for _, t := range roles {
		if _, ok := seen[t]; !ok {
			return fmt.Errorf("%w: role assigned to %v which is not "+
				"a quorum of %s", ErrInvalidParams, t, n.Name)
		}
	}

	return nil
}

// netLLMQs copies the available parameters of the given types.
func netLLMQs(types ...Type) []Params {
	params := make([]Params, 0, len(types))
	for _, t := range types {
		p, err := LookupParams(t)
		if err != nil {
			panic(err)
		}
		params = append(params, p)
	}

	return params
}

// fallingDeployment returns a deployment whose threshold falls from 80% to
// 60% of the window over ten periods.
func fallingDeployment(bit uint8, start, expire int64,
	window uint32) versionbits.Deployment {

	return versionbits.Deployment{
		BitNumber:      bit,
		StartTime:      start,
		ExpireTime:     expire,
		WindowSize:     window,
		ThresholdStart: window * 80 / 100,
		ThresholdMin:   window * 60 / 100,
		FalloffCoeff:   5,
	}
}

// MainNetParams are the quorum parameters of the main network.
var MainNetParams = NetParams{
	Name: "mainnet",
	LLMQs: netLLMQs(
		Type50_60, Type60_75, Type400_60, Type400_85, Type100_67,
	),
	ChainLocks:         Type400_60,
	InstantSend:        Type50_60,
	DIP0024InstantSend: Type60_75,
	Platform:           Type100_67,
	Mnhf:               Type400_85,
	VersionBits: versionbits.Params{
		RuleChangeActivationThreshold: 1916,
		MinerConfirmationWindow:       2016,
		Deployments: [versionbits.DefinedDeployments]versionbits.Deployment{
			versionbits.DeploymentDIP0020: fallingDeployment(
				6, 1705104000, 1736726400, 4032,
			),
			versionbits.DeploymentDIP0024: fallingDeployment(
				7, 1705276800, 1736899200, 4032,
			),
		},
	},
}

// TestNetParams are the quorum parameters of the test network.
var TestNetParams = NetParams{
	Name: "testnet",
	LLMQs: netLLMQs(
		Type50_60, Type60_75, Type400_60, Type400_85, Type100_67,
	),
	ChainLocks:         Type50_60,
	InstantSend:        Type50_60,
	DIP0024InstantSend: Type60_75,
	Platform:           Type100_67,
	Mnhf:               Type50_60,
	VersionBits: versionbits.Params{
		RuleChangeActivationThreshold: 1512,
		MinerConfirmationWindow:       2016,
		Deployments: [versionbits.DefinedDeployments]versionbits.Deployment{
			versionbits.DeploymentDIP0020: fallingDeployment(
				6, 1702845060, 1735689600, 100,
			),
			versionbits.DeploymentDIP0024: fallingDeployment(
				7, 1702845060, 999999999999, 100,
			),
		},
	},
}

// DevNetParams are the quorum parameters of development networks.
var DevNetParams = NetParams{
	Name: "devnet",
	LLMQs: netLLMQs(
		Type50_60, Type60_75, Type400_60, Type400_85, Type100_67,
		TypeDevnet, TypeDevnetDIP0024,
	),
	ChainLocks:         Type50_60,
	InstantSend:        Type50_60,
	DIP0024InstantSend: Type60_75,
	Platform:           Type100_67,
	Mnhf:               Type50_60,
	VersionBits: versionbits.Params{
		RuleChangeActivationThreshold: 1512,
		MinerConfirmationWindow:       2016,
		Deployments: [versionbits.DefinedDeployments]versionbits.Deployment{
			versionbits.DeploymentDIP0020: fallingDeployment(
				6, 1704067200, 1735689600, 100,
			),
			versionbits.DeploymentDIP0024: fallingDeployment(
				7, 1625097600, 999999999999, 100,
			),
		},
	},
}

// RegTestParams are the quorum parameters of the regression test network.
var RegTestParams = NetParams{
	Name: "regtest",
	LLMQs: netLLMQs(
		TypeTest, TypeTestInstantSend, TypeTestV17, TypeTestDIP0024,
	),
	ChainLocks:         TypeTest,
	InstantSend:        TypeTestInstantSend,
	DIP0024InstantSend: TypeTestDIP0024,
	Platform:           TypeTest,
	Mnhf:               TypeTest,
	VersionBits: versionbits.Params{
		RuleChangeActivationThreshold: 108,
		MinerConfirmationWindow:       144,
		Deployments: [versionbits.DefinedDeployments]versionbits.Deployment{
			versionbits.DeploymentDIP0020: fallingDeployment(
				6, 0, 999999999999, 100,
			),
			versionbits.DeploymentDIP0024: fallingDeployment(
				7, 0, 999999999999, 300,
			),
		},
	},
}

// ParamsForNetwork returns the parameters of a network by name.
func ParamsForNetwork(name string) (*NetParams, error) {
	switch name {
	case MainNetParams.Name:
		return &MainNetParams, nil
	case TestNetParams.Name:
		return &TestNetParams, nil
	case DevNetParams.Name:
		return &DevNetParams, nil
	case RegTestParams.Name:
		return &RegTestParams, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}
