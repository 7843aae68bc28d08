package lncfg

import (
	"fmt"
	"time"

	"github.com/piratecash/llmqd/simnet"
)

const (
	// DefaultBlockInterval is how often the daemon mines a simulated
	// block.
	DefaultBlockInterval = 2 * time.Second
)

// Simnet configures the synthetic network the daemon follows.
type Simnet struct {
	Seed string `long:"seed" description:"Seed of every generated hash. Networks built from the same seed are identical."`

	Masternodes int `long:"masternodes" description:"Size of the masternode population at genesis."`

	ChurnInterval int32 `long:"churninterval" description:"Number of blocks between changes of the population. 0 keeps the genesis population."`

	BanRate float64 `long:"banrate" description:"Share of valid masternodes banned at every population change."`

	Registrations int `long:"registrations" description:"Number of masternodes registered at every population change."`

	BlockInterval time.Duration `long:"blockinterval" description:"How often a new block is generated."`

	ActivateAtGenesis bool `long:"activate" description:"Activate every deployment at genesis instead of going through version bits signalling."`

	MasternodeIndex int `long:"masternodeindex" description:"Run as the generated masternode with this index. -1 runs a regular node. Ignored when llmq.protxhash is set."`

	Prefill int32 `long:"prefill" description:"Number of blocks generated before the daemon starts following the tip."`
}

// DefaultSimnet returns the default synthetic network options.
func DefaultSimnet() *Simnet {
	return &Simnet{
		Seed:            "llmqd",
		Masternodes:     simnet.DefaultMasternodes,
		ChurnInterval:   simnet.DefaultChurnInterval,
		BanRate:         simnet.DefaultBanRate,
		Registrations:   simnet.DefaultRegistrations,
		BlockInterval:   DefaultBlockInterval,
		MasternodeIndex: -1,
	}
}

// NetworkConfig returns the simnet configuration of the synthetic network.
func (s *Simnet) NetworkConfig() simnet.Config {
	cfg := simnet.DefaultConfig()
	cfg.Seed = s.Seed
	cfg.Masternodes = s.Masternodes
	cfg.ChurnInterval = s.ChurnInterval
	cfg.BanRate = s.BanRate
	cfg.Registrations = s.Registrations
	cfg.ActivateAtGenesis = s.ActivateAtGenesis

	return cfg
}

// Validate checks the options.
func (s *Simnet) Validate() error {
	if s.BlockInterval <= 0 {
		return ErrNonPositive("simnet.blockinterval")
	}
	if s.MasternodeIndex >= s.Masternodes {
		return fmt.Errorf("simnet.masternodeindex %d exceeds the "+
			"population of %d", s.MasternodeIndex, s.Masternodes)
	}
	if s.Prefill < 0 {
		return fmt.Errorf("simnet.prefill must not be negative")
	}

	cfg := s.NetworkConfig()
	return cfg.Validate()
}

// Compile-time constraint to ensure Simnet implements the Validator interface.
var _ Validator = (*Simnet)(nil)
