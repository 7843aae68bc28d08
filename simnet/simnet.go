package simnet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/mnlist"
	"github.com/piratecash/llmqd/versionbits"
)

const (
	// DefaultMasternodes is the size of the initial population.
	DefaultMasternodes = 400

	// DefaultChurnInterval is the number of blocks between two changes
	// of the population.
	DefaultChurnInterval = 12

	// DefaultBanRate is the share of valid masternodes banned at every
	// churn.
	DefaultBanRate = 0.02

	// DefaultRegistrations is the number of masternodes registered at
	// every churn.
	DefaultRegistrations = 1

	// DefaultBlockInterval is the timestamp spacing of generated blocks.
	DefaultBlockInterval = 150 * time.Second

	// masternodePort is the port every generated masternode listens on.
	masternodePort = 9999
)

// DefaultStartTime is the timestamp of the generated genesis block. It lies
// within the signalling window of every built-in deployment.
var DefaultStartTime = time.Unix(1_706_000_000, 0)

// ErrInvalidConfig is returned by New for an unusable configuration.
var ErrInvalidConfig = errors.New("invalid simnet config")

// Config describes a synthetic network.
type Config struct {
	// Seed makes every generated hash unique to the network.
	Seed string

	// Masternodes is the size of the population at genesis.
	Masternodes int

	// ChurnInterval is the number of blocks between population changes.
	// Zero keeps the genesis population forever.
	ChurnInterval int32

	// BanRate is the share of valid masternodes banned at every churn.
	// Masternodes banned at one churn are revived at the next.
	BanRate float64

	// Registrations is the number of masternodes registered at every
	// churn.
	Registrations int

	// BlockInterval spaces the block timestamps.
	BlockInterval time.Duration

	// StartTime is the genesis timestamp.
	StartTime time.Time

	// ActivateAtGenesis makes every deployment active from genesis
	// instead of going through version bits signalling.
	ActivateAtGenesis bool
}

// DefaultConfig returns the configuration of a small regtest-like network.
func DefaultConfig() Config {
	return Config{
		Seed:          "llmqd",
		Masternodes:   DefaultMasternodes,
		ChurnInterval: DefaultChurnInterval,
		BanRate:       DefaultBanRate,
		Registrations: DefaultRegistrations,
		BlockInterval: DefaultBlockInterval,
		StartTime:     DefaultStartTime,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Masternodes < 0:
		return fmt.Errorf("%w: negative population", ErrInvalidConfig)

	case c.ChurnInterval < 0:
		return fmt.Errorf("%w: negative churn interval",
			ErrInvalidConfig)

	case c.BanRate < 0 || c.BanRate > 1:
		return fmt.Errorf("%w: ban rate %v out of range",
			ErrInvalidConfig, c.BanRate)

	case c.Registrations < 0:
		return fmt.Errorf("%w: negative registrations",
			ErrInvalidConfig)

	case c.BlockInterval <= 0:
		return fmt.Errorf("%w: block interval must be positive",
			ErrInvalidConfig)
	}

	return nil
}

// Network is a deterministic synthetic chain with a masternode population.
// Two networks built from the same config and parameters are identical block
// for block. It provides the chain state the quorum engine reads: the block
// index, the masternode lists, the deployment states and the mined quorums.
type Network struct {
	cfg       Config
	netParams *llmq.NetParams

	chain       *blockindex.Chain
	lists       *mnlist.Manager
	deployments *versionbits.Checker
	version     int32

	// mu serializes chain extension.
	mu      sync.Mutex
	current *mnlist.List
	banned  []chainhash.Hash
	nextMN  uint32
}

// New builds the genesis block and population of a network.
func New(cfg Config, netParams *llmq.NetParams) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if netParams == nil {
		return nil, fmt.Errorf("%w: missing network parameters",
			ErrInvalidConfig)
	}

	params := cloneNetParams(netParams)
	if cfg.ActivateAtGenesis {
		for i := range params.VersionBits.Deployments {
			d := &params.VersionBits.Deployments[i]
			d.StartTime = versionbits.AlwaysActive
		}
	}

	var bits []uint8
	for _, d := range params.VersionBits.Deployments {
		bits = append(bits, d.BitNumber)
	}

	n := &Network{
		cfg:         cfg,
		netParams:   params,
		lists:       mnlist.NewManager(),
		deployments: versionbits.NewChecker(&params.VersionBits),
		version:     versionbits.SignalVersion(bits...),
	}

	genesisHash := n.blockHash(0)
	n.chain = blockindex.NewChain(
		genesisHash, n.version, cfg.StartTime.Unix(),
	)

	nodes := make([]mnlist.Masternode, cfg.Masternodes)
	for i := range nodes {
		nodes[i] = n.newMasternode(genesisHash)
	}

	genesisList, err := mnlist.NewList(genesisHash, 0, nodes)
	if err != nil {
		return nil, err
	}
	n.lists.AddList(genesisList)
	n.current = genesisList

	log.Infof("Created simnet %q on %s with %d masternodes",
		cfg.Seed, params.Name, cfg.Masternodes)

	return n, nil
}

// cloneNetParams copies the parameters so they can be changed without
// touching the shared built-in tables.
func cloneNetParams(p *llmq.NetParams) *llmq.NetParams {
	c := *p
	c.LLMQs = append([]llmq.Params(nil), p.LLMQs...)

	return &c
}

// seeded hashes the seed together with a tag and a counter.
func (n *Network) seeded(tag string, counter uint32) chainhash.Hash {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], counter)

	buf := make([]byte, 0, len(n.cfg.Seed)+len(tag)+len(idx))
	buf = append(buf, n.cfg.Seed...)
	buf = append(buf, tag...)
	buf = append(buf, idx[:]...)

	return chainhash.DoubleHashH(buf)
}

// blockHash returns the hash of the block at the given height.
func (n *Network) blockHash(height int32) chainhash.Hash {
	return n.seeded("block", uint32(height))
}

// ProTxHash returns the identifier of the i-th masternode ever registered on
// the network.
func (n *Network) ProTxHash(i int) chainhash.Hash {
	return n.seeded("protx", uint32(i))
}

// newMasternode registers the next masternode, confirmed at the given block.
func (n *Network) newMasternode(confirmedAt chainhash.Hash) mnlist.Masternode {
	i := n.nextMN
	n.nextMN++

	return mnlist.Masternode{
		ProTxHash:     n.ProTxHash(int(i)),
		ConfirmedHash: confirmedAt,
		Addr: fmt.Sprintf("10.%d.%d.%d:%d", (i>>16)&0xff,
			(i>>8)&0xff, i&0xff, masternodePort),
	}
}

// NetParams returns the network parameters the network runs with.
func (n *Network) NetParams() *llmq.NetParams {
	return n.netParams
}

// Chain returns the block index.
func (n *Network) Chain() *blockindex.Chain {
	return n.chain
}

// Lists returns the masternode list provider.
func (n *Network) Lists() *mnlist.Manager {
	return n.lists
}

// Deployments returns the version bits checker of the network.
func (n *Network) Deployments() *versionbits.Checker {
	return n.deployments
}

// Tip returns the current best block.
func (n *Network) Tip() *blockindex.Node {
	return n.chain.Tip()
}

// NextBlock extends the chain by one block.
func (n *Network) NextBlock() (*blockindex.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.nextBlock()
}

// ExtendTo extends the chain up to the given height and returns the block at
// that height.
func (n *Network) ExtendTo(height int32) (*blockindex.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for n.chain.Tip().Height() < height {
		if _, err := n.nextBlock(); err != nil {
			return nil, err
		}
	}

	return n.chain.NodeByHeight(height), nil
}

// nextBlock connects a new block and applies the population churn due at it.
//
// NOTE: The network mutex must be held.
func (n *Network) nextBlock() (*blockindex.Node, error) {
	tip := n.chain.Tip()
	height := tip.Height() + 1
	hash := n.blockHash(height)
	timestamp := n.cfg.StartTime.Add(
		time.Duration(height) * n.cfg.BlockInterval,
	).Unix()

	node, err := n.chain.AddBlock(tip.Hash(), hash, n.version, timestamp)
	if err != nil {
		return nil, err
	}

	if n.cfg.ChurnInterval > 0 && height%n.cfg.ChurnInterval == 0 {
		if err := n.churn(node); err != nil {
			return nil, err
		}
	}

	return node, nil
}

// churn revives the masternodes banned at the previous churn, bans a share of
// the valid ones and registers new ones. The banned masternodes are the top
// of a ranking keyed by the block hash.
func (n *Network) churn(node *blockindex.Node) error {
	var upserts []mnlist.Masternode
	for _, id := range n.banned {
		mn, ok := n.current.Get(id)
		if !ok {
			continue
		}

		revived := *mn
		revived.PoSeBanned = false
		upserts = append(upserts, revived)
	}

	numBans := int(float64(n.current.ValidCount()) * n.cfg.BanRate)
	toBan := n.current.CalculateQuorum(numBans, node.Hash())

	n.banned = n.banned[:0]
	for _, mn := range toBan {
		banned := *mn
		banned.PoSeBanned = true
		upserts = append(upserts, banned)
		n.banned = append(n.banned, mn.ProTxHash)
	}

	for i := 0; i < n.cfg.Registrations; i++ {
		upserts = append(upserts, n.newMasternode(node.Hash()))
	}

	list, err := n.current.With(node.Hash(), node.Height(), upserts, nil)
	if err != nil {
		return fmt.Errorf("unable to apply churn at height %d: %w",
			node.Height(), err)
	}
	n.lists.AddList(list)
	n.current = list

	log.Debugf("Churn at height %d: banned=%d registered=%d valid=%d "+
		"all=%d", node.Height(), len(toBan), n.cfg.Registrations,
		list.ValidCount(), list.AllCount())

	return nil
}
