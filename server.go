package llmqd

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/quorumconn"
	"github.com/piratecash/llmqd/simnet"
	"github.com/piratecash/llmqd/spork"
)

// server follows the tip of the synthetic network and keeps the quorum
// connections of the local node up to date.
type server struct {
	started sync.Once
	stopped sync.Once

	cfg *Config

	network    *simnet.Network
	engine     *llmq.Engine
	connMan    *quorumconn.MemManager
	dispatcher *quorumconn.Dispatcher
	meta       *quorumconn.MetaStore

	// myProTxHash is the registration hash of the local masternode. It
	// is zero for a regular node.
	myProTxHash chainhash.Hash

	qvvecModes map[llmq.Type]llmq.QvvecSyncMode

	// blockTicker drives the generation of new blocks.
	blockTicker ticker.Ticker

	wg   sync.WaitGroup
	quit chan struct{}
}

// newServer builds the synthetic network and the quorum engine on top of it.
func newServer(cfg *Config, snapshots llmq.SnapshotStore,
	metrics llmq.Metrics, clk clock.Clock) (*server, error) {

	network, err := simnet.New(cfg.Simnet.NetworkConfig(), cfg.NetParams)
	if err != nil {
		return nil, err
	}

	sporks := spork.NewManager(clk)
	for id, value := range cfg.LLMQ.SporkValues() {
		sporks.SetSporkValue(id, value)
	}

	myProTxHash := cfg.LLMQ.MasternodeProTxHash().UnwrapOrFunc(
		func() chainhash.Hash {
			if cfg.Simnet.MasternodeIndex < 0 {
				return chainhash.Hash{}
			}

			return network.ProTxHash(cfg.Simnet.MasternodeIndex)
		},
	)

	connMan := quorumconn.NewMemManager()
	dispatcher := quorumconn.NewDispatcher(
		connMan, quorumconn.DefaultQueueSize,
	)
	meta := quorumconn.NewMetaStore(clk)

	engine, err := llmq.New(llmq.Config{
		NetParams:    network.NetParams(),
		Lists:        network.Lists(),
		Snapshots:    snapshots,
		Deployments:  network.Deployments(),
		Sporks:       sporks,
		Quorums:      network,
		ConnMan:      dispatcher,
		Meta:         meta,
		Clock:        clk,
		WatchQuorums: cfg.LLMQ.WatchQuorums,
		DataRecovery: cfg.LLMQ.DataRecovery,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, err
	}

	return &server{
		cfg:         cfg,
		network:     network,
		engine:      engine,
		connMan:     connMan,
		dispatcher:  dispatcher,
		meta:        meta,
		myProTxHash: myProTxHash,
		qvvecModes:  cfg.LLMQ.QvvecModes(),
		blockTicker: ticker.New(cfg.Simnet.BlockInterval),
		quit:        make(chan struct{}),
	}, nil
}

// Start generates the prefill blocks, catches up with them and starts
// following new blocks.
func (s *server) Start() error {
	var startErr error
	s.started.Do(func() {
		if err := s.dispatcher.Start(); err != nil {
			startErr = err
			return
		}

		tip, err := s.network.ExtendTo(s.cfg.Simnet.Prefill)
		if err != nil {
			startErr = err
			return
		}

		if s.myProTxHash != (chainhash.Hash{}) {
			ltndLog.Infof("Running as masternode %v", s.myProTxHash)
		}
		ltndLog.Infof("Simnet prefilled up to height %d", tip.Height())

		if err := s.handleBlock(tip); err != nil {
			startErr = err
			return
		}

		s.wg.Add(1)
		go s.blockHandler()
	})

	return startErr
}

// Stop halts block generation and waits for the pending connection updates.
func (s *server) Stop() error {
	var stopErr error
	s.stopped.Do(func() {
		close(s.quit)
		s.wg.Wait()

		stopErr = s.dispatcher.Stop()
	})

	return stopErr
}

// blockHandler mines a block on every tick and hands it to handleBlock.
//
// NOTE: This MUST be run as a goroutine.
func (s *server) blockHandler() {
	defer s.wg.Done()

	s.blockTicker.Resume()
	defer s.blockTicker.Stop()

	for {
		select {
		case <-s.blockTicker.Ticks():
			tip, err := s.network.NextBlock()
			if err != nil {
				ltndLog.Errorf("Unable to generate block: %v",
					err)
				continue
			}

			if err := s.handleBlock(tip); err != nil {
				ltndLog.Errorf("Unable to process block %v "+
					"(height=%d): %v", tip.Hash(),
					tip.Height(), err)
			}

		case <-s.quit:
			return
		}
	}
}

// handleBlock updates the quorum state for a new tip. Memberships of cycles
// starting at the tip are computed ahead, then the connections to every
// active quorum of every enabled type are refreshed.
func (s *server) handleBlock(tip *blockindex.Node) error {
	start := time.Now()

	if err := s.engine.PreComputeQuorumMembers(tip, false); err != nil {
		return err
	}

	params, err := s.engine.GetEnabledQuorumParams(tip)
	if err != nil {
		return err
	}

	for _, p := range params {
		if err := s.refreshQuorums(p, tip); err != nil {
			return fmt.Errorf("%v: %w", p.Type, err)
		}
	}

	// Wait for the connection manager to see every update of this block
	// before looking at the probes it was asked for.
	if err := s.dispatcher.Flush(); err != nil {
		return err
	}
	s.completeProbes()

	ltndLog.Debugf("Processed block %v (height=%d) in %v", tip.Hash(),
		tip.Height(), time.Since(start))

	return nil
}

// refreshQuorums ensures the connections to the active quorums of one type.
func (s *server) refreshQuorums(p llmq.Params, tip *blockindex.Node) error {
	isMasternode := s.myProTxHash != (chainhash.Hash{})

	var (
		connected  []*blockindex.Node
		typeMember bool
	)
	quorums := s.network.ScanQuorums(
		uint8(p.Type), tip, p.KeepOldConnections,
	)
	for _, hash := range quorums {
		base := s.network.Chain().LookupNode(hash)
		if base == nil {
			continue
		}

		ok, err := s.engine.EnsureQuorumConnections(
			p, base, s.myProTxHash,
		)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		connected = append(connected, base)

		if !isMasternode {
			continue
		}

		members, err := s.engine.GetAllQuorumMembers(
			p.Type, base, false,
		)
		if err != nil {
			return err
		}
		isMember := false
		for _, mn := range members {
			if mn.ProTxHash == s.myProTxHash {
				isMember = true
				break
			}
		}
		if !isMember {
			continue
		}
		typeMember = true

		err = s.engine.AddQuorumProbeConnections(p, base, s.myProTxHash)
		if err != nil {
			return err
		}
	}

	mode, ok := s.qvvecModes[p.Type]
	if !ok || !wantsQuorumVector(mode, typeMember) {
		return nil
	}
	for _, base := range connected {
		ltndLog.Debugf("Requesting verification vector of %v quorum "+
			"%v (mode=%v)", p.Type, base.Hash(), mode)
	}

	return nil
}

// wantsQuorumVector reports whether the verification vectors of a quorum type
// are synced under the given mode. isMember tells whether the node is a member
// of any active quorum of the type.
func wantsQuorumVector(mode llmq.QvvecSyncMode, isMember bool) bool {
	switch mode {
	case llmq.QvvecSyncAlways:
		return true

	case llmq.QvvecSyncOnlyIfTypeMember:
		return isMember

	default:
		return false
	}
}

// completeProbes marks every requested probe as answered. The synthetic
// network has no unreachable masternodes.
func (s *server) completeProbes() {
	for id := range s.connMan.PendingProbes() {
		s.meta.RecordOutboundSuccess(id)
	}
}
