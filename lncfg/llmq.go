package lncfg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/spork"
)

// LLMQ holds the quorum engine options.
type LLMQ struct {
	WatchQuorums bool `long:"watchquorums" description:"Connect to quorums this node is not a member of, to observe their traffic."`

	DataRecovery bool `long:"data-recovery" description:"Request missing quorum data from other members."`

	QvvecSync []string `long:"qvvec-sync" description:"Sync quorum verification vectors of a quorum type, as <llmq name>:<mode> where mode 0 always syncs and 1 syncs only while a member of a quorum of the type. Can be specified multiple times."`

	ProTxHash string `long:"protxhash" description:"The registration hash of the masternode this node runs. Empty for a regular node."`

	Sporks []string `long:"spork" description:"Set a spork value, as <spork name>=<value>. Can be specified multiple times."`

	// qvvecModes holds the parsed QvvecSync entries after Parse.
	qvvecModes map[llmq.Type]llmq.QvvecSyncMode

	// proTxHash holds the parsed ProTxHash after Parse.
	proTxHash fn.Option[chainhash.Hash]

	// sporkValues holds the parsed Sporks after Parse.
	sporkValues map[spork.ID]int64
}

// DefaultLLMQ returns the default quorum engine options.
func DefaultLLMQ() *LLMQ {
	return &LLMQ{
		DataRecovery: true,
	}
}

// Parse resolves the options against the network parameters. It must be
// called before QvvecModes and MasternodeProTxHash.
func (l *LLMQ) Parse(net *llmq.NetParams) error {
	modes, err := llmq.ParseQvvecSyncEntries(l.QvvecSync, net)
	if err != nil {
		return err
	}
	l.qvvecModes = modes

	l.sporkValues, err = parseSporks(l.Sporks)
	if err != nil {
		return err
	}

	l.proTxHash = fn.None[chainhash.Hash]()
	if l.ProTxHash == "" {
		return nil
	}

	hash, err := chainhash.NewHashFromStr(l.ProTxHash)
	if err != nil {
		return fmt.Errorf("invalid llmq.protxhash: %w", err)
	}
	if *hash == (chainhash.Hash{}) {
		return fmt.Errorf("invalid llmq.protxhash: zero hash")
	}
	l.proTxHash = fn.Some(*hash)

	return nil
}

// QvvecModes returns the parsed quorum verification vector sync modes.
func (l *LLMQ) QvvecModes() map[llmq.Type]llmq.QvvecSyncMode {
	return l.qvvecModes
}

// MasternodeProTxHash returns the registration hash of the local masternode,
// if the node runs one.
func (l *LLMQ) MasternodeProTxHash() fn.Option[chainhash.Hash] {
	return l.proTxHash
}

// SporkValues returns the parsed spork overrides.
func (l *LLMQ) SporkValues() map[spork.ID]int64 {
	return l.sporkValues
}

// parseSporks parses <spork name>=<value> entries.
func parseSporks(entries []string) (map[spork.ID]int64, error) {
	values := make(map[spork.ID]int64, len(entries))
	for _, entry := range entries {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid llmq.spork %q: expected "+
				"<name>=<value>", entry)
		}

		id, ok := spork.IDFromName(name)
		if !ok {
			return nil, fmt.Errorf("invalid llmq.spork %q: unknown "+
				"spork", entry)
		}
		if _, dup := values[id]; dup {
			return nil, fmt.Errorf("invalid llmq.spork %q: duplicated "+
				"spork", entry)
		}

		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid llmq.spork %q: %w", entry,
				err)
		}
		values[id] = value
	}

	return values, nil
}
