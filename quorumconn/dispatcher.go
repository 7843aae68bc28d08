package quorumconn

import (
	"errors"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrDispatcherShuttingDown is returned when a request is made to a stopped
// dispatcher.
var ErrDispatcherShuttingDown = errors.New("dispatcher shutting down")

// DefaultQueueSize is the buffer size of the dispatcher queue before it
// spills over into its unbounded overflow list.
const DefaultQueueSize = 50

// request is one queued call into the wrapped connection manager.
type request struct {
	apply func(ConnectionManager)

	// done is closed once the request was applied. Only set for flush
	// barriers.
	done chan struct{}
}

// Dispatcher hands connection updates to a ConnectionManager without ever
// blocking the caller. Updates are applied in order on a single goroutine.
// Queries are answered by the wrapped manager directly.
type Dispatcher struct {
	started sync.Once
	stopped sync.Once

	target ConnectionManager
	queue  *fn.ConcurrentQueue[request]

	wg   sync.WaitGroup
	quit chan struct{}
}

// A compile time check to ensure Dispatcher satisfies the ConnectionManager
// interface.
var _ ConnectionManager = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher in front of target.
func NewDispatcher(target ConnectionManager, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Dispatcher{
		target: target,
		queue:  fn.NewConcurrentQueue[request](queueSize),
		quit:   make(chan struct{}),
	}
}

// Start launches the goroutine applying queued updates.
func (d *Dispatcher) Start() error {
	d.started.Do(func() {
		log.Debugf("Starting quorum connection dispatcher")

		d.queue.Start()

		d.wg.Add(1)
		go d.run()
	})

	return nil
}

// Stop shuts the dispatcher down. Updates still queued are dropped.
func (d *Dispatcher) Stop() error {
	d.stopped.Do(func() {
		log.Debugf("Stopping quorum connection dispatcher")

		close(d.quit)
		d.wg.Wait()
		d.queue.Stop()
	})

	return nil
}

// run applies queued requests until the dispatcher is stopped.
//
// NOTE: This MUST be run as a goroutine.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case req, ok := <-d.queue.ChanOut():
			if !ok {
				return
			}

			if req.apply != nil {
				req.apply(d.target)
			}
			if req.done != nil {
				close(req.done)
			}

		case <-d.quit:
			return
		}
	}
}

// enqueue hands a request to the queue. The queue buffers without bound, so
// this only waits for the queue goroutine to pick the request up.
func (d *Dispatcher) enqueue(req request) error {
	select {
	case d.queue.ChanIn() <- req:
		return nil

	case <-d.quit:
		return ErrDispatcherShuttingDown
	}
}

// Flush blocks until every request queued before it has been applied.
func (d *Dispatcher) Flush() error {
	done := make(chan struct{})
	if err := d.enqueue(request{done: done}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil

	case <-d.quit:
		return ErrDispatcherShuttingDown
	}
}

// SetMasternodeQuorumNodes queues the update. It is part of the
// ConnectionManager interface.
func (d *Dispatcher) SetMasternodeQuorumNodes(llmqType uint8,
	quorumHash chainhash.Hash, nodes fn.Set[chainhash.Hash]) {

	nodes = copySet(nodes)
	err := d.enqueue(request{apply: func(cm ConnectionManager) {
		cm.SetMasternodeQuorumNodes(llmqType, quorumHash, nodes)
	}})
	if err != nil {
		log.Warnf("Dropping quorum nodes of %v: %v", quorumHash, err)
	}
}

// SetMasternodeQuorumRelayMembers queues the update. It is part of the
// ConnectionManager interface.
func (d *Dispatcher) SetMasternodeQuorumRelayMembers(llmqType uint8,
	quorumHash chainhash.Hash, members fn.Set[chainhash.Hash]) {

	members = copySet(members)
	err := d.enqueue(request{apply: func(cm ConnectionManager) {
		cm.SetMasternodeQuorumRelayMembers(
			llmqType, quorumHash, members,
		)
	}})
	if err != nil {
		log.Warnf("Dropping relay members of %v: %v", quorumHash, err)
	}
}

// AddPendingProbeConnections queues the probes. It is part of the
// ConnectionManager interface.
func (d *Dispatcher) AddPendingProbeConnections(nodes fn.Set[chainhash.Hash]) {
	nodes = copySet(nodes)
	err := d.enqueue(request{apply: func(cm ConnectionManager) {
		cm.AddPendingProbeConnections(nodes)
	}})
	if err != nil {
		log.Warnf("Dropping %d probe connections: %v", len(nodes), err)
	}
}

// HasMasternodeQuorumNodes asks the wrapped manager directly. It is part of
// the ConnectionManager interface.
func (d *Dispatcher) HasMasternodeQuorumNodes(llmqType uint8,
	quorumHash chainhash.Hash) bool {

	return d.target.HasMasternodeQuorumNodes(llmqType, quorumHash)
}
