package mining

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/logsieve/logsieve/internal/logging"
)

// request is one unit of work for the miner actor. Either message is set
// (mine a template, answer on reply) or inspect is set (run a function with
// exclusive tree access, close done when finished).
type request struct {
	message string
	reply   chan Result

	inspect func(*Tree)
	done    chan struct{}
}

// Miner serializes all parse-tree access through a single goroutine.
// Ingestion handlers run concurrently but every message passes this
// turnstile: the tree's cross-leaf LRU state cannot be mutated in parallel,
// and sharding the tree would defeat template consolidation.
//
// Backpressure is blocking: when the request queue is full, Process blocks
// until the actor catches up or the caller's context expires.
type Miner struct {
	tree     *Tree
	requests chan request
	logger   *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMiner creates a miner actor with the given tree parameters and input
// queue bound.
func NewMiner(cfg Config, queueSize int) (*Miner, error) {
	tree, err := NewTree(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build parse tree: %w", err)
	}
	return &Miner{
		tree:     tree,
		requests: make(chan request, queueSize),
		logger:   logging.GetLogger("mining.miner"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start launches the actor loop. Implements lifecycle.Component.
func (m *Miner) Start(ctx context.Context) error {
	go m.loop()
	m.logger.Info("Template miner started (queue size %d, max clusters %d)",
		cap(m.requests), m.tree.cfg.MaxClusters)
	return nil
}

// Stop drains the actor. In-flight requests are answered before exit.
func (m *Miner) Stop(ctx context.Context) error {
	close(m.stopCh)
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (m *Miner) Name() string {
	return "template-miner"
}

func (m *Miner) loop() {
	defer close(m.doneCh)
	for {
		select {
		case req := <-m.requests:
			m.handle(req)
		case <-m.stopCh:
			// Drain whatever is already queued so no caller hangs.
			for {
				select {
				case req := <-m.requests:
					m.handle(req)
				default:
					return
				}
			}
		}
	}
}

func (m *Miner) handle(req request) {
	if req.inspect != nil {
		defer close(req.done)
		req.inspect(m.tree)
		return
	}

	result := m.apply(req.message)
	req.reply <- result
}

// apply runs one message through the tree, degrading to the fallback
// pseudo-template if the tree panics on a pathological line.
func (m *Miner) apply(message string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Template mining failed, using fallback: %v", r)
			result = Fallback(message)
		}
	}()
	return m.tree.Add(message)
}

// Process submits a message to the actor and waits for its verdict.
// Returns a context error when the queue stays full past the caller's
// deadline or the wait for the reply is cancelled.
func (m *Miner) Process(ctx context.Context, message string) (Result, error) {
	req := request{message: message, reply: make(chan Result, 1)}

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("miner queue full: %w", ctx.Err())
	}

	select {
	case result := <-req.reply:
		return result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// WithTree runs fn with exclusive access to the parse tree, serialized with
// all mining work. Used by snapshot persistence.
func (m *Miner) WithTree(ctx context.Context, fn func(*Tree)) error {
	req := request{inspect: fn, done: make(chan struct{})}

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth reports the number of queued requests, for metrics.
func (m *Miner) QueueDepth() int {
	return len(m.requests)
}

// ClusterCount reports the number of live clusters, for metrics. Safe to
// call concurrently: the cluster cache carries its own lock.
func (m *Miner) ClusterCount() int {
	return m.tree.Len()
}

// Fallback derives a singleton pseudo-template for a message the miner could
// not place: "fallback_" plus the first 8 hex characters of the message's
// SHA-256. Fallback records are not indexed into the tree.
func Fallback(message string) Result {
	sum := sha256.Sum256([]byte(message))
	return Result{
		TemplateID:  "fallback_" + hex.EncodeToString(sum[:])[:8],
		Template:    message,
		ClusterSize: 1,
	}
}
