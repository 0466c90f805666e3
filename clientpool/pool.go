// Package clientpool implements the conductor's self-healing
// sequencer client pool (spec.md §4.5): a bounded set of live
// CometBFT WebSocket clients that replaces dead connections on
// acquisition rather than leaking them, grounded in the original
// Rust implementation's `deadpool::managed::Pool<ClientProvider>`
// (see original_source/.../conductor.rs).
package clientpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	cometbfthttp "github.com/cometbft/cometbft/rpc/client/http"
	"golang.org/x/time/rate"

	"github.com/MuhtasimTanmoy/conductor/retry"
)

// SequencerClient is the subset of the CometBFT RPC client the
// conductor needs from a sequencer connection.
type SequencerClient interface {
	// IsRunning reports whether the underlying WebSocket connection is
	// still alive.
	IsRunning() bool
	// Stop tears down the underlying WebSocket connection.
	Stop() error
}

// Factory produces a new, started SequencerClient for addr.
type Factory func(ctx context.Context, addr string) (SequencerClient, error)

// CometBFTFactory is the default Factory, backed by the real CometBFT
// HTTP/WebSocket RPC client.
func CometBFTFactory(ctx context.Context, addr string) (SequencerClient, error) {
	client, err := cometbfthttp.New(addr, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("failed constructing cometbft client for %s: %w", addr, err)
	}
	if err := client.Start(); err != nil {
		return nil, fmt.Errorf("failed starting cometbft client for %s: %w", addr, err)
	}
	return client, nil
}

// Pool is a bounded set of live sequencer clients. A zero Pool is not
// usable; construct with New.
type Pool struct {
	addr    string
	factory Factory

	mu      sync.Mutex
	clients []SequencerClient
	closed  bool
	maxSize int

	limiter *rate.Limiter
}

// New constructs a Pool that lazily dials addr via factory, holding at
// most maxSize live clients.
func New(addr string, factory Factory, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = 4
	}
	return &Pool{
		addr:    addr,
		factory: factory,
		maxSize: maxSize,
		// Bound how fast callers may hammer the factory with fresh
		// dials when the sequencer is unreachable.
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 4),
	}
}

// Get returns a live client, reusing an idle one from the pool when
// available and otherwise dialing a new one with bounded retries. The
// returned client is removed from the pool's idle set; call Put to
// return it (implicit recycling per spec.md §4.5).
func (p *Pool) Get(ctx context.Context) (SequencerClient, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("client pool is closed")
	}
	for len(p.clients) > 0 {
		c := p.clients[len(p.clients)-1]
		p.clients = p.clients[:len(p.clients)-1]
		if c.IsRunning() {
			p.mu.Unlock()
			return c, nil
		}
		// The idle client died while pooled: discard it rather than
		// hand back a dead connection.
		_ = c.Stop()
	}
	p.mu.Unlock()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var client SequencerClient
	err := retry.Do(ctx, retry.NamespaceBootstrap(), nil, func(ctx context.Context) error {
		c, err := p.factory(ctx, p.addr)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sequencer client: %w", err)
	}
	return client, nil
}

// Put returns c to the pool for reuse, unless it is unhealthy or the
// pool has been closed or is at capacity, in which case it is
// discarded (spec.md §4.5: "a client whose underlying WebSocket has
// closed is discarded on return rather than recycled").
func (p *Pool) Put(c SequencerClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !c.IsRunning() || len(p.clients) >= p.maxSize {
		_ = c.Stop()
		return
	}
	p.clients = append(p.clients, c)
}

// Close prevents new acquisitions and drops all idle live clients.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, c := range p.clients {
		_ = c.Stop()
	}
	p.clients = nil
}
