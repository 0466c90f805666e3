// Package celestia implements the conductor's firm-path DA Reader
// (spec.md §4.4): it walks Celestia block heights in order, pulls
// namespaced blobs, reconstructs rollup blocks, verifies them, and
// forwards the result to the Executor.
package celestia

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/MuhtasimTanmoy/conductor/executor"
	"github.com/MuhtasimTanmoy/conductor/metrics"
	"github.com/MuhtasimTanmoy/conductor/retry"
	"github.com/MuhtasimTanmoy/conductor/rollup"
	"github.com/MuhtasimTanmoy/conductor/verifier"
)

// Client is the subset of the Celestia node RPC the reader needs. The
// real implementation wraps celestiaorg/celestia-openrpc's blob and
// header clients over JSON-RPC/WebSocket.
type Client interface {
	// NetworkHead returns the current height of the Celestia chain, used
	// to pick a starting cursor when none is configured.
	NetworkHead(ctx context.Context) (uint64, error)
	// SequencerNamespaceBlobs returns every blob in the sequencer
	// namespace at the given Celestia height, decoded into entries.
	SequencerNamespaceBlobs(ctx context.Context, celestiaHeight uint64) ([]verifier.Entry, error)
	// RollupNamespaceBlob returns the rollup-namespace blob referenced
	// by a sequencer-namespace entry, if present at that height.
	RollupNamespaceBlob(ctx context.Context, celestiaHeight uint64, rollupNamespace rollup.Namespace, sequencerHash []byte) (verifier.RollupBlob, bool, error)
}

// StateSource is the subset of the executor's state the reader paces
// itself against (spec.md §4.4: "firm_head < soft_head, or commit
// level is FirmOnly").
type StateSource interface {
	CurrentState() executor.State
}

// BlockSink is the subset of the executor the reader pushes firm
// blocks into.
type BlockSink interface {
	PushFirm(b rollup.ReconstructedBlock)
}

// Reader is the firm-path DA reader.
type Reader struct {
	log             log.Logger
	client          Client
	verifier        *verifier.Verifier
	rollupNamespace rollup.Namespace
	firmOnly        bool
	startHeight     uint64 // 0 means "use network head at startup"
	sink            BlockSink
	state           StateSource
	metrics         metrics.Metrics

	cursor uint64
}

// New constructs a Reader. startHeight overrides the default "start at
// the current Celestia network head" behavior (SPEC_FULL.md Open
// Question #2); pass 0 to use the default. A nil m disables metrics.
func New(logger log.Logger, client Client, v *verifier.Verifier, rollupNamespace rollup.Namespace, firmOnly bool, startHeight uint64, sink BlockSink, state StateSource, m metrics.Metrics) *Reader {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Reader{
		log:             logger,
		client:          client,
		verifier:        v,
		rollupNamespace: rollupNamespace,
		firmOnly:        firmOnly,
		startHeight:     startHeight,
		sink:            sink,
		state:           state,
		metrics:         m,
	}
}

// Run drives the reader until shutdown fires. Reading the network head
// for the start cursor is retried under retry.NamespaceBootstrap(), and
// Run returns an error once those attempts are spent. After that, per
// spec.md §4.4, reconnect/network errors are retried and never
// terminate the reader; the cursor only advances
// past a height once that height's blobs have been processed (success
// or per-blob skip), never on a height-level fetch failure.
func (r *Reader) Run(ctx context.Context, shutdown <-chan struct{}) error {
	if err := r.bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap celestia cursor: %w", err)
	}
	r.log.Info("celestia reader started", "start_height", r.cursor)

	for {
		select {
		case <-shutdown:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !r.shouldAdvance() {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-shutdown:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := r.processHeight(ctx, r.cursor); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn("celestia height processing failed, retrying", "height", r.cursor, "err", err)
			select {
			case <-time.After(time.Second):
			case <-shutdown:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		r.cursor++
		r.metrics.RecordCelestiaHeight(r.cursor)
	}
}

// shouldAdvance implements the firm_head < soft_head (or FirmOnly)
// pacing rule: the reader never races ahead of what the soft path (or,
// in FirmOnly mode, nothing) allows it to finalize against.
func (r *Reader) shouldAdvance() bool {
	if r.firmOnly {
		return true
	}
	s := r.state.CurrentState()
	return s.FirmHeight < s.SoftHeight
}

func (r *Reader) bootstrap(ctx context.Context) error {
	if r.startHeight != 0 {
		r.cursor = r.startHeight
		return nil
	}
	return retry.Do(ctx, retry.NamespaceBootstrap(), nil, func(ctx context.Context) error {
		head, err := r.client.NetworkHead(ctx)
		if err != nil {
			return err
		}
		r.cursor = head
		return nil
	})
}

// processHeight fetches and verifies every entry at a single Celestia
// height, pushing any that resolve to this rollup's reconstructed
// block. A height with zero matching entries is not an error: most
// Celestia blocks carry no data for any given rollup.
func (r *Reader) processHeight(ctx context.Context, height uint64) error {
	var entries []verifier.Entry
	err := retry.Do(ctx, retry.CelestiaReconnect(), func(attempt int, delay time.Duration, err error) {
		r.log.Warn("fetching sequencer namespace blobs failed, retrying", "height", height, "attempt", attempt, "delay", delay, "err", err)
	}, func(ctx context.Context) error {
		es, err := r.client.SequencerNamespaceBlobs(ctx, height)
		if err != nil {
			return err
		}
		entries = es
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch sequencer namespace blobs at height %d: %w", height, err)
	}

	matching := make([]verifier.Entry, 0, len(entries))
	for _, e := range entries {
		res := r.verifier.VerifyEntry(e)
		if res.Valid {
			r.metrics.RecordVerification("valid")
		} else {
			r.metrics.RecordVerification("invalid")
		}
		if res.Valid && containsNamespace(e.RollupIDs, r.rollupNamespace) {
			matching = append(matching, e)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	// At most two concurrent rollup-namespace blob fetches per height,
	// since a well-formed Celestia height rarely carries more than a
	// couple of entries for a single rollup.
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(2)
	blocks := make([]*rollup.ReconstructedBlock, len(matching))

	for i, e := range matching {
		i, e := i, e
		group.Go(func() error {
			return retry.Do(gctx, retry.SequencerCrossCheck(), nil, func(ctx context.Context) error {
				blob, ok, err := r.client.RollupNamespaceBlob(ctx, height, r.rollupNamespace, e.SequencerHash)
				if err != nil {
					return err
				}
				if !ok {
					r.log.Debug("no rollup namespace blob yet for entry, skipping", "height", height, "sequencer_height", e.SequencerHeight)
					return nil
				}
				if res := r.verifier.VerifyRollupBlob(e, blob); !res.Valid {
					r.log.Error("rollup namespace blob failed verification, skipping", "height", height, "reason", res.Reason)
					return nil
				}
				txs := make([]rollup.RollupTx, len(blob.Txs))
				for j, t := range blob.Txs {
					txs[j] = rollup.RollupTx(t)
				}
				blocks[i] = &rollup.ReconstructedBlock{
					SequencerHash:   sequencerHashFrom(e.SequencerHash),
					SequencerHeight: e.SequencerHeight,
					Txs:             txs,
				}
				return nil
			})
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("failed to fetch rollup namespace blobs at height %d: %w", height, err)
	}

	for _, b := range blocks {
		if b != nil {
			r.sink.PushFirm(*b)
		}
	}
	return nil
}

func sequencerHashFrom(b []byte) common.Hash {
	return common.BytesToHash(b)
}

func containsNamespace(ids [][]byte, ns rollup.Namespace) bool {
	target := ns.Bytes()
	for _, id := range ids {
		if len(id) != len(target) {
			continue
		}
		match := true
		for i := range id {
			if id[i] != target[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
