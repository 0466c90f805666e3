// Package executor implements the conductor's Executor (spec.md
// §4.2): it owns the rollup head, applies soft blocks in order, and
// finalizes firm blocks once the DA layer confirms them.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/MuhtasimTanmoy/conductor/metrics"
	"github.com/MuhtasimTanmoy/conductor/retry"
	"github.com/MuhtasimTanmoy/conductor/rollup"
	"github.com/MuhtasimTanmoy/conductor/rolluprpc"
)

// DepositHook derives extra rollup transactions for the given L1
// height, to be prepended to a soft block's native transactions
// (spec.md §4.6). It is optional; a nil DepositHook is a no-op.
type DepositHook interface {
	Txs(ctx context.Context, l1Height uint64) ([]rollup.RollupTx, error)
}

// Executor is the conductor's single consumer of soft and firm blocks.
type Executor struct {
	log         log.Logger
	rpc         rolluprpc.Client
	commitLevel rollup.CommitLevel
	depositHook DepositHook
	metrics     metrics.Metrics

	soft *unboundedQueue[rollup.SequencerBlock]
	firm *unboundedQueue[rollup.ReconstructedBlock]

	state *stateObservable

	// execution head: the rollup block most recently executed,
	// regardless of commit level. soft_head/firm_head (published via
	// state) are derived views of this for the modes that track them.
	headHash   common.Hash
	headHeight uint64

	softHead uint64
	firmHead uint64

	// sequencerToRollup maps a sequencer block hash to the rollup hash
	// it produced, for every soft-executed block not yet pruned.
	sequencerToRollup map[common.Hash]common.Hash
	// heightIndex maps sequencer height -> sequencer hash, so pruning by
	// firm_head can walk heights in order (spec.md §3: "bounded by a
	// small multiple of the firm-to-soft gap").
	heightIndex map[uint64]common.Hash
	// pendingFirm holds firm blocks that arrived before their soft
	// counterpart (spec.md §4.2 state machine, SoftAndFirm "Buffered").
	pendingFirm map[common.Hash]rollup.ReconstructedBlock
}

// New constructs an Executor. rpc must be non-nil; a nil m disables
// metrics; depositHook may be nil to disable the deposit-transaction
// transform.
func New(logger log.Logger, rpc rolluprpc.Client, commitLevel rollup.CommitLevel, depositHook DepositHook, m metrics.Metrics) *Executor {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Executor{
		log:               logger,
		rpc:               rpc,
		commitLevel:       commitLevel,
		depositHook:       depositHook,
		metrics:           m,
		soft:              newUnboundedQueue[rollup.SequencerBlock](),
		firm:              newUnboundedQueue[rollup.ReconstructedBlock](),
		state:             newStateObservable(),
		sequencerToRollup: make(map[common.Hash]common.Hash),
		heightIndex:       make(map[uint64]common.Hash),
		pendingFirm:       make(map[common.Hash]rollup.ReconstructedBlock),
	}
}

// PushSoft enqueues a sequencer block for soft execution. Never
// blocks; safe for concurrent callers.
func (e *Executor) PushSoft(b rollup.SequencerBlock) { e.soft.Push(b) }

// PushFirm enqueues a reconstructed block for firm finalization. Never
// blocks; safe for concurrent callers.
func (e *Executor) PushFirm(b rollup.ReconstructedBlock) { e.firm.Push(b) }

// Subscribe registers ch to receive every State update. Callers must
// keep draining ch.
func (e *Executor) Subscribe(ch chan<- State) event.Subscription {
	return e.state.Subscribe(ch)
}

// CurrentState returns the most recently published State without
// subscribing.
func (e *Executor) CurrentState() State { return e.state.Get() }

// Run drives the executor's single-consumer loop until shutdown fires
// or a fatal error occurs. It implements spec.md §4.2's bias: firm
// blocks are processed before soft blocks whenever both are ready. A
// firm/soft block handler returning an error means rollup RPC retries
// were exhausted, which spec.md §4.2/§7 make fatal to the executor (and
// therefore to the whole conductor, via Run's propagated error).
func (e *Executor) Run(ctx context.Context, shutdown <-chan struct{}) error {
	e.log.Info("executor started", "commit_level", e.commitLevel.String())
	defer e.soft.Close()
	defer e.firm.Close()

	firmWake := e.firm.wakeCh()
	softWake := e.soft.wakeCh()

	for {
		// Bias: always drain a ready firm block before a ready soft
		// one, per spec.md §4.2 "process firm before soft when both
		// are ready, to reduce the pending-finalization set". TryPop
		// is the sole consumer of both queues, so this ordering is
		// deterministic rather than left to a race between two
		// populated channels.
		if fb, ok := e.firm.TryPop(); ok {
			if err := e.handleFirm(ctx, fb); err != nil {
				return err
			}
			continue
		}
		if sb, ok := e.soft.TryPop(); ok {
			if err := e.handleSoft(ctx, sb); err != nil {
				return err
			}
			continue
		}

		select {
		case <-shutdown:
			e.log.Info("executor shutting down")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-firmWake:
		case <-softWake:
		}
	}
}

// handleSoft returns a non-nil error only when rollup RPC retries were
// exhausted (fatal); every other rejection (gap, replay, failed
// deposit hook) is logged and absorbed so the executor keeps running.
func (e *Executor) handleSoft(ctx context.Context, b rollup.SequencerBlock) error {
	if e.commitLevel.IsFirmOnly() {
		return nil
	}

	if _, seen := e.sequencerToRollup[b.SequencerHash]; seen {
		e.log.Debug("soft block already applied, skipping", "sequencer_hash", b.SequencerHash)
		return nil
	}

	nextHeight := e.softHead + 1
	if b.SequencerHeight != nextHeight {
		e.log.Error("gap in soft block heights, skipping",
			"expected", nextHeight, "got", b.SequencerHeight, "sequencer_hash", b.SequencerHash)
		return nil
	}

	txs := b.Txs
	if e.depositHook != nil {
		depositTxs, err := e.depositHook.Txs(ctx, b.L1Height)
		if err != nil {
			e.log.Error("deposit hook failed for soft block; block not executed", "height", b.SequencerHeight, "err", err)
			return nil
		}
		txs = append(append([]rollup.RollupTx{}, depositTxs...), txs...)
	}

	rollupBlock, err := e.executeWithRetry(ctx, e.headHash, txs, b.SequencerHash)
	if err != nil {
		return fmt.Errorf("ExecuteBlock retries exhausted at sequencer height %d: %w", b.SequencerHeight, err)
	}

	e.headHash = rollupBlock.Hash
	e.headHeight = rollupBlock.Height
	e.softHead = b.SequencerHeight
	e.sequencerToRollup[b.SequencerHash] = rollupBlock.Hash
	e.heightIndex[e.softHead] = b.SequencerHash

	if e.commitLevel.IsSoftOnly() {
		if err := e.finalizeWithRetry(ctx, rollupBlock.Hash); err != nil {
			return fmt.Errorf("FinalizeBlock retries exhausted at sequencer height %d: %w", b.SequencerHeight, err)
		}
		e.firmHead = e.softHead
		e.prune()
	} else if pending, ok := e.pendingFirm[b.SequencerHash]; ok {
		// The firm counterpart arrived first and was buffered; finalize
		// it now that the soft side has caught up.
		delete(e.pendingFirm, b.SequencerHash)
		if err := e.finalizeMapped(ctx, pending.SequencerHash, pending.SequencerHeight, rollupBlock.Hash); err != nil {
			return err
		}
	}

	e.publish()
	e.metrics.RecordSoftHead(e.softHead)
	return nil
}

// handleFirm returns a non-nil error only when rollup RPC retries were
// exhausted (fatal).
func (e *Executor) handleFirm(ctx context.Context, b rollup.ReconstructedBlock) error {
	if e.commitLevel.IsSoftOnly() {
		return nil
	}

	if b.SequencerHeight <= e.firmHead {
		e.log.Debug("firm block already finalized, skipping", "height", b.SequencerHeight)
		return nil
	}

	rollupHash, known := e.sequencerToRollup[b.SequencerHash]
	if !known {
		if e.commitLevel.IsFirmOnly() {
			rollupBlock, err := e.executeWithRetry(ctx, e.headHash, b.Txs, b.SequencerHash)
			if err != nil {
				return fmt.Errorf("ExecuteBlock retries exhausted (firm-only) at sequencer height %d: %w", b.SequencerHeight, err)
			}
			e.headHash = rollupBlock.Hash
			e.headHeight = rollupBlock.Height
			rollupHash = rollupBlock.Hash
		} else {
			e.log.Debug("firm block arrived before its soft counterpart, buffering", "sequencer_hash", b.SequencerHash)
			e.pendingFirm[b.SequencerHash] = b
			return nil
		}
	}

	return e.finalizeMapped(ctx, b.SequencerHash, b.SequencerHeight, rollupHash)
}

// finalizeMapped performs the actual RPC finalize call and head/map
// bookkeeping shared by both firm-handling branches, returning an
// error only when retries were exhausted (fatal).
func (e *Executor) finalizeMapped(ctx context.Context, sequencerHash common.Hash, height uint64, rollupHash common.Hash) error {
	if err := e.finalizeWithRetry(ctx, rollupHash); err != nil {
		return fmt.Errorf("FinalizeBlock retries exhausted at sequencer height %d: %w", height, err)
	}

	e.firmHead = height
	delete(e.sequencerToRollup, sequencerHash)
	e.prune()
	e.publish()
	e.metrics.RecordFirmHead(e.firmHead)
	return nil
}

// prune erases sequencer_to_rollup / heightIndex entries for heights
// at or below firm_head, bounding the maps' size to the firm-to-soft
// gap (spec.md §3 invariant).
func (e *Executor) prune() {
	for h, seqHash := range e.heightIndex {
		if h <= e.firmHead {
			delete(e.heightIndex, h)
			delete(e.sequencerToRollup, seqHash)
		}
	}
}

func (e *Executor) publish() {
	e.state.publish(State{SoftHeight: e.softHead, FirmHeight: e.firmHead})
}

func (e *Executor) executeWithRetry(ctx context.Context, parent common.Hash, txs []rollup.RollupTx, sequencerHash common.Hash) (rollup.RollupBlock, error) {
	var result rollup.RollupBlock
	e.metrics.RecordRPCCall("ExecuteBlock")
	err := retry.Do(ctx, retry.ExecutorRPC(), func(attempt int, delay time.Duration, err error) {
		e.metrics.RecordRPCError("ExecuteBlock")
		e.log.Warn("ExecuteBlock failed, retrying", "attempt", attempt, "delay", delay, "err", err)
	}, func(ctx context.Context) error {
		hash := sequencerHash
		rb, err := e.rpc.ExecuteBlock(ctx, parent, txs, time.Now(), &hash)
		if err != nil {
			return err
		}
		result = rb
		return nil
	})
	return result, err
}

func (e *Executor) finalizeWithRetry(ctx context.Context, rollupHash common.Hash) error {
	e.metrics.RecordRPCCall("FinalizeBlock")
	return retry.Do(ctx, retry.ExecutorRPC(), func(attempt int, delay time.Duration, err error) {
		e.metrics.RecordRPCError("FinalizeBlock")
		e.log.Warn("FinalizeBlock failed, retrying", "attempt", attempt, "delay", delay, "err", err)
	}, func(ctx context.Context) error {
		return e.rpc.FinalizeBlock(ctx, rollupHash)
	})
}
