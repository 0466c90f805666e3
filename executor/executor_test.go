package executor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/MuhtasimTanmoy/conductor/metrics"
	"github.com/MuhtasimTanmoy/conductor/rollup"
	"github.com/MuhtasimTanmoy/conductor/rolluprpc"
)

// fakeRPC is an in-memory rolluprpc.Client: every ExecuteBlock call
// deterministically derives the next hash from an incrementing
// counter, so tests can assert on chain shape without a real engine.
type fakeRPC struct {
	mu     sync.Mutex
	height uint64
	firm   common.Hash
}

func newFakeRPC() *fakeRPC { return &fakeRPC{} }

func (f *fakeRPC) ExecuteBlock(ctx context.Context, parentHash common.Hash, txs []rollup.RollupTx, ts time.Time, sequencerHash *common.Hash) (rollup.RollupBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height++
	hash := common.BigToHash(new(big.Int).SetUint64(f.height))
	return rollup.RollupBlock{ParentHash: parentHash, Hash: hash, Height: f.height}, nil
}

func (f *fakeRPC) FinalizeBlock(ctx context.Context, rollupHash common.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firm = rollupHash
	return nil
}

func (f *fakeRPC) GetCommitmentState(ctx context.Context) (rolluprpc.CommitmentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rolluprpc.CommitmentState{FirmHash: f.firm, FirmNum: f.height}, nil
}

func (f *fakeRPC) Close() error { return nil }

var _ rolluprpc.Client = (*fakeRPC)(nil)

func testLogger() log.Logger { return log.New() }

func waitForState(t *testing.T, e *Executor, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.CurrentState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, e.CurrentState())
}

func seqBlock(height uint64) rollup.SequencerBlock {
	return rollup.SequencerBlock{
		SequencerHeight: height,
		SequencerHash:   common.BigToHash(new(big.Int).SetUint64(1000 + height)),
		Txs:             []rollup.RollupTx{[]byte("tx")},
	}
}

func reconstructed(b rollup.SequencerBlock) rollup.ReconstructedBlock {
	return rollup.ReconstructedBlock{
		SequencerHash:   b.SequencerHash,
		SequencerHeight: b.SequencerHeight,
		Txs:             b.Txs,
	}
}

func runExecutor(t *testing.T, e *Executor) (shutdown chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	shutdown = make(chan struct{})
	go e.Run(ctx, shutdown)
	t.Cleanup(cancel)
	return shutdown
}

// S1: soft blocks applied strictly in order.
func TestExecutor_SoftOnly_AppliesInOrder(t *testing.T) {
	rpc := newFakeRPC()
	e := New(testLogger(), rpc, rollup.SoftOnly, nil, metrics.Noop{})
	shutdown := runExecutor(t, e)

	e.PushSoft(seqBlock(1))
	e.PushSoft(seqBlock(2))
	e.PushSoft(seqBlock(3))

	waitForState(t, e, State{SoftHeight: 3, FirmHeight: 3}, time.Second)
	close(shutdown)
}

// Gaps are skipped, not executed out of order.
func TestExecutor_SoftOnly_SkipsGap(t *testing.T) {
	rpc := newFakeRPC()
	e := New(testLogger(), rpc, rollup.SoftOnly, nil, metrics.Noop{})
	shutdown := runExecutor(t, e)

	e.PushSoft(seqBlock(1))
	e.PushSoft(seqBlock(3)) // gap: expected height 2, skipped
	e.PushSoft(seqBlock(2)) // arrives late, accepted
	e.PushSoft(seqBlock(3)) // re-delivered, now in order

	waitForState(t, e, State{SoftHeight: 3, FirmHeight: 3}, time.Second)
	close(shutdown)
}

// FirmOnly: soft_head never advances, firm executes and finalizes
// directly.
func TestExecutor_FirmOnly_NeverAdvancesSoftHead(t *testing.T) {
	rpc := newFakeRPC()
	e := New(testLogger(), rpc, rollup.FirmOnly, nil, metrics.Noop{})
	shutdown := runExecutor(t, e)

	e.PushFirm(reconstructed(seqBlock(1)))
	e.PushFirm(reconstructed(seqBlock(2)))

	waitForState(t, e, State{SoftHeight: 0, FirmHeight: 2}, time.Second)

	// Soft blocks are ignored entirely in FirmOnly mode.
	e.PushSoft(seqBlock(1))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, uint64(0), e.CurrentState().SoftHeight)

	close(shutdown)
}

// SoftAndFirm: a firm block arriving before its soft counterpart is
// buffered, not dropped, and finalizes once soft catches up.
func TestExecutor_SoftAndFirm_BuffersFirmBeforeSoft(t *testing.T) {
	rpc := newFakeRPC()
	e := New(testLogger(), rpc, rollup.SoftAndFirm, nil, metrics.Noop{})
	shutdown := runExecutor(t, e)

	b1 := seqBlock(1)
	e.PushFirm(reconstructed(b1)) // arrives first, buffered
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, uint64(0), e.CurrentState().FirmHeight)

	e.PushSoft(b1) // soft catches up, firm finalizes the buffered block
	waitForState(t, e, State{SoftHeight: 1, FirmHeight: 1}, time.Second)

	close(shutdown)
}

// Replaying an already-finalized firm block is a no-op.
func TestExecutor_SoftAndFirm_ReplayIsNoop(t *testing.T) {
	rpc := newFakeRPC()
	e := New(testLogger(), rpc, rollup.SoftAndFirm, nil, metrics.Noop{})
	shutdown := runExecutor(t, e)

	b1 := seqBlock(1)
	e.PushSoft(b1)
	e.PushFirm(reconstructed(b1))
	waitForState(t, e, State{SoftHeight: 1, FirmHeight: 1}, time.Second)

	e.PushFirm(reconstructed(b1)) // replay
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, State{SoftHeight: 1, FirmHeight: 1}, e.CurrentState())

	close(shutdown)
}

// A deposit hook's transactions are prepended ahead of the sequencer's
// own; a failing hook call fails the soft block, without advancing
// soft_head.
func TestExecutor_DepositHook_FailureSkipsBlock(t *testing.T) {
	rpc := newFakeRPC()
	hook := failingDepositHook{err: fmt.Errorf("l1 node unreachable")}
	e := New(testLogger(), rpc, rollup.SoftOnly, hook, metrics.Noop{})
	shutdown := runExecutor(t, e)

	e.PushSoft(seqBlock(1))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, uint64(0), e.CurrentState().SoftHeight)

	close(shutdown)
}

type failingDepositHook struct{ err error }

func (h failingDepositHook) Txs(ctx context.Context, l1Height uint64) ([]rollup.RollupTx, error) {
	return nil, h.err
}

// alwaysFailRPC simulates a rollup execution engine that is completely
// unreachable: every ExecuteBlock call fails.
type alwaysFailRPC struct{ rolluprpc.Client }

func (alwaysFailRPC) ExecuteBlock(ctx context.Context, parentHash common.Hash, txs []rollup.RollupTx, ts time.Time, sequencerHash *common.Hash) (rollup.RollupBlock, error) {
	return rollup.RollupBlock{}, fmt.Errorf("connection refused")
}

// A rollup RPC call whose retry loop gives up is fatal to the executor
// (spec.md §4.2, §7): Run must return a non-nil error rather than
// silently skipping the block and continuing. Here the 50ms deadline
// ends the retry loop during its first backoff, before
// retry.ExecutorRPC's attempt budget is spent.
func TestExecutor_RPCRetryFailureIsFatal(t *testing.T) {
	e := New(testLogger(), alwaysFailRPC{}, rollup.SoftOnly, nil, metrics.Noop{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	shutdown := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, shutdown) }()

	e.PushSoft(seqBlock(1))

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after RPC retries were exhausted")
	}
}
