// Package deposit implements the conductor's optional L1 deposit hook
// (spec.md §4.6): it watches an Ethereum L1 portal contract for
// deposit events and synthesizes rollup transactions for them, to be
// prepended to the next soft block the Executor applies.
package deposit

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/MuhtasimTanmoy/conductor/retry"
	"github.com/MuhtasimTanmoy/conductor/rollup"
)

// depositEventSignature is the Keccak-256 topic0 of the portal
// contract's deposit event. The real deployment's ABI is out of scope
// here; the conductor only needs topic-level filtering and the raw log
// bytes to synthesize a transaction envelope.
var depositEventSignature = common.HexToHash("0x" +
	"b0474365175364709b5e93d35a9f8dbb8f6159c65ee1b9beb0c03da700b1dcd")

// Hook implements executor.DepositHook against a live L1 node.
type Hook struct {
	log             log.Logger
	client          *ethclient.Client
	portalContract  common.Address
	initialL1Height uint64

	mu       sync.Mutex
	lastSeen uint64 // highest L1 height whose deposits have been synthesized; prevents replay
}

// New constructs a Hook. initialL1Height is the first L1 block the
// conductor is allowed to look for deposits in (spec.md §4.6, §6
// initial_ethereum_l1_block_height).
func New(logger log.Logger, client *ethclient.Client, portalContract common.Address, initialL1Height uint64) *Hook {
	return &Hook{
		log:             logger,
		client:          client,
		portalContract:  portalContract,
		initialL1Height: initialL1Height,
		lastSeen:        initialL1Height - 1,
	}
}

// Txs returns the synthetic rollup transactions for every deposit
// logged on L1 in (lastSeen, l1Height], advancing the internal cursor
// on success. A failure here is fatal to the soft block being
// processed (spec.md §4.6: "a failing deposit hook call fails the
// soft-block application it was invoked for"); the L1 log filter call
// is retried inside Txs under retry.DepositHook() before an error is
// returned.
func (h *Hook) Txs(ctx context.Context, l1Height uint64) ([]rollup.RollupTx, error) {
	h.mu.Lock()
	from := h.lastSeen + 1
	h.mu.Unlock()

	if l1Height < from {
		// The sequencer block's L1 height hasn't advanced past what we
		// already accounted for; nothing new to synthesize.
		return nil, nil
	}

	var logs []types.Log
	err := retry.Do(ctx, retry.DepositHook(), func(attempt int, delay time.Duration, err error) {
		h.log.Warn("deposit log filter failed, retrying", "attempt", attempt, "delay", delay, "err", err)
	}, func(ctx context.Context) error {
		ls, err := h.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(l1Height),
			Addresses: []common.Address{h.portalContract},
			Topics:    [][]common.Hash{{depositEventSignature}},
		})
		if err != nil {
			return err
		}
		logs = ls
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter deposit logs [%d,%d]: %w", from, l1Height, err)
	}

	txs := make([]rollup.RollupTx, 0, len(logs))
	for _, l := range logs {
		txs = append(txs, encodeDepositTx(l))
	}

	h.mu.Lock()
	h.lastSeen = l1Height
	h.mu.Unlock()

	return txs, nil
}

// encodeDepositTx wraps a raw deposit log into an opaque rollup
// transaction envelope. The rollup execution engine is responsible for
// recognizing and decoding this framing; the conductor treats it as
// opaque bytes, consistent with how soft/firm transactions are also
// carried without interpretation.
func encodeDepositTx(l types.Log) rollup.RollupTx {
	buf := make([]byte, 0, len(l.Data)+8)
	height := make([]byte, 8)
	for i := 0; i < 8; i++ {
		height[7-i] = byte(l.BlockNumber >> (8 * i))
	}
	buf = append(buf, height...)
	buf = append(buf, l.Data...)
	return rollup.RollupTx(buf)
}
