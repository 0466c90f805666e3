// Package rollup holds the data types shared by every component that
// feeds, consumes, or reasons about the conductor's view of the chain.
package rollup

import (
	"github.com/ethereum/go-ethereum/common"
)

// CommitLevel controls which of the soft and firm paths the executor
// acts on.
type CommitLevel int

const (
	// SoftAndFirm executes soft blocks immediately and finalizes them
	// once the DA layer confirms the same data.
	SoftAndFirm CommitLevel = iota
	// SoftOnly executes soft blocks and advances firm in lock-step,
	// never waiting on the DA layer.
	SoftOnly
	// FirmOnly ignores the soft path entirely and executes/finalizes
	// directly from DA-confirmed data.
	FirmOnly
)

func (c CommitLevel) String() string {
	switch c {
	case SoftAndFirm:
		return "SoftAndFirm"
	case SoftOnly:
		return "SoftOnly"
	case FirmOnly:
		return "FirmOnly"
	default:
		return "Unknown"
	}
}

// IsSoftOnly reports whether firm finalization is skipped entirely.
func (c CommitLevel) IsSoftOnly() bool { return c == SoftOnly }

// IsFirmOnly reports whether the soft path is skipped entirely.
func (c CommitLevel) IsFirmOnly() bool { return c == FirmOnly }

// ParseCommitLevel parses one of "SoftOnly", "FirmOnly", "SoftAndFirm".
func ParseCommitLevel(s string) (CommitLevel, bool) {
	switch s {
	case "SoftAndFirm":
		return SoftAndFirm, true
	case "SoftOnly":
		return SoftOnly, true
	case "FirmOnly":
		return FirmOnly, true
	default:
		return 0, false
	}
}

// RollupTx is a single opaque rollup transaction, as included in a
// SequencerBlock's rollup data or synthesized by the deposit hook.
type RollupTx []byte

// SequencerBlock is the soft-path view of a block: a block produced by
// the sequencer, with rollup transactions already filtered down to the
// configured rollup id.
type SequencerBlock struct {
	// SequencerHeight is this block's height on the sequencer chain.
	SequencerHeight uint64
	// SequencerHash is the sequencer block's own hash.
	SequencerHash common.Hash
	// Proposer is the sequencer validator that proposed this block.
	Proposer string
	// Txs are this rollup's transactions, in sequencer order.
	Txs []RollupTx
	// ChainIDCommitment commits to the set of rollup chain ids included
	// in this sequencer block.
	ChainIDCommitment []byte
	// ActionTreeRoot is the root of the Merkle tree over this
	// sequencer block's included rollup actions.
	ActionTreeRoot []byte
	// L1Height is the Ethereum L1 height associated with this
	// sequencer block, used by the optional deposit hook.
	L1Height uint64
}

// ReconstructedBlock is the firm-path view of a block: rollup data
// rebuilt from one or more DA blobs and verified against the
// sequencer block it claims to belong to.
type ReconstructedBlock struct {
	// SequencerHash is the hash of the sequencer block this data was
	// posted on behalf of.
	SequencerHash common.Hash
	// SequencerHeight is that sequencer block's height.
	SequencerHeight uint64
	// Txs are this rollup's transactions as reconstructed from DA.
	Txs []RollupTx
}

// RollupBlock is a block executed (or about to be executed) by the
// rollup execution engine.
type RollupBlock struct {
	ParentHash common.Hash
	Hash       common.Hash
	Height     uint64
	// Payload is the opaque, execution-engine-specific encoding of Txs.
	Payload []byte
}
