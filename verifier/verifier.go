// Package verifier implements the conductor's BlockVerifier (spec.md
// §4.4.1): it decides whether a candidate firm block, reconstructed
// from Celestia blobs, is trustworthy enough to finalize.
package verifier

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/celestiaorg/nmt"
	"github.com/cometbft/cometbft/crypto/ed25519"
)

// Entry is the decoded content of one sequencer-namespace blob: the
// pointer the conductor follows to fetch and validate the matching
// rollup-namespace blob.
type Entry struct {
	SequencerHeight    uint64
	SequencerHash      []byte
	ProposerPublicKey  []byte
	ProposerSignature  []byte
	CanonicalVoteBytes []byte
	ChainIDCommitment  []byte
	ChainIDProof       *nmt.Proof
	ActionTreeRoot     []byte
	ActionTreeProof    *nmt.Proof
	RollupIDs          [][]byte
}

// RollupBlob is the decoded content of one rollup-namespace blob.
type RollupBlob struct {
	SequencerHash []byte
	Txs           [][]byte
}

// Result is the outcome of verifying one candidate firm block.
type Result struct {
	Valid  bool
	Reason string
}

func invalid(format string, args ...any) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Verifier is a stateless checker: every method call is independent,
// grounded only in the data passed to it plus the configured rollup
// namespace. There is no mutable state to construct with, matching
// the original's free-function `validate_sequencer_blob` /
// `validate_rollup_data` (see original_source/.../data_availability).
type Verifier struct {
	rollupNamespaceID []byte
}

// New constructs a Verifier scoped to a single rollup namespace.
func New(rollupNamespaceID []byte) *Verifier {
	return &Verifier{rollupNamespaceID: rollupNamespaceID}
}

// VerifyEntry checks a sequencer-namespace entry's proposer signature
// and inclusion proofs, without yet looking at the rollup blob itself.
func (v *Verifier) VerifyEntry(e Entry) Result {
	if !ed25519.PubKey(e.ProposerPublicKey).VerifySignature(e.CanonicalVoteBytes, e.ProposerSignature) {
		return invalid("proposer signature verification failed at sequencer height %d", e.SequencerHeight)
	}

	if e.ChainIDProof != nil {
		if !e.ChainIDProof.VerifyInclusion(sha256.New(), v.rollupNamespaceID, [][]byte{leafPrefix(e.ChainIDCommitment)}, e.ActionTreeRoot) {
			return invalid("chain id commitment inclusion proof failed")
		}
	}
	if e.ActionTreeProof != nil {
		if !e.ActionTreeProof.VerifyInclusion(sha256.New(), v.rollupNamespaceID, [][]byte{leafPrefix(e.ActionTreeRoot)}, e.ActionTreeRoot) {
			return invalid("action tree root inclusion proof failed")
		}
	}

	found := false
	for _, id := range e.RollupIDs {
		if bytes.Equal(id, v.rollupNamespaceID) {
			found = true
			break
		}
	}
	if !found {
		return invalid("entry does not list this rollup's namespace")
	}

	return Result{Valid: true}
}

// VerifyRollupBlob cross-checks a rollup-namespace blob against the
// sequencer-namespace entry that referenced it: the sequencer block
// hash must match, binding the two blobs together (spec.md §4.4.1
// "cross-check"; original_source/.../data_availability/verify.rs
// enforces the same binding).
func (v *Verifier) VerifyRollupBlob(e Entry, blob RollupBlob) Result {
	if !bytes.Equal(e.SequencerHash, blob.SequencerHash) {
		return invalid("rollup blob sequencer hash %x does not match entry sequencer hash %x", blob.SequencerHash, e.SequencerHash)
	}
	return Result{Valid: true}
}

// leafPrefix mirrors the NMT leaf-hashing convention: a 0x00 prefix
// byte distinguishes leaf hashes from internal node hashes in the
// namespaced Merkle tree (celestiaorg/nmt convention).
func leafPrefix(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, 0x00)
	return append(out, data...)
}
