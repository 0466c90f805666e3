package rollup

import (
	"crypto/sha256"
)

// NamespaceSize is the width, in bytes, of a Celestia v0 namespace
// identifier (1 version byte + 28 id bytes, of which only the
// trailing 10 bytes of the id are populated for v0 namespaces derived
// from a hash).
const NamespaceSize = 29

const namespaceVersionZero = 0

// Namespace is a Celestia NMT namespace identifier.
type Namespace [NamespaceSize]byte

// Bytes returns the namespace's raw byte representation.
func (n Namespace) Bytes() []byte {
	out := make([]byte, NamespaceSize)
	copy(out, n[:])
	return out
}

// NamespaceV0FromCometBFTHeaderHash derives a deterministic Celestia v0
// namespace from a CometBFT header hash, as astria_core's
// `namespace_v0_from_cometbft_header` does: the namespace id is the
// leading 10 bytes of sha256("sequencer" || headerHash), the domain tag
// keeping it apart from RollupNamespace.
//
// This is called once at conductor startup (spec.md §4.5) using the
// hash of the latest sequencer block's header, never recomputed
// afterwards.
func NamespaceV0FromCometBFTHeaderHash(headerHash []byte) Namespace {
	return namespaceV0(sequencerNamespaceDomain, headerHash)
}

// RollupNamespace derives the namespace used to post this rollup's own
// blobs, deterministically from the rollup's chain id/name, as
// astria_core's `namespace_v0_from_rollup_id` does.
func RollupNamespace(rollupID []byte) Namespace {
	return namespaceV0(rollupNamespaceDomain, rollupID)
}

// Domain-separation tags so the sequencer-data namespace and a given
// rollup's own namespace never collide even if derived from the same
// underlying bytes.
const (
	sequencerNamespaceDomain = "sequencer"
	rollupNamespaceDomain    = "rollup"
)

func namespaceV0(domain string, id []byte) Namespace {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(id)
	digest := h.Sum(nil)

	var ns Namespace
	ns[0] = namespaceVersionZero
	// Bytes [1:19) are the zero-padded "reserved" prefix of a v0
	// namespace id; only the trailing 10 bytes carry entropy.
	copy(ns[19:], digest[:10])
	return ns
}
