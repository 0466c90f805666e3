package rollup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamespaceV0FromCometBFTHeaderHash_Deterministic(t *testing.T) {
	headerHash := []byte("a sequencer header hash")

	ns1 := NamespaceV0FromCometBFTHeaderHash(headerHash)
	ns2 := NamespaceV0FromCometBFTHeaderHash(headerHash)
	require.Equal(t, ns1, ns2)

	other := NamespaceV0FromCometBFTHeaderHash([]byte("a different header hash"))
	require.NotEqual(t, ns1, other)
}

func TestNamespaceV0FromCometBFTHeaderHash_VersionByte(t *testing.T) {
	ns := NamespaceV0FromCometBFTHeaderHash([]byte("x"))
	require.Equal(t, byte(0), ns[0])
}

func TestRollupNamespace_DifferentFromSequencerDerivation(t *testing.T) {
	rollupID := []byte("rollup-a")
	ns := RollupNamespace(rollupID)
	require.Len(t, ns.Bytes(), NamespaceSize)

	// Deriving from the same bytes via the sequencer-header path yields
	// a different namespace: the two derivations must not collide.
	require.NotEqual(t, ns, NamespaceV0FromCometBFTHeaderHash(rollupID))
}
