package sequencer

import (
	"testing"

	cometbfttypes "github.com/cometbft/cometbft/types"
	"github.com/stretchr/testify/require"
)

func TestBelongsToRollup(t *testing.T) {
	rollupID := []byte{0xde, 0xad}

	require.True(t, belongsToRollup(cometbfttypes.Tx{0xde, 0xad, 0x01, 0x02}, rollupID))
	require.False(t, belongsToRollup(cometbfttypes.Tx{0xbe, 0xef, 0x01}, rollupID))
	require.False(t, belongsToRollup(cometbfttypes.Tx{0xde}, rollupID), "shorter than the rollup id never matches")
}

func TestDecodeSequencerBlock_FiltersToConfiguredRollup(t *testing.T) {
	rollupID := []byte{0xaa}
	block := &cometbfttypes.Block{
		Header: cometbfttypes.Header{Height: 7},
		Data: cometbfttypes.Data{
			Txs: []cometbfttypes.Tx{
				{0xaa, 0x01},
				{0xbb, 0x02},
				{0xaa, 0x03},
			},
		},
	}

	sb, err := decodeSequencerBlock(cometbfttypes.EventDataNewBlock{Block: block}, rollupID)
	require.NoError(t, err)
	require.Equal(t, uint64(7), sb.SequencerHeight)
	require.Len(t, sb.Txs, 2)
}
