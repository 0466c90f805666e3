package deposit

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeDepositTx_EmbedsBlockNumberAndData(t *testing.T) {
	l := types.Log{BlockNumber: 0x0102030405060708, Data: []byte("deposit payload")}

	tx := encodeDepositTx(l)
	require.Len(t, tx, 8+len(l.Data))
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, []byte(tx[:8]))
	require.Equal(t, l.Data, []byte(tx[8:]))
}
