package celestia

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func lengthPrefix(fields ...[]byte) []byte {
	var out []byte
	for _, f := range fields {
		n := make([]byte, 4)
		binary.BigEndian.PutUint32(n, uint32(len(f)))
		out = append(out, n...)
		out = append(out, f...)
	}
	return out
}

func TestSplitLengthPrefixed_FixedCount(t *testing.T) {
	data := lengthPrefix([]byte("a"), []byte("bb"), []byte("ccc"))

	fields, err := splitLengthPrefixed(data, 3)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}, fields)
}

func TestSplitLengthPrefixed_WrongCount(t *testing.T) {
	data := lengthPrefix([]byte("a"))
	_, err := splitLengthPrefixed(data, 2)
	require.Error(t, err)
}

func TestSplitLengthPrefixed_Truncated(t *testing.T) {
	_, err := splitLengthPrefixed([]byte{0x00, 0x00, 0x00}, -1)
	require.Error(t, err)
}

func TestSplitLengthPrefixed_Unbounded(t *testing.T) {
	data := lengthPrefix([]byte("x"), []byte("y"), []byte("z"))
	fields, err := splitLengthPrefixed(data, -1)
	require.NoError(t, err)
	require.Len(t, fields, 3)
}
