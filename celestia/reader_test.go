package celestia

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuhtasimTanmoy/conductor/executor"
	"github.com/MuhtasimTanmoy/conductor/rollup"
)

func TestContainsNamespace(t *testing.T) {
	ns := rollup.RollupNamespace([]byte("rollup-a"))
	other := rollup.RollupNamespace([]byte("rollup-b"))

	require.True(t, containsNamespace([][]byte{ns.Bytes()}, ns))
	require.False(t, containsNamespace([][]byte{other.Bytes()}, ns))
	require.False(t, containsNamespace(nil, ns))
}

type fixedState struct{ s executor.State }

func (f fixedState) CurrentState() executor.State { return f.s }

func TestShouldAdvance_PacesAgainstSoftHead(t *testing.T) {
	r := &Reader{firmOnly: false, state: fixedState{executor.State{SoftHeight: 5, FirmHeight: 3}}}
	require.True(t, r.shouldAdvance())

	r.state = fixedState{executor.State{SoftHeight: 3, FirmHeight: 3}}
	require.False(t, r.shouldAdvance())
}

func TestShouldAdvance_FirmOnlyAlwaysAdvances(t *testing.T) {
	r := &Reader{firmOnly: true, state: fixedState{executor.State{SoftHeight: 0, FirmHeight: 0}}}
	require.True(t, r.shouldAdvance())
}
