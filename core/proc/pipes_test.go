package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeSetSingleStage(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		ps, err := NewPipeSet(n)
		require.NoError(t, err)
		assert.Equal(t, 0, ps.Len(), "n=%d", n)
		ps.CloseAll()
	}
}

func TestNewPipeSetAllocatesNMinusOne(t *testing.T) {
	ps, err := NewPipeSet(4)
	require.NoError(t, err)
	defer ps.CloseAll()

	assert.Equal(t, 3, ps.Len())
	for i := 0; i < ps.Len(); i++ {
		assert.NotNil(t, ps.ReadEnd(i))
		assert.NotNil(t, ps.WriteEnd(i))
	}
}

func TestPipeSetConnectsEnds(t *testing.T) {
	ps, err := NewPipeSet(2)
	require.NoError(t, err)
	defer ps.CloseAll()

	_, err = ps.WriteEnd(0).WriteString("ping")
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := ps.ReadEnd(0).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestPipeSetCloseAllIdempotent(t *testing.T) {
	ps, err := NewPipeSet(3)
	require.NoError(t, err)

	ps.CloseAll()
	// Second close must not panic or double-close descriptors that may
	// have been reused by the runtime in the meantime.
	ps.CloseAll()

	_, err = ps.WriteEnd(0).WriteString("x")
	assert.Error(t, err)
}
