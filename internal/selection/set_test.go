package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/types"
)

func TestSet_ToggleTwiceRestores(t *testing.T) {
	s := NewSet(4)
	require.NoError(t, s.Toggle(1))
	before := s.Indices()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Toggle(i))
		require.NoError(t, s.Toggle(i))
		assert.Equal(t, before, s.Indices(), "index %d", i)
	}
}

func TestSet_RejectsOutOfRange(t *testing.T) {
	s := NewSet(2)
	assert.Error(t, s.Toggle(2))
	assert.Error(t, s.Toggle(-1))
	assert.Zero(t, s.Len())
}

func TestSet_IndicesAscending(t *testing.T) {
	s := NewSet(5)
	for _, i := range []int{4, 0, 2} {
		require.NoError(t, s.Toggle(i))
	}
	assert.Equal(t, []int{0, 2, 4}, s.Indices())

	first, ok := s.First()
	require.True(t, ok)
	assert.Equal(t, 0, first)
}

func TestSet_ResetClears(t *testing.T) {
	s := NewSet(3)
	require.NoError(t, s.Toggle(2))
	s.Reset(1)
	assert.Zero(t, s.Len())
	assert.Error(t, s.Toggle(2))
}

func TestSet_Issues(t *testing.T) {
	list := []types.Issue{{Kind: "a"}, {Kind: "b"}, {Kind: "c"}}
	s := NewSet(len(list))
	require.NoError(t, s.Toggle(2))
	require.NoError(t, s.Toggle(0))

	got := s.Issues(list)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Kind)
	assert.Equal(t, "c", got[1].Kind)
}
