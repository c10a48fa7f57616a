package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeIdsAreUniqueAndIncreasing(t *testing.T) {
	req := require.New(t)
	n := NewNode(7)

	seen := make(map[int64]struct{}, 10000)
	var last int64
	for i := 0; i < 10000; i++ {
		id := n.Next()
		_, dup := seen[id]
		req.False(dup, "duplicate id %d", id)
		seen[id] = struct{}{}
		req.Greater(id, last)
		last = id
	}
}

func TestNodeIdCarriesNode(t *testing.T) {
	req := require.New(t)
	id := NewNode(42).Next()
	req.Equal(int64(42), (id>>seqBits)&maxNode)
}

func TestNewNodeClampsOutOfRange(t *testing.T) {
	require.Equal(t, int64(1), NewNode(5000).nodeID)
	require.Equal(t, int64(1), NewNode(-3).nodeID)
}
