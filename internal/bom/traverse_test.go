package bom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
)

func sampleForest() ([]parts.Part, []*Node) {
	list := []parts.Part{
		part("CAR", use("u1", "WHEEL", 4), use("u2", "FRAME", 1)),
		part("WHEEL", use("u3", "BOLT", 5)),
		part("FRAME", use("u4", "BOLT", 20)),
		part("BOLT"),
	}
	return list, BuildHierarchy(list)
}

func TestFindAndOccurrences(t *testing.T) {
	_, roots := sampleForest()

	n, ok := Find(roots, "CAR/u1/u3")
	require.True(t, ok)
	assert.Equal(t, "BOLT", n.PartID())
	assert.Equal(t, 5, n.Quantity)

	_, ok = Find(roots, "CAR/u9")
	assert.False(t, ok)

	bolts := Occurrences(roots, "BOLT")
	require.Len(t, bolts, 2)
	assert.Equal(t, "CAR/u1/u3", bolts[0].Key)
	assert.Equal(t, "CAR/u2/u4", bolts[1].Key)
}

func TestWalkSkipsSubtree(t *testing.T) {
	_, roots := sampleForest()

	var visited []string
	Walk(roots, func(n *Node) bool {
		visited = append(visited, n.PartID())
		return n.PartID() != "WHEEL"
	})

	assert.Equal(t, []string{"CAR", "WHEEL", "FRAME", "BOLT"}, visited)
}

func TestFlatten(t *testing.T) {
	_, roots := sampleForest()

	rows := Flatten(roots)

	require.Len(t, rows, 5)
	assert.Equal(t, Row{Key: "CAR", PartID: "CAR", Title: "Part CAR", Depth: 0, Quantity: 1, HasChildren: true}, rows[0])
	assert.Equal(t, 2, rows[2].Depth)
	assert.Equal(t, "BOLT", rows[2].PartID)
	assert.False(t, rows[2].HasChildren)
}

func TestWhereUsed(t *testing.T) {
	list, _ := sampleForest()

	edges := WhereUsed(list, "BOLT")

	require.Len(t, edges, 2)
	assert.Equal(t, "WHEEL", edges[0].ParentPartID)
	assert.Equal(t, "FRAME", edges[1].ParentPartID)
	assert.Empty(t, WhereUsed(list, "CAR"))
}

func TestRollup(t *testing.T) {
	_, roots := sampleForest()

	lines, complete := Rollup(roots[0])

	assert.True(t, complete)
	assert.Equal(t, []RollupLine{
		{PartID: "BOLT", Title: "Part BOLT", Quantity: 40},
		{PartID: "FRAME", Title: "Part FRAME", Quantity: 1},
		{PartID: "WHEEL", Title: "Part WHEEL", Quantity: 4},
	}, lines)

	t.Run("marker makes the rollup incomplete", func(t *testing.T) {
		roots := BuildHierarchy([]parts.Part{
			part("R", use("u0", "A", 2)),
			part("A", use("u1", "B", 3)),
			part("B", use("u2", "A", 1)),
		})

		lines, complete := Rollup(roots[0])

		assert.False(t, complete)
		assert.Equal(t, []RollupLine{
			{PartID: "A", Title: "Part A", Quantity: 8},
			{PartID: "B", Title: "Part B", Quantity: 6},
		}, lines)
	})
}

func TestSelection(t *testing.T) {
	list, roots := sampleForest()
	sel := NewSelection()

	_, err := sel.Select("s1", roots, "CAR/nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "occurrence", nf.Kind)

	n, err := sel.Select("s1", roots, "CAR/u2/u4")
	require.NoError(t, err)
	assert.Equal(t, 20, n.Quantity)

	key, ok := sel.Key("s1")
	require.True(t, ok)
	assert.Equal(t, "CAR/u2/u4", key)

	_, ok = sel.Key("s2")
	assert.False(t, ok)

	// A rebuild hands out new nodes; the selection follows the key.
	rebuilt := BuildHierarchy(list)
	resolved, ok := sel.Resolve("s1", rebuilt)
	require.True(t, ok)
	assert.NotSame(t, n, resolved)
	assert.Equal(t, "BOLT", resolved.PartID())

	// Dropping the edge drops the selection.
	list[2].ChildUsages = nil
	_, ok = sel.Resolve("s1", BuildHierarchy(list))
	assert.False(t, ok)
	_, ok = sel.Key("s1")
	assert.False(t, ok)

	_, err = sel.Select("s1", rebuilt, "CAR")
	require.NoError(t, err)
	sel.Clear("s1")
	_, ok = sel.Key("s1")
	assert.False(t, ok)
}
