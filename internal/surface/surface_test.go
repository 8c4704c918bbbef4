package surface

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/dom"
)

func buildSample(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, m.ApplyInsert(RootID, 1, "div", dom.Props{"class": dom.String("app")}, 0))
	require.NoError(t, m.ApplyInsert(1, 2, "h1", nil, 0))
	require.NoError(t, m.ApplyInsert(2, 3, "text", dom.Props{"text": dom.String("loom")}, 0))
	require.NoError(t, m.ApplyInsert(1, 4, "ul", nil, 1))
	require.NoError(t, m.ApplyInsert(4, 5, "li", dom.Props{"label": dom.String("one"), "done": dom.Bool(true)}, 0))
	require.NoError(t, m.ApplyInsert(4, 6, "li", dom.Props{"label": dom.String("two"), "count": dom.Int(3)}, 1))
	return m
}

func TestMemory_RenderGolden(t *testing.T) {
	m := buildSample(t)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sample_tree", []byte(m.Render()))
}

func TestMemory_InsertValidation(t *testing.T) {
	m := NewMemory()

	err := m.ApplyInsert(99, 1, "div", nil, 0)
	assert.ErrorIs(t, err, ErrUnknownNode)

	require.NoError(t, m.ApplyInsert(RootID, 1, "div", nil, 0))
	err = m.ApplyInsert(RootID, 1, "div", nil, 0)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	err = m.ApplyInsert(RootID, 2, "div", nil, 5)
	assert.ErrorIs(t, err, ErrBadIndex)
}

func TestMemory_InsertAtIndexShiftsSiblings(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.ApplyInsert(RootID, 1, "a", nil, 0))
	require.NoError(t, m.ApplyInsert(RootID, 2, "b", nil, 1))
	require.NoError(t, m.ApplyInsert(RootID, 3, "c", nil, 0))

	assert.Equal(t, "#root#0\n  c#3\n  a#1\n  b#2\n", m.Render())
}

func TestMemory_UpdateMergesAndRemoves(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.ApplyInsert(RootID, 1, "div", dom.Props{
		"keep": dom.Int(1),
		"drop": dom.Bool(true),
	}, 0))

	require.NoError(t, m.ApplyUpdate(1, dom.Props{
		"drop": dom.Null{},
		"add":  dom.String("x"),
	}))

	props, err := m.Props(1)
	require.NoError(t, err)
	assert.Equal(t, dom.Int(1), props["keep"])
	assert.Equal(t, dom.String("x"), props["add"])
	assert.NotContains(t, props, "drop")

	assert.ErrorIs(t, m.ApplyUpdate(99, nil), ErrUnknownNode)
}

func TestMemory_DeleteRemovesSubtree(t *testing.T) {
	m := buildSample(t)
	require.Equal(t, 7, m.Len())

	require.NoError(t, m.ApplyDelete(4))
	assert.Equal(t, 4, m.Len(), "ul and both li gone")

	assert.ErrorIs(t, m.ApplyDelete(5), ErrUnknownNode)
	assert.Error(t, m.ApplyDelete(RootID), "root container is permanent")
}

func TestMemory_Move(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.ApplyInsert(RootID, 1, "a", nil, 0))
	require.NoError(t, m.ApplyInsert(RootID, 2, "b", nil, 1))
	require.NoError(t, m.ApplyInsert(RootID, 3, "c", nil, 2))

	require.NoError(t, m.ApplyMove(3, 0))
	assert.Equal(t, "#root#0\n  c#3\n  a#1\n  b#2\n", m.Render())

	assert.ErrorIs(t, m.ApplyMove(3, 9), ErrBadIndex)
	assert.ErrorIs(t, m.ApplyMove(99, 0), ErrUnknownNode)
}

func TestRecorder_RecordsAndInjectsFailure(t *testing.T) {
	r := NewRecorder()

	require.NoError(t, r.ApplyInsert(RootID, 1, "div", nil, 0))
	require.NoError(t, r.ApplyUpdate(1, dom.Props{"x": dom.Int(1)}))

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "insert", calls[0].Op)
	assert.Equal(t, "update", calls[1].Op)

	r.Reset()
	r.FailAfter(1)
	require.NoError(t, r.ApplyDelete(1))
	assert.Error(t, r.ApplyInsert(RootID, 2, "div", nil, 0))
}
