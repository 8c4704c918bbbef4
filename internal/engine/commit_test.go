package engine

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/dom"
	"github.com/loomkit/loom/internal/surface"
)

func TestCommit_MountScriptGolden(t *testing.T) {
	mem := surface.NewMemory()
	sink := &captureSink{}
	eng := New(mem,
		WithCommitSink(sink),
		WithPassTokens(NewFixedGenerator("pass-1")),
	)

	eng.Mount(dom.Host("div", dom.Props{"class": dom.String("box")},
		dom.Text("hi"),
		dom.Host("span", nil),
	), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "pass-1", rec.PassToken)

	data, err := dom.MarshalCanonical(ScriptValue(rec.Script))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "mount_script", data)
}

func TestCommit_ScriptRoundTripsThroughCanonicalJSON(t *testing.T) {
	script := []Mutation{
		{Op: OpInsert, NodeID: 2, ParentID: 0, Index: 0, Type: "div", Props: dom.Props{"class": dom.String("x")}, Seq: 5},
		{Op: OpUpdate, NodeID: 2, Props: dom.Props{"class": dom.String("y"), "gone": dom.Null{}}, Seq: 6},
		{Op: OpMove, NodeID: 2, Index: 1, Seq: 7},
		{Op: OpDelete, NodeID: 2, Seq: 8},
	}

	data, err := dom.MarshalCanonical(ScriptValue(script))
	require.NoError(t, err)

	v, err := dom.UnmarshalCanonical(data)
	require.NoError(t, err)
	back, err := DecodeScript(v)
	require.NoError(t, err)

	require.Len(t, back, len(script))
	for i := range script {
		assert.Equal(t, script[i].Op, back[i].Op)
		assert.Equal(t, script[i].NodeID, back[i].NodeID)
		assert.Equal(t, script[i].Seq, back[i].Seq)
	}
	assert.Equal(t, script[0].Type, back[0].Type)
	assert.True(t, dom.Equal(script[1].Props, back[1].Props))
	assert.Equal(t, 1, back[2].Index)
}

func TestCommit_MoveIndicesValidAtApplicationTime(t *testing.T) {
	// [a b c] -> [c a b] emits a single move whose index is correct for the
	// surface state when it applies; the memory surface validates strictly.
	mem := surface.NewMemory()
	eng := New(mem)

	list := func(keys ...string) dom.Node {
		items := make([]dom.Node, len(keys))
		for i, k := range keys {
			items[i] = dom.Keyed(k, dom.Host("li", dom.Props{"k": dom.String(k)}))
		}
		return dom.Host("ul", nil, items...)
	}

	root := eng.Mount(list("a", "b", "c"), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	root.Update(list("c", "a", "b"), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	want := "#root#0\n" +
		"  ul#2\n" +
		"    li#5 k=\"c\"\n" +
		"    li#3 k=\"a\"\n" +
		"    li#4 k=\"b\"\n"
	assert.Equal(t, want, mem.Render())

	// And back again.
	root.Update(list("a", "b", "c"), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	want = "#root#0\n" +
		"  ul#2\n" +
		"    li#3 k=\"a\"\n" +
		"    li#4 k=\"b\"\n" +
		"    li#5 k=\"c\"\n"
	assert.Equal(t, want, mem.Render())
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
