package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/dom"
	"github.com/loomkit/loom/internal/surface"
)

func TestEngine_EffectBodiesParentBeforeChild(t *testing.T) {
	mem := surface.NewMemory()
	eng := New(mem)

	var order []string
	child := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		ctx.Effect(func() dom.CleanupFunc {
			order = append(order, "child effect")
			return func() { order = append(order, "child cleanup") }
		})
		return dom.Text("c")
	}
	parent := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		ctx.Effect(func() dom.CleanupFunc {
			order = append(order, "parent effect")
			return func() { order = append(order, "parent cleanup") }
		})
		return dom.Component("Child", child, nil)
	}

	root := eng.Mount(dom.Component("Parent", parent, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))
	assert.Equal(t, []string{"parent effect", "child effect"}, order)

	// Empty deps fire on the first commit only.
	root.Update(dom.Component("Parent", parent, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))
	assert.Equal(t, []string{"parent effect", "child effect"}, order)

	// Unmounting runs cleanups child-before-parent.
	root.Update(dom.Host("div", nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))
	assert.Equal(t, []string{
		"parent effect", "child effect",
		"child cleanup", "parent cleanup",
	}, order)
}

func TestEngine_EffectRerunsWhenDepsChange(t *testing.T) {
	mem := surface.NewMemory()
	eng := New(mem)

	var order []string
	var set dom.Setter
	comp := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		v, s := ctx.State(dom.Int(0))
		set = s
		ctx.Effect(func() dom.CleanupFunc {
			order = append(order, fmt.Sprintf("effect %v", v))
			return func() { order = append(order, fmt.Sprintf("cleanup %v", v)) }
		}, v)
		return dom.Text(fmt.Sprint(v))
	}

	eng.Mount(dom.Component("Deps", comp, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	set.Set(dom.Int(1))
	require.NoError(t, eng.Flush(context.Background()))

	// The superseded run's cleanup fires before the new body.
	assert.Equal(t, []string{"effect 0", "cleanup 0", "effect 1"}, order)
}

func TestEngine_EffectSkippedWhenDepsStable(t *testing.T) {
	mem := surface.NewMemory()
	eng := New(mem)

	runs := 0
	var set dom.Setter
	comp := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		v, s := ctx.State(dom.Int(0))
		set = s
		ctx.Effect(func() dom.CleanupFunc {
			runs++
			return nil
		}, dom.String("stable"))
		return dom.Text(fmt.Sprint(v))
	}

	eng.Mount(dom.Component("Stable", comp, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	set.Set(dom.Int(1))
	require.NoError(t, eng.Flush(context.Background()))

	assert.Equal(t, 1, runs)
}

func TestEngine_EffectWritesScheduleFollowUpPass(t *testing.T) {
	mem := surface.NewMemory()
	eng := New(mem)

	comp := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		v, set := ctx.State(dom.String("loading"))
		ctx.Effect(func() dom.CleanupFunc {
			set.Set(dom.String("ready"))
			return nil
		})
		return dom.Text(string(v.(dom.String)))
	}

	eng.Mount(dom.Component("Loader", comp, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	// Flush drains the follow-up pass the effect scheduled.
	assert.Contains(t, mem.Render(), `text="ready"`)
}

func TestEngine_EffectPanicIsContained(t *testing.T) {
	mem := surface.NewMemory()
	eng := New(mem)

	comp := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		ctx.Effect(func() dom.CleanupFunc {
			panic("effect exploded")
		})
		return dom.Text("ok")
	}

	eng.Mount(dom.Component("Explosive", comp, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))

	// The commit itself succeeded; the panic was logged, not propagated.
	assert.Contains(t, mem.Render(), `text="ok"`)
}

func TestEngine_DiscardedPassDropsEffectMarks(t *testing.T) {
	mem := surface.NewMemory()
	eng := New(mem)

	runs := 0
	builds := 0
	var set dom.Setter
	comp := func(ctx dom.Hooks, _ dom.Props) dom.Node {
		builds++
		v, s := ctx.State(dom.Int(0))
		set = s
		if builds == 2 {
			eng.AtLane(LaneImmediate, func() { set.Set(dom.Int(5)) })
		}
		ctx.Effect(func() dom.CleanupFunc {
			runs++
			return nil
		}, v)
		return dom.Text(fmt.Sprint(v))
	}

	eng.Mount(dom.Component("Marks", comp, nil), LaneUserVisible)
	require.NoError(t, eng.Flush(context.Background()))
	require.Equal(t, 1, runs)

	eng.AtLane(LaneBackground, func() { set.Set(dom.Int(5)) })
	require.NoError(t, eng.Flush(context.Background()))

	// The interrupted background build marked the effect due, but that mark
	// died with the discarded pass. The immediate pass re-evaluated deps
	// (0 -> 5) and fired once; the final background pass saw stable deps.
	assert.Equal(t, 2, runs)
}
