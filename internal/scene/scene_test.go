package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/dom"
	"github.com/loomkit/loom/internal/engine"
)

const sampleScene = `
name: todo-list
description: keyed list with a reorder step
root:
  host: div
  props:
    class: app
  children:
    - host: ul
      children:
        - host: li
          key: a
          props: {label: alpha}
        - host: li
          key: b
          props: {label: beta}
steps:
  - name: reorder
    lane: user-visible
    root:
      host: div
      props:
        class: app
      children:
        - host: ul
          children:
            - host: li
              key: b
              props: {label: beta}
            - host: li
              key: a
              props: {label: alpha}
  - name: background refresh
    lane: background
    root:
      host: div
`

func writeScene(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesScene(t *testing.T) {
	sc, err := Load(writeScene(t, sampleScene))
	require.NoError(t, err)

	assert.Equal(t, "todo-list", sc.Name)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, engine.LaneUserVisible, sc.Steps[0].StepLane())
	assert.Equal(t, engine.LaneBackground, sc.Steps[1].StepLane())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
name: typo
root:
  host: div
stepz:
  - root: {host: div}
`))
	require.Error(t, err)
}

func TestParse_RequiresName(t *testing.T) {
	_, err := Parse([]byte("root: {host: div}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestParse_RejectsAmbiguousNode(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
root:
  host: div
  text: also text
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestParse_RejectsTextWithChildren(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
root:
  text: hello
  children:
    - host: div
`))
	require.Error(t, err)
}

func TestParse_RejectsUnknownLane(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
root: {host: div}
steps:
  - lane: warp
    root: {host: div}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lane")
}

func TestNodeSpec_DescriptorConversion(t *testing.T) {
	sc, err := Load(writeScene(t, sampleScene))
	require.NoError(t, err)

	desc, err := sc.Root.Descriptor()
	require.NoError(t, err)

	assert.Equal(t, dom.KindHost, desc.Kind)
	assert.Equal(t, "div", desc.Type)
	assert.Equal(t, dom.String("app"), desc.Props["class"])

	require.Len(t, desc.Children, 1)
	ul := desc.Children[0]
	require.Len(t, ul.Children, 2)
	assert.Equal(t, "a", ul.Children[0].Key)
	assert.Equal(t, dom.String("alpha"), ul.Children[0].Props["label"])
}

func TestNodeSpec_TextAndFragment(t *testing.T) {
	sc, err := Parse([]byte(`
name: variants
root:
  fragment: true
  children:
    - text: hello
    - host: span
`))
	require.NoError(t, err)

	desc, err := sc.Root.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, dom.KindFragment, desc.Kind)
	require.Len(t, desc.Children, 2)
	assert.Equal(t, "text", desc.Children[0].Type)
	assert.Equal(t, dom.String("hello"), desc.Children[0].Props["text"])
}

func TestNodeSpec_PropsKeepScalarVariants(t *testing.T) {
	sc, err := Parse([]byte(`
name: props
root:
  host: div
  props:
    count: 3
    ratio: 0.5
    on: true
    tags: [a, b]
`))
	require.NoError(t, err)

	desc, err := sc.Root.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, dom.Int(3), desc.Props["count"])
	assert.Equal(t, dom.Float(0.5), desc.Props["ratio"])
	assert.Equal(t, dom.Bool(true), desc.Props["on"])
	assert.Equal(t, dom.List{dom.String("a"), dom.String("b")}, desc.Props["tags"])
}
