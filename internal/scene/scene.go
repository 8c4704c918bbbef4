// Package scene loads declarative render scenes from YAML. A scene names
// an initial descriptor tree and a sequence of replacement trees; the CLI
// mounts the first and steps through the rest, which makes the diff and
// commit behavior observable without writing Go.
//
// Scenes describe host and fragment trees only. Components are functions
// and cannot be expressed in data; scenes exercise the structural half of
// the engine (keys, moves, prop deltas) rather than state and effects.
package scene

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loomkit/loom/internal/dom"
	"github.com/loomkit/loom/internal/engine"
)

// Scene is one loaded scene file.
type Scene struct {
	// Name uniquely identifies this scene.
	Name string `yaml:"name"`

	// Description explains what this scene demonstrates.
	Description string `yaml:"description,omitempty"`

	// Root is the initial descriptor tree to mount.
	Root NodeSpec `yaml:"root"`

	// Steps are replacement trees applied in order after the initial
	// mount, each producing one render pass.
	Steps []Step `yaml:"steps,omitempty"`
}

// NodeSpec is the YAML shape of one descriptor node. Exactly one of Host,
// Text, or Fragment must be set.
type NodeSpec struct {
	// Host is the host primitive type name (e.g. "div", "button").
	Host string `yaml:"host,omitempty"`

	// Text is shorthand for a text host node carrying this content.
	Text string `yaml:"text,omitempty"`

	// Fragment marks a grouping node that owns no surface node.
	Fragment bool `yaml:"fragment,omitempty"`

	// Key is the optional identity key among siblings.
	Key string `yaml:"key,omitempty"`

	// Props are the node's properties. Scalars, lists, and nested maps are
	// allowed; values must round-trip through the canonical value model.
	Props map[string]any `yaml:"props,omitempty"`

	// Children are the node's child specs.
	Children []NodeSpec `yaml:"children,omitempty"`
}

// Step is one update in a scene: a full replacement descriptor tree and
// the lane it triggers at.
type Step struct {
	// Name labels the step in logs and rendered output.
	Name string `yaml:"name,omitempty"`

	// Lane is the trigger lane: immediate, user-visible, background, or
	// idle. Empty defaults to user-visible.
	Lane string `yaml:"lane,omitempty"`

	// Root is the replacement descriptor tree.
	Root NodeSpec `yaml:"root"`
}

// Load reads and parses a scene YAML file. Unknown fields are rejected so
// typos fail loudly instead of silently dropping updates.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	return Parse(data)
}

// Parse parses scene YAML bytes.
func Parse(data []byte) (*Scene, error) {
	var sc Scene
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scene YAML: %w", err)
	}

	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scene: %w", err)
	}
	return &sc, nil
}

func (sc *Scene) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := sc.Root.check("root"); err != nil {
		return err
	}
	for i, step := range sc.Steps {
		if _, err := engine.ParseLane(step.Lane); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := step.Root.check(fmt.Sprintf("steps[%d].root", i)); err != nil {
			return err
		}
	}
	return nil
}

func (n *NodeSpec) check(path string) error {
	set := 0
	if n.Host != "" {
		set++
	}
	if n.Text != "" {
		set++
	}
	if n.Fragment {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one of host, text, fragment is required", path)
	}
	if n.Text != "" && (len(n.Props) > 0 || len(n.Children) > 0) {
		return fmt.Errorf("%s: text nodes take no props or children", path)
	}
	for i := range n.Children {
		if err := n.Children[i].check(fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor converts the YAML node into an immutable descriptor node.
func (n *NodeSpec) Descriptor() (dom.Node, error) {
	if n.Text != "" {
		out := dom.Text(n.Text)
		out.Key = n.Key
		return out, nil
	}

	children := make([]dom.Node, 0, len(n.Children))
	for i := range n.Children {
		c, err := n.Children[i].Descriptor()
		if err != nil {
			return dom.Node{}, err
		}
		children = append(children, c)
	}

	if n.Fragment {
		out := dom.Fragment(children...)
		out.Key = n.Key
		return out, nil
	}

	props := dom.Props{}
	for k, raw := range n.Props {
		v, err := dom.FromGo(raw)
		if err != nil {
			return dom.Node{}, fmt.Errorf("prop %q: %w", k, err)
		}
		props[k] = v
	}

	out := dom.Host(n.Host, props, children...)
	out.Key = n.Key
	return out, nil
}

// StepLane returns the parsed lane of a step. Validation has already
// established it parses.
func (s *Step) StepLane() engine.Lane {
	lane, err := engine.ParseLane(s.Lane)
	if err != nil {
		return engine.LaneUserVisible
	}
	return lane
}
