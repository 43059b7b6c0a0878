// Package graph models the deferred raster computation as a directed
// acyclic graph of typed nodes. Nothing touches the backend until a
// node is materialized through an Evaluator; the node structure stays
// inspectable so step ordering and retry attribution are testable.
package graph

import (
	"context"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/cube"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/indices"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/timeseries"
)

// Node is any vertex of the deferred graph.
type Node interface {
	Describe() string
	Inputs() []Node
}

// CollectionNode materializes to a collection of masked scenes.
type CollectionNode interface {
	Node
	materialize(ctx context.Context, ev *Evaluator) ([]archive.Scene, error)
}

// CubeNode materializes to a multi-band cube.
type CubeNode interface {
	Node
	materialize(ctx context.Context, ev *Evaluator) (*cube.Cube, error)
}

// CompositeNode materializes to a composite cube.
type CompositeNode interface {
	Node
	materialize(ctx context.Context, ev *Evaluator) (*timeseries.CompositeCube, error)
}

// Evaluator is the materialization boundary. Each node is evaluated
// at most once per evaluator; evaluation is single-threaded and
// suspends only inside backend calls.
type Evaluator struct {
	backend archive.Backend
	memo    map[Node]interface{}
}

func NewEvaluator(backend archive.Backend) *Evaluator {
	return &Evaluator{backend: backend, memo: make(map[Node]interface{})}
}

func (ev *Evaluator) Collection(ctx context.Context, n CollectionNode) ([]archive.Scene, error) {
	if cached, ok := ev.memo[n]; ok {
		return cached.([]archive.Scene), nil
	}
	scenes, err := n.materialize(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.memo[n] = scenes
	return scenes, nil
}

func (ev *Evaluator) Cube(ctx context.Context, n CubeNode) (*cube.Cube, error) {
	if cached, ok := ev.memo[n]; ok {
		return cached.(*cube.Cube), nil
	}
	c, err := n.materialize(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.memo[n] = c
	return c, nil
}

func (ev *Evaluator) Composite(ctx context.Context, n CompositeNode) (*timeseries.CompositeCube, error) {
	if cached, ok := ev.memo[n]; ok {
		return cached.(*timeseries.CompositeCube), nil
	}
	cc, err := n.materialize(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.memo[n] = cc
	return cc, nil
}

// Plan lists the graph below a node in dependency-first order, for
// inspection and report attribution.
func Plan(n Node) []string {
	var steps []string
	seen := make(map[Node]bool)
	var walk func(Node)
	walk = func(node Node) {
		if seen[node] {
			return
		}
		seen[node] = true
		for _, input := range node.Inputs() {
			walk(input)
		}
		steps = append(steps, node.Describe())
	}
	walk(n)
	return steps
}

// Filter is the deferred masking filter over the remote archive.
type Filter struct {
	Spec archive.AcquisitionFilter
}

func (f *Filter) Describe() string {
	return "filter " + f.Spec.ArchiveID + " " + f.Spec.Start.Format("2006-01-02") + ".." + f.Spec.End.Format("2006-01-02")
}

func (f *Filter) Inputs() []Node { return nil }

func (f *Filter) materialize(ctx context.Context, ev *Evaluator) ([]archive.Scene, error) {
	return archive.FetchFiltered(ctx, ev.backend, f.Spec)
}

// Static wraps already-fetched Scene-shaped data, e.g. auxiliary
// climate or soil connectors, so it unions into the pipeline without
// special-casing.
type Static struct {
	Name   string
	Scenes []archive.Scene
}

func (s *Static) Describe() string { return "static " + s.Name }
func (s *Static) Inputs() []Node   { return nil }

func (s *Static) materialize(ctx context.Context, ev *Evaluator) ([]archive.Scene, error) {
	return s.Scenes, nil
}

// Union concatenates collections in declaration order.
type Union struct {
	Parts []CollectionNode
}

func (u *Union) Describe() string { return "union" }

func (u *Union) Inputs() []Node {
	nodes := make([]Node, len(u.Parts))
	for i, p := range u.Parts {
		nodes[i] = p
	}
	return nodes
}

func (u *Union) materialize(ctx context.Context, ev *Evaluator) ([]archive.Scene, error) {
	var all []archive.Scene
	for _, part := range u.Parts {
		scenes, err := ev.Collection(ctx, part)
		if err != nil {
			return nil, err
		}
		all = append(all, scenes...)
	}
	return all, nil
}

// Stack builds the dated multi-band cube from a collection.
type Stack struct {
	Input CollectionNode
}

func (s *Stack) Describe() string { return "stack" }
func (s *Stack) Inputs() []Node   { return []Node{s.Input} }

func (s *Stack) materialize(ctx context.Context, ev *Evaluator) (*cube.Cube, error) {
	scenes, err := ev.Collection(ctx, s.Input)
	if err != nil {
		return nil, err
	}
	return cube.Build(scenes)
}

// WithIndices appends derived index bands per acquisition date.
// OnSkip, when set, observes indices skipped for missing bands.
type WithIndices struct {
	Input  CubeNode
	Defs   []indices.Definition
	OnSkip func(indices.Skip)
}

func (w *WithIndices) Describe() string { return "indices" }
func (w *WithIndices) Inputs() []Node   { return []Node{w.Input} }

func (w *WithIndices) materialize(ctx context.Context, ev *Evaluator) (*cube.Cube, error) {
	c, err := ev.Cube(ctx, w.Input)
	if err != nil {
		return nil, err
	}
	skipped, err := indices.Apply(c, w.Defs)
	if err != nil {
		return nil, err
	}
	if w.OnSkip != nil {
		for _, skip := range skipped {
			w.OnSkip(skip)
		}
	}
	return c, nil
}

// Composite reduces the cube into period mosaics. OnGap, when set,
// observes empty (variable, period) groups.
type Composite struct {
	Input       CubeNode
	Granularity timeseries.Granularity
	Reducers    timeseries.ReducerConfig
	Start       time.Time
	End         time.Time
	OnGap       func(timeseries.Gap)
}

func (c *Composite) Describe() string { return "compose " + string(c.Granularity) }
func (c *Composite) Inputs() []Node   { return []Node{c.Input} }

func (c *Composite) materialize(ctx context.Context, ev *Evaluator) (*timeseries.CompositeCube, error) {
	in, err := ev.Cube(ctx, c.Input)
	if err != nil {
		return nil, err
	}
	cc, gaps, err := timeseries.Compose(in, c.Granularity, c.Reducers, c.Start, c.End)
	if err != nil {
		return nil, err
	}
	if c.OnGap != nil {
		for _, gap := range gaps {
			c.OnGap(gap)
		}
	}
	return cc, nil
}
