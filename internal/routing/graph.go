// Package routing builds and validates the static routing graph (C6): a
// DAG of named stages (sources, filters, sinks) connected by hopper
// channels, plus the TimerFlush tick generator that fans a monotonic
// counter into every channel.
//
// Grounded on cmd/frigg/app's moduleName/orderedDeps dependency-graph
// wiring: a small named-node graph with an explicit cycle check performed
// once at startup, not re-evaluated at runtime.
package routing

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// StageKind classifies a node in the routing graph.
type StageKind int

const (
	StageSource StageKind = iota
	StageFilter
	StageSink
)

func (k StageKind) String() string {
	switch k {
	case StageSource:
		return "source"
	case StageFilter:
		return "filter"
	case StageSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Stage is one named node in the configured topology. Sources have no
// inbound edge; sinks have no outbound edges; filters may have any number
// of inbound edges and one or more outbound edges. Build checks only that
// every forward names a known stage and that the graph is acyclic; it
// does not enforce these edge counts.
type Stage struct {
	Name     string
	Kind     StageKind
	Forwards []string // names of downstream stages this stage sends to
}

// Graph is the validated, static topology built from configuration.
type Graph struct {
	stages map[string]Stage
	order  []string
}

// ErrCycle is returned by Build when the configured forwards form a
// cycle — the topology must be acyclic, per spec.md §9.
var ErrCycle = errors.New("routing: configured topology contains a cycle")

// Build validates stages form a DAG (sources have no inbound edges among
// themselves forming a loop back to a source, and no filter chain cycles
// back on itself) and returns a Graph with stages in a valid topological
// processing order.
func Build(stages []Stage) (*Graph, error) {
	g := &Graph{stages: make(map[string]Stage, len(stages))}
	for _, s := range stages {
		if _, exists := g.stages[s.Name]; exists {
			return nil, fmt.Errorf("routing: duplicate stage name %q", s.Name)
		}
		g.stages[s.Name] = s
	}
	for _, s := range stages {
		for _, fwd := range s.Forwards {
			if _, ok := g.stages[fwd]; !ok {
				return nil, fmt.Errorf("routing: stage %q forwards to unknown stage %q", s.Name, fwd)
			}
		}
	}

	order, err := topoSort(g.stages)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// Order returns stage names in a valid topological order: every stage
// appears after all stages that forward into it.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Stage looks up a stage by name.
func (g *Graph) Stage(name string) (Stage, bool) {
	s, ok := g.stages[name]
	return s, ok
}

func topoSort(stages map[string]Stage) ([]string, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(stages))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return errors.Wrapf(ErrCycle, "at stage %q", name)
		}
		state[name] = visiting
		for _, fwd := range stages[name].Forwards {
			if err := visit(fwd); err != nil {
				return err
			}
		}
		state[name] = visited
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(stages))
	for name := range stages {
		names = append(names, name)
	}
	// deterministic traversal order for reproducible error messages and
	// processing order across runs
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	// visit appends a stage after all of its forwards are visited, which
	// makes `order` downstream-first; reverse it so upstream stages
	// (sources) come first.
	reverse(order)
	return order, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
