package pipeline

import (
	"fmt"

	"github.com/leapstack-labs/housetax/internal/dag"
)

// Plan validates stages and links them into a graph. Stage B depends on
// stage A when one of B's inputs is A's output. Inputs that no stage
// produces are files that must already exist.
func Plan(stages []Stage) (*dag.Graph[Stage], error) {
	g := dag.NewGraph[Stage]()
	producer := make(map[string]string, len(stages))

	for _, s := range stages {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := g.Node(s.Name); dup {
			return nil, fmt.Errorf("duplicate stage name %q", s.Name)
		}
		out := cleanPath(s.Output)
		if other, dup := producer[out]; dup {
			return nil, fmt.Errorf("stages %q and %q both write %s", other, s.Name, s.Output)
		}
		producer[out] = s.Name
		g.AddNode(s.Name, s)
	}

	for _, s := range stages {
		for _, in := range s.Inputs {
			parent, ok := producer[cleanPath(in)]
			if !ok {
				continue
			}
			if err := g.AddEdge(parent, s.Name); err != nil {
				return nil, fmt.Errorf("stage %q: %w", s.Name, err)
			}
		}
	}

	if err := g.FindCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

// Select returns the stage names to run, in execution order. An empty
// selection means every stage. With downstream set, everything that
// depends on a selected stage runs too.
func Select(g *dag.Graph[Stage], selected []string, downstream bool) ([]string, error) {
	ids := g.Nodes()
	if len(selected) > 0 {
		for _, name := range selected {
			if _, ok := g.Node(name); !ok {
				return nil, fmt.Errorf("unknown stage %q", name)
			}
		}
		ids = selected
		if downstream {
			ids = g.Downstream(selected...)
		}
	}
	return g.Subgraph(ids).TopologicalSort()
}
