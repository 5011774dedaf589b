package resource

import (
	"sort"

	"github.com/pkg/errors"
)

type nodeSet map[Name]struct{}

// Graph holds resources and the dependencies between them.
type Graph struct {
	nodes nodeSet
	// dependencies[n] are the resources n depends on.
	dependencies map[Name]nodeSet
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:        nodeSet{},
		dependencies: map[Name]nodeSet{},
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(node Name) {
	g.nodes[node] = struct{}{}
}

// AddDependency records that node depends on dependency, adding either if missing.
func (g *Graph) AddDependency(node, dependency Name) error {
	if node == dependency {
		return errors.Errorf("%q cannot depend on itself", node.Name)
	}
	if g.DependsOn(dependency, node) {
		return errors.Errorf("circular dependency - %q already depends on %q", dependency.Name, node.Name)
	}
	g.AddNode(node)
	g.AddNode(dependency)
	deps, ok := g.dependencies[node]
	if !ok {
		deps = nodeSet{}
		g.dependencies[node] = deps
	}
	deps[dependency] = struct{}{}
	return nil
}

// DependsOn returns whether node transitively depends on other.
func (g *Graph) DependsOn(node, other Name) bool {
	visited := nodeSet{}
	next := []Name{node}
	for len(next) > 0 {
		cur := next[len(next)-1]
		next = next[:len(next)-1]
		for dep := range g.dependencies[cur] {
			if dep == other {
				return true
			}
			if _, seen := visited[dep]; !seen {
				visited[dep] = struct{}{}
				next = append(next, dep)
			}
		}
	}
	return false
}

// Remove removes a node and every edge touching it.
func (g *Graph) Remove(node Name) {
	delete(g.nodes, node)
	delete(g.dependencies, node)
	for _, deps := range g.dependencies {
		delete(deps, node)
	}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for n := range g.nodes {
		out.nodes[n] = struct{}{}
	}
	for n, deps := range g.dependencies {
		copied := make(nodeSet, len(deps))
		for d := range deps {
			copied[d] = struct{}{}
		}
		out.dependencies[n] = copied
	}
	return out
}

// leaves are the nodes that depend on nothing, sorted by name.
func (g *Graph) leaves() []Name {
	leaves := make([]Name, 0)
	for node := range g.nodes {
		if len(g.dependencies[node]) == 0 {
			leaves = append(leaves, node)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].String() < leaves[j].String() })
	return leaves
}

// TopologicalSort orders nodes so that every node comes after all of its dependencies. Nodes at the
// same depth are sorted by name.
func (g *Graph) TopologicalSort() []Name {
	ordered := []Name{}
	temp := g.Clone()
	for {
		leaves := temp.leaves()
		if len(leaves) == 0 {
			break
		}
		ordered = append(ordered, leaves...)
		for _, leaf := range leaves {
			temp.Remove(leaf)
		}
	}
	return ordered
}

// ReverseTopologicalSort orders nodes so that every node comes before its dependencies.
func (g *Graph) ReverseTopologicalSort() []Name {
	ordered := g.TopologicalSort()
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}
