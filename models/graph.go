package models

import (
	"fmt"
	"sort"
)

// Edge is one resolved connection between two node ports
type Edge struct {
	From     string
	FromPort string
	To       string
	ToPort   string
}

// Edges flattens the connections mapping into a deterministic edge list.
// Edges are ordered by source node position in Nodes, then by port name,
// then by target position in the port's list.
func (d *WorkflowDefinition) Edges() []Edge {
	var edges []Edge
	for _, node := range d.Nodes {
		ports, ok := d.Connections[node.ID]
		if !ok {
			continue
		}
		portNames := make([]string, 0, len(ports))
		for port := range ports {
			portNames = append(portNames, port)
		}
		sort.Strings(portNames)
		for _, port := range portNames {
			for _, target := range ports[port] {
				edges = append(edges, Edge{
					From:     node.ID,
					FromPort: port,
					To:       target.Node,
					ToPort:   target.Port,
				})
			}
		}
	}
	return edges
}

// IncomingEdges returns all edges whose target is the given node
func (d *WorkflowDefinition) IncomingEdges(nodeID string) []Edge {
	var in []Edge
	for _, e := range d.Edges() {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// OutgoingEdges returns all edges whose source is the given node
func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges() {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Dependencies returns the distinct upstream node ids of a node
func (d *WorkflowDefinition) Dependencies(nodeID string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, e := range d.IncomingEdges(nodeID) {
		if !seen[e.From] {
			seen[e.From] = true
			deps = append(deps, e.From)
		}
	}
	return deps
}

// Dependents returns the distinct downstream node ids of a node
func (d *WorkflowDefinition) Dependents(nodeID string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, e := range d.OutgoingEdges(nodeID) {
		if !seen[e.To] {
			seen[e.To] = true
			deps = append(deps, e.To)
		}
	}
	return deps
}

// TerminalNodes returns the ids of nodes with no outgoing edges,
// in definition order
func (d *WorkflowDefinition) TerminalNodes() []string {
	var terminals []string
	for _, node := range d.Nodes {
		if len(d.OutgoingEdges(node.ID)) == 0 {
			terminals = append(terminals, node.ID)
		}
	}
	return terminals
}

// DownstreamOf returns every node reachable from the given node
func (d *WorkflowDefinition) DownstreamOf(nodeID string) map[string]bool {
	reachable := make(map[string]bool)
	frontier := []string{nodeID}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, next := range d.Dependents(current) {
			if !reachable[next] {
				reachable[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	return reachable
}

// Validate checks structural invariants of the definition:
// node ids are unique, every connection endpoint exists, and
// the connection graph is acyclic
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("workflow has no nodes")
	}

	ids := make(map[string]bool, len(d.Nodes))
	for _, node := range d.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node id is required")
		}
		if node.Type == "" {
			return fmt.Errorf("node %s: type is required", node.ID)
		}
		if ids[node.ID] {
			return fmt.Errorf("duplicate node id: %s", node.ID)
		}
		ids[node.ID] = true
	}

	for source, ports := range d.Connections {
		if !ids[source] {
			return fmt.Errorf("connection references unknown source node: %s", source)
		}
		for port, targets := range ports {
			for _, target := range targets {
				if !ids[target.Node] {
					return fmt.Errorf("connection %s.%s references unknown target node: %s", source, port, target.Node)
				}
			}
		}
	}

	if err := d.checkAcyclic(); err != nil {
		return err
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm over the connection graph
func (d *WorkflowDefinition) checkAcyclic() error {
	inDegree := make(map[string]int, len(d.Nodes))
	adjacency := make(map[string][]string, len(d.Nodes))
	for _, node := range d.Nodes {
		inDegree[node.ID] = 0
	}
	for _, e := range d.Edges() {
		inDegree[e.To]++
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	var queue []string
	for _, node := range d.Nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(d.Nodes) {
		return ErrGraphCycle
	}
	return nil
}
