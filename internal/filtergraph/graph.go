// Package filtergraph turns an ordered set of resolved clips plus
// enhancement settings into a typed media-operation graph, and serializes
// that graph to ffmpeg filter_complex syntax only at the encoder boundary.
// Building the graph is pure: no subprocess, no filesystem.
package filtergraph

import (
	"fmt"
	"regexp"
	"strings"
)

// Stream is a named edge in the graph: either an input stream reference
// ("0:v", "2:a") or an intermediate label produced by a node ("v0",
// "amix"). Serialized inside brackets.
type Stream string

// sourceStream matches ffmpeg input stream references like "0:v" or "3:a".
var sourceStream = regexp.MustCompile(`^\d+:[va]$`)

// IsSource reports whether the stream references an input file stream
// rather than a node-produced label.
func (s Stream) IsSource() bool {
	return sourceStream.MatchString(string(s))
}

// Node is one filter invocation with named input and output ports.
type Node struct {
	Inputs  []Stream
	Filter  string
	Args    string
	Outputs []Stream
}

// String serializes a node to filter_complex chain syntax.
func (n Node) String() string {
	var b strings.Builder
	for _, in := range n.Inputs {
		fmt.Fprintf(&b, "[%s]", in)
	}
	b.WriteString(n.Filter)
	if n.Args != "" {
		b.WriteByte('=')
		b.WriteString(n.Args)
	}
	for _, out := range n.Outputs {
		fmt.Fprintf(&b, "[%s]", out)
	}
	return b.String()
}

// Graph is an ordered list of nodes. Order is meaningful only for
// readability of the serialized output; correctness comes from labels.
type Graph struct {
	nodes []Node
}

// Add appends a node.
func (g *Graph) Add(n Node) {
	g.nodes = append(g.nodes, n)
}

// Chain appends a single-input single-output filter and returns the
// output label it produced.
func (g *Graph) Chain(in Stream, filter, args string, out Stream) Stream {
	g.Add(Node{Inputs: []Stream{in}, Filter: filter, Args: args, Outputs: []Stream{out}})
	return out
}

// Source appends a zero-input filter source (anullsrc, color) producing
// the given label.
func (g *Graph) Source(filter, args string, out Stream) Stream {
	g.Add(Node{Filter: filter, Args: args, Outputs: []Stream{out}})
	return out
}

// Nodes returns the node list.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// String serializes the whole graph to filter_complex syntax.
func (g *Graph) String() string {
	parts := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ";")
}

// Validate checks the label discipline ffmpeg enforces at runtime:
// every non-source input must be produced by exactly one node, and every
// produced label must be consumed exactly once or be a declared final
// output. Catching this here turns encoder stderr mysteries into build
// errors.
func (g *Graph) Validate(finalOuts ...Stream) error {
	produced := make(map[Stream]int)
	consumed := make(map[Stream]int)

	for _, n := range g.nodes {
		for _, out := range n.Outputs {
			produced[out]++
		}
		for _, in := range n.Inputs {
			consumed[in]++
		}
	}

	for label, count := range produced {
		if count > 1 {
			return fmt.Errorf("label %q produced %d times", label, count)
		}
	}

	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in.IsSource() {
				continue
			}
			if produced[in] == 0 {
				return fmt.Errorf("filter %s consumes undefined label %q", n.Filter, in)
			}
		}
	}

	final := make(map[Stream]bool, len(finalOuts))
	for _, f := range finalOuts {
		final[f] = true
	}
	for label := range produced {
		if final[label] {
			if consumed[label] > 0 {
				return fmt.Errorf("final output %q is also consumed inside the graph", label)
			}
			continue
		}
		if consumed[label] == 0 {
			return fmt.Errorf("label %q is produced but never consumed", label)
		}
		if consumed[label] > 1 {
			return fmt.Errorf("label %q consumed %d times (split filter required)", label, consumed[label])
		}
	}
	for _, f := range finalOuts {
		if produced[f] == 0 {
			return fmt.Errorf("final output %q is never produced", f)
		}
	}
	return nil
}
