package gprof

import (
	"fmt"
	"strings"
)

// Node is one frame of the materialized call tree. The json names match what
// d3-flame-graph reads.
type Node struct {
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	SelfTime float64 `json:"self_time"`
	Calls    int     `json:"calls"`
	// Label is the hover text shown by the flame graph.
	Label string `json:"label"`
	// Recursive marks a call back into a function already on the path. Its
	// children are not expanded.
	Recursive bool    `json:"recursive,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// Walk calls fn for n and every node below it, depth first. stack holds the
// ancestors of the visited node, outermost first. fn must not retain stack.
func (n *Node) Walk(fn func(n *Node, stack []*Node)) {
	n.walk(nil, fn)
}

func (n *Node) walk(stack []*Node, fn func(n *Node, stack []*Node)) {
	fn(n, stack)
	stack = append(stack, n)
	for _, child := range n.Children {
		child.walk(stack, fn)
	}
}

// Tooltip cuts name at its first parenthesis and appends the value with four
// decimals.
func Tooltip(name string, value float64) string {
	name, _, _ = strings.Cut(name, "(")
	return fmt.Sprintf("%s: %.4f", name, value)
}
