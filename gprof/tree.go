package gprof

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolved     = errors.New("unresolved callee index")
	ErrDuplicateIndex = errors.New("duplicate function index")
	ErrNoRoot         = errors.New("report has no root function")
	ErrUnknownIndex   = errors.New("unknown function index")
)

// UnresolvedError is returned when a callee line references an index that no
// section of the report describes.
type UnresolvedError struct {
	// Position of the section holding the callee line.
	Position int
	Caller   Record
	Callee   Record
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("callee %q [%d] of %q [%d] has no section", e.Callee.Name, e.Callee.Index, e.Caller.Name, e.Caller.Index)
}

func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}

// Report is the result of one parse. Sections is the arena of every parsed
// section in report order. Edges between functions are kept as indexes and
// only turned into a tree by Node.
type Report struct {
	Sections []Section

	// index maps a function index to its position in Sections.
	index  map[int]int
	root   int
	cycles [][]int
}

// Assemble indexes the sections by function index and checks that every
// callee resolves. Resolution does not depend on the order of the sections.
func Assemble(sections []Section) (*Report, error) {
	r := &Report{
		Sections: sections,
		index:    make(map[int]int, len(sections)),
		root:     -1,
	}

	for pos, s := range sections {
		if !s.Found {
			continue
		}
		if prev, ok := r.index[s.Primary.Index]; ok {
			return nil, fmt.Errorf("section %d redefines index %d from section %d: %w", pos, s.Primary.Index, prev, ErrDuplicateIndex)
		}
		r.index[s.Primary.Index] = pos
		if r.root < 0 {
			r.root = pos
		}
	}

	for pos, s := range sections {
		for _, callee := range s.Callees {
			if _, ok := r.index[callee.Index]; !ok {
				return nil, &UnresolvedError{
					Position: pos,
					Caller:   s.Primary,
					Callee:   callee,
				}
			}
		}
	}

	r.cycles = r.findCycles()
	return r, nil
}

// Lookup returns the canonical section for a function index.
func (r *Report) Lookup(index int) (Section, bool) {
	pos, ok := r.index[index]
	if !ok {
		return Section{}, false
	}
	return r.Sections[pos], true
}

// Functions returns the primary record of every section that has one, in
// report order.
func (r *Report) Functions() []Record {
	out := make([]Record, 0, len(r.index))
	for _, s := range r.Sections {
		if s.Found {
			out = append(out, s.Primary)
		}
	}
	return out
}

// Root is the first section with a primary line. Leading placeholder sections
// are skipped.
func (r *Report) Root() (Record, bool) {
	if r.root < 0 {
		return Record{}, false
	}
	return r.Sections[r.root].Primary, true
}

// Cycles lists every call cycle found in the report. Each cycle is the
// sequence of function indexes starting at the function that is re-entered.
func (r *Report) Cycles() [][]int {
	return r.cycles
}

func (r *Report) findCycles() [][]int {
	const (
		white = iota
		grey
		black
	)
	var (
		color  = make(map[int]int, len(r.index))
		stack  []int
		cycles [][]int
		visit  func(index int)
	)
	visit = func(index int) {
		color[index] = grey
		stack = append(stack, index)
		for _, callee := range r.Sections[r.index[index]].Callees {
			switch color[callee.Index] {
			case white:
				visit(callee.Index)
			case grey:
				start := len(stack) - 1
				for stack[start] != callee.Index {
					start--
				}
				cycles = append(cycles, append([]int(nil), stack[start:]...))
			}
		}
		stack = stack[:len(stack)-1]
		color[index] = black
	}

	for _, s := range r.Sections {
		if s.Found && color[s.Primary.Index] == white {
			visit(s.Primary.Index)
		}
	}
	return cycles
}

// Node materializes the call tree below the root. maxDepth limits how many
// levels below the root are expanded, zero or less means no limit.
func (r *Report) Node(maxDepth int) (*Node, error) {
	root, ok := r.Root()
	if !ok {
		return nil, ErrNoRoot
	}
	return r.expand(root, make(map[int]bool), 0, maxDepth), nil
}

// NodeFor materializes the call tree below an arbitrary function.
func (r *Report) NodeFor(index int, maxDepth int) (*Node, error) {
	s, ok := r.Lookup(index)
	if !ok {
		return nil, fmt.Errorf("index %d: %w", index, ErrUnknownIndex)
	}
	return r.expand(s.Primary, make(map[int]bool), 0, maxDepth), nil
}

// expand builds the node for rec. The values come from rec itself, which is
// the call site record for callees, and the children come from the canonical
// section of rec.Index. A function already on the current path is not
// expanded again.
func (r *Report) expand(rec Record, onPath map[int]bool, depth, maxDepth int) *Node {
	n := &Node{
		Index:    rec.Index,
		Name:     rec.Name,
		Value:    rec.Value,
		SelfTime: rec.SelfTime,
		Calls:    rec.Calls,
		Label:    Tooltip(rec.Name, rec.Value),
	}
	if onPath[rec.Index] {
		n.Recursive = true
		return n
	}
	if maxDepth > 0 && depth >= maxDepth {
		return n
	}

	pos, ok := r.index[rec.Index]
	if !ok {
		return n
	}
	onPath[rec.Index] = true
	for _, callee := range r.Sections[pos].Callees {
		n.Children = append(n.Children, r.expand(callee, onPath, depth+1, maxDepth))
	}
	delete(onPath, rec.Index)
	return n
}
