package viewer

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/google/uuid"
)

// Loaded is a report that was parsed and assembled successfully.
type Loaded struct {
	ID       string
	Name     string
	LoadedAt time.Time
	Report   *gprof.Report
	Tree     *gprof.Node
}

// Store holds the one report the viewer currently shows. Loading a report
// discards the previous one before parsing starts, loads never overlap.
type Store struct {
	maxDepth int

	loadMu sync.Mutex

	mu      sync.RWMutex
	current *Loaded
}

func NewStore(maxDepth int) *Store {
	return &Store{maxDepth: maxDepth}
}

// Load replaces the current report with the one read from r. On failure the
// store is left empty.
func (s *Store) Load(name string, r io.Reader) (*Loaded, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.Clear()

	report, err := gprof.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", name, err)
	}
	tree, err := report.Node(s.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("build tree %q: %w", name, err)
	}

	loaded := &Loaded{
		ID:       uuid.NewString(),
		Name:     name,
		LoadedAt: time.Now(),
		Report:   report,
		Tree:     tree,
	}
	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

// Clear drops the current report.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Current returns the loaded report or nil.
func (s *Store) Current() *Loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Lookup finds a function of the current report by index.
func (s *Store) Lookup(index int) (gprof.Section, bool) {
	cur := s.Current()
	if cur == nil {
		return gprof.Section{}, false
	}
	return cur.Report.Lookup(index)
}

// Tree materializes the current report below index, or below the root when
// index is zero.
func (s *Store) Tree(index int, maxDepth int) (*gprof.Node, error) {
	cur := s.Current()
	if cur == nil {
		return nil, ErrNoReport
	}
	if maxDepth <= 0 {
		maxDepth = s.maxDepth
	}
	if index == 0 && maxDepth == s.maxDepth {
		return cur.Tree, nil
	}
	if index == 0 {
		return cur.Report.Node(maxDepth)
	}
	return cur.Report.NodeFor(index, maxDepth)
}
