package domain

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is the dependency graph of one build.
//
// Modules live in an arena keyed by ModuleID and edges are id references, so
// cycles need no pointer cycles. It is safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	modules map[ModuleID]*Module

	// Entries lists the entry modules in configuration order.
	Entries []ModuleID

	// Cycles holds every cycle found while building, in discovery order.
	Cycles []CycleWarning
}

// NewGraph creates an empty graph for the given entries.
func NewGraph(entries ...ModuleID) *Graph {
	return &Graph{
		modules: make(map[ModuleID]*Module),
		Entries: append([]ModuleID(nil), entries...),
	}
}

// Add inserts a module. Adding a second module with the same id is an error.
func (g *Graph) Add(m *Module) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.modules[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.ID)
	}
	g.modules[m.ID] = m
	return nil
}

// Replace swaps the stored module for m, which must already exist.
func (g *Graph) Replace(m *Module) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.modules[m.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, m.ID)
	}
	g.modules[m.ID] = m
	return nil
}

// Get returns the module with the given id.
func (g *Graph) Get(id ModuleID) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.modules[id]
	return m, ok
}

// Has reports whether id is part of the graph.
func (g *Graph) Has(id ModuleID) bool {
	_, ok := g.Get(id)
	return ok
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.modules)
}

// IDs returns all module ids sorted lexically.
func (g *Graph) IDs() []ModuleID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]ModuleID, 0, len(g.modules))
	for id := range g.modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Dependents returns the ids of modules importing id, sorted lexically.
func (g *Graph) Dependents(id ModuleID) []ModuleID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []ModuleID
	for _, m := range g.modules {
		for _, d := range m.Dependencies {
			if d.Resolved == id {
				out = append(out, m.ID)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ancestors returns every module that transitively depends on one of ids,
// including the ids themselves when they are in the graph.
func (g *Graph) Ancestors(ids ...ModuleID) map[ModuleID]bool {
	g.mu.RLock()
	reverse := make(map[ModuleID][]ModuleID, len(g.modules))
	for _, m := range g.modules {
		for _, d := range m.Dependencies {
			if d.Resolved != "" {
				reverse[d.Resolved] = append(reverse[d.Resolved], m.ID)
			}
		}
	}
	seen := make(map[ModuleID]bool)
	queue := make([]ModuleID, 0, len(ids))
	for _, id := range ids {
		if _, ok := g.modules[id]; ok && !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}
	g.mu.RUnlock()

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, parent := range reverse[cur] {
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return seen
}

// Snapshot returns a shallow copy of the module table.
func (g *Graph) Snapshot() map[ModuleID]*Module {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cp := make(map[ModuleID]*Module, len(g.modules))
	for k, v := range g.modules {
		cp[k] = v
	}
	return cp
}
