package graph

import (
	"fmt"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/cespare/xxhash/v2"
)

// SourceHash is the cache identity of raw module bytes.
func SourceHash(raw []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}

// FindCycles walks the graph depth-first from each entry, following
// dependencies in declaration order, and reports one CycleWarning per back
// edge. The order of discovery is deterministic, so the edge that closes a
// cycle is always the same one.
func FindCycles(g *domain.Graph) []domain.CycleWarning {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[domain.ModuleID]int)
	var (
		stack  []domain.ModuleID
		cycles []domain.CycleWarning
	)

	var visit func(id domain.ModuleID)
	visit = func(id domain.ModuleID) {
		mod, ok := g.Get(id)
		if !ok {
			return
		}
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range mod.DependencyIDs() {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				cycles = append(cycles, domain.CycleWarning{Path: cyclePath(stack, dep)})
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, entry := range g.Entries {
		if state[entry] == unvisited {
			visit(entry)
		}
	}
	// modules only reachable from a failed entry are still checked
	for _, id := range g.IDs() {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

func cyclePath(stack []domain.ModuleID, back domain.ModuleID) []domain.ModuleID {
	for i, id := range stack {
		if id == back {
			path := append([]domain.ModuleID(nil), stack[i:]...)
			return append(path, back)
		}
	}
	return []domain.ModuleID{back, back}
}
