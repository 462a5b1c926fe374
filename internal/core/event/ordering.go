package event

import (
	"fmt"
	"sort"
)

// CalcOrdering resolves the before/after constraints of labeled global
// handlers, once at startup. Within each event type the labeled handlers are
// topologically sorted; subscription order breaks ties, and unlabeled
// handlers keep their position relative only to the sort result. A cyclic
// constraint set fails fast here rather than producing a silent arbitrary
// order at dispatch time.
func (b *Bus) CalcOrdering() error {
	for t, hs := range b.global {
		sorted, err := topoSort(hs)
		if err != nil {
			return fmt.Errorf("event %s: %w", t.String(), err)
		}
		b.global[t] = sorted
	}
	return nil
}

func topoSort(hs []*handler) ([]*handler, error) {
	byLabel := make(map[string]int, len(hs))
	for i, h := range hs {
		if h.label != "" {
			byLabel[h.label] = i
		}
	}

	indeg := make([]int, len(hs))
	edges := make([][]int, len(hs))
	addEdge := func(from, to int) {
		edges[from] = append(edges[from], to)
		indeg[to]++
	}
	for i, h := range hs {
		for _, l := range h.before {
			if j, ok := byLabel[l]; ok {
				addEdge(i, j)
			}
		}
		for _, l := range h.after {
			if j, ok := byLabel[l]; ok {
				addEdge(j, i)
			}
		}
	}

	// Kahn's algorithm, smallest subscription seq first for determinism.
	ready := make([]int, 0, len(hs))
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	out := make([]*handler, 0, len(hs))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, c int) bool { return hs[ready[a]].seq < hs[ready[c]].seq })
		i := ready[0]
		ready = ready[1:]
		out = append(out, hs[i])
		for _, j := range edges[i] {
			indeg[j]--
			if indeg[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if len(out) != len(hs) {
		stuck := make([]string, 0, 4)
		for i, d := range indeg {
			if d > 0 && hs[i].label != "" {
				stuck = append(stuck, hs[i].label)
			}
		}
		return nil, fmt.Errorf("cyclic ordering constraints among %v", stuck)
	}
	return out, nil
}
