package timeline

import (
	"github.com/parcelgrid/proforma/internal/model"
)

// resolvePeriods assigns a concrete start period to every resolvable item by
// walking the dependency graph in topological order (Kahn). Absolute and
// Manual items anchor the schedule with their declared start; a Dependent
// item starts at the latest of its dependency candidates, since it cannot
// begin before every trigger has fired. Failed nodes are walked through
// without resolving so their dependents are reported precisely instead of
// being silently skipped.
func resolvePeriods(g *graph, failed map[int]bool, errs *ErrorList) map[int]model.ResolvedItem {
	n := len(g.items)
	indeg := make([]int, n)
	for i := range g.deps {
		indeg[i] = len(g.deps[i])
	}

	var queue []int
	for i := 0; i < n; i++ {
		// Failed nodes are seeded unconditionally: cycle members never
		// drain their in-degree, and everything downstream of them still
		// needs a visit.
		if indeg[i] == 0 || failed[i] {
			queue = append(queue, i)
		}
	}

	visited := make([]bool, n)
	resolved := make(map[int]model.ResolvedItem, n)

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true

		if !failed[node] {
			item := g.items[node]
			switch item.TimingMethod {
			case model.TimingAbsolute, model.TimingManual:
				resolved[node] = placeItem(item, *item.StartPeriod)
			case model.TimingDependent:
				start, blocker, ok := dependentStart(g, node, resolved)
				if !ok {
					errs.Add(ItemError{
						Kind:        ErrUnresolvedDependency,
						Severity:    SeverityError,
						ItemID:      item.ID,
						TriggerName: blocker,
						Message:     "depends on " + blocker + ", which did not resolve",
					})
					failed[node] = true
				} else {
					resolved[node] = placeItem(item, start)
				}
			}
			if r, ok := resolved[node]; ok && r.StartPeriod < 0 {
				errs.Warnf(ErrNegativeScheduleStart, item.ID,
					"resolved start period %d precedes project start", r.StartPeriod)
			}
		}

		for _, dependent := range g.dependents[node] {
			indeg[dependent]--
			if indeg[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return resolved
}

func placeItem(item model.BudgetItem, start int) model.ResolvedItem {
	return model.ResolvedItem{
		ItemID:       item.ID,
		StartPeriod:  start,
		FinishPeriod: start + item.PeriodsToComplete - 1,
	}
}

// dependentStart computes the latest candidate start over all of a node's
// dependencies. Returns the blocking trigger's name and ok=false when any
// trigger is itself unresolved.
func dependentStart(g *graph, node int, resolved map[int]model.ResolvedItem) (start int, blocker string, ok bool) {
	first := true
	for _, e := range g.deps[node] {
		r, has := resolved[e.target]
		if !has {
			return 0, g.items[e.target].Name, false
		}
		trigger := r.StartPeriod
		if e.event == model.TriggerOnFinish {
			trigger = r.FinishPeriod
		}
		candidate := trigger + e.offset
		if first || candidate > start {
			start = candidate
			first = false
		}
	}
	return start, "", true
}
