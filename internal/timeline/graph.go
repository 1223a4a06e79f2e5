package timeline

import (
	"github.com/parcelgrid/proforma/internal/model"
)

// depEdge is one normalized dependency: the arena index of the trigger item
// plus the event/offset the dependent measures from. Trigger names are
// resolved to indices exactly once, here; resolution never touches a name.
type depEdge struct {
	target int
	event  model.TriggerEvent
	offset int
}

// graph indexes a project's items as an arena. deps holds each node's
// outgoing dependency edges (dependent -> trigger); dependents is the
// reverse adjacency used by the topological pass.
type graph struct {
	items      []model.BudgetItem
	deps       [][]depEdge
	dependents [][]int
}

// buildGraph resolves every trigger name against the item set and assembles
// the adjacency lists. Unresolvable names and self-references are recorded
// against the declaring item, which is added to the failed set; the rest of
// the graph is still built so other items can proceed.
func buildGraph(items []model.BudgetItem, failed map[int]bool, errs *ErrorList) *graph {
	g := &graph{
		items:      items,
		deps:       make([][]depEdge, len(items)),
		dependents: make([][]int, len(items)),
	}

	index := make(map[string]int, len(items))
	for i, item := range items {
		if prev, dup := index[item.Name]; dup {
			errs.Addf(ErrDuplicateItemName, item.ID,
				"item name %q is already used by item %s", item.Name, items[prev].ID)
			failed[i] = true
			failed[prev] = true
			continue
		}
		index[item.Name] = i
	}

	for i, item := range items {
		for _, dep := range item.Dependencies {
			target, ok := index[dep.TriggerItemName]
			if !ok {
				errs.Add(ItemError{
					Kind:        ErrUnknownTriggerItem,
					Severity:    SeverityError,
					ItemID:      item.ID,
					TriggerName: dep.TriggerItemName,
					Message:     "dependency references unknown item " + dep.TriggerItemName,
				})
				failed[i] = true
				continue
			}
			if target == i {
				// Degenerate one-node cycle.
				errs.Add(ItemError{
					Kind:      ErrCyclicDependency,
					Severity:  SeverityError,
					ItemID:    item.ID,
					CyclePath: []string{item.ID},
					Message:   "item depends on itself",
				})
				failed[i] = true
				continue
			}
			g.deps[i] = append(g.deps[i], depEdge{
				target: target,
				event:  dep.TriggerEvent,
				offset: dep.OffsetPeriods,
			})
			g.dependents[target] = append(g.dependents[target], i)
		}
	}

	return g
}
