package timeline

import "strings"

// checkCycles runs a white/gray/black depth-first traversal over the
// dependency edges and reports every distinct cycle with its full member
// path in forward dependency order. Cycle members join the failed set so
// the resolver skips them and flags their dependents.
func checkCycles(g *graph, failed map[int]bool, errs *ErrorList) {
	const (
		white = 0 // unvisited
		gray  = 1 // in current path
		black = 2 // finished
	)

	n := len(g.items)
	color := make([]int, n)
	parent := make([]int, n)
	inCycle := make([]bool, n)
	for i := range parent {
		parent[i] = -1
	}

	report := func(nodes []int) {
		for _, m := range nodes {
			if inCycle[m] {
				// Shares a member with an already-reported cycle.
				return
			}
		}
		ids := make([]string, len(nodes))
		for i, m := range nodes {
			ids[i] = g.items[m].ID
			inCycle[m] = true
			failed[m] = true
		}
		errs.Add(ItemError{
			Kind:      ErrCyclicDependency,
			Severity:  SeverityError,
			CyclePath: ids,
			Message:   "circular dependency: " + strings.Join(ids, " -> "),
		})
	}

	var dfs func(node int)
	dfs = func(node int) {
		color[node] = gray
		for _, e := range g.deps[node] {
			switch color[e.target] {
			case gray:
				// Back edge: reconstruct the cycle via the parent chain.
				nodes := []int{e.target}
				for cur := node; cur != e.target; cur = parent[cur] {
					nodes = append(nodes, cur)
				}
				for i, j := 1, len(nodes)-1; i < j; i, j = i+1, j-1 {
					nodes[i], nodes[j] = nodes[j], nodes[i]
				}
				report(nodes)
			case white:
				parent[e.target] = node
				dfs(e.target)
			}
		}
		color[node] = black
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			dfs(i)
		}
	}
}
