// Package timeline implements the budget timeline resolver: it validates a
// project's item set, resolves dependency-driven start periods in
// topological order, and distributes each item's total across its duration
// under an s-curve profile. The package is pure: it performs no I/O and
// never persists anything; callers feed it an immutable snapshot of item
// records and apply the resulting schedules themselves.
package timeline

import (
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/parcelgrid/proforma/internal/model"
)

// ItemSchedule is the full computed schedule for one successfully resolved
// item: its placement plus the per-period amount series.
type ItemSchedule struct {
	ItemID       string               `json:"item_id"`
	StartPeriod  int                  `json:"start_period"`
	FinishPeriod int                  `json:"finish_period"`
	Amounts      []model.PeriodAmount `json:"amounts"`
}

// Report is the outcome of one calculation run. Errors holds every per-item
// and structural problem found; Schedules holds only the items that resolved
// and distributed (warnings do not exclude an item). A run with a non-empty
// Errors list is still a completed run — partial success is the contract.
type Report struct {
	RunID         string      `json:"run_id"`
	ResolvedCount int         `json:"resolved_count"`
	Errors        []ItemError `json:"errors"`
	Schedules     []ItemSchedule
}

// Calculate runs the whole pipeline over one project's item records:
// normalize, build the graph, check structure, resolve periods, distribute
// amounts. Items that fail a structural check are reported and skipped;
// everything else resolves. The returned error is reserved for internal
// faults and is nil on any completed run, however many item errors it found.
func Calculate(records []model.ItemRecord) (*Report, error) {
	errs := &ErrorList{}

	items, failed := normalizeItems(records, errs)
	g := buildGraph(items, failed, errs)
	checkCycles(g, failed, errs)
	resolved := resolvePeriods(g, failed, errs)

	// Input order, for deterministic output.
	order := make([]int, 0, len(resolved))
	for i := range items {
		if _, ok := resolved[i]; ok {
			order = append(order, i)
		}
	}

	// Distribution only reads its own item, so it fans out safely once the
	// sequential resolution pass is done.
	schedules := make([]ItemSchedule, len(order))
	eg := new(errgroup.Group)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for k, idx := range order {
		eg.Go(func() error {
			item := g.items[idx]
			placement := resolved[idx]
			rows, err := distribute(item.ID, item.Amount, placement.StartPeriod,
				item.PeriodsToComplete, item.CurveProfile)
			if err != nil {
				return err
			}
			schedules[k] = ItemSchedule{
				ItemID:       item.ID,
				StartPeriod:  placement.StartPeriod,
				FinishPeriod: placement.FinishPeriod,
				Amounts:      rows,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:         uuid.NewString(),
		ResolvedCount: len(schedules),
		Errors:        errs.Errors,
		Schedules:     schedules,
	}
	if report.Errors == nil {
		report.Errors = []ItemError{}
	}
	return report, nil
}
