package timeline

import (
	"testing"

	"github.com/parcelgrid/proforma/internal/model"
)

// runStructural runs normalize + graph build + cycle check, the structural
// gate that precedes resolution.
func runStructural(records []model.ItemRecord) (*graph, map[int]bool, *ErrorList) {
	errs := &ErrorList{}
	items, failed := normalizeItems(records, errs)
	g := buildGraph(items, failed, errs)
	checkCycles(g, failed, errs)
	return g, failed, errs
}

func findError(errs *ErrorList, kind ErrorKind, itemID string) *ItemError {
	for i := range errs.Errors {
		e := &errs.Errors[i]
		if e.Kind == kind && e.ItemID == itemID {
			return e
		}
	}
	return nil
}

func TestCheckUnknownTriggerItem(t *testing.T) {
	records := []model.ItemRecord{
		depRec("a", 2, "linear", "100", on("ghost", "on_start", 0)),
	}
	_, failed, errs := runStructural(records)

	e := findError(errs, ErrUnknownTriggerItem, "a")
	if e == nil {
		t.Fatalf("expected unknown_trigger_item for a, got %v", errs.Errors)
	}
	if e.TriggerName != "ghost" {
		t.Errorf("expected trigger name ghost, got %q", e.TriggerName)
	}
	if !failed[0] {
		t.Error("expected item a to be marked failed")
	}
}

func TestCheckSelfReferenceIsOneNodeCycle(t *testing.T) {
	records := []model.ItemRecord{
		depRec("w", 2, "linear", "100", on("w", "on_start", 1)),
	}
	_, failed, errs := runStructural(records)

	var cycle *ItemError
	for i := range errs.Errors {
		if errs.Errors[i].Kind == ErrCyclicDependency {
			cycle = &errs.Errors[i]
		}
	}
	if cycle == nil {
		t.Fatalf("expected cyclic_dependency, got %v", errs.Errors)
	}
	if len(cycle.CyclePath) != 1 || cycle.CyclePath[0] != "w" {
		t.Errorf("expected cycle path [w], got %v", cycle.CyclePath)
	}
	if !failed[0] {
		t.Error("expected w to be marked failed")
	}
}

func TestCheckTwoNodeCycle(t *testing.T) {
	records := []model.ItemRecord{
		depRec("a", 2, "linear", "100", on("b", "on_finish", 0)),
		depRec("b", 2, "linear", "100", on("a", "on_finish", 0)),
	}
	_, failed, errs := runStructural(records)

	cycles := 0
	for _, e := range errs.Errors {
		if e.Kind == ErrCyclicDependency {
			cycles++
			if len(e.CyclePath) != 2 {
				t.Errorf("expected 2 members, got %v", e.CyclePath)
			}
		}
	}
	if cycles != 1 {
		t.Errorf("expected exactly one cycle report, got %d", cycles)
	}
	if !failed[0] || !failed[1] {
		t.Error("expected both cycle members failed")
	}
}

func TestCheckThreeNodeCyclePathOrder(t *testing.T) {
	records := []model.ItemRecord{
		depRec("a", 1, "linear", "10", on("c", "on_start", 0)),
		depRec("b", 1, "linear", "10", on("a", "on_start", 0)),
		depRec("c", 1, "linear", "10", on("b", "on_start", 0)),
	}
	_, _, errs := runStructural(records)

	var cycle *ItemError
	for i := range errs.Errors {
		if errs.Errors[i].Kind == ErrCyclicDependency {
			cycle = &errs.Errors[i]
		}
	}
	if cycle == nil {
		t.Fatal("expected cyclic_dependency")
	}
	if len(cycle.CyclePath) != 3 {
		t.Fatalf("expected 3 members, got %v", cycle.CyclePath)
	}
	// Path must follow dependency edges: each member's single dependency is
	// the next member (wrapping around).
	next := map[string]string{"a": "c", "b": "a", "c": "b"}
	for i, id := range cycle.CyclePath {
		want := next[id]
		got := cycle.CyclePath[(i+1)%3]
		if got != want {
			t.Errorf("path %v: after %s expected %s, got %s", cycle.CyclePath, id, want, got)
		}
	}
}

func TestCheckDistinctCyclesReportedSeparately(t *testing.T) {
	records := []model.ItemRecord{
		depRec("a", 1, "linear", "10", on("b", "on_start", 0)),
		depRec("b", 1, "linear", "10", on("a", "on_start", 0)),
		depRec("x", 1, "linear", "10", on("y", "on_start", 0)),
		depRec("y", 1, "linear", "10", on("x", "on_start", 0)),
	}
	_, _, errs := runStructural(records)

	cycles := 0
	for _, e := range errs.Errors {
		if e.Kind == ErrCyclicDependency {
			cycles++
		}
	}
	if cycles != 2 {
		t.Errorf("expected two distinct cycle reports, got %d: %v", cycles, errs.Errors)
	}
}

func TestCheckAcyclicGraphHasNoCycleErrors(t *testing.T) {
	records := []model.ItemRecord{
		absRec("root", 0, 3, "linear", "300"),
		depRec("mid", 2, "linear", "100", on("root", "on_finish", 0)),
		depRec("leaf", 2, "linear", "100", on("mid", "on_finish", 0), on("root", "on_start", 1)),
	}
	_, failed, errs := runStructural(records)

	for _, e := range errs.Errors {
		if e.Kind == ErrCyclicDependency {
			t.Errorf("unexpected cycle report: %v", e)
		}
	}
	if len(failed) != 0 {
		t.Errorf("expected no failed items, got %v", failed)
	}
}

func TestGraphDuplicateItemNames(t *testing.T) {
	records := []model.ItemRecord{
		absRec("a1", 0, 1, "linear", "10"),
		absRec("a2", 0, 1, "linear", "10"),
	}
	records[1].Name = records[0].Name

	_, failed, errs := runStructural(records)
	if findError(errs, ErrDuplicateItemName, "a2") == nil {
		t.Fatalf("expected duplicate_item_name, got %v", errs.Errors)
	}
	if !failed[0] || !failed[1] {
		t.Error("expected both ambiguous items failed")
	}
}
