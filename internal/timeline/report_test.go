package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/proforma/internal/model"
)

func absRec(id string, start, duration int, profile, amount string) model.ItemRecord {
	s := start
	return model.ItemRecord{
		ID:                id,
		Name:              id,
		Amount:            dec(amount),
		TimingMethod:      "absolute",
		StartPeriod:       &s,
		PeriodsToComplete: duration,
		CurveProfile:      profile,
	}
}

func manualRec(id string, start, duration int, profile, amount string) model.ItemRecord {
	rec := absRec(id, start, duration, profile, amount)
	rec.TimingMethod = "manual"
	return rec
}

func depRec(id string, duration int, profile, amount string, deps ...model.DependencyRecord) model.ItemRecord {
	return model.ItemRecord{
		ID:                id,
		Name:              id,
		Amount:            dec(amount),
		TimingMethod:      "dependent",
		PeriodsToComplete: duration,
		CurveProfile:      profile,
		Dependencies:      deps,
	}
}

func on(triggerName, event string, offset int) model.DependencyRecord {
	return model.DependencyRecord{
		TriggerItemName: triggerName,
		TriggerEvent:    event,
		OffsetPeriods:   offset,
	}
}

func TestCalculateAbsoluteLinearItem(t *testing.T) {
	report, err := Calculate([]model.ItemRecord{
		absRec("x", 0, 3, "linear", "300"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.ResolvedCount)
	require.Empty(t, report.Errors)

	sched := report.Schedules[0]
	assert.Equal(t, 0, sched.StartPeriod)
	assert.Equal(t, 2, sched.FinishPeriod)
	require.Len(t, sched.Amounts, 3)
	for i, row := range sched.Amounts {
		assert.Equal(t, i, row.PeriodIndex)
		assert.True(t, row.Amount.Equal(dec("100")), "period %d: got %s", i, row.Amount)
	}
}

func TestCalculateDependentFrontLoadedItem(t *testing.T) {
	report, err := Calculate([]model.ItemRecord{
		absRec("x", 0, 3, "linear", "300"),
		depRec("y", 2, "front_loaded", "150", on("x", "on_finish", 1)),
	})
	require.NoError(t, err)
	require.Equal(t, 2, report.ResolvedCount)
	require.Empty(t, report.Errors)

	y := scheduleFor(t, report, "y")
	// x finishes at period 2, so y starts at 2+1=3.
	require.Equal(t, 3, y.StartPeriod)
	require.Len(t, y.Amounts, 2)
	assert.True(t, y.Amounts[0].Amount.GreaterThan(y.Amounts[1].Amount))
	assert.True(t, y.Amounts[0].Amount.Add(y.Amounts[1].Amount).Equal(dec("150")))
}

func TestCalculateEmptyDependencySet(t *testing.T) {
	report, err := Calculate([]model.ItemRecord{
		depRec("v", 2, "linear", "100"),
		absRec("ok", 0, 1, "linear", "10"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ResolvedCount, "other valid items must still resolve")
	e := findError(&ErrorList{Errors: report.Errors}, ErrEmptyDependencySet, "v")
	require.NotNil(t, e, "expected empty_dependency_set, got %v", report.Errors)
}

func TestCalculateConflictingTimingDeclarations(t *testing.T) {
	start := 3
	dependent := depRec("d", 2, "linear", "10", on("a", "on_start", 0))
	dependent.StartPeriod = &start

	anchored := absRec("a", 0, 2, "linear", "10")
	anchored.Dependencies = []model.DependencyRecord{on("d", "on_start", 0)}

	report, err := Calculate([]model.ItemRecord{dependent, anchored})
	require.NoError(t, err)

	assert.Equal(t, 0, report.ResolvedCount)
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrConflictingTiming, "d"))
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrConflictingTiming, "a"))
}

func TestCalculateMissingStartPeriod(t *testing.T) {
	rec := absRec("a", 0, 2, "linear", "10")
	rec.StartPeriod = nil

	report, err := Calculate([]model.ItemRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ResolvedCount)
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrMissingStartPeriod, "a"))
}

func TestCalculateInvalidDurationAndAmount(t *testing.T) {
	bad := absRec("short", 0, 0, "linear", "10")
	negative := absRec("neg", 0, 2, "linear", "10")
	negative.Amount = dec("-5")

	report, err := Calculate([]model.ItemRecord{bad, negative})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ResolvedCount)
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrInvalidDuration, "short"))
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrInvalidAmount, "neg"))
}

func TestCalculateUnknownEnumLiterals(t *testing.T) {
	badEvent := depRec("e", 2, "linear", "10", on("anchor", "on_complete", 0))
	badMethod := absRec("m", 0, 2, "linear", "10")
	badMethod.TimingMethod = "relative"
	badProfile := absRec("p", 0, 2, "s_curve", "10")

	report, err := Calculate([]model.ItemRecord{
		badEvent, badMethod, badProfile, absRec("anchor", 0, 1, "linear", "10"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ResolvedCount)
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrUnknownTriggerEvent, "e"))
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrUnknownTimingMethod, "m"))
	assert.NotNil(t, findError(&ErrorList{Errors: report.Errors}, ErrUnknownCurveProfile, "p"))
}

func TestCalculateIsDeterministic(t *testing.T) {
	records := []model.ItemRecord{
		absRec("site", 0, 4, "bell_curve", "1000.01"),
		depRec("shell", 6, "front_loaded", "2500.55", on("site", "on_finish", 1)),
		depRec("fitout", 3, "back_loaded", "750", on("shell", "on_finish", -1)),
		manualRec("permits", 1, 2, "linear", "99.99"),
	}

	first, err := Calculate(records)
	require.NoError(t, err)
	second, err := Calculate(records)
	require.NoError(t, err)

	require.Equal(t, first.ResolvedCount, second.ResolvedCount)
	require.Equal(t, len(first.Schedules), len(second.Schedules))
	for i := range first.Schedules {
		a, b := first.Schedules[i], second.Schedules[i]
		require.Equal(t, a.ItemID, b.ItemID)
		require.Equal(t, a.StartPeriod, b.StartPeriod)
		require.Equal(t, a.FinishPeriod, b.FinishPeriod)
		require.Len(t, b.Amounts, len(a.Amounts))
		for j := range a.Amounts {
			assert.Equal(t, a.Amounts[j].PeriodIndex, b.Amounts[j].PeriodIndex)
			assert.True(t, a.Amounts[j].Amount.Equal(b.Amounts[j].Amount))
		}
	}
}

func TestCalculateErrorsNeverNil(t *testing.T) {
	report, err := Calculate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ResolvedCount)
	assert.NotNil(t, report.Errors)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.RunID)
}
