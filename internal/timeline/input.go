package timeline

import (
	"github.com/parcelgrid/proforma/internal/model"
)

// normalizeItems turns raw storage records into typed BudgetItems, collecting
// one ItemError per field that fails validation. Every record keeps its slot
// in the returned slice (invalid items still occupy a graph node so that
// dependents can be reported against them); the failed set marks the indices
// that must not resolve.
func normalizeItems(records []model.ItemRecord, errs *ErrorList) ([]model.BudgetItem, map[int]bool) {
	items := make([]model.BudgetItem, len(records))
	failed := make(map[int]bool)

	for i, rec := range records {
		item := model.BudgetItem{
			ID:                rec.ID,
			Name:              rec.Name,
			Amount:            rec.Amount,
			StartPeriod:       rec.StartPeriod,
			PeriodsToComplete: rec.PeriodsToComplete,
		}

		method, err := model.ParseTimingMethod(rec.TimingMethod)
		if err != nil {
			errs.Addf(ErrUnknownTimingMethod, rec.ID, "%v", err)
			failed[i] = true
		}
		item.TimingMethod = method

		profile, err := model.ParseCurveProfile(rec.CurveProfile)
		if err != nil {
			errs.Addf(ErrUnknownCurveProfile, rec.ID, "%v", err)
			failed[i] = true
		}
		item.CurveProfile = profile

		if rec.PeriodsToComplete <= 0 {
			errs.Addf(ErrInvalidDuration, rec.ID,
				"periods_to_complete must be positive, got %d", rec.PeriodsToComplete)
			failed[i] = true
		}

		if rec.Amount.IsNegative() {
			errs.Addf(ErrInvalidAmount, rec.ID, "amount must not be negative, got %s", rec.Amount)
			failed[i] = true
		}

		for _, dep := range rec.Dependencies {
			event, err := model.ParseTriggerEvent(dep.TriggerEvent)
			if err != nil {
				errs.Add(ItemError{
					Kind:        ErrUnknownTriggerEvent,
					Severity:    SeverityError,
					ItemID:      rec.ID,
					TriggerName: dep.TriggerItemName,
					Message:     err.Error(),
				})
				failed[i] = true
				continue
			}
			item.Dependencies = append(item.Dependencies, model.Dependency{
				TriggerItemName: dep.TriggerItemName,
				TriggerEvent:    event,
				OffsetPeriods:   dep.OffsetPeriods,
			})
		}

		switch method {
		case model.TimingDependent:
			if rec.StartPeriod != nil {
				errs.Addf(ErrConflictingTiming, rec.ID,
					"dependent item must not declare a start_period")
				failed[i] = true
			}
			if len(rec.Dependencies) == 0 {
				errs.Addf(ErrEmptyDependencySet, rec.ID,
					"dependent item declares no dependencies")
				failed[i] = true
			}
		case model.TimingAbsolute, model.TimingManual:
			if len(rec.Dependencies) > 0 {
				errs.Addf(ErrConflictingTiming, rec.ID,
					"%s item must not declare dependencies", method)
				failed[i] = true
			}
			if rec.StartPeriod == nil {
				errs.Addf(ErrMissingStartPeriod, rec.ID,
					"%s item requires a start_period", method)
				failed[i] = true
			}
		}

		items[i] = item
	}

	return items, failed
}
