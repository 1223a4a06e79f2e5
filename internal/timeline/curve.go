package timeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/parcelgrid/proforma/internal/model"
)

// distribute expands a resolved item's total into one amount per period
// under its curve profile. Each period's share is rounded to the minor
// currency unit; the final period absorbs the full rounding residual so the
// series always sums exactly to the declared total. A single-period item
// yields one row carrying the whole amount regardless of profile.
func distribute(itemID string, total decimal.Decimal, start, periods int, profile model.CurveProfile) ([]model.PeriodAmount, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("distribute %s: non-positive duration %d", itemID, periods)
	}

	weights, err := curveWeights(profile, periods)
	if err != nil {
		return nil, fmt.Errorf("distribute %s: %w", itemID, err)
	}
	var denom int64
	for _, w := range weights {
		denom += w
	}
	den := decimal.NewFromInt(denom)

	rows := make([]model.PeriodAmount, periods)
	allocated := decimal.Zero
	for i := 0; i < periods; i++ {
		var amt decimal.Decimal
		if i == periods-1 {
			amt = total.Sub(allocated)
		} else {
			amt = total.Mul(decimal.NewFromInt(weights[i])).Div(den).Round(2)
			allocated = allocated.Add(amt)
		}
		rows[i] = model.PeriodAmount{
			ItemID:      itemID,
			PeriodIndex: start + i,
			Amount:      amt,
		}
	}
	return rows, nil
}

// curveWeights returns unnormalized per-period weights for a profile over n
// periods. Linear is flat; FrontLoaded ramps down (n..1); BackLoaded ramps
// up (1..n); BellCurve is triangular, peaking at the midpoint.
func curveWeights(profile model.CurveProfile, n int) ([]int64, error) {
	w := make([]int64, n)
	switch profile {
	case model.CurveLinear:
		for i := range w {
			w[i] = 1
		}
	case model.CurveFrontLoaded:
		for i := range w {
			w[i] = int64(n - i)
		}
	case model.CurveBackLoaded:
		for i := range w {
			w[i] = int64(i + 1)
		}
	case model.CurveBellCurve:
		for i := range w {
			left, right := int64(i+1), int64(n-i)
			if left < right {
				w[i] = left
			} else {
				w[i] = right
			}
		}
	default:
		return nil, fmt.Errorf("unhandled curve profile %q", profile)
	}
	return w, nil
}
