// Package model defines the data structures for Proforma's budget schedule,
// configuration, and calculation results.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type TimingMethod string

const (
	TimingAbsolute  TimingMethod = "absolute"
	TimingDependent TimingMethod = "dependent"
	TimingManual    TimingMethod = "manual"
)

func ParseTimingMethod(s string) (TimingMethod, error) {
	switch TimingMethod(s) {
	case TimingAbsolute, TimingDependent, TimingManual:
		return TimingMethod(s), nil
	default:
		return "", fmt.Errorf("unknown timing method %q", s)
	}
}

type CurveProfile string

const (
	CurveLinear      CurveProfile = "linear"
	CurveFrontLoaded CurveProfile = "front_loaded"
	CurveBackLoaded  CurveProfile = "back_loaded"
	CurveBellCurve   CurveProfile = "bell_curve"
)

func ParseCurveProfile(s string) (CurveProfile, error) {
	switch CurveProfile(s) {
	case CurveLinear, CurveFrontLoaded, CurveBackLoaded, CurveBellCurve:
		return CurveProfile(s), nil
	default:
		return "", fmt.Errorf("unknown s-curve profile %q", s)
	}
}

type TriggerEvent string

const (
	TriggerOnStart  TriggerEvent = "on_start"
	TriggerOnFinish TriggerEvent = "on_finish"
)

func ParseTriggerEvent(s string) (TriggerEvent, error) {
	switch TriggerEvent(s) {
	case TriggerOnStart, TriggerOnFinish:
		return TriggerEvent(s), nil
	default:
		return "", fmt.Errorf("unknown trigger event %q", s)
	}
}

// ItemRecord is a budget item as it comes off storage: enum columns are raw
// strings and dependency triggers reference other items by name. Records are
// normalized into BudgetItems by the timeline package, which collects a
// per-item error for every field that does not validate instead of failing
// the whole batch.
type ItemRecord struct {
	ID                string
	Name              string
	Amount            decimal.Decimal
	TimingMethod      string
	StartPeriod       *int
	PeriodsToComplete int
	CurveProfile      string
	Dependencies      []DependencyRecord
}

type DependencyRecord struct {
	TriggerItemName string
	TriggerEvent    string
	OffsetPeriods   int
}

// BudgetItem is the validated, typed form of an ItemRecord.
type BudgetItem struct {
	ID                string
	Name              string
	Amount            decimal.Decimal
	TimingMethod      TimingMethod
	StartPeriod       *int
	PeriodsToComplete int
	CurveProfile      CurveProfile
	Dependencies      []Dependency
}

type Dependency struct {
	TriggerItemName string
	TriggerEvent    TriggerEvent
	OffsetPeriods   int
}

// ResolvedItem is one item's concrete placement on the schedule.
// FinishPeriod is inclusive: a 3-period item starting at 0 finishes at 2.
type ResolvedItem struct {
	ItemID       string `json:"item_id"`
	StartPeriod  int    `json:"start_period"`
	FinishPeriod int    `json:"finish_period"`
}

// PeriodAmount is one period's share of an item's total. The rows for an
// item always sum exactly to the item's declared amount.
type PeriodAmount struct {
	ItemID      string          `json:"item_id"`
	PeriodIndex int             `json:"period_index"`
	Amount      decimal.Decimal `json:"amount"`
}
