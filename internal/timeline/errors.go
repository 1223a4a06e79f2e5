package timeline

import (
	"fmt"
	"strings"
)

type ErrorKind string

const (
	ErrUnknownTriggerItem    ErrorKind = "unknown_trigger_item"
	ErrUnknownTriggerEvent   ErrorKind = "unknown_trigger_event"
	ErrUnknownTimingMethod   ErrorKind = "unknown_timing_method"
	ErrUnknownCurveProfile   ErrorKind = "unknown_curve_profile"
	ErrDuplicateItemName     ErrorKind = "duplicate_item_name"
	ErrCyclicDependency      ErrorKind = "cyclic_dependency"
	ErrEmptyDependencySet    ErrorKind = "empty_dependency_set"
	ErrConflictingTiming     ErrorKind = "conflicting_timing_declaration"
	ErrMissingStartPeriod    ErrorKind = "missing_start_period"
	ErrInvalidDuration       ErrorKind = "invalid_duration"
	ErrInvalidAmount         ErrorKind = "invalid_amount"
	ErrNegativeScheduleStart ErrorKind = "negative_schedule_start"
	ErrUnresolvedDependency  ErrorKind = "unresolved_dependency"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ItemError is one reportable problem found during a calculation run.
// ItemID names the offending item except for cycle errors, which carry the
// ordered member path in CyclePath instead (one entry per distinct cycle).
type ItemError struct {
	Kind        ErrorKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	ItemID      string    `json:"item_id,omitempty"`
	TriggerName string    `json:"trigger_name,omitempty"`
	CyclePath   []string  `json:"cycle_path,omitempty"`
	Message     string    `json:"message"`
}

func (e ItemError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.ItemID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorList accumulates ItemErrors across a whole run so a single pass can
// report every problem instead of stopping at the first.
type ErrorList struct {
	Errors []ItemError
}

func (el *ErrorList) Add(e ItemError) {
	el.Errors = append(el.Errors, e)
}

func (el *ErrorList) Addf(kind ErrorKind, itemID, format string, args ...any) {
	el.Errors = append(el.Errors, ItemError{
		Kind:     kind,
		Severity: SeverityError,
		ItemID:   itemID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (el *ErrorList) Warnf(kind ErrorKind, itemID, format string, args ...any) {
	el.Errors = append(el.Errors, ItemError{
		Kind:     kind,
		Severity: SeverityWarning,
		ItemID:   itemID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

func (el *ErrorList) Error() string {
	msgs := make([]string, 0, len(el.Errors))
	for _, e := range el.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}
