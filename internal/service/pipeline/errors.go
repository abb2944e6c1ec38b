package pipeline

import (
	"errors"
	"fmt"

	"github.com/jopa/salestracker/internal/observability"
)

// AggregationError means the metrics snapshot could not be computed. No report
// was written.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string { return fmt.Sprintf("aggregate metrics: %v", e.Err) }
func (e *AggregationError) Unwrap() error { return e.Err }

// PersistError means the report row could not be written.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist report: %v", e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }

// RenderError means the report was stored but its PDF could not be produced.
type RenderError struct {
	ReportID uint
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render report %d: %v", e.ReportID, e.Err)
}
func (e *RenderError) Unwrap() error { return e.Err }

// DeliveryError means the report was stored and rendered but not emailed.
type DeliveryError struct {
	ReportID uint
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver report %d: %v", e.ReportID, e.Err)
}
func (e *DeliveryError) Unwrap() error { return e.Err }

// Outcome classifies a RunOnce error for metrics and logs.
func Outcome(err error) string {
	var (
		aggErr     *AggregationError
		persistErr *PersistError
		renderErr  *RenderError
		deliverErr *DeliveryError
	)

	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.As(err, &aggErr):
		return observability.OutcomeAggregationError
	case errors.As(err, &persistErr):
		return observability.OutcomePersistError
	case errors.As(err, &renderErr):
		return observability.OutcomeRenderError
	case errors.As(err, &deliverErr):
		return observability.OutcomeDeliveryError
	default:
		return "error"
	}
}

// DanglingReportID returns the id of a report that was stored but not delivered.
func DanglingReportID(err error) (uint, bool) {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return renderErr.ReportID, true
	}
	var deliverErr *DeliveryError
	if errors.As(err, &deliverErr) {
		return deliverErr.ReportID, true
	}
	return 0, false
}
