package pipeline

import (
	"errors"
	"fmt"
)

// RuntimeError is a failure of one pipeline step. It carries the flow and
// lead so operators can find the affected records and resubmit.
type RuntimeError struct {
	Code      RuntimeErrorCode
	Message   string
	FlowToken string
	LeadID    string
	Step      Step
	Details   map[string]string
	Err       error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeQuotaExceeded indicates the flow exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeInvalidTransition indicates the lead was not in a status the
	// step can move from.
	ErrCodeInvalidTransition RuntimeErrorCode = "INVALID_TRANSITION"

	// ErrCodeCollaboratorFailed indicates an external collaborator call failed.
	ErrCodeCollaboratorFailed RuntimeErrorCode = "COLLABORATOR_FAILED"

	// ErrCodeStoreFailed indicates a store write failed.
	ErrCodeStoreFailed RuntimeErrorCode = "STORE_FAILED"
)

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.FlowToken != "" && e.LeadID != "" {
		return fmt.Sprintf("%s (flow=%s, lead=%s)", msg, e.FlowToken, e.LeadID)
	}
	if e.LeadID != "" {
		return fmt.Sprintf("%s (lead=%s)", msg, e.LeadID)
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsQuotaError reports whether err is a quota failure, either as a
// RuntimeError or a bare StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	return IsStepsExceededError(err)
}

// IsCollaboratorError reports whether err is a collaborator failure.
func IsCollaboratorError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeCollaboratorFailed
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(ev Event, cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("flow exceeded max steps (%d > %d)", cause.Steps, cause.Limit),
		FlowToken: ev.FlowToken,
		LeadID:    ev.LeadID,
		Step:      ev.Step,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

func newStepError(code RuntimeErrorCode, ev Event, msg string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      code,
		Message:   msg,
		FlowToken: ev.FlowToken,
		LeadID:    ev.LeadID,
		Step:      ev.Step,
		Err:       err,
	}
}
