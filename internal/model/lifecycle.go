package model

import "fmt"

// leadTransitions lists the allowed forward moves of the lead lifecycle.
// Rejected, duplicate and qualified have no outgoing edges.
var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadPending:    {LeadValidating, LeadDuplicate},
	LeadValidating: {LeadApproved, LeadRejected, LeadDuplicate},
	LeadApproved:   {LeadQualified},
}

// Terminal reports whether no further transition is possible from s.
func (s LeadStatus) Terminal() bool {
	return len(leadTransitions[s]) == 0
}

// CanTransition reports whether a lead may move from one status to another.
func CanTransition(from, to LeadStatus) bool {
	for _, next := range leadTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is returned when a lead move breaks the forward chain.
type TransitionError struct {
	LeadID string
	From   LeadStatus
	To     LeadStatus
}

func (e *TransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("lead %s: status %s is terminal (requested %s)", e.LeadID, e.From, e.To)
	}
	return fmt.Sprintf("lead %s: cannot move from %s to %s", e.LeadID, e.From, e.To)
}

// CheckTransition returns a *TransitionError when the move is not allowed.
func CheckTransition(leadID string, from, to LeadStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{LeadID: leadID, From: from, To: to}
	}
	return nil
}
