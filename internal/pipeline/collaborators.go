package pipeline

import (
	"context"
	"errors"

	"github.com/roach88/salesmachine/internal/model"
)

// ErrNotConfigured is returned when a step needs a collaborator the
// pipeline was built without.
var ErrNotConfigured = errors.New("collaborator not configured")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline stopped")

// ValidationResult is the verdict of a Validator for one lead.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	// Duplicate marks the lead as a copy of an existing one. DuplicateOf
	// names the original when the validator knows it.
	Duplicate   bool   `json:"duplicate,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	// Payload is stored verbatim in the lead's validation column.
	Payload model.Payload `json:"payload"`
}

// Validator checks a quarantined lead (CNPJ registry, email, LinkedIn).
type Validator interface {
	ValidateLead(ctx context.Context, lead model.QuarantinedLead) (ValidationResult, error)
}

// ICPScorer computes the ideal-customer-profile score of a lead.
type ICPScorer interface {
	ScoreLead(ctx context.Context, lead model.QuarantinedLead) (model.ICPOutcome, error)
}

// DealHealthScorer computes the health score of an open deal.
type DealHealthScorer interface {
	ScoreDeal(ctx context.Context, deal model.Deal) (model.Score, error)
}

// ProposalDraft is generated proposal text ready to be stored as a new
// proposal version.
type ProposalDraft struct {
	Title   string        `json:"title"`
	Content model.Payload `json:"content"`
}

// ProposalGenerator writes proposal content for a deal and its cost items.
type ProposalGenerator interface {
	GenerateProposal(ctx context.Context, deal model.Deal, items []model.CostItem) (ProposalDraft, error)
}
