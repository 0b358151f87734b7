package harness

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/pipeline"
)

// errScripted is returned for leads listed under collaborators.failures.
var errScripted = errors.New("scripted collaborator failure")

// scripted answers validator, scorer and deal health calls from the
// scenario's collaborators section.
type scripted struct {
	cfg Collaborators
}

func newScripted(cfg Collaborators) *scripted {
	return &scripted{cfg: cfg}
}

func (s *scripted) ValidateLead(_ context.Context, lead model.QuarantinedLead) (pipeline.ValidationResult, error) {
	if slices.Contains(s.cfg.Failures, lead.CompanyName) {
		return pipeline.ValidationResult{}, errScripted
	}
	payload, err := model.NewPayload("harness", map[string]any{"company_name": lead.CompanyName})
	if err != nil {
		return pipeline.ValidationResult{}, err
	}
	if reason, ok := s.cfg.Rejections[lead.CompanyName]; ok {
		return pipeline.ValidationResult{Reason: reason, Payload: payload}, nil
	}
	return pipeline.ValidationResult{Valid: true, Payload: payload}, nil
}

func (s *scripted) ScoreLead(_ context.Context, lead model.QuarantinedLead) (model.ICPOutcome, error) {
	score := model.Clamp(s.cfg.Scores[lead.CompanyName])
	return model.ICPOutcome{
		Score:        score,
		LogicVersion: "harness",
		Criteria:     []model.CriterionScore{{Criterion: "scripted", Weight: 1, Score: score}},
	}, nil
}

func (s *scripted) ScoreDeal(context.Context, model.Deal) (model.Score, error) {
	return model.Clamp(s.cfg.DealHealth), nil
}
