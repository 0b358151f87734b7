package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/pipeline"
)

var (
	_ pipeline.Validator         = (*Client)(nil)
	_ pipeline.ICPScorer         = (*Client)(nil)
	_ pipeline.DealHealthScorer  = (*Client)(nil)
	_ pipeline.ProposalGenerator = (*Client)(nil)
)

type leadRequest struct {
	QuarantineID string `json:"quarantine_id"`
	CNPJ         string `json:"cnpj,omitempty"`
	CompanyName  string `json:"company_name"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
}

func newLeadRequest(l model.QuarantinedLead) leadRequest {
	return leadRequest{
		QuarantineID: l.ID,
		CNPJ:         l.CNPJ,
		CompanyName:  l.CompanyName,
		Email:        l.Email,
		Website:      l.Website,
		LinkedInURL:  l.LinkedInURL,
	}
}

// score is a numeric score that may arrive as an integer or a decimal.
type score json.Number

func (s score) value() (model.Score, error) {
	f, err := json.Number(s).Float64()
	if err != nil {
		return 0, fmt.Errorf("score %q: %w", string(s), err)
	}
	return model.Clamp(int(math.Round(f))), nil
}

func (s *score) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = score(n)
	return nil
}

type validateResponse struct {
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason"`
	Duplicate   bool   `json:"duplicate"`
	DuplicateOf string `json:"duplicate_of"`
}

// ValidateLead runs the validate-lead function. The whole response is kept
// as the lead's validation payload.
func (c *Client) ValidateLead(ctx context.Context, lead model.QuarantinedLead) (pipeline.ValidationResult, error) {
	raw, err := c.Call(ctx, FuncValidateLead, newLeadRequest(lead))
	if err != nil {
		return pipeline.ValidationResult{}, err
	}
	var resp validateResponse
	if err := decode(FuncValidateLead, raw, &resp); err != nil {
		return pipeline.ValidationResult{}, err
	}
	return pipeline.ValidationResult{
		Valid:       resp.Valid,
		Reason:      resp.Reason,
		Duplicate:   resp.Duplicate,
		DuplicateOf: resp.DuplicateOf,
		Payload:     envelope(FuncValidateLead, raw),
	}, nil
}

type icpResponse struct {
	Score        score            `json:"score"`
	LogicVersion string           `json:"logic_version"`
	Criteria     []criterion      `json:"criteria"`
	Evidence     []model.Evidence `json:"evidence"`
	Methodology  json.RawMessage  `json:"methodology"`
}

type criterion struct {
	Criterion string `json:"criterion"`
	Weight    int    `json:"weight"`
	Score     score  `json:"score"`
}

// ScoreLead runs calculate-icp-score-quarantine for a lead.
func (c *Client) ScoreLead(ctx context.Context, lead model.QuarantinedLead) (model.ICPOutcome, error) {
	raw, err := c.Call(ctx, FuncICPScore, newLeadRequest(lead))
	if err != nil {
		return model.ICPOutcome{}, err
	}
	var resp icpResponse
	if err := decode(FuncICPScore, raw, &resp); err != nil {
		return model.ICPOutcome{}, err
	}

	total, err := resp.Score.value()
	if err != nil {
		return model.ICPOutcome{}, fmt.Errorf("edge %s: %w", FuncICPScore, err)
	}
	out := model.ICPOutcome{
		Score:        total,
		LogicVersion: resp.LogicVersion,
		Criteria:     make([]model.CriterionScore, 0, len(resp.Criteria)),
		Evidence:     resp.Evidence,
		Methodology:  envelope(FuncICPScore, resp.Methodology),
	}
	for _, cr := range resp.Criteria {
		v, err := cr.Score.value()
		if err != nil {
			return model.ICPOutcome{}, fmt.Errorf("edge %s: criterion %q: %w", FuncICPScore, cr.Criterion, err)
		}
		out.Criteria = append(out.Criteria, model.CriterionScore{Criterion: cr.Criterion, Weight: cr.Weight, Score: v})
	}
	return out, nil
}

type dealRequest struct {
	DealID    string           `json:"deal_id"`
	CompanyID string           `json:"company_id"`
	Stage     string           `json:"stage"`
	Value     model.Cents      `json:"value_cents"`
	Status    string           `json:"status"`
	Items     []model.CostItem `json:"items,omitempty"`
	Title     string           `json:"title,omitempty"`
}

// ScoreDeal runs calculate-deal-health-score for an open deal.
func (c *Client) ScoreDeal(ctx context.Context, deal model.Deal) (model.Score, error) {
	raw, err := c.Call(ctx, FuncDealHealth, dealRequest{
		DealID:    deal.ID,
		CompanyID: deal.CompanyID,
		Stage:     deal.StageKey,
		Value:     deal.Value,
		Status:    string(deal.Status),
	})
	if err != nil {
		return 0, err
	}
	var resp struct {
		Score score `json:"score"`
	}
	if err := decode(FuncDealHealth, raw, &resp); err != nil {
		return 0, err
	}
	v, err := resp.Score.value()
	if err != nil {
		return 0, fmt.Errorf("edge %s: %w", FuncDealHealth, err)
	}
	return v, nil
}

// GenerateProposal runs generate-proposal for a deal and its cost items.
func (c *Client) GenerateProposal(ctx context.Context, deal model.Deal, items []model.CostItem) (pipeline.ProposalDraft, error) {
	raw, err := c.Call(ctx, FuncGenerateProposal, dealRequest{
		DealID:    deal.ID,
		CompanyID: deal.CompanyID,
		Stage:     deal.StageKey,
		Value:     deal.Value,
		Status:    string(deal.Status),
		Items:     items,
		Title:     deal.Title,
	})
	if err != nil {
		return pipeline.ProposalDraft{}, err
	}
	var resp struct {
		Title   string          `json:"title"`
		Content json.RawMessage `json:"content"`
	}
	if err := decode(FuncGenerateProposal, raw, &resp); err != nil {
		return pipeline.ProposalDraft{}, err
	}
	return pipeline.ProposalDraft{
		Title:   resp.Title,
		Content: envelope(FuncGenerateProposal, resp.Content),
	}, nil
}

// envelope wraps raw function output. Missing or null output becomes an
// empty object.
func envelope(function string, raw json.RawMessage) model.Payload {
	p := model.EmptyPayload()
	p.Producer = "edge:" + function
	if len(raw) > 0 && string(raw) != "null" {
		p.Data = raw
	}
	return p
}
