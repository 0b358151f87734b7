package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roach88/salesmachine/internal/model"
)

var quoteItems = []model.CostItem{
	{ID: "imp_setup", Name: "Setup", Category: model.CategoryImplementation, Cost: model.FromUnits(5000)},
	{ID: "support_custom_1700000000000", Name: "Plantão", Category: model.CategorySupport, Cost: model.FromUnits(1200), IsCustom: true},
}

func TestCreateQuote_Versions(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	q1, err := s.CreateQuote(ctx, d.ID, quoteItems)
	if err != nil {
		t.Fatalf("CreateQuote() failed: %v", err)
	}
	if q1.Version != 1 || q1.Total != model.FromUnits(6200) || q1.Status != model.QuoteDraft || q1.CompanyID != c.ID {
		t.Errorf("q1 = %+v", q1)
	}
	if len(q1.Items) != 2 || !q1.Items[1].IsCustom {
		t.Errorf("items = %+v", q1.Items)
	}

	q2, err := s.CreateQuote(ctx, d.ID, nil)
	if err != nil {
		t.Fatalf("second CreateQuote() failed: %v", err)
	}
	if q2.Version != 2 || q2.Total != 0 || q2.Items == nil {
		t.Errorf("q2 = %+v", q2)
	}

	all, _ := s.ListQuotes(ctx, d.ID)
	if len(all) != 2 || all[0].ID != q1.ID {
		t.Errorf("ListQuotes() = %+v", all)
	}
}

func TestCreateQuote_Invalid(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	if _, err := s.CreateQuote(ctx, d.ID, []model.CostItem{{ID: "x", Category: model.CategorySupport, Cost: -1}}); err == nil {
		t.Error("negative cost accepted")
	}
	if _, err := s.CreateQuote(ctx, d.ID, []model.CostItem{{ID: "x", Category: "catering"}}); err == nil {
		t.Error("unknown category accepted")
	}
	if _, err := s.CreateQuote(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing deal error = %v", err)
	}
}

func TestQuote_FrozenAfterSend(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)
	q, _ := s.CreateQuote(ctx, d.ID, quoteItems)

	updated, err := s.UpdateQuoteItems(ctx, q.ID, quoteItems[:1])
	if err != nil {
		t.Fatalf("UpdateQuoteItems(draft) failed: %v", err)
	}
	if updated.Total != model.FromUnits(5000) {
		t.Errorf("Total = %s, want 5000.00", updated.Total)
	}

	sent, err := s.SendQuote(ctx, q.ID)
	if err != nil {
		t.Fatalf("SendQuote() failed: %v", err)
	}
	if sent.Status != model.QuoteSent || sent.SentAt == nil {
		t.Errorf("sent = %+v", sent)
	}

	if _, err := s.UpdateQuoteItems(ctx, q.ID, quoteItems); !errors.Is(err, ErrImmutable) {
		t.Errorf("update after send: %v, want ErrImmutable", err)
	}
	if _, err := s.SendQuote(ctx, q.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second send: %v, want ErrInvalidTransition", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM quote_history WHERE id = ?`, q.ID)
	if err := wrapDBError("delete", err); !errors.Is(err, ErrImmutable) {
		t.Errorf("delete after send: %v, want ErrImmutable", err)
	}

	accepted, err := s.DecideQuote(ctx, q.ID, true)
	if err != nil {
		t.Fatalf("DecideQuote() failed: %v", err)
	}
	if accepted.Status != model.QuoteAccepted || accepted.Total != model.FromUnits(5000) {
		t.Errorf("accepted = %+v", accepted)
	}
	if _, err := s.DecideQuote(ctx, q.ID, false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second decision: %v, want ErrInvalidTransition", err)
	}
}

func TestDecideQuote_RequiresSent(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)
	q, _ := s.CreateQuote(ctx, d.ID, nil)

	if _, err := s.DecideQuote(ctx, q.ID, true); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("deciding a draft: %v, want ErrInvalidTransition", err)
	}
}

func TestProposal_Lifecycle(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	content, _ := model.NewPayload("edge:generate-proposal", map[string]any{"sections": []any{"escopo"}})
	p, err := s.CreateProposal(ctx, d.ID, "Proposta ERP", content)
	if err != nil {
		t.Fatalf("CreateProposal() failed: %v", err)
	}
	if p.Version != 1 || p.Status != model.ProposalDraft || p.Content.Producer != "edge:generate-proposal" {
		t.Errorf("proposal = %+v", p)
	}

	if err := s.SaveProposalCosts(ctx, p.ID, quoteItems); err != nil {
		t.Fatalf("SaveProposalCosts() failed: %v", err)
	}
	reordered := []model.CostItem{quoteItems[1], quoteItems[0]}
	if err := s.SaveProposalCosts(ctx, p.ID, reordered); err != nil {
		t.Fatalf("second SaveProposalCosts() failed: %v", err)
	}
	costs, _ := s.ProposalCosts(ctx, p.ID)
	if len(costs) != 2 || costs[0].ID != quoteItems[1].ID || !costs[0].IsCustom {
		t.Errorf("costs = %+v", costs)
	}

	if _, err := s.SignProposal(ctx, p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("signing a draft: %v, want ErrInvalidTransition", err)
	}
	if _, err := s.SendProposal(ctx, p.ID); err != nil {
		t.Fatalf("SendProposal() failed: %v", err)
	}
	signed, err := s.SignProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("SignProposal() failed: %v", err)
	}
	if signed.Status != model.ProposalSigned || signed.SignedAt == nil || signed.SentAt == nil {
		t.Errorf("signed = %+v", signed)
	}

	if _, err := s.UpdateProposalContent(ctx, p.ID, "changed", content); !errors.Is(err, ErrImmutable) {
		t.Errorf("update after sign: %v, want ErrImmutable", err)
	}
	if err := s.SaveProposalCosts(ctx, p.ID, quoteItems); !errors.Is(err, ErrImmutable) {
		t.Errorf("costs after sign: %v, want ErrImmutable", err)
	}
	costs, _ = s.ProposalCosts(ctx, p.ID)
	if len(costs) != 2 || costs[0].ID != quoteItems[1].ID {
		t.Errorf("signed costs changed: %+v", costs)
	}
}

func TestProposal_FrozenAfterSend(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	content, _ := model.NewPayload("edge:generate-proposal", map[string]any{"v": "original"})
	p, err := s.CreateProposalWithCosts(ctx, d.ID, "Proposta ERP", content, quoteItems)
	if err != nil {
		t.Fatalf("CreateProposalWithCosts() failed: %v", err)
	}
	if _, err := s.SendProposal(ctx, p.ID); err != nil {
		t.Fatalf("SendProposal() failed: %v", err)
	}

	rewritten, _ := model.NewPayload("edge:generate-proposal", map[string]any{"v": "rewritten"})
	if _, err := s.UpdateProposalContent(ctx, p.ID, "Proposta ERP", rewritten); !errors.Is(err, ErrImmutable) {
		t.Errorf("update after send: %v, want ErrImmutable", err)
	}
	if err := s.SaveProposalCosts(ctx, p.ID, nil); !errors.Is(err, ErrImmutable) {
		t.Errorf("clearing costs after send: %v, want ErrImmutable", err)
	}
	got, _ := s.GetProposal(ctx, p.ID)
	if !strings.Contains(string(got.Content.Data), "original") || got.Title != "Proposta ERP" {
		t.Errorf("sent proposal changed: %+v", got)
	}
	if costs, _ := s.ProposalCosts(ctx, p.ID); len(costs) != 2 {
		t.Errorf("sent costs = %+v, want 2 items", costs)
	}

	if _, err := s.RejectProposal(ctx, p.ID); err != nil {
		t.Fatalf("RejectProposal() failed: %v", err)
	}
	if _, err := s.UpdateProposalContent(ctx, p.ID, "Proposta ERP", rewritten); !errors.Is(err, ErrImmutable) {
		t.Errorf("update after reject: %v, want ErrImmutable", err)
	}
	if err := s.SaveProposalCosts(ctx, p.ID, quoteItems[:1]); !errors.Is(err, ErrImmutable) {
		t.Errorf("costs after reject: %v, want ErrImmutable", err)
	}
	if _, err := s.SignProposal(ctx, p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("signing a rejected proposal: %v, want ErrInvalidTransition", err)
	}
}

func TestCreateProposalWithCosts_RollsBackOnCostError(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	dup := []model.CostItem{quoteItems[0], quoteItems[0]}
	if _, err := s.CreateProposalWithCosts(ctx, d.ID, "Proposta ERP", model.Payload{}, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate item IDs: %v, want ErrConflict", err)
	}
	list, err := s.ListProposals(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListProposals() failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("proposals = %d, want 0", len(list))
	}

	p, err := s.CreateProposalWithCosts(ctx, d.ID, "Proposta ERP", model.Payload{}, quoteItems)
	if err != nil {
		t.Fatalf("CreateProposalWithCosts() failed: %v", err)
	}
	if p.Version != 1 {
		t.Errorf("Version = %d, want 1", p.Version)
	}
	costs, _ := s.ProposalCosts(ctx, p.ID)
	if len(costs) != 2 || costs[0].ID != quoteItems[0].ID {
		t.Errorf("costs = %+v", costs)
	}
}

func TestUpdateProposalContent_BlankTitle(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	p, err := s.CreateProposal(ctx, d.ID, "Proposta ERP", model.Payload{})
	if err != nil {
		t.Fatalf("CreateProposal() failed: %v", err)
	}
	if _, err := s.UpdateProposalContent(ctx, p.ID, "   ", model.Payload{}); err == nil {
		t.Error("UpdateProposalContent() accepted a blank title")
	}
	got, _ := s.GetProposal(ctx, p.ID)
	if got.Title != "Proposta ERP" {
		t.Errorf("Title = %q, want unchanged", got.Title)
	}

	updated, err := s.UpdateProposalContent(ctx, p.ID, "  Proposta v2 ", model.Payload{})
	if err != nil {
		t.Fatalf("UpdateProposalContent() failed: %v", err)
	}
	if updated.Title != "Proposta v2" {
		t.Errorf("Title = %q, want trimmed", updated.Title)
	}
}

func TestProposal_Reject(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")
	d := mustDeal(t, s, c.ID)

	p, _ := s.CreateProposal(ctx, d.ID, "v1", model.Payload{})
	if _, err := s.SendProposal(ctx, p.ID); err != nil {
		t.Fatalf("SendProposal() failed: %v", err)
	}
	rejected, err := s.RejectProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("RejectProposal() failed: %v", err)
	}
	if rejected.Status != model.ProposalRejected || rejected.SignedAt != nil {
		t.Errorf("rejected = %+v", rejected)
	}

	p2, _ := s.CreateProposal(ctx, d.ID, "v2", model.Payload{})
	if p2.Version != 2 {
		t.Errorf("Version = %d, want 2", p2.Version)
	}
	list, _ := s.ListProposals(ctx, d.ID)
	if len(list) != 2 {
		t.Errorf("proposals = %d, want 2", len(list))
	}
}

func TestSaveProposalCosts_MissingProposal(t *testing.T) {
	s := createTestStore(t)
	err := s.SaveProposalCosts(context.Background(), "missing", quoteItems)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
