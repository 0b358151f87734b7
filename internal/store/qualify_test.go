package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/salesmachine/internal/model"
)

// approvedLead captures a lead and walks it to approved.
func approvedLead(t *testing.T, s *Store, cnpj, name string) model.QuarantinedLead {
	t.Helper()
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpj, CompanyName: name, Website: "https://acme.com.br"})
	mustTransition(t, s, lead.ID, model.LeadValidating)
	mustTransition(t, s, lead.ID, model.LeadApproved)
	lead.Status = model.LeadApproved
	return lead
}

func recordAnalysis(t *testing.T, s *Store, lead model.QuarantinedLead, score model.Score, temp model.Temperature) model.ICPAnalysis {
	t.Helper()
	a, err := s.RecordICPAnalysis(context.Background(), ICPRecord{
		SubjectKey:   SubjectKey(lead),
		QuarantineID: lead.ID,
		Outcome:      model.ICPOutcome{Score: score, LogicVersion: "icp-v3"},
		Temperature:  temp,
	})
	if err != nil {
		t.Fatalf("RecordICPAnalysis() failed: %v", err)
	}
	return a
}

func TestPoolLead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	lead := approvedLead(t, s, cnpjA, "Acme")

	first, err := s.PoolLead(ctx, lead.ID, "validated")
	if err != nil {
		t.Fatalf("PoolLead() failed: %v", err)
	}
	second, err := s.PoolLead(ctx, lead.ID, "again")
	if err != nil {
		t.Fatalf("second PoolLead() failed: %v", err)
	}
	if first.ID != second.ID || second.Reason != "validated" {
		t.Errorf("second pool = %+v, want existing %+v", second, first)
	}
}

func TestPoolLead_RequiresApproval(t *testing.T) {
	s := createTestStore(t)
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CompanyName: "Acme"})

	_, err := s.PoolLead(context.Background(), lead.ID, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestQualifyAndPromote(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	lead := approvedLead(t, s, cnpjA, "Acme")
	analysis := recordAnalysis(t, s, lead, 82, model.TemperatureHot)

	q, err := s.QualifyLead(ctx, lead.ID, analysis, "flow-7")
	if err != nil {
		t.Fatalf("QualifyLead() failed: %v", err)
	}
	if q.ICPScore != 82 || q.Temperature != model.TemperatureHot || q.AnalysisID != analysis.ID {
		t.Errorf("qualified = %+v", q)
	}

	log, _ := s.LeadTransitions(ctx, lead.ID)
	last := log[len(log)-1]
	if last.To != model.LeadQualified || last.FlowToken != "flow-7" {
		t.Errorf("last transition = %+v", last)
	}

	company, err := s.PromoteLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("PromoteLead() failed: %v", err)
	}
	if company.CNPJ != cnpjA || company.Name != "Acme" || company.Website != "https://acme.com.br" {
		t.Errorf("company = %+v", company)
	}
	if company.ICPScore == nil || *company.ICPScore != 82 {
		t.Errorf("ICPScore = %v, want 82", company.ICPScore)
	}

	again, err := s.PromoteLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("second PromoteLead() failed: %v", err)
	}
	if again.ID != company.ID {
		t.Errorf("second promotion created company %q, want %q", again.ID, company.ID)
	}

	gotLead, _ := s.GetLead(ctx, lead.ID)
	gotQualified, _ := s.GetQualifiedLead(ctx, lead.ID)
	gotAnalysis, _ := s.GetICPAnalysis(ctx, SubjectKey(lead))
	for name, id := range map[string]string{
		"lead":      gotLead.CompanyID,
		"qualified": gotQualified.CompanyID,
		"analysis":  gotAnalysis.CompanyID,
	} {
		if id != company.ID {
			t.Errorf("%s company_id = %q, want %q", name, id, company.ID)
		}
	}
}

func TestPromoteLead_ReusesCompanyWithSameCNPJ(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	existing := mustCompany(t, s, "Acme Holding", cnpjA)

	lead := approvedLead(t, s, cnpjA, "Acme")
	analysis := recordAnalysis(t, s, lead, 64, model.TemperatureWarm)
	if _, err := s.QualifyLead(ctx, lead.ID, analysis, ""); err != nil {
		t.Fatalf("QualifyLead() failed: %v", err)
	}

	company, err := s.PromoteLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("PromoteLead() failed: %v", err)
	}
	if company.ID != existing.ID || company.Name != "Acme Holding" {
		t.Errorf("promoted to %+v, want existing company", company)
	}
	if company.ICPScore == nil || *company.ICPScore != 64 {
		t.Errorf("ICPScore = %v, want 64", company.ICPScore)
	}
}

func TestPromoteLead_RequiresQualified(t *testing.T) {
	s := createTestStore(t)
	lead := approvedLead(t, s, cnpjA, "Acme")

	_, err := s.PromoteLead(context.Background(), lead.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestQualifyLead_RequiresApproval(t *testing.T) {
	s := createTestStore(t)
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "Acme"})
	analysis := recordAnalysis(t, s, lead, 90, model.TemperatureHot)

	_, err := s.QualifyLead(context.Background(), lead.ID, analysis, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
	if _, err := s.GetQualifiedLead(context.Background(), lead.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("qualified row written despite failed transition: %v", err)
	}
}
