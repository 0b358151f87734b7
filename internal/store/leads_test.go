package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/salesmachine/internal/model"
)

func TestEnsureSource_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureSource(ctx, "web form", model.SourceForm)
	if err != nil {
		t.Fatalf("EnsureSource() failed: %v", err)
	}
	second, err := s.EnsureSource(ctx, " web form ", model.SourceForm)
	if err != nil {
		t.Fatalf("second EnsureSource() failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call created a new source: %q != %q", second.ID, first.ID)
	}
	if !first.Active || first.Kind != model.SourceForm {
		t.Errorf("source = %+v", first)
	}

	if _, err := s.EnsureSource(ctx, "pigeon", "carrier"); err == nil {
		t.Error("unknown source kind accepted")
	}

	sources, err := s.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources() failed: %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("sources = %d, want 1", len(sources))
	}
}

func TestCaptureLead_Pending(t *testing.T) {
	s := createTestStore(t)
	src := mustSource(t, s)

	lead := mustCapture(t, s, model.LeadCapture{
		SourceID:    src.ID,
		CNPJ:        "11.222.333/0001-81",
		CompanyName: "  Acme Ltda ",
		Email:       "Contato@Acme.com.br",
	})

	if lead.Status != model.LeadPending {
		t.Errorf("Status = %s, want pending", lead.Status)
	}
	if lead.CNPJ != cnpjA || lead.CompanyName != "Acme Ltda" || lead.Email != "contato@acme.com.br" {
		t.Errorf("lead fields not normalized: %+v", lead)
	}
	if lead.Fingerprint == "" {
		t.Error("Fingerprint is empty")
	}

	transitions, err := s.LeadTransitions(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("LeadTransitions() failed: %v", err)
	}
	if len(transitions) != 0 {
		t.Errorf("capture logged %d transitions, want 0", len(transitions))
	}
}

func TestCaptureLead_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)

	tests := []struct {
		name string
		in   model.LeadCapture
	}{
		{"blank name", model.LeadCapture{SourceID: src.ID, CompanyName: " "}},
		{"missing source", model.LeadCapture{CompanyName: "Acme"}},
		{"bad cnpj", model.LeadCapture{SourceID: src.ID, CompanyName: "Acme", CNPJ: "123"}},
		{"unknown source", model.LeadCapture{SourceID: "nope", CompanyName: "Acme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CaptureLead(ctx, tt.in); err == nil {
				t.Error("CaptureLead() succeeded, want error")
			}
		})
	}

	leads, _ := s.ListLeads(ctx, LeadFilter{})
	if len(leads) != 0 {
		t.Errorf("failed captures left %d rows", len(leads))
	}
}

func TestCaptureLead_Duplicate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)

	original := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "Acme"})
	dup := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: "11.222.333/0001-81", CompanyName: "ACME S.A."})

	if dup.Status != model.LeadDuplicate {
		t.Fatalf("Status = %s, want duplicate", dup.Status)
	}
	if dup.DuplicateOf != original.ID {
		t.Errorf("DuplicateOf = %q, want %q", dup.DuplicateOf, original.ID)
	}

	transitions, _ := s.LeadTransitions(ctx, dup.ID)
	if len(transitions) != 1 || transitions[0].From != model.LeadPending || transitions[0].To != model.LeadDuplicate {
		t.Errorf("duplicate transitions = %+v", transitions)
	}

	// A lead with a different CNPJ is not a duplicate.
	other := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjB, CompanyName: "Acme"})
	if other.Status != model.LeadPending {
		t.Errorf("other Status = %s, want pending", other.Status)
	}
}

func TestCaptureLead_DuplicateWithoutCNPJ(t *testing.T) {
	s := createTestStore(t)
	src := mustSource(t, s)

	first := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CompanyName: "Padaria  Bom Pão", Email: "ana@bompao.com"})
	second := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CompanyName: "padaria bom pão", Email: "JOSE@bompao.com"})

	if second.Status != model.LeadDuplicate || second.DuplicateOf != first.ID {
		t.Errorf("second = %s of %q, want duplicate of %q", second.Status, second.DuplicateOf, first.ID)
	}
}

func TestCaptureLead_RejectedOriginalIsNotMatched(t *testing.T) {
	s := createTestStore(t)
	src := mustSource(t, s)

	first := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "Acme"})
	mustTransition(t, s, first.ID, model.LeadValidating)
	mustTransition(t, s, first.ID, model.LeadRejected)

	retry := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "Acme"})
	if retry.Status != model.LeadPending {
		t.Errorf("Status = %s, want pending after rejected original", retry.Status)
	}
}

func TestTransitionLead_ForwardChain(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "Acme"})

	validation, err := model.NewPayload("edge:validate-lead", map[string]any{"valid": true})
	if err != nil {
		t.Fatalf("NewPayload() failed: %v", err)
	}
	t1, err := s.TransitionLead(ctx, lead.ID, model.LeadValidating, TransitionMeta{FlowToken: "flow-1"})
	if err != nil {
		t.Fatalf("pending -> validating failed: %v", err)
	}
	t2, err := s.TransitionLead(ctx, lead.ID, model.LeadApproved, TransitionMeta{Reason: "ok", FlowToken: "flow-1", Validation: &validation})
	if err != nil {
		t.Fatalf("validating -> approved failed: %v", err)
	}
	if t2.Seq <= t1.Seq {
		t.Errorf("seq not increasing: %d then %d", t1.Seq, t2.Seq)
	}

	got, _ := s.GetLead(ctx, lead.ID)
	if got.Status != model.LeadApproved {
		t.Errorf("Status = %s, want approved", got.Status)
	}
	if got.Validation.Producer != "edge:validate-lead" {
		t.Errorf("Validation.Producer = %q", got.Validation.Producer)
	}

	log, _ := s.LeadTransitions(ctx, lead.ID)
	if len(log) != 2 || log[0].FlowToken != "flow-1" || log[1].Reason != "ok" {
		t.Errorf("transition log = %+v", log)
	}
}

func TestTransitionLead_Rejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CompanyName: "Acme"})

	mustTransition(t, s, lead.ID, model.LeadValidating)
	if _, err := s.TransitionLead(ctx, lead.ID, model.LeadRejected, TransitionMeta{Reason: "empresa inativa"}); err != nil {
		t.Fatalf("TransitionLead() failed: %v", err)
	}
	got, _ := s.GetLead(ctx, lead.ID)
	if got.RejectionReason != "empresa inativa" {
		t.Errorf("RejectionReason = %q", got.RejectionReason)
	}
}

func TestTransitionLead_Invalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CompanyName: "Acme"})

	tests := []struct {
		name     string
		setup    []model.LeadStatus
		to       model.LeadStatus
		terminal bool
	}{
		{"skip validation", nil, model.LeadApproved, false},
		{"back to pending", []model.LeadStatus{model.LeadValidating}, model.LeadPending, false},
		{"leave rejected", []model.LeadStatus{model.LeadRejected}, model.LeadApproved, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, st := range tt.setup {
				mustTransition(t, s, lead.ID, st)
			}
			_, err := s.TransitionLead(ctx, lead.ID, tt.to, TransitionMeta{})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("error = %v, want ErrInvalidTransition", err)
			}
			var te *model.TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("error %v does not carry *model.TransitionError", err)
			}
			if te.From.Terminal() != tt.terminal {
				t.Errorf("From %s terminal = %v, want %v", te.From, te.From.Terminal(), tt.terminal)
			}
		})
	}

	// Failed moves never reach the log.
	log, _ := s.LeadTransitions(ctx, lead.ID)
	if len(log) != 2 {
		t.Errorf("transitions = %d, want 2", len(log))
	}
}

func TestTransitionLead_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.TransitionLead(context.Background(), "missing", model.LeadValidating, TransitionMeta{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLeadTransitions_AppendOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)
	lead := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CompanyName: "Acme"})
	mustTransition(t, s, lead.ID, model.LeadValidating)

	_, err := s.db.ExecContext(ctx, `UPDATE lead_transitions SET to_status = 'approved'`)
	if err := wrapDBError("tamper", err); !errors.Is(err, ErrImmutable) {
		t.Errorf("UPDATE error = %v, want ErrImmutable", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM lead_transitions`)
	if err := wrapDBError("tamper", err); !errors.Is(err, ErrImmutable) {
		t.Errorf("DELETE error = %v, want ErrImmutable", err)
	}
}

func TestListLeads_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)

	a := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "A"})
	b := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjB, CompanyName: "B"})
	mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "A again"})
	mustTransition(t, s, b.ID, model.LeadValidating)

	all, err := s.ListLeads(ctx, LeadFilter{})
	if err != nil {
		t.Fatalf("ListLeads() failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != a.ID {
		t.Errorf("ListLeads() returned %d leads, first %q", len(all), all[0].ID)
	}

	open, _ := s.ListLeads(ctx, LeadFilter{Statuses: []model.LeadStatus{model.LeadPending, model.LeadValidating}})
	if len(open) != 2 {
		t.Errorf("pending+validating = %d, want 2", len(open))
	}

	page, _ := s.ListLeads(ctx, LeadFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ID != b.ID {
		t.Errorf("page = %+v, want lead %q", page, b.ID)
	}
}

func TestVerifyLeadStatuses(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	src := mustSource(t, s)

	a := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "A"})
	b := mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjB, CompanyName: "B"})
	mustCapture(t, s, model.LeadCapture{SourceID: src.ID, CNPJ: cnpjA, CompanyName: "A dup"})
	mustTransition(t, s, a.ID, model.LeadValidating)
	mustTransition(t, s, a.ID, model.LeadApproved)

	mismatches, err := s.VerifyLeadStatuses(ctx)
	if err != nil {
		t.Fatalf("VerifyLeadStatuses() failed: %v", err)
	}
	if len(mismatches) != 0 {
		t.Fatalf("clean store reported %+v", mismatches)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE leads_quarantine SET status = 'approved' WHERE id = ?`, b.ID); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}
	mismatches, err = s.VerifyLeadStatuses(ctx)
	if err != nil {
		t.Fatalf("VerifyLeadStatuses() failed: %v", err)
	}
	if len(mismatches) != 1 {
		t.Fatalf("mismatches = %+v, want 1", mismatches)
	}
	m := mismatches[0]
	if m.LeadID != b.ID || m.Stored != model.LeadApproved || m.Replayed != model.LeadPending {
		t.Errorf("mismatch = %+v", m)
	}
}
