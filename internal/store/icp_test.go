package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/salesmachine/internal/model"
)

func TestSubjectKey(t *testing.T) {
	if got := SubjectKey(model.QuarantinedLead{ID: "l1", CNPJ: cnpjA}); got != "cnpj:"+cnpjA {
		t.Errorf("SubjectKey(with cnpj) = %q", got)
	}
	if got := SubjectKey(model.QuarantinedLead{ID: "l1"}); got != "lead:l1" {
		t.Errorf("SubjectKey(without cnpj) = %q", got)
	}
}

func TestRecordICPAnalysis_Versions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key := "cnpj:" + cnpjA

	methodology, _ := model.NewPayload("edge:calculate-icp-score-quarantine", map[string]any{"model": "weighted"})
	first, err := s.RecordICPAnalysis(ctx, ICPRecord{
		SubjectKey: key,
		Outcome: model.ICPOutcome{
			Score:        55,
			LogicVersion: "icp-v3",
			Methodology:  methodology,
			Criteria: []model.CriterionScore{
				{Criterion: "porte", Weight: 30, Score: 60},
				{Criterion: "setor", Weight: 70, Score: 50},
			},
			Evidence: []model.Evidence{
				{Criterion: "setor", SourceURL: "https://example.com/a", Excerpt: "varejo"},
				{Criterion: "setor", SourceURL: "https://example.com/a", Excerpt: "varejo"},
			},
		},
		Temperature: model.TemperatureWarm,
	})
	if err != nil {
		t.Fatalf("RecordICPAnalysis() failed: %v", err)
	}
	if first.AnalysisVersion != 1 {
		t.Errorf("AnalysisVersion = %d, want 1", first.AnalysisVersion)
	}
	if len(first.Evidence) != 1 {
		t.Errorf("stored evidence = %d, want 1 after dedup", len(first.Evidence))
	}

	second, err := s.RecordICPAnalysis(ctx, ICPRecord{
		SubjectKey:  key,
		Outcome:     model.ICPOutcome{Score: 78, LogicVersion: "icp-v4"},
		Temperature: model.TemperatureHot,
	})
	if err != nil {
		t.Fatalf("second RecordICPAnalysis() failed: %v", err)
	}
	if second.ID != first.ID || second.AnalysisVersion != 2 {
		t.Errorf("second = id %q v%d, want id %q v2", second.ID, second.AnalysisVersion, first.ID)
	}

	current, err := s.GetICPAnalysis(ctx, key)
	if err != nil {
		t.Fatalf("GetICPAnalysis() failed: %v", err)
	}
	if current.Score != 78 || current.LogicVersion != "icp-v4" {
		t.Errorf("current = %+v", current)
	}
	if len(current.Criteria) != 0 || len(current.Evidence) != 0 {
		t.Errorf("v2 criteria/evidence = %d/%d, want 0/0", len(current.Criteria), len(current.Evidence))
	}

	history, err := s.ICPHistory(ctx, first.ID)
	if err != nil {
		t.Fatalf("ICPHistory() failed: %v", err)
	}
	if len(history) != 2 || history[0].Score != 55 || history[1].Score != 78 {
		t.Errorf("history = %+v", history)
	}
	if history[0].Methodology.Producer != "edge:calculate-icp-score-quarantine" {
		t.Errorf("v1 methodology producer = %q", history[0].Methodology.Producer)
	}
}

func TestRecordICPAnalysis_CriteriaOfLatestVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordICPAnalysis(ctx, ICPRecord{
		SubjectKey: "lead:x",
		Outcome: model.ICPOutcome{Score: 40, Criteria: []model.CriterionScore{
			{Criterion: "setor", Weight: 50, Score: 40},
			{Criterion: "porte", Weight: 50, Score: 40},
		}},
		Temperature: model.TemperatureCold,
	})
	if err != nil {
		t.Fatalf("RecordICPAnalysis() failed: %v", err)
	}

	got, _ := s.GetICPAnalysis(ctx, "lead:x")
	if len(got.Criteria) != 2 || got.Criteria[0].Criterion != "porte" {
		t.Errorf("criteria = %+v, want sorted by name", got.Criteria)
	}
}

func TestRecordICPAnalysis_UpdatesLinkedCompany(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", cnpjA)

	_, err := s.RecordICPAnalysis(ctx, ICPRecord{
		SubjectKey:  "cnpj:" + cnpjA,
		CompanyID:   c.ID,
		Outcome:     model.ICPOutcome{Score: 91},
		Temperature: model.TemperatureHot,
	})
	if err != nil {
		t.Fatalf("RecordICPAnalysis() failed: %v", err)
	}
	got, _ := s.GetCompany(ctx, c.ID)
	if got.ICPScore == nil || *got.ICPScore != 91 {
		t.Errorf("company ICPScore = %v, want 91", got.ICPScore)
	}
}

func TestRecordICPAnalysis_Invalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  ICPRecord
	}{
		{"no subject", ICPRecord{Outcome: model.ICPOutcome{Score: 10}, Temperature: model.TemperatureCold}},
		{"score out of range", ICPRecord{SubjectKey: "k", Outcome: model.ICPOutcome{Score: 120}, Temperature: model.TemperatureHot}},
		{"bad temperature", ICPRecord{SubjectKey: "k", Outcome: model.ICPOutcome{Score: 10}, Temperature: "TEPID"}},
		{"bad criterion", ICPRecord{SubjectKey: "k", Outcome: model.ICPOutcome{Score: 10, Criteria: []model.CriterionScore{{Criterion: "x", Weight: -1}}}, Temperature: model.TemperatureCold}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.RecordICPAnalysis(ctx, tt.rec); err == nil {
				t.Error("RecordICPAnalysis() succeeded, want error")
			}
		})
	}
}

func TestICPHistory_AppendOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, err := s.RecordICPAnalysis(ctx, ICPRecord{SubjectKey: "lead:x", Outcome: model.ICPOutcome{Score: 10}, Temperature: model.TemperatureCold})
	if err != nil {
		t.Fatalf("RecordICPAnalysis() failed: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE icp_analysis_history SET score = 99 WHERE analysis_id = ?`, a.ID)
	if err := wrapDBError("tamper", err); !errors.Is(err, ErrImmutable) {
		t.Errorf("UPDATE error = %v, want ErrImmutable", err)
	}
}

func TestGetICPAnalysis_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetICPAnalysis(context.Background(), "lead:none")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
