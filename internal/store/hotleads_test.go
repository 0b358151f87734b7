package store

import (
	"context"
	"testing"

	"github.com/roach88/salesmachine/internal/model"
)

func TestHotLeads(t *testing.T) {
	s := createStagedStore(t)
	ctx := context.Background()

	hot := mustCompany(t, s, "Hot", cnpjA)
	warm := mustCompany(t, s, "Warm", "")
	cold := mustCompany(t, s, "Cold", "")
	tie := mustCompany(t, s, "Tie", "")

	set := func(id string, intent int, icp *int) {
		t.Helper()
		i := model.Score(intent)
		scores := CompanyScores{BuyingIntent: &i}
		if icp != nil {
			v := model.Score(*icp)
			scores.ICP = &v
		}
		if err := s.UpdateCompanyScores(ctx, id, scores); err != nil {
			t.Fatalf("UpdateCompanyScores() failed: %v", err)
		}
	}
	icp90, icp40 := 90, 40
	set(hot.ID, 95, nil)
	set(warm.ID, 80, &icp40)
	set(tie.ID, 80, &icp90)
	set(cold.ID, 20, nil)

	if _, err := s.RecordICPAnalysis(ctx, ICPRecord{
		SubjectKey:  "cnpj:" + cnpjA,
		CompanyID:   hot.ID,
		Outcome:     model.ICPOutcome{Score: 88},
		Temperature: model.TemperatureHot,
	}); err != nil {
		t.Fatalf("RecordICPAnalysis() failed: %v", err)
	}
	mustDeal(t, s, hot.ID)
	closed := mustDeal(t, s, hot.ID)
	if _, err := s.CloseDeal(ctx, closed.ID, model.DealLost); err != nil {
		t.Fatalf("CloseDeal() failed: %v", err)
	}

	leads, err := s.HotLeads(ctx, 50)
	if err != nil {
		t.Fatalf("HotLeads() failed: %v", err)
	}
	if len(leads) != 3 {
		t.Fatalf("HotLeads() = %d rows, want 3", len(leads))
	}
	order := []string{leads[0].Name, leads[1].Name, leads[2].Name}
	if order[0] != "Hot" || order[1] != "Tie" || order[2] != "Warm" {
		t.Errorf("order = %v, want [Hot Tie Warm]", order)
	}
	first := leads[0]
	if first.Temperature != model.TemperatureHot || first.OpenDeals != 1 || first.ICPScore == nil || *first.ICPScore != 88 {
		t.Errorf("first = %+v", first)
	}
	if leads[2].Temperature != "" {
		t.Errorf("unanalysed company temperature = %q", leads[2].Temperature)
	}

	none, _ := s.HotLeads(ctx, 100)
	if none == nil || len(none) != 0 {
		t.Errorf("HotLeads(100) = %#v, want empty", none)
	}
}
