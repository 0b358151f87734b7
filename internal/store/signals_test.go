package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/testutil"
)

func TestRecordSignal_PerKindTables(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")

	for _, kind := range []model.SignalKind{model.SignalIntent, model.SignalBuying, model.SignalGovernance} {
		_, err := s.RecordSignal(ctx, model.Signal{
			Kind:       kind,
			CompanyID:  c.ID,
			SignalType: "hiring",
			Confidence: 70,
			Priority:   model.PriorityHigh,
		})
		if err != nil {
			t.Fatalf("RecordSignal(%s) failed: %v", kind, err)
		}
	}

	buying, err := s.ListSignals(ctx, c.ID, model.SignalBuying)
	if err != nil {
		t.Fatalf("ListSignals() failed: %v", err)
	}
	if len(buying) != 1 || buying[0].Kind != model.SignalBuying || buying[0].Priority != model.PriorityHigh {
		t.Errorf("buying signals = %+v", buying)
	}
}

func TestRecordSignal_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")

	old := testutil.Epoch.Add(-48 * time.Hour)
	for _, at := range []time.Time{old, testutil.Epoch} {
		if _, err := s.RecordSignal(ctx, model.Signal{Kind: model.SignalIntent, CompanyID: c.ID, SignalType: "visit", Confidence: 50, Priority: model.PriorityLow, DetectedAt: at}); err != nil {
			t.Fatalf("RecordSignal() failed: %v", err)
		}
	}
	got, _ := s.ListSignals(ctx, c.ID, model.SignalIntent)
	if len(got) != 2 || !got[0].DetectedAt.Equal(testutil.Epoch) {
		t.Errorf("signals = %+v", got)
	}
}

func TestRecordSignal_Invalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := mustCompany(t, s, "Acme", "")

	tests := []struct {
		name string
		sig  model.Signal
	}{
		{"unknown kind", model.Signal{Kind: "rumor", CompanyID: c.ID, Priority: model.PriorityLow}},
		{"unknown priority", model.Signal{Kind: model.SignalIntent, CompanyID: c.ID, Priority: "urgent"}},
		{"confidence", model.Signal{Kind: model.SignalIntent, CompanyID: c.ID, Priority: model.PriorityLow, Confidence: 101}},
		{"unknown company", model.Signal{Kind: model.SignalIntent, CompanyID: "nope", Priority: model.PriorityLow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.RecordSignal(ctx, tt.sig); err == nil {
				t.Error("RecordSignal() succeeded, want error")
			}
		})
	}
	if _, err := s.ListSignals(ctx, c.ID, "rumor"); err == nil {
		t.Error("ListSignals(unknown kind) succeeded")
	}
}

func TestMonitoring_Due(t *testing.T) {
	clock := testutil.NewStepClock(time.Time{}, 0)
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithClock(clock.Now), WithIDGenerator(testutil.NewSequentialIDs("row").Next))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	a := mustCompany(t, s, "A", "")
	b := mustCompany(t, s, "B", "")
	off := mustCompany(t, s, "Off", "")
	for _, m := range []model.Monitoring{
		{CompanyID: a.ID, Enabled: true, FrequencyDays: 1},
		{CompanyID: b.ID, Enabled: true, FrequencyDays: 7},
		{CompanyID: off.ID, Enabled: false, FrequencyDays: 1},
	} {
		if err := s.UpsertMonitoring(ctx, m); err != nil {
			t.Fatalf("UpsertMonitoring() failed: %v", err)
		}
	}

	due, _ := s.DueMonitoring(ctx)
	if len(due) != 2 {
		t.Fatalf("never-checked due = %d, want 2", len(due))
	}

	for _, id := range []string{a.ID, b.ID} {
		if err := s.MarkChecked(ctx, id); err != nil {
			t.Fatalf("MarkChecked() failed: %v", err)
		}
	}
	due, _ = s.DueMonitoring(ctx)
	if len(due) != 0 {
		t.Errorf("just checked due = %+v", due)
	}

	clock.Advance(24 * time.Hour)
	due, _ = s.DueMonitoring(ctx)
	if len(due) != 1 || due[0].CompanyID != a.ID {
		t.Errorf("after one day due = %+v, want only A", due)
	}

	got, _ := s.GetMonitoring(ctx, a.ID)
	if got.LastCheckedAt == nil || !got.LastCheckedAt.Equal(testutil.Epoch) {
		t.Errorf("LastCheckedAt = %v", got.LastCheckedAt)
	}

	// Upsert keeps the last check.
	if err := s.UpsertMonitoring(ctx, model.Monitoring{CompanyID: a.ID, Enabled: true, FrequencyDays: 3}); err != nil {
		t.Fatalf("UpsertMonitoring() failed: %v", err)
	}
	got, _ = s.GetMonitoring(ctx, a.ID)
	if got.FrequencyDays != 3 || got.LastCheckedAt == nil {
		t.Errorf("after upsert = %+v", got)
	}

	if err := s.UpsertMonitoring(ctx, model.Monitoring{CompanyID: a.ID, FrequencyDays: 0}); err == nil {
		t.Error("zero frequency accepted")
	}
	if err := s.MarkChecked(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkChecked(missing) = %v, want ErrNotFound", err)
	}
}
