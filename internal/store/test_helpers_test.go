package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/testutil"
)

const (
	cnpjA = "11222333000181"
	cnpjB = "11444777000161"
)

// createTestStore creates a store with a stepping clock and sequential IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	clock := testutil.NewStepClock(time.Time{}, time.Second)
	ids := testutil.NewSequentialIDs("row")
	s, err := Open(path, WithClock(clock.Now), WithIDGenerator(ids.Next))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createStagedStore also syncs the default catalog's pipeline stages.
func createStagedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() failed: %v", err)
	}
	if err := s.SyncStages(context.Background(), cat.Stages); err != nil {
		t.Fatalf("SyncStages() failed: %v", err)
	}
	return s
}

func mustCompany(t *testing.T, s *Store, name, cnpj string) model.Company {
	t.Helper()
	c, err := s.CreateCompany(context.Background(), model.Company{Name: name, CNPJ: cnpj})
	if err != nil {
		t.Fatalf("CreateCompany(%q) failed: %v", name, err)
	}
	return c
}

func mustSource(t *testing.T, s *Store) model.LeadSource {
	t.Helper()
	src, err := s.EnsureSource(context.Background(), "web form", model.SourceForm)
	if err != nil {
		t.Fatalf("EnsureSource() failed: %v", err)
	}
	return src
}

func mustCapture(t *testing.T, s *Store, in model.LeadCapture) model.QuarantinedLead {
	t.Helper()
	lead, err := s.CaptureLead(context.Background(), in)
	if err != nil {
		t.Fatalf("CaptureLead(%q) failed: %v", in.CompanyName, err)
	}
	return lead
}

func mustTransition(t *testing.T, s *Store, id string, to model.LeadStatus) {
	t.Helper()
	if _, err := s.TransitionLead(context.Background(), id, to, TransitionMeta{Reason: "test"}); err != nil {
		t.Fatalf("TransitionLead(%s -> %s) failed: %v", id, to, err)
	}
}

func mustDeal(t *testing.T, s *Store, companyID string) model.Deal {
	t.Helper()
	d, err := s.CreateDeal(context.Background(), DealInput{CompanyID: companyID, Title: "ERP rollout", Value: model.FromUnits(50000)})
	if err != nil {
		t.Fatalf("CreateDeal() failed: %v", err)
	}
	return d
}
