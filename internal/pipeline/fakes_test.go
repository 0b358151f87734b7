package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
	"github.com/roach88/salesmachine/internal/testutil"
)

var errEdgeDown = errors.New("edge function unavailable")

// fakeValidator approves every lead unless its company name is listed.
type fakeValidator struct {
	reject    map[string]string
	duplicate map[string]string
	fail      map[string]bool
	calls     atomic.Int32
}

func (v *fakeValidator) ValidateLead(_ context.Context, lead model.QuarantinedLead) (ValidationResult, error) {
	v.calls.Add(1)
	if v.fail[lead.CompanyName] {
		return ValidationResult{}, errEdgeDown
	}
	payload, err := model.NewPayload("fake:validator", map[string]any{"checked": lead.CompanyName})
	if err != nil {
		return ValidationResult{}, err
	}
	if orig, ok := v.duplicate[lead.CompanyName]; ok {
		return ValidationResult{Duplicate: true, DuplicateOf: orig, Reason: "registry match", Payload: payload}, nil
	}
	if reason, ok := v.reject[lead.CompanyName]; ok {
		return ValidationResult{Valid: false, Reason: reason, Payload: payload}, nil
	}
	return ValidationResult{Valid: true, Payload: payload}, nil
}

// fakeScorer returns a fixed score per company name, 80 by default.
type fakeScorer struct {
	mu     sync.Mutex
	scores map[string]int
	fail   map[string]bool
	calls  atomic.Int32
}

func (s *fakeScorer) ScoreLead(ctx context.Context, lead model.QuarantinedLead) (model.ICPOutcome, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return model.ICPOutcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[lead.CompanyName] {
		return model.ICPOutcome{}, errEdgeDown
	}
	score, ok := s.scores[lead.CompanyName]
	if !ok {
		score = 80
	}
	return model.ICPOutcome{
		Score:        model.Score(score),
		LogicVersion: "fake-v1",
		Criteria: []model.CriterionScore{
			{Criterion: "segment", Score: model.Score(score), Weight: 1},
		},
	}, nil
}

func (s *fakeScorer) set(name string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[name] = score
}

type fakeHealth struct {
	score int
	err   error
}

func (h fakeHealth) ScoreDeal(context.Context, model.Deal) (model.Score, error) {
	return model.Score(h.score), h.err
}

type fakeGenerator struct {
	title string
	err   error
}

func (g fakeGenerator) GenerateProposal(_ context.Context, deal model.Deal, items []model.CostItem) (ProposalDraft, error) {
	if g.err != nil {
		return ProposalDraft{}, g.err
	}
	content, err := model.NewPayload("fake:generator", map[string]any{"deal": deal.Title, "items": len(items)})
	if err != nil {
		return ProposalDraft{}, err
	}
	return ProposalDraft{Title: g.title, Content: content}, nil
}

func newFakes() (*fakeValidator, *fakeScorer) {
	return &fakeValidator{
			reject:    map[string]string{},
			duplicate: map[string]string{},
			fail:      map[string]bool{},
		}, &fakeScorer{
			scores: map[string]int{},
			fail:   map[string]bool{},
		}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	cat := defaultCatalog(t)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		store.WithIDGenerator(testutil.NewSequentialIDs("row").Next))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SyncStages(context.Background(), cat.Stages))
	return s
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func captureLead(t *testing.T, s *store.Store, name, cnpj string) model.QuarantinedLead {
	t.Helper()
	ctx := context.Background()
	src, err := s.EnsureSource(ctx, "web form", model.SourceForm)
	require.NoError(t, err)
	lead, err := s.CaptureLead(ctx, model.LeadCapture{
		SourceID:    src.ID,
		CNPJ:        cnpj,
		CompanyName: name,
		Email:       "contato@" + name + ".example",
	})
	require.NoError(t, err)
	return lead
}
