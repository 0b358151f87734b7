package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/salesmachine/internal/catalog"
	"github.com/roach88/salesmachine/internal/costs"
	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/pipeline"
	"github.com/roach88/salesmachine/internal/store"
	"github.com/roach88/salesmachine/internal/testutil"
)

// lastItem names the most recently added cost item in a step.
const lastItem = "@last"

// Harness holds the state of one scenario run.
type Harness struct {
	catalog  *catalog.Catalog
	store    *store.Store
	pipeline *pipeline.Pipeline
	selector *costs.Selector
	logger   *slog.Logger

	seq       int64
	source    string
	leads     map[string]string // alias -> lead ID
	deals     map[string]string // alias -> deal ID
	leadOrder []string
	notices   []string
	persisted int
}

// Run executes a scenario with the default catalog.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Step failures that the scenario did not expect and failed assertions are
// reported in Result.Errors; the returned error is reserved for harness
// setup problems.
func Run(scenario *Scenario) (*Result, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return RunWithCatalog(scenario, cat)
}

// RunWithCatalog executes a scenario against the given catalog.
func RunWithCatalog(scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		store.WithIDGenerator(testutil.NewSequentialIDs("row").Next))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.SyncStages(ctx, cat.Stages); err != nil {
		return nil, fmt.Errorf("failed to sync stages: %w", err)
	}

	h := &Harness{
		catalog: cat,
		store:   st,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		leads:   make(map[string]string),
		deals:   make(map[string]string),
	}
	collab := newScripted(scenario.Collaborators)
	h.pipeline = pipeline.New(st, cat,
		pipeline.WithValidator(collab),
		pipeline.WithICPScorer(collab),
		pipeline.WithDealHealthScorer(collab),
		pipeline.WithFlowGenerator(testutil.NewSequentialIDs("flow")),
		pipeline.WithConcurrency(1))
	h.selector = costs.NewSelector(cat, nil,
		costs.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		costs.WithNotifier(h),
		costs.WithPersister(costs.PersistFunc(func(context.Context, []model.CostItem) error {
			h.persisted++
			return nil
		})))

	result := NewResult()
	for i, step := range scenario.Steps {
		h.seq++
		args := stepArgs(step)
		outcome, err := h.execute(ctx, step)
		switch {
		case err != nil && !step.ExpectError:
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Action, err))
			outcome = "error"
		case err == nil && step.ExpectError:
			result.AddError(fmt.Sprintf("step %d (%s): expected an error", i, step.Action))
		case err != nil:
			h.logger.Info("step failed as expected", "step", i, "error", err)
			outcome = "error"
		}
		result.AddTrace(h.seq, step.Action, args, outcome)
	}

	snapshot, err := h.snapshot(ctx, scenario.Name, result.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}
	result.Snapshot = snapshot

	actx := &AssertionContext{Ctx: ctx, Store: st, Harness: h}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// Success records a success notification.
func (h *Harness) Success(msg string) { h.notices = append(h.notices, "success: "+msg) }

// Error records an error notification.
func (h *Harness) Error(msg string) { h.notices = append(h.notices, "error: "+msg) }

// execute runs one step and returns its outcome label.
func (h *Harness) execute(ctx context.Context, st Step) (string, error) {
	switch st.Action {
	case ActionToggle:
		was := h.selector.Selected(st.Item)
		if err := h.selector.Toggle(ctx, st.Item); err != nil {
			return "", err
		}
		if was {
			return "removed", nil
		}
		return "added", nil

	case ActionAddCustom:
		if err := h.selector.AddCustom(ctx, st.Category, st.Name); err != nil {
			return "", err
		}
		return "added", nil

	case ActionSetCost:
		id, err := h.itemID(st.Item)
		if err != nil {
			return "", err
		}
		if !h.selector.SetCost(id, *st.Cost) {
			return "", fmt.Errorf("item %s is not selected", id)
		}
		return "ok", nil

	case ActionRemove:
		id, err := h.itemID(st.Item)
		if err != nil {
			return "", err
		}
		if !h.selector.Remove(id) {
			return "noop", nil
		}
		return "removed", nil

	case ActionCapture:
		return h.capture(ctx, st)

	case ActionProcess:
		id, err := h.leadID(st.Lead)
		if err != nil {
			return "", err
		}
		res, err := h.pipeline.Process(ctx, id)
		if err != nil {
			return string(res.Status), err
		}
		return string(res.Status), nil

	case ActionRecalculate:
		rows, err := h.pipeline.Recalculate(ctx, 0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d rescored", len(rows)), nil

	case ActionDealCreate:
		return h.createDeal(ctx, st)

	case ActionDealMove:
		id, err := h.dealID(st.Deal)
		if err != nil {
			return "", err
		}
		d, err := h.store.MoveDeal(ctx, id, st.Stage)
		if err != nil {
			return "", err
		}
		return d.StageKey, nil

	case ActionDealClose:
		id, err := h.dealID(st.Deal)
		if err != nil {
			return "", err
		}
		d, err := h.store.CloseDeal(ctx, id, model.DealStatus(st.Outcome))
		if err != nil {
			return "", err
		}
		return string(d.Status), nil

	case ActionDealHealth:
		id, err := h.dealID(st.Deal)
		if err != nil {
			return "", err
		}
		score, err := h.pipeline.DealHealth(ctx, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("health %d", score), nil
	}
	return "", fmt.Errorf("unknown action %q", st.Action)
}

func (h *Harness) capture(ctx context.Context, st Step) (string, error) {
	if _, dup := h.leads[st.As]; dup {
		return "", fmt.Errorf("lead alias %q already used", st.As)
	}
	if h.source == "" {
		src, err := h.store.EnsureSource(ctx, "scenario", model.SourceManual)
		if err != nil {
			return "", err
		}
		h.source = src.ID
	}
	name := st.CompanyName
	if name == "" {
		name = st.As
	}
	lead, err := h.store.CaptureLead(ctx, model.LeadCapture{
		SourceID:    h.source,
		CNPJ:        st.CNPJ,
		CompanyName: name,
		Email:       st.Email,
	})
	if err != nil {
		return "", err
	}
	h.leads[st.As] = lead.ID
	h.leadOrder = append(h.leadOrder, st.As)
	return string(lead.Status), nil
}

func (h *Harness) createDeal(ctx context.Context, st Step) (string, error) {
	if _, dup := h.deals[st.As]; dup {
		return "", fmt.Errorf("deal alias %q already used", st.As)
	}
	leadID, err := h.leadID(st.Lead)
	if err != nil {
		return "", err
	}
	lead, err := h.store.GetLead(ctx, leadID)
	if err != nil {
		return "", err
	}
	if lead.CompanyID == "" {
		return "", fmt.Errorf("lead %s has not been promoted to a company", st.Lead)
	}
	title := st.Title
	if title == "" {
		title = lead.CompanyName
	}
	d, err := h.store.CreateDeal(ctx, store.DealInput{
		CompanyID: lead.CompanyID,
		Title:     title,
		Value:     st.Value,
		StageKey:  st.Stage,
	})
	if err != nil {
		return "", err
	}
	h.deals[st.As] = d.ID
	return d.StageKey, nil
}

func (h *Harness) itemID(ref string) (string, error) {
	if ref != lastItem {
		return ref, nil
	}
	items := h.selector.Items()
	if len(items) == 0 {
		return "", errors.New("no cost item selected")
	}
	return items[len(items)-1].ID, nil
}

func (h *Harness) leadID(alias string) (string, error) {
	id, ok := h.leads[alias]
	if !ok {
		return "", fmt.Errorf("unknown lead alias %q", alias)
	}
	return id, nil
}

func (h *Harness) dealID(alias string) (string, error) {
	id, ok := h.deals[alias]
	if !ok {
		return "", fmt.Errorf("unknown deal alias %q", alias)
	}
	return id, nil
}

// stepArgs lists the set fields of a step for the trace.
func stepArgs(st Step) map[string]string {
	args := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			args[k] = v
		}
	}
	set("item", st.Item)
	set("category", string(st.Category))
	set("name", st.Name)
	if st.Cost != nil {
		args["cost"] = st.Cost.String()
	}
	set("as", st.As)
	set("company_name", st.CompanyName)
	set("cnpj", st.CNPJ)
	set("email", st.Email)
	set("lead", st.Lead)
	set("deal", st.Deal)
	set("title", st.Title)
	if st.Value != 0 {
		args["value"] = st.Value.String()
	}
	set("stage", st.Stage)
	set("outcome", st.Outcome)
	if len(args) == 0 {
		return nil
	}
	return args
}
