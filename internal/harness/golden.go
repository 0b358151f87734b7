package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
)

// Snapshot is the final state of a scenario run. It is serialized with
// canonical JSON for golden comparison, so it holds no timestamps or
// generated row IDs.
type Snapshot struct {
	ScenarioName  string
	Trace         []TraceEvent
	Selection     []model.CostItem
	Totals        map[string]model.Cents
	Notifications []string
	Persisted     int
	Leads         []LeadState
}

// LeadState is the final status of one captured lead.
type LeadState struct {
	Alias       string
	Status      model.LeadStatus
	Score       *model.Score
	Temperature model.Temperature
	Promoted    bool
}

func (h *Harness) snapshot(ctx context.Context, name string, trace []TraceEvent) (*Snapshot, error) {
	s := &Snapshot{
		ScenarioName:  name,
		Trace:         trace,
		Selection:     h.selector.Items(),
		Totals:        map[string]model.Cents{"grand": h.selector.GrandTotal()},
		Notifications: append([]string{}, h.notices...),
		Persisted:     h.persisted,
		Leads:         []LeadState{},
	}
	for _, row := range h.selector.Totals() {
		s.Totals[string(row.Category)] = row.Total
	}

	for _, alias := range h.leadOrder {
		lead, err := h.store.GetLead(ctx, h.leads[alias])
		if err != nil {
			return nil, err
		}
		ls := LeadState{Alias: alias, Status: lead.Status, Promoted: lead.CompanyID != ""}
		// Leads that never reached scoring have no analysis.
		if a, err := h.store.GetICPAnalysis(ctx, store.SubjectKey(lead)); err == nil {
			score := a.Score
			ls.Score = &score
			ls.Temperature = a.Temperature
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		s.Leads = append(s.Leads, ls)
	}
	return s, nil
}

// canonical converts the snapshot to the generic shape MarshalCanonical
// accepts.
func (s *Snapshot) canonical() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"action":  ev.Action,
			"outcome": ev.Outcome,
		}
		if len(ev.Args) > 0 {
			args := make(map[string]any, len(ev.Args))
			for k, v := range ev.Args {
				args[k] = v
			}
			m["args"] = args
		}
		trace[i] = m
	}

	selection := make([]any, len(s.Selection))
	for i, it := range s.Selection {
		selection[i] = map[string]any{
			"id":        it.ID,
			"name":      it.Name,
			"category":  string(it.Category),
			"cost":      it.Cost,
			"is_custom": it.IsCustom,
		}
	}

	totals := make(map[string]any, len(s.Totals))
	for k, v := range s.Totals {
		totals[k] = v
	}

	notifications := make([]any, len(s.Notifications))
	for i, n := range s.Notifications {
		notifications[i] = n
	}

	leads := make([]any, len(s.Leads))
	for i, l := range s.Leads {
		m := map[string]any{
			"alias":    l.Alias,
			"status":   string(l.Status),
			"promoted": l.Promoted,
		}
		if l.Score != nil {
			m["score"] = *l.Score
		}
		if l.Temperature != "" {
			m["temperature"] = string(l.Temperature)
		}
		leads[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"selection":     selection,
		"totals":        totals,
		"notifications": notifications,
		"persisted":     s.Persisted,
		"leads":         leads,
	}
}

// MarshalCanonical serializes the snapshot deterministically.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	data, err := model.MarshalCanonical(s.canonical())
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.ScenarioName, err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := result.Snapshot.MarshalCanonical()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
