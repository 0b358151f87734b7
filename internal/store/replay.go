package store

import (
	"context"
	"fmt"

	"github.com/roach88/salesmachine/internal/model"
)

// StatusMismatch is a lead whose stored status disagrees with its
// transition log.
type StatusMismatch struct {
	LeadID   string           `json:"lead_id"`
	Stored   model.LeadStatus `json:"stored"`
	Replayed model.LeadStatus `json:"replayed"`
	Problem  string           `json:"problem"`
}

// VerifyLeadStatuses replays lead_transitions from pending and compares the
// result with every lead's stored status. An empty result means the log and
// the rows agree.
func (s *Store) VerifyLeadStatuses(ctx context.Context) ([]StatusMismatch, error) {
	transitions, err := s.AllTransitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify lead statuses: %w", err)
	}
	leads, err := s.ListLeads(ctx, LeadFilter{})
	if err != nil {
		return nil, fmt.Errorf("verify lead statuses: %w", err)
	}

	replayed := make(map[string]model.LeadStatus, len(leads))
	broken := make(map[string]string)
	for _, t := range transitions {
		current, ok := replayed[t.LeadID]
		if !ok {
			current = model.LeadPending
		}
		switch {
		case t.From != current:
			broken[t.LeadID] = fmt.Sprintf("seq %d starts from %s, expected %s", t.Seq, t.From, current)
		case !model.CanTransition(t.From, t.To):
			broken[t.LeadID] = fmt.Sprintf("seq %d: %s -> %s is not allowed", t.Seq, t.From, t.To)
		}
		replayed[t.LeadID] = t.To
	}

	mismatches := []StatusMismatch{}
	for _, l := range leads {
		want, ok := replayed[l.ID]
		if !ok {
			want = model.LeadPending
		}
		if problem, bad := broken[l.ID]; bad {
			mismatches = append(mismatches, StatusMismatch{LeadID: l.ID, Stored: l.Status, Replayed: want, Problem: problem})
			continue
		}
		if want != l.Status {
			mismatches = append(mismatches, StatusMismatch{
				LeadID:   l.ID,
				Stored:   l.Status,
				Replayed: want,
				Problem:  "stored status differs from transition log",
			})
		}
	}
	return mismatches, nil
}
