package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/store"
)

// DefaultBatchSize is the page size of Recalculate when none is given.
const DefaultBatchSize = 100

// RecalcRow is the outcome of rescoring one lead.
type RecalcRow struct {
	LeadID      string            `json:"lead_id"`
	SubjectKey  string            `json:"subject_key"`
	Score       model.Score       `json:"score"`
	Temperature model.Temperature `json:"temperature,omitempty"`
	Version     int64             `json:"analysis_version,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Recalculate rescores every approved and qualified lead and records a new
// analysis version for each.
//
// Leads are read in capture order, batchSize at a time. Within a batch the
// scorer is called concurrently (bounded by WithConcurrency) and results are
// recorded in capture order. A lead whose scoring or recording fails gets
// its Error set and the run continues. Lead statuses are not changed.
func (p *Pipeline) Recalculate(ctx context.Context, batchSize int) ([]RecalcRow, error) {
	if p.scorer == nil {
		return nil, fmt.Errorf("recalculate: %w", ErrNotConfigured)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	slog.Info("recalculating lead scores", "batch_size", batchSize, "concurrency", p.concurrency)

	rows := []RecalcRow{}
	for offset := 0; ; offset += batchSize {
		page, err := p.store.ListLeads(ctx, store.LeadFilter{
			Statuses: []model.LeadStatus{model.LeadApproved, model.LeadQualified},
			Limit:    batchSize,
			Offset:   offset,
		})
		if err != nil {
			return rows, fmt.Errorf("recalculate: %w", err)
		}
		if len(page) == 0 {
			break
		}

		batch, err := p.recalculateBatch(ctx, page)
		rows = append(rows, batch...)
		if err != nil {
			return rows, fmt.Errorf("recalculate: %w", err)
		}
		if len(page) < batchSize {
			break
		}
	}

	failed := 0
	for _, r := range rows {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("recalculation finished", "leads", len(rows), "failed", failed)
	return rows, nil
}

func (p *Pipeline) recalculateBatch(ctx context.Context, page []model.QuarantinedLead) ([]RecalcRow, error) {
	outcomes := make([]model.ICPOutcome, len(page))
	errs := make([]error, len(page))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, lead := range page {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i], errs[i] = p.scoreLead(gctx, lead)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]RecalcRow, len(page))
	for i, lead := range page {
		rows[i] = RecalcRow{LeadID: lead.ID, SubjectKey: store.SubjectKey(lead)}
		if errs[i] != nil {
			rows[i].Error = errs[i].Error()
			slog.Error("rescore failed", "lead", lead.ID, "error", errs[i])
			continue
		}
		analysis, err := p.record(ctx, lead, outcomes[i])
		if err != nil {
			rows[i].Error = err.Error()
			slog.Error("record rescore failed", "lead", lead.ID, "error", err)
			continue
		}
		rows[i].Score = analysis.Score
		rows[i].Temperature = analysis.Temperature
		rows[i].Version = analysis.AnalysisVersion
	}
	return rows, nil
}
