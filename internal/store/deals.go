package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/query"
)

const dealColumns = `id, company_id, title, stage_key, probability, value_cents, status,
	health_score, owner, created_at, updated_at, closed_at`

var dealColumnList = []string{
	"id", "company_id", "title", "stage_key", "probability", "value_cents", "status",
	"health_score", "owner", "created_at", "updated_at", "closed_at",
}

// SyncStages makes sdr_pipeline_stages match the catalog. Stages dropped from
// the catalog are deleted unless a deal still references them, in which case
// they are kept out of ListStages.
func (s *Store) SyncStages(ctx context.Context, stages []model.PipelineStage) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// Park every active stage on a unique negative slot so reordering
		// never trips UNIQUE(position).
		if _, err := tx.ExecContext(ctx, `UPDATE sdr_pipeline_stages SET position = -rowid WHERE position > 0`); err != nil {
			return wrapDBError("sync stages", err)
		}

		for _, st := range stages {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sdr_pipeline_stages (key, name, position, probability, closes)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET
					name = excluded.name,
					position = excluded.position,
					probability = excluded.probability,
					closes = excluded.closes
			`, st.Key, st.Name, st.Position, st.Probability, string(st.Closes))
			if err != nil {
				return wrapDBError("sync stage "+st.Key, err)
			}
		}

		stmt := `DELETE FROM sdr_pipeline_stages
			WHERE position <= 0 AND key NOT IN (SELECT stage_key FROM sdr_deals)`
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return wrapDBError("sync stages: prune", err)
		}
		return nil
	})
}

// ListStages returns the active pipeline stages in position order.
func (s *Store) ListStages(ctx context.Context) ([]model.PipelineStage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, position, probability, closes
		FROM sdr_pipeline_stages
		WHERE position > 0
		ORDER BY position ASC, key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, wrapDBError("list stages", err)
	}
	return collectRows(rows, "stages", scanStage)
}

func getStage(ctx context.Context, db execer, key string) (model.PipelineStage, error) {
	row := db.QueryRowContext(ctx, `
		SELECT key, name, position, probability, closes
		FROM sdr_pipeline_stages WHERE key = ? AND position > 0
	`, key)
	st, err := scanStage(row)
	if err != nil {
		return model.PipelineStage{}, wrapDBError("get stage "+key, err)
	}
	return st, nil
}

func scanStage(row scanner) (model.PipelineStage, error) {
	var (
		st     model.PipelineStage
		closes string
	)
	if err := row.Scan(&st.Key, &st.Name, &st.Position, &st.Probability, &closes); err != nil {
		return model.PipelineStage{}, err
	}
	if closes != "" {
		c, err := model.ParseDealStatus(closes)
		if err != nil || c == model.DealOpen {
			return model.PipelineStage{}, fmt.Errorf("stage %s: invalid closes %q", st.Key, closes)
		}
		st.Closes = c
	}
	return st, nil
}

// DealInput describes a new deal.
type DealInput struct {
	CompanyID string
	Title     string
	Value     model.Cents
	Owner     string
	// StageKey defaults to the first open stage.
	StageKey string
}

// CreateDeal opens a deal against an existing company.
func (s *Store) CreateDeal(ctx context.Context, in DealInput) (model.Deal, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Deal{}, fmt.Errorf("create deal: title is required")
	}
	if in.Value < 0 {
		return model.Deal{}, fmt.Errorf("create deal: value must not be negative")
	}
	if _, err := s.GetCompany(ctx, in.CompanyID); err != nil {
		return model.Deal{}, fmt.Errorf("create deal: %w", err)
	}

	var stage model.PipelineStage
	var err error
	if in.StageKey != "" {
		stage, err = getStage(ctx, s.db, in.StageKey)
	} else {
		row := s.db.QueryRowContext(ctx, `
			SELECT key, name, position, probability, closes
			FROM sdr_pipeline_stages
			WHERE position > 0 AND closes = ''
			ORDER BY position ASC
			LIMIT 1
		`)
		stage, err = scanStage(row)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Deal{}, fmt.Errorf("create deal: no open pipeline stage (run migrate): %w", ErrNotFound)
		}
	}
	if err != nil {
		return model.Deal{}, fmt.Errorf("create deal: %w", err)
	}
	if stage.Closes != "" {
		return model.Deal{}, fmt.Errorf("create deal: stage %s closes deals: %w", stage.Key, ErrInvalidTransition)
	}

	now := s.now().UTC()
	d := model.Deal{
		ID:          s.newID(),
		CompanyID:   in.CompanyID,
		Title:       strings.TrimSpace(in.Title),
		StageKey:    stage.Key,
		Probability: stage.Probability,
		Value:       in.Value,
		Status:      model.DealOpen,
		Owner:       in.Owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sdr_deals (`+dealColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, NULL)
	`, d.ID, d.CompanyID, d.Title, d.StageKey, d.Probability, int64(d.Value), string(d.Status),
		d.Owner, formatTime(now), formatTime(now))
	if err != nil {
		return model.Deal{}, wrapDBError("create deal", err)
	}
	return d, nil
}

// GetDeal returns a deal by ID.
func (s *Store) GetDeal(ctx context.Context, id string) (model.Deal, error) {
	return getDeal(ctx, s.db, id)
}

func getDeal(ctx context.Context, db execer, id string) (model.Deal, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM sdr_deals WHERE id = ?`, id)
	d, err := scanDeal(row)
	if err != nil {
		return model.Deal{}, wrapDBError("get deal "+id, err)
	}
	return d, nil
}

// MoveDeal moves an open deal to another stage. A closing stage sets the
// deal's status and closed_at. The move is logged as a stage_change activity.
func (s *Store) MoveDeal(ctx context.Context, id, stageKey string) (model.Deal, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		d, err := getDeal(ctx, tx, id)
		if err != nil {
			return err
		}
		if d.Status != model.DealOpen {
			return fmt.Errorf("move deal %s: deal is %s: %w", id, d.Status, ErrInvalidTransition)
		}
		stage, err := getStage(ctx, tx, stageKey)
		if err != nil {
			return err
		}

		now := s.timestamp()
		status := model.DealOpen
		var closedAt any
		if stage.Closes != "" {
			status = stage.Closes
			closedAt = now
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE sdr_deals
			SET stage_key = ?, probability = ?, status = ?, closed_at = ?, updated_at = ?
			WHERE id = ?
		`, stage.Key, stage.Probability, string(status), closedAt, now, id)
		if err != nil {
			return wrapDBError("move deal", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE companies SET deal_stage = ?, updated_at = ? WHERE id = ?`,
			stage.Key, now, d.CompanyID)
		if err != nil {
			return wrapDBError("move deal: company stage", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			_, err = s.logActivity(ctx, tx, model.Activity{
				CompanyID: d.CompanyID,
				DealID:    d.ID,
				Kind:      model.ActivityStage,
				Summary:   fmt.Sprintf("%s -> %s", d.StageKey, stage.Key),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return model.Deal{}, err
	}
	return s.GetDeal(ctx, id)
}

// CloseDeal moves a deal to the first stage that closes it with outcome.
func (s *Store) CloseDeal(ctx context.Context, id string, outcome model.DealStatus) (model.Deal, error) {
	if outcome != model.DealWon && outcome != model.DealLost {
		return model.Deal{}, fmt.Errorf("close deal: outcome must be won or lost, got %q", outcome)
	}
	var key string
	err := s.db.QueryRowContext(ctx, `
		SELECT key FROM sdr_pipeline_stages
		WHERE position > 0 AND closes = ?
		ORDER BY position ASC LIMIT 1
	`, string(outcome)).Scan(&key)
	if err != nil {
		return model.Deal{}, wrapDBError("close deal: no "+string(outcome)+" stage", err)
	}
	return s.MoveDeal(ctx, id, key)
}

// SetDealHealth stores the health score computed for a deal.
func (s *Store) SetDealHealth(ctx context.Context, id string, score model.Score) error {
	if !score.IsValid() {
		return fmt.Errorf("set deal health: score %d out of range", score)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sdr_deals SET health_score = ?, updated_at = ? WHERE id = ?`,
		int64(score), s.timestamp(), id)
	if err != nil {
		return wrapDBError("set deal health", err)
	}
	return requireAffected(res, "set deal health "+id)
}

// DealFilter narrows ListDeals. Zero fields are ignored.
type DealFilter struct {
	CompanyID string
	Status    model.DealStatus
	StageKey  string
	Limit     int
}

// ListDeals returns deals ordered by creation time.
func (s *Store) ListDeals(ctx context.Context, f DealFilter) ([]model.Deal, error) {
	var preds []query.Predicate
	if f.CompanyID != "" {
		preds = append(preds, query.Equals{Field: "company_id", Value: f.CompanyID})
	}
	if f.Status != "" {
		preds = append(preds, query.Equals{Field: "status", Value: f.Status})
	}
	if f.StageKey != "" {
		preds = append(preds, query.Equals{Field: "stage_key", Value: f.StageKey})
	}
	sqlText, params, err := query.Compile(query.Select{
		From:    "sdr_deals",
		Columns: dealColumnList,
		Filter:  query.Where(preds...),
		OrderBy: []query.Order{{Field: "created_at"}},
		Limit:   f.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, wrapDBError("list deals", err)
	}
	return collectRows(rows, "deals", scanDeal)
}

func scanDeal(row scanner) (model.Deal, error) {
	var (
		d                model.Deal
		value            int64
		status           string
		health           sql.NullInt64
		created, updated string
		closedAt         sql.NullString
	)
	err := row.Scan(&d.ID, &d.CompanyID, &d.Title, &d.StageKey, &d.Probability, &value, &status,
		&health, &d.Owner, &created, &updated, &closedAt)
	if err != nil {
		return model.Deal{}, err
	}
	d.Value = model.Cents(value)
	if d.Status, err = model.ParseDealStatus(status); err != nil {
		return model.Deal{}, fmt.Errorf("deal %s: %w", d.ID, err)
	}
	if d.HealthScore, err = scanNullScore(health); err != nil {
		return model.Deal{}, fmt.Errorf("deal %s: health_score: %w", d.ID, err)
	}
	if d.CreatedAt, err = parseTime(created); err != nil {
		return model.Deal{}, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Deal{}, err
	}
	if d.ClosedAt, err = parseNullTime(closedAt); err != nil {
		return model.Deal{}, err
	}
	return d, nil
}

// CreateOpportunity records an opportunity for a company.
func (s *Store) CreateOpportunity(ctx context.Context, o model.Opportunity) (model.Opportunity, error) {
	if strings.TrimSpace(o.Title) == "" {
		return model.Opportunity{}, fmt.Errorf("create opportunity: title is required")
	}
	if o.ID == "" {
		o.ID = s.newID()
	}
	o.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sdr_opportunities (id, company_id, deal_id, title, value_cents, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.CompanyID, nullString(o.DealID), o.Title, int64(o.Value), o.Source, formatTime(o.CreatedAt))
	if err != nil {
		return model.Opportunity{}, wrapDBError("create opportunity", err)
	}
	return o, nil
}

// ListOpportunities returns a company's opportunities, oldest first.
func (s *Store) ListOpportunities(ctx context.Context, companyID string) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, COALESCE(deal_id, ''), title, value_cents, source, created_at
		FROM sdr_opportunities
		WHERE company_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, companyID)
	if err != nil {
		return nil, wrapDBError("list opportunities", err)
	}
	return collectRows(rows, "opportunities", func(r scanner) (model.Opportunity, error) {
		var (
			o       model.Opportunity
			value   int64
			created string
		)
		if err := r.Scan(&o.ID, &o.CompanyID, &o.DealID, &o.Title, &value, &o.Source, &created); err != nil {
			return model.Opportunity{}, err
		}
		o.Value = model.Cents(value)
		var err error
		o.CreatedAt, err = parseTime(created)
		return o, err
	})
}

// CleanupResult reports what CleanupOrphanedDeals did.
type CleanupResult struct {
	Deleted []string `json:"deleted"`
	// Skipped deals are orphaned but hold a sent quote or sent proposal.
	Skipped []string `json:"skipped"`
}

// CleanupOrphanedDeals deletes deals whose company no longer exists. Deals
// with frozen documents are left in place and reported as skipped.
func (s *Store) CleanupOrphanedDeals(ctx context.Context) (CleanupResult, error) {
	result := CleanupResult{Deleted: []string{}, Skipped: []string{}}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT d.id,
			       EXISTS (SELECT 1 FROM quote_history q WHERE q.deal_id = d.id AND q.sent_at IS NOT NULL)
			    OR EXISTS (SELECT 1 FROM visual_proposals p WHERE p.deal_id = d.id AND p.sent_at IS NOT NULL)
			FROM sdr_deals d
			WHERE NOT EXISTS (SELECT 1 FROM companies c WHERE c.id = d.company_id)
			ORDER BY d.id COLLATE BINARY ASC
		`)
		if err != nil {
			return wrapDBError("cleanup orphaned deals", err)
		}
		type orphan struct {
			id     string
			frozen bool
		}
		orphans, err := collectRows(rows, "orphaned deals", func(r scanner) (orphan, error) {
			var o orphan
			err := r.Scan(&o.id, &o.frozen)
			return o, err
		})
		if err != nil {
			return err
		}

		for _, o := range orphans {
			if o.frozen {
				result.Skipped = append(result.Skipped, o.id)
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM sdr_deals WHERE id = ?`, o.id); err != nil {
				return wrapDBError("cleanup orphaned deal "+o.id, err)
			}
			result.Deleted = append(result.Deleted, o.id)
		}
		return nil
	})
	if err != nil {
		return CleanupResult{Deleted: []string{}, Skipped: []string{}}, err
	}
	return result, nil
}
