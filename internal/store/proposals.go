package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/salesmachine/internal/model"
)

const proposalColumns = `id, deal_id, company_id, version, title, content, status, created_at, sent_at, signed_at`

// CreateProposal stores the next draft version of a deal's proposal.
func (s *Store) CreateProposal(ctx context.Context, dealID, title string, content model.Payload) (model.Proposal, error) {
	return s.CreateProposalWithCosts(ctx, dealID, title, content, nil)
}

// CreateProposalWithCosts stores the next draft version of a deal's proposal
// together with its cost items. Either both are written or neither is.
func (s *Store) CreateProposalWithCosts(ctx context.Context, dealID, title string, content model.Payload, items []model.CostItem) (model.Proposal, error) {
	if strings.TrimSpace(title) == "" {
		return model.Proposal{}, fmt.Errorf("create proposal: title is required")
	}
	if content.Data == nil {
		content = model.EmptyPayload()
	}

	id := s.newID()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		deal, err := getDeal(ctx, tx, dealID)
		if err != nil {
			return err
		}
		var version int64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(version), 0) + 1 FROM visual_proposals WHERE deal_id = ?
		`, dealID).Scan(&version); err != nil {
			return wrapDBError("create proposal: next version", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO visual_proposals (`+proposalColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, 'draft', ?, NULL, NULL)
		`, id, dealID, deal.CompanyID, version, strings.TrimSpace(title), payloadColumn(content), s.timestamp())
		if err != nil {
			return wrapDBError("create proposal", err)
		}
		return insertProposalCosts(ctx, tx, id, items)
	})
	if err != nil {
		return model.Proposal{}, err
	}
	return s.GetProposal(ctx, id)
}

// UpdateProposalContent replaces title and content of a draft. Sent, signed
// and rejected proposals return ErrImmutable.
func (s *Store) UpdateProposalContent(ctx context.Context, id, title string, content model.Payload) (model.Proposal, error) {
	if strings.TrimSpace(title) == "" {
		return model.Proposal{}, fmt.Errorf("update proposal: title is required")
	}
	if content.Data == nil {
		content = model.EmptyPayload()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE visual_proposals SET title = ?, content = ? WHERE id = ?`,
		strings.TrimSpace(title), payloadColumn(content), id)
	if err != nil {
		return model.Proposal{}, wrapDBError("update proposal", err)
	}
	if err := requireAffected(res, "update proposal "+id); err != nil {
		return model.Proposal{}, err
	}
	return s.GetProposal(ctx, id)
}

// SendProposal moves a draft proposal to sent.
func (s *Store) SendProposal(ctx context.Context, id string) (model.Proposal, error) {
	return s.moveProposal(ctx, id, model.ProposalDraft, model.ProposalSent, "sent_at")
}

// SignProposal records the customer's signature and freezes the proposal.
func (s *Store) SignProposal(ctx context.Context, id string) (model.Proposal, error) {
	return s.moveProposal(ctx, id, model.ProposalSent, model.ProposalSigned, "signed_at")
}

// RejectProposal records that a sent proposal was declined.
func (s *Store) RejectProposal(ctx context.Context, id string) (model.Proposal, error) {
	return s.moveProposal(ctx, id, model.ProposalSent, model.ProposalRejected, "")
}

func (s *Store) moveProposal(ctx context.Context, id string, from, to model.ProposalStatus, stampColumn string) (model.Proposal, error) {
	p, err := s.GetProposal(ctx, id)
	if err != nil {
		return model.Proposal{}, err
	}
	if p.Status != from {
		return model.Proposal{}, fmt.Errorf("proposal %s: cannot move %s -> %s: %w", id, p.Status, to, ErrInvalidTransition)
	}

	stmt := `UPDATE visual_proposals SET status = ? WHERE id = ? AND status = ?`
	args := []any{string(to), id, string(from)}
	if stampColumn != "" {
		stmt = `UPDATE visual_proposals SET status = ?, ` + stampColumn + ` = ? WHERE id = ? AND status = ?`
		args = []any{string(to), s.timestamp(), id, string(from)}
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return model.Proposal{}, wrapDBError("move proposal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Proposal{}, fmt.Errorf("move proposal %s: %w", id, ErrConflict)
	}
	return s.GetProposal(ctx, id)
}

// GetProposal returns a proposal by ID.
func (s *Store) GetProposal(ctx context.Context, id string) (model.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM visual_proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if err != nil {
		return model.Proposal{}, wrapDBError("get proposal "+id, err)
	}
	return p, nil
}

// ListProposals returns every proposal version of a deal, oldest first.
func (s *Store) ListProposals(ctx context.Context, dealID string) ([]model.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+proposalColumns+` FROM visual_proposals
		WHERE deal_id = ?
		ORDER BY version ASC
	`, dealID)
	if err != nil {
		return nil, wrapDBError("list proposals", err)
	}
	return collectRows(rows, "proposals", scanProposal)
}

func scanProposal(row scanner) (model.Proposal, error) {
	var (
		p                        model.Proposal
		content, status, created string
		sentAt, signedAt         sql.NullString
	)
	err := row.Scan(&p.ID, &p.DealID, &p.CompanyID, &p.Version, &p.Title, &content, &status,
		&created, &sentAt, &signedAt)
	if err != nil {
		return model.Proposal{}, err
	}
	if p.Content, err = model.ParsePayload(content); err != nil {
		return model.Proposal{}, fmt.Errorf("proposal %s: content: %w", p.ID, err)
	}
	if p.Status, err = model.ParseProposalStatus(status); err != nil {
		return model.Proposal{}, fmt.Errorf("proposal %s: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return model.Proposal{}, err
	}
	if p.SentAt, err = parseNullTime(sentAt); err != nil {
		return model.Proposal{}, err
	}
	if p.SignedAt, err = parseNullTime(signedAt); err != nil {
		return model.Proposal{}, err
	}
	return p, nil
}

// SaveProposalCosts replaces the cost items of a draft proposal, keeping
// their order. Sent, signed and rejected proposals return ErrImmutable.
func (s *Store) SaveProposalCosts(ctx context.Context, proposalID string, items []model.CostItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM visual_proposals WHERE id = ?`, proposalID).Scan(&exists); err != nil {
			return wrapDBError("save proposal costs", err)
		}
		if exists == 0 {
			return fmt.Errorf("save proposal costs %s: %w", proposalID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM proposal_costs WHERE proposal_id = ?`, proposalID); err != nil {
			return wrapDBError("save proposal costs", err)
		}
		return insertProposalCosts(ctx, tx, proposalID, items)
	})
}

func insertProposalCosts(ctx context.Context, tx *sql.Tx, proposalID string, items []model.CostItem) error {
	for i, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO proposal_costs (proposal_id, position, item_id, name, category, cost_cents, is_custom)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, proposalID, i, it.ID, it.Name, string(it.Category), int64(it.Cost), boolInt(it.IsCustom))
		if err != nil {
			return wrapDBError("save proposal cost "+it.ID, err)
		}
	}
	return nil
}

// ProposalCosts returns the cost items of a proposal in saved order.
func (s *Store) ProposalCosts(ctx context.Context, proposalID string) ([]model.CostItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, category, cost_cents, is_custom
		FROM proposal_costs
		WHERE proposal_id = ?
		ORDER BY position ASC
	`, proposalID)
	if err != nil {
		return nil, wrapDBError("proposal costs", err)
	}
	return collectRows(rows, "proposal costs", func(r scanner) (model.CostItem, error) {
		var (
			it       model.CostItem
			category string
			cost     int64
			custom   int64
		)
		if err := r.Scan(&it.ID, &it.Name, &category, &cost, &custom); err != nil {
			return model.CostItem{}, err
		}
		c, err := model.ParseCategory(category)
		if err != nil {
			return model.CostItem{}, fmt.Errorf("proposal cost %s: %w", it.ID, err)
		}
		it.Category = c
		it.Cost = model.Cents(cost)
		it.IsCustom = custom == 1
		return it, nil
	})
}
