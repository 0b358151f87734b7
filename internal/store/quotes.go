package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/salesmachine/internal/model"
)

const quoteColumns = `id, deal_id, company_id, version, items, total_cents, status, created_at, sent_at`

func quoteTotal(items []model.CostItem) (model.Cents, error) {
	var total model.Cents
	for _, it := range items {
		if it.Cost < 0 {
			return 0, fmt.Errorf("item %s: cost must not be negative", it.ID)
		}
		if !it.Category.IsValid() {
			return 0, fmt.Errorf("item %s: %w", it.ID, &model.EnumError{Type: "cost category", Value: string(it.Category)})
		}
		total += it.Cost
	}
	return total, nil
}

// CreateQuote stores the next draft version of a deal's quote.
func (s *Store) CreateQuote(ctx context.Context, dealID string, items []model.CostItem) (model.Quote, error) {
	total, err := quoteTotal(items)
	if err != nil {
		return model.Quote{}, fmt.Errorf("create quote: %w", err)
	}
	if items == nil {
		items = []model.CostItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return model.Quote{}, fmt.Errorf("create quote: %w", err)
	}

	id := s.newID()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		deal, err := getDeal(ctx, tx, dealID)
		if err != nil {
			return err
		}
		var version int64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(version), 0) + 1 FROM quote_history WHERE deal_id = ?
		`, dealID).Scan(&version); err != nil {
			return wrapDBError("create quote: next version", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quote_history (`+quoteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, 'draft', ?, NULL)
		`, id, dealID, deal.CompanyID, version, string(itemsJSON), int64(total), s.timestamp())
		if err != nil {
			return wrapDBError("create quote", err)
		}
		return nil
	})
	if err != nil {
		return model.Quote{}, err
	}
	return s.GetQuote(ctx, id)
}

// UpdateQuoteItems replaces the items of a draft quote. Sent quotes are
// frozen and return ErrImmutable.
func (s *Store) UpdateQuoteItems(ctx context.Context, id string, items []model.CostItem) (model.Quote, error) {
	total, err := quoteTotal(items)
	if err != nil {
		return model.Quote{}, fmt.Errorf("update quote: %w", err)
	}
	if items == nil {
		items = []model.CostItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return model.Quote{}, fmt.Errorf("update quote: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE quote_history SET items = ?, total_cents = ? WHERE id = ?`,
		string(itemsJSON), int64(total), id)
	if err != nil {
		return model.Quote{}, wrapDBError("update quote", err)
	}
	if err := requireAffected(res, "update quote "+id); err != nil {
		return model.Quote{}, err
	}
	return s.GetQuote(ctx, id)
}

// SendQuote moves a draft quote to sent and freezes it.
func (s *Store) SendQuote(ctx context.Context, id string) (model.Quote, error) {
	return s.moveQuote(ctx, id, model.QuoteDraft, model.QuoteSent)
}

// DecideQuote records the customer's answer to a sent quote.
func (s *Store) DecideQuote(ctx context.Context, id string, accepted bool) (model.Quote, error) {
	to := model.QuoteRejected
	if accepted {
		to = model.QuoteAccepted
	}
	return s.moveQuote(ctx, id, model.QuoteSent, to)
}

func (s *Store) moveQuote(ctx context.Context, id string, from, to model.QuoteStatus) (model.Quote, error) {
	q, err := s.GetQuote(ctx, id)
	if err != nil {
		return model.Quote{}, err
	}
	if q.Status != from {
		return model.Quote{}, fmt.Errorf("quote %s: cannot move %s -> %s: %w", id, q.Status, to, ErrInvalidTransition)
	}

	stmt := `UPDATE quote_history SET status = ? WHERE id = ? AND status = ?`
	args := []any{string(to), id, string(from)}
	if to == model.QuoteSent {
		stmt = `UPDATE quote_history SET status = ?, sent_at = ? WHERE id = ? AND status = ?`
		args = []any{string(to), s.timestamp(), id, string(from)}
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return model.Quote{}, wrapDBError("move quote", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Quote{}, fmt.Errorf("move quote %s: %w", id, ErrConflict)
	}
	return s.GetQuote(ctx, id)
}

// GetQuote returns a quote by ID.
func (s *Store) GetQuote(ctx context.Context, id string) (model.Quote, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quote_history WHERE id = ?`, id)
	q, err := scanQuote(row)
	if err != nil {
		return model.Quote{}, wrapDBError("get quote "+id, err)
	}
	return q, nil
}

// ListQuotes returns every quote version of a deal, oldest first.
func (s *Store) ListQuotes(ctx context.Context, dealID string) ([]model.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+quoteColumns+` FROM quote_history
		WHERE deal_id = ?
		ORDER BY version ASC
	`, dealID)
	if err != nil {
		return nil, wrapDBError("list quotes", err)
	}
	return collectRows(rows, "quotes", scanQuote)
}

func scanQuote(row scanner) (model.Quote, error) {
	var (
		q                     model.Quote
		items, status, create string
		total                 int64
		sentAt                sql.NullString
	)
	err := row.Scan(&q.ID, &q.DealID, &q.CompanyID, &q.Version, &items, &total, &status, &create, &sentAt)
	if err != nil {
		return model.Quote{}, err
	}
	if err := json.Unmarshal([]byte(items), &q.Items); err != nil {
		return model.Quote{}, fmt.Errorf("quote %s: items: %w", q.ID, err)
	}
	q.Total = model.Cents(total)
	if q.Status, err = model.ParseQuoteStatus(status); err != nil {
		return model.Quote{}, fmt.Errorf("quote %s: %w", q.ID, err)
	}
	if q.CreatedAt, err = parseTime(create); err != nil {
		return model.Quote{}, err
	}
	if q.SentAt, err = parseNullTime(sentAt); err != nil {
		return model.Quote{}, err
	}
	return q, nil
}
