package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/salesmachine/internal/model"
	"github.com/roach88/salesmachine/internal/query"
)

const companyColumns = `id, cnpj, name, domain, website, industry, employee_count, revenue_cents,
	deal_stage, pipeline_status, journey_stage, icp_score, account_score,
	buying_intent_score, digital_maturity_score, raw_data, created_at, updated_at`

var companyColumnList = []string{
	"id", "cnpj", "name", "domain", "website", "industry", "employee_count", "revenue_cents",
	"deal_stage", "pipeline_status", "journey_stage", "icp_score", "account_score",
	"buying_intent_score", "digital_maturity_score", "raw_data", "created_at", "updated_at",
}

// CreateCompany inserts a company. ID and timestamps are assigned when empty.
// A non-empty CNPJ is normalized and must be unique (ErrConflict otherwise).
func (s *Store) CreateCompany(ctx context.Context, c model.Company) (model.Company, error) {
	return s.createCompany(ctx, s.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) createCompany(ctx context.Context, db execer, c model.Company) (model.Company, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.Company{}, fmt.Errorf("create company: name is required")
	}
	if c.CNPJ != "" {
		cnpj, err := model.NormalizeCNPJ(c.CNPJ)
		if err != nil {
			return model.Company{}, fmt.Errorf("create company: %w", err)
		}
		c.CNPJ = cnpj
	}
	if c.ID == "" {
		c.ID = s.newID()
	}
	now := s.now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.RawData.Data == nil {
		c.RawData = model.EmptyPayload()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO companies (`+companyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, nullString(c.CNPJ), c.Name, c.Domain, c.Website, c.Industry,
		c.EmployeeCount, int64(c.Revenue), c.DealStage, c.PipelineStatus, c.JourneyStage,
		nullScore(c.ICPScore), int64(c.AccountScore), int64(c.BuyingIntentScore),
		int64(c.DigitalMaturityScore), payloadColumn(c.RawData),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.Company{}, wrapDBError("create company", err)
	}
	return c, nil
}

// GetCompany returns a company by ID.
func (s *Store) GetCompany(ctx context.Context, id string) (model.Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if err != nil {
		return model.Company{}, wrapDBError("get company "+id, err)
	}
	return c, nil
}

// GetCompanyByCNPJ returns the company registered under a CNPJ in any format.
func (s *Store) GetCompanyByCNPJ(ctx context.Context, cnpj string) (model.Company, error) {
	digits, err := model.NormalizeCNPJ(cnpj)
	if err != nil {
		return model.Company{}, fmt.Errorf("get company by cnpj: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE cnpj = ?`, digits)
	c, err := scanCompany(row)
	if err != nil {
		return model.Company{}, wrapDBError("get company by cnpj", err)
	}
	return c, nil
}

// CompanyScores holds the score columns that UpdateCompanyScores may change.
// Nil fields are left untouched.
type CompanyScores struct {
	ICP             *model.Score
	Account         *model.Score
	BuyingIntent    *model.Score
	DigitalMaturity *model.Score
}

// UpdateCompanyScores writes the non-nil scores of a company.
func (s *Store) UpdateCompanyScores(ctx context.Context, id string, scores CompanyScores) error {
	sets := []string{"updated_at = ?"}
	args := []any{s.timestamp()}
	add := func(col string, v *model.Score) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, int64(*v))
		}
	}
	add("icp_score", scores.ICP)
	add("account_score", scores.Account)
	add("buying_intent_score", scores.BuyingIntent)
	add("digital_maturity_score", scores.DigitalMaturity)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return wrapDBError("update company scores", err)
	}
	return requireAffected(res, "update company scores "+id)
}

// SetCompanyStages records the deal, pipeline and journey stage labels.
func (s *Store) SetCompanyStages(ctx context.Context, id, dealStage, pipelineStatus, journeyStage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies SET deal_stage = ?, pipeline_status = ?, journey_stage = ?, updated_at = ?
		WHERE id = ?
	`, dealStage, pipelineStatus, journeyStage, s.timestamp(), id)
	if err != nil {
		return wrapDBError("set company stages", err)
	}
	return requireAffected(res, "set company stages "+id)
}

// CompanyFilter narrows ListCompanies. Zero fields are ignored.
type CompanyFilter struct {
	Industry        string
	MinBuyingIntent model.Score
	MinICP          model.Score
	Limit           int
	Offset          int
}

// ListCompanies returns companies matching the filter, ordered by name.
func (s *Store) ListCompanies(ctx context.Context, f CompanyFilter) ([]model.Company, error) {
	var preds []query.Predicate
	if f.Industry != "" {
		preds = append(preds, query.Equals{Field: "industry", Value: f.Industry})
	}
	if f.MinBuyingIntent > 0 {
		preds = append(preds, query.AtLeast{Field: "buying_intent_score", Value: f.MinBuyingIntent})
	}
	if f.MinICP > 0 {
		preds = append(preds, query.AtLeast{Field: "icp_score", Value: f.MinICP})
	}

	sqlText, params, err := query.Compile(query.Select{
		From:    "companies",
		Columns: companyColumnList,
		Filter:  query.Where(preds...),
		OrderBy: []query.Order{{Field: "name"}},
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, wrapDBError("list companies", err)
	}
	return collectRows(rows, "companies", scanCompany)
}

// DeleteCompany removes a company. Contacts, signals, opportunities and
// canvases go with it; deals are kept and become orphans until
// CleanupOrphanedDeals runs.
func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("delete company", err)
	}
	return requireAffected(res, "delete company "+id)
}

func scanCompany(row scanner) (model.Company, error) {
	var (
		c                            model.Company
		cnpj                         sql.NullString
		icp                          sql.NullInt64
		account, intent, maturity    int64
		revenue                      int64
		rawData, createdAt, updateAt string
	)
	err := row.Scan(&c.ID, &cnpj, &c.Name, &c.Domain, &c.Website, &c.Industry,
		&c.EmployeeCount, &revenue, &c.DealStage, &c.PipelineStatus, &c.JourneyStage,
		&icp, &account, &intent, &maturity, &rawData, &createdAt, &updateAt)
	if err != nil {
		return model.Company{}, err
	}

	c.CNPJ = cnpj.String
	c.Revenue = model.Cents(revenue)
	if c.ICPScore, err = scanNullScore(icp); err != nil {
		return model.Company{}, fmt.Errorf("company %s: icp_score: %w", c.ID, err)
	}
	for _, pair := range []struct {
		dst *model.Score
		v   int64
	}{{&c.AccountScore, account}, {&c.BuyingIntentScore, intent}, {&c.DigitalMaturityScore, maturity}} {
		if *pair.dst, err = model.ParseScore(pair.v); err != nil {
			return model.Company{}, fmt.Errorf("company %s: %w", c.ID, err)
		}
	}
	if c.RawData, err = model.ParsePayload(rawData); err != nil {
		return model.Company{}, fmt.Errorf("company %s: raw_data: %w", c.ID, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Company{}, err
	}
	if c.UpdatedAt, err = parseTime(updateAt); err != nil {
		return model.Company{}, err
	}
	return c, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
