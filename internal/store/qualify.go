package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/salesmachine/internal/model"
)

// PoolLead places an approved lead in the pool. Pooling the same lead twice
// returns the existing entry.
func (s *Store) PoolLead(ctx context.Context, leadID, reason string) (model.PooledLead, error) {
	lead, err := s.GetLead(ctx, leadID)
	if err != nil {
		return model.PooledLead{}, err
	}
	if lead.Status != model.LeadApproved && lead.Status != model.LeadQualified {
		return model.PooledLead{}, fmt.Errorf("pool lead %s: status is %s: %w", leadID, lead.Status, ErrInvalidTransition)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leads_pool (id, quarantine_id, reason, pooled_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(quarantine_id) DO NOTHING
	`, s.newID(), leadID, reason, s.timestamp())
	if err != nil {
		return model.PooledLead{}, wrapDBError("pool lead", err)
	}
	return s.GetPooledLead(ctx, leadID)
}

// GetPooledLead returns the pool entry of a lead.
func (s *Store) GetPooledLead(ctx context.Context, leadID string) (model.PooledLead, error) {
	var (
		p        model.PooledLead
		pooledAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, quarantine_id, reason, pooled_at FROM leads_pool WHERE quarantine_id = ?
	`, leadID).Scan(&p.ID, &p.QuarantineID, &p.Reason, &pooledAt)
	if err != nil {
		return model.PooledLead{}, wrapDBError("get pooled lead "+leadID, err)
	}
	if p.PooledAt, err = parseTime(pooledAt); err != nil {
		return model.PooledLead{}, err
	}
	return p, nil
}

// QualifyLead moves an approved lead to qualified and records the analysis
// that qualified it.
func (s *Store) QualifyLead(ctx context.Context, leadID string, analysis model.ICPAnalysis, flowToken string) (model.QualifiedLead, error) {
	if !analysis.Temperature.IsValid() {
		return model.QualifiedLead{}, fmt.Errorf("qualify lead: %w", &model.EnumError{Type: "temperature", Value: string(analysis.Temperature)})
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.transitionLead(ctx, tx, leadID, model.LeadQualified, TransitionMeta{
			Reason:    fmt.Sprintf("icp %d %s", analysis.Score, analysis.Temperature),
			FlowToken: flowToken,
		})
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO leads_qualified (id, quarantine_id, analysis_id, icp_score, temperature, qualified_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, s.newID(), leadID, analysis.ID, int64(analysis.Score), string(analysis.Temperature), s.timestamp())
		if err != nil {
			return wrapDBError("qualify lead", err)
		}
		return nil
	})
	if err != nil {
		return model.QualifiedLead{}, err
	}
	return s.GetQualifiedLead(ctx, leadID)
}

// GetQualifiedLead returns the qualification record of a lead.
func (s *Store) GetQualifiedLead(ctx context.Context, leadID string) (model.QualifiedLead, error) {
	return getQualifiedLead(ctx, s.db, leadID)
}

func getQualifiedLead(ctx context.Context, db execer, leadID string) (model.QualifiedLead, error) {
	var (
		q          model.QualifiedLead
		score      int64
		temp, when string
		companyID  sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, quarantine_id, analysis_id, icp_score, temperature, company_id, qualified_at
		FROM leads_qualified WHERE quarantine_id = ?
	`, leadID).Scan(&q.ID, &q.QuarantineID, &q.AnalysisID, &score, &temp, &companyID, &when)
	if err != nil {
		return model.QualifiedLead{}, wrapDBError("get qualified lead "+leadID, err)
	}
	if q.ICPScore, err = model.ParseScore(score); err != nil {
		return model.QualifiedLead{}, fmt.Errorf("qualified lead %s: %w", leadID, err)
	}
	if q.Temperature, err = model.ParseTemperature(temp); err != nil {
		return model.QualifiedLead{}, fmt.Errorf("qualified lead %s: %w", leadID, err)
	}
	q.CompanyID = companyID.String
	if q.QualifiedAt, err = parseTime(when); err != nil {
		return model.QualifiedLead{}, err
	}
	return q, nil
}

// PromoteLead links a qualified lead to a company, creating the company when
// no company with the lead's CNPJ exists yet. Promoting twice returns the
// same company.
func (s *Store) PromoteLead(ctx context.Context, leadID string) (model.Company, error) {
	var companyID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		lead, err := getLead(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if lead.Status != model.LeadQualified {
			return fmt.Errorf("promote lead %s: status is %s: %w", leadID, lead.Status, ErrInvalidTransition)
		}
		if lead.CompanyID != "" {
			companyID = lead.CompanyID
			return nil
		}
		qualified, err := getQualifiedLead(ctx, tx, leadID)
		if err != nil {
			return err
		}

		if lead.CNPJ != "" {
			err = tx.QueryRowContext(ctx, `SELECT id FROM companies WHERE cnpj = ?`, lead.CNPJ).Scan(&companyID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return wrapDBError("promote lead: find company", err)
			}
		}
		icp := qualified.ICPScore
		if companyID == "" {
			c, err := s.createCompany(ctx, tx, model.Company{
				CNPJ:     lead.CNPJ,
				Name:     lead.CompanyName,
				Website:  lead.Website,
				ICPScore: &icp,
			})
			if err != nil {
				return err
			}
			companyID = c.ID
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE companies SET icp_score = ?, updated_at = ? WHERE id = ?`,
				int64(icp), s.timestamp(), companyID)
			if err != nil {
				return wrapDBError("promote lead: update company", err)
			}
		}

		for _, stmt := range []string{
			`UPDATE leads_quarantine SET company_id = ? WHERE id = ?`,
			`UPDATE leads_qualified SET company_id = ? WHERE quarantine_id = ?`,
			`UPDATE icp_analysis_results SET company_id = ? WHERE quarantine_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, companyID, leadID); err != nil {
				return wrapDBError("promote lead: link company", err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Company{}, err
	}
	return s.GetCompany(ctx, companyID)
}
