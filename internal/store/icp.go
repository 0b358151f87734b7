package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/salesmachine/internal/model"
)

// ICPRecord is one scorer result to be stored.
type ICPRecord struct {
	// SubjectKey identifies what was analysed; see SubjectKey.
	SubjectKey   string
	QuarantineID string
	CompanyID    string
	Outcome      model.ICPOutcome
	Temperature  model.Temperature
}

// SubjectKey returns the analysis subject of a lead: its CNPJ when known,
// otherwise the lead itself.
func SubjectKey(l model.QuarantinedLead) string {
	if l.CNPJ != "" {
		return "cnpj:" + l.CNPJ
	}
	return "lead:" + l.ID
}

// RecordICPAnalysis stores a new analysis version for a subject.
//
// The current row in icp_analysis_results is created or replaced, the version
// is appended to icp_analysis_history, and the criteria and evidence of the
// version are written alongside. A qualified lead or company tied to the
// subject gets the new score.
func (s *Store) RecordICPAnalysis(ctx context.Context, rec ICPRecord) (model.ICPAnalysis, error) {
	if rec.SubjectKey == "" {
		return model.ICPAnalysis{}, fmt.Errorf("record icp analysis: subject key is required")
	}
	if !rec.Outcome.Score.IsValid() {
		return model.ICPAnalysis{}, fmt.Errorf("record icp analysis: score %d out of range", rec.Outcome.Score)
	}
	if !rec.Temperature.IsValid() {
		return model.ICPAnalysis{}, fmt.Errorf("record icp analysis: %w", &model.EnumError{Type: "temperature", Value: string(rec.Temperature)})
	}
	for _, c := range rec.Outcome.Criteria {
		if !c.Score.IsValid() || c.Weight < 0 {
			return model.ICPAnalysis{}, fmt.Errorf("record icp analysis: criterion %q has invalid score or weight", c.Criterion)
		}
	}

	methodology := rec.Outcome.Methodology
	if methodology.Data == nil {
		methodology = model.EmptyPayload()
	}
	now := s.now().UTC()
	a := model.ICPAnalysis{
		SubjectKey:   rec.SubjectKey,
		QuarantineID: rec.QuarantineID,
		CompanyID:    rec.CompanyID,
		Score:        rec.Outcome.Score,
		Temperature:  rec.Temperature,
		LogicVersion: rec.Outcome.LogicVersion,
		Methodology:  methodology,
		AnalyzedAt:   now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prevVersion int64
		err := tx.QueryRowContext(ctx, `
			SELECT id, analysis_version FROM icp_analysis_results WHERE subject_key = ?
		`, rec.SubjectKey).Scan(&a.ID, &prevVersion)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			a.ID = s.newID()
			a.AnalysisVersion = 1
			_, err = tx.ExecContext(ctx, `
				INSERT INTO icp_analysis_results
				(id, subject_key, quarantine_id, company_id, score, temperature, analysis_version,
				 logic_version, methodology, analyzed_at)
				VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
			`, a.ID, a.SubjectKey, nullString(a.QuarantineID), nullString(a.CompanyID),
				int64(a.Score), string(a.Temperature), a.LogicVersion,
				payloadColumn(methodology), formatTime(now))
		case err == nil:
			a.AnalysisVersion = prevVersion + 1
			_, err = tx.ExecContext(ctx, `
				UPDATE icp_analysis_results
				SET score = ?, temperature = ?, analysis_version = ?, logic_version = ?,
				    methodology = ?, analyzed_at = ?,
				    quarantine_id = COALESCE(?, quarantine_id),
				    company_id = COALESCE(?, company_id)
				WHERE id = ?
			`, int64(a.Score), string(a.Temperature), a.AnalysisVersion, a.LogicVersion,
				payloadColumn(methodology), formatTime(now),
				nullString(a.QuarantineID), nullString(a.CompanyID), a.ID)
		}
		if err != nil {
			return wrapDBError("record icp analysis", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO icp_analysis_history
			(analysis_id, analysis_version, score, temperature, logic_version, methodology, analyzed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.AnalysisVersion, int64(a.Score), string(a.Temperature), a.LogicVersion,
			payloadColumn(methodology), formatTime(now))
		if err != nil {
			return wrapDBError("record icp history", err)
		}

		for _, c := range rec.Outcome.Criteria {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO icp_criteria_scores (analysis_id, analysis_version, criterion, weight, score)
				VALUES (?, ?, ?, ?, ?)
			`, a.ID, a.AnalysisVersion, c.Criterion, c.Weight, int64(c.Score))
			if err != nil {
				return wrapDBError("record icp criterion "+c.Criterion, err)
			}
		}
		a.Criteria = append([]model.CriterionScore{}, rec.Outcome.Criteria...)

		versionKey := fmt.Sprintf("%s/%d", a.ID, a.AnalysisVersion)
		a.Evidence = []model.Evidence{}
		for _, ev := range rec.Outcome.Evidence {
			id, err := model.EvidenceID(versionKey, ev.Criterion, ev.SourceURL, ev.Excerpt)
			if err != nil {
				return fmt.Errorf("record icp evidence: %w", err)
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO icp_evidence (id, analysis_id, analysis_version, criterion, source_url, excerpt)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING
			`, id, a.ID, a.AnalysisVersion, ev.Criterion, ev.SourceURL, ev.Excerpt)
			if err != nil {
				return wrapDBError("record icp evidence", err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				ev.ID = id
				a.Evidence = append(a.Evidence, ev)
			}
		}

		if a.QuarantineID != "" {
			_, err := tx.ExecContext(ctx, `
				UPDATE leads_qualified SET icp_score = ?, temperature = ?, analysis_id = ?
				WHERE quarantine_id = ?
			`, int64(a.Score), string(a.Temperature), a.ID, a.QuarantineID)
			if err != nil {
				return wrapDBError("record icp analysis: update qualified lead", err)
			}
		}

		var companyID sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT company_id FROM icp_analysis_results WHERE id = ?`, a.ID).Scan(&companyID); err != nil {
			return wrapDBError("record icp analysis", err)
		}
		a.CompanyID = companyID.String
		if a.CompanyID != "" {
			_, err := tx.ExecContext(ctx, `UPDATE companies SET icp_score = ?, updated_at = ? WHERE id = ?`,
				int64(a.Score), formatTime(now), a.CompanyID)
			if err != nil {
				return wrapDBError("record icp analysis: update company", err)
			}
		}
		return nil
	})
	if err != nil {
		return model.ICPAnalysis{}, err
	}
	return a, nil
}

// GetICPAnalysis returns the current analysis of a subject with the criteria
// and evidence of its latest version.
func (s *Store) GetICPAnalysis(ctx context.Context, subjectKey string) (model.ICPAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_key, quarantine_id, company_id, score, temperature, analysis_version,
		       logic_version, methodology, analyzed_at
		FROM icp_analysis_results WHERE subject_key = ?
	`, subjectKey)
	a, err := scanAnalysis(row)
	if err != nil {
		return model.ICPAnalysis{}, wrapDBError("get icp analysis "+subjectKey, err)
	}

	if a.Criteria, err = s.criteria(ctx, a.ID, a.AnalysisVersion); err != nil {
		return model.ICPAnalysis{}, err
	}
	if a.Evidence, err = s.evidence(ctx, a.ID, a.AnalysisVersion); err != nil {
		return model.ICPAnalysis{}, err
	}
	return a, nil
}

// ICPHistory returns every version of an analysis, oldest first.
func (s *Store) ICPHistory(ctx context.Context, analysisID string) ([]model.ICPAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.subject_key, r.quarantine_id, r.company_id, h.score, h.temperature,
		       h.analysis_version, h.logic_version, h.methodology, h.analyzed_at
		FROM icp_analysis_history h
		JOIN icp_analysis_results r ON r.id = h.analysis_id
		WHERE h.analysis_id = ?
		ORDER BY h.analysis_version ASC
	`, analysisID)
	if err != nil {
		return nil, wrapDBError("icp history", err)
	}
	return collectRows(rows, "icp history", scanAnalysis)
}

func (s *Store) criteria(ctx context.Context, analysisID string, version int64) ([]model.CriterionScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT criterion, weight, score FROM icp_criteria_scores
		WHERE analysis_id = ? AND analysis_version = ?
		ORDER BY criterion COLLATE BINARY ASC
	`, analysisID, version)
	if err != nil {
		return nil, wrapDBError("icp criteria", err)
	}
	return collectRows(rows, "criteria", func(r scanner) (model.CriterionScore, error) {
		var (
			c     model.CriterionScore
			score int64
		)
		if err := r.Scan(&c.Criterion, &c.Weight, &score); err != nil {
			return model.CriterionScore{}, err
		}
		var err error
		c.Score, err = model.ParseScore(score)
		return c, err
	})
}

func (s *Store) evidence(ctx context.Context, analysisID string, version int64) ([]model.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, criterion, source_url, excerpt FROM icp_evidence
		WHERE analysis_id = ? AND analysis_version = ?
		ORDER BY criterion COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, analysisID, version)
	if err != nil {
		return nil, wrapDBError("icp evidence", err)
	}
	return collectRows(rows, "evidence", func(r scanner) (model.Evidence, error) {
		var e model.Evidence
		err := r.Scan(&e.ID, &e.Criterion, &e.SourceURL, &e.Excerpt)
		return e, err
	})
}

func scanAnalysis(row scanner) (model.ICPAnalysis, error) {
	var (
		a                       model.ICPAnalysis
		quarantineID, companyID sql.NullString
		score                   int64
		temp, methodology, when string
	)
	err := row.Scan(&a.ID, &a.SubjectKey, &quarantineID, &companyID, &score, &temp,
		&a.AnalysisVersion, &a.LogicVersion, &methodology, &when)
	if err != nil {
		return model.ICPAnalysis{}, err
	}
	a.QuarantineID = quarantineID.String
	a.CompanyID = companyID.String
	if a.Score, err = model.ParseScore(score); err != nil {
		return model.ICPAnalysis{}, fmt.Errorf("analysis %s: %w", a.ID, err)
	}
	if a.Temperature, err = model.ParseTemperature(temp); err != nil {
		return model.ICPAnalysis{}, fmt.Errorf("analysis %s: %w", a.ID, err)
	}
	if a.Methodology, err = model.ParsePayload(methodology); err != nil {
		return model.ICPAnalysis{}, fmt.Errorf("analysis %s: methodology: %w", a.ID, err)
	}
	if a.AnalyzedAt, err = parseTime(when); err != nil {
		return model.ICPAnalysis{}, err
	}
	return a, nil
}
