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

const leadColumns = `id, source_id, cnpj, company_name, email, website, linkedin_url, status,
	fingerprint, duplicate_of, rejection_reason, validation, company_id, captured_at, updated_at`

var leadColumnList = []string{
	"id", "source_id", "cnpj", "company_name", "email", "website", "linkedin_url", "status",
	"fingerprint", "duplicate_of", "rejection_reason", "validation", "company_id", "captured_at", "updated_at",
}

// EnsureSource returns the lead source with the given name, creating it when
// missing.
func (s *Store) EnsureSource(ctx context.Context, name string, kind model.SourceKind) (model.LeadSource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.LeadSource{}, fmt.Errorf("ensure source: name is required")
	}
	if !kind.IsValid() {
		return model.LeadSource{}, fmt.Errorf("ensure source: %w", &model.EnumError{Type: "source kind", Value: string(kind)})
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads_sources (id, name, kind, active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(name) DO NOTHING
	`, s.newID(), name, string(kind), s.timestamp())
	if err != nil {
		return model.LeadSource{}, wrapDBError("ensure source", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, active, created_at FROM leads_sources WHERE name = ?
	`, name)
	src, err := scanSource(row)
	if err != nil {
		return model.LeadSource{}, wrapDBError("ensure source", err)
	}
	return src, nil
}

// ListSources returns every lead source ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]model.LeadSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, active, created_at
		FROM leads_sources
		ORDER BY name ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, wrapDBError("list sources", err)
	}
	return collectRows(rows, "sources", scanSource)
}

func scanSource(row scanner) (model.LeadSource, error) {
	var (
		src       model.LeadSource
		kind      string
		active    int64
		createdAt string
	)
	if err := row.Scan(&src.ID, &src.Name, &kind, &active, &createdAt); err != nil {
		return model.LeadSource{}, err
	}
	k, err := model.ParseSourceKind(kind)
	if err != nil {
		return model.LeadSource{}, fmt.Errorf("source %s: %w", src.ID, err)
	}
	src.Kind = k
	src.Active = active == 1
	src.CreatedAt, err = parseTime(createdAt)
	return src, err
}

// CaptureLead stores a new lead in quarantine with status pending.
//
// When an earlier lead with the same fingerprint is still live (not rejected
// and not itself a duplicate), the new lead moves straight to duplicate and
// DuplicateOf points at the earlier one.
func (s *Store) CaptureLead(ctx context.Context, in model.LeadCapture) (model.QuarantinedLead, error) {
	if strings.TrimSpace(in.CompanyName) == "" {
		return model.QuarantinedLead{}, fmt.Errorf("capture lead: company_name is required")
	}
	if in.SourceID == "" {
		return model.QuarantinedLead{}, fmt.Errorf("capture lead: source_id is required")
	}

	cnpj := ""
	if strings.TrimSpace(in.CNPJ) != "" {
		var err error
		if cnpj, err = model.NormalizeCNPJ(in.CNPJ); err != nil {
			return model.QuarantinedLead{}, fmt.Errorf("capture lead: %w", err)
		}
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fingerprint, err := model.LeadFingerprint(cnpj, in.CompanyName, email)
	if err != nil {
		return model.QuarantinedLead{}, fmt.Errorf("capture lead: %w", err)
	}

	id := s.newID()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		raw := in.RawData
		if raw.Data == nil {
			raw = model.EmptyPayload()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leads_quarantine
			(id, source_id, cnpj, company_name, email, website, linkedin_url, status,
			 fingerprint, raw_data, captured_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?)
		`, id, in.SourceID, cnpj, strings.TrimSpace(in.CompanyName), email,
			strings.TrimSpace(in.Website), strings.TrimSpace(in.LinkedInURL),
			fingerprint, payloadColumn(raw), now, now)
		if err != nil {
			return wrapDBError("capture lead", err)
		}

		var original string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM leads_quarantine
			WHERE fingerprint = ? AND id != ? AND status NOT IN ('rejected', 'duplicate')
			ORDER BY captured_at ASC, id COLLATE BINARY ASC
			LIMIT 1
		`, fingerprint, id).Scan(&original)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return wrapDBError("capture lead: duplicate check", err)
		}

		_, err = s.transitionLead(ctx, tx, id, model.LeadDuplicate, TransitionMeta{
			Reason:      "fingerprint matches " + original,
			DuplicateOf: original,
		})
		return err
	})
	if err != nil {
		return model.QuarantinedLead{}, err
	}

	return s.GetLead(ctx, id)
}

// GetLead returns a quarantined lead by ID.
func (s *Store) GetLead(ctx context.Context, id string) (model.QuarantinedLead, error) {
	return getLead(ctx, s.db, id)
}

func getLead(ctx context.Context, db execer, id string) (model.QuarantinedLead, error) {
	row := db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads_quarantine WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err != nil {
		return model.QuarantinedLead{}, wrapDBError("get lead "+id, err)
	}
	return lead, nil
}

// LeadFilter narrows ListLeads. Zero fields are ignored.
type LeadFilter struct {
	Statuses []model.LeadStatus
	SourceID string
	Limit    int
	Offset   int
}

// ListLeads returns quarantined leads in capture order.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]model.QuarantinedLead, error) {
	var preds []query.Predicate
	if len(f.Statuses) > 0 {
		values := make([]any, len(f.Statuses))
		for i, st := range f.Statuses {
			values[i] = st
		}
		preds = append(preds, query.In{Field: "status", Values: values})
	}
	if f.SourceID != "" {
		preds = append(preds, query.Equals{Field: "source_id", Value: f.SourceID})
	}

	sqlText, params, err := query.Compile(query.Select{
		From:    "leads_quarantine",
		Columns: leadColumnList,
		Filter:  query.Where(preds...),
		OrderBy: []query.Order{{Field: "captured_at"}},
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, wrapDBError("list leads", err)
	}
	return collectRows(rows, "leads", scanLead)
}

func scanLead(row scanner) (model.QuarantinedLead, error) {
	var (
		l                        model.QuarantinedLead
		status, validation       string
		duplicateOf, companyID   sql.NullString
		capturedAt, updatedAtStr string
	)
	err := row.Scan(&l.ID, &l.SourceID, &l.CNPJ, &l.CompanyName, &l.Email, &l.Website,
		&l.LinkedInURL, &status, &l.Fingerprint, &duplicateOf, &l.RejectionReason,
		&validation, &companyID, &capturedAt, &updatedAtStr)
	if err != nil {
		return model.QuarantinedLead{}, err
	}
	if l.Status, err = model.ParseLeadStatus(status); err != nil {
		return model.QuarantinedLead{}, fmt.Errorf("lead %s: %w", l.ID, err)
	}
	l.DuplicateOf = duplicateOf.String
	l.CompanyID = companyID.String
	if l.Validation, err = model.ParsePayload(validation); err != nil {
		return model.QuarantinedLead{}, fmt.Errorf("lead %s: validation: %w", l.ID, err)
	}
	if l.CapturedAt, err = parseTime(capturedAt); err != nil {
		return model.QuarantinedLead{}, err
	}
	if l.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return model.QuarantinedLead{}, err
	}
	return l, nil
}

// TransitionMeta annotates a status change.
type TransitionMeta struct {
	Reason    string
	FlowToken string
	// Validation replaces the stored validation payload when non-nil.
	Validation *model.Payload
	// DuplicateOf is recorded when moving to duplicate.
	DuplicateOf string
}

// TransitionLead moves a lead to a new status and appends the change to the
// transition log. Moves the lifecycle does not allow return an error wrapping
// ErrInvalidTransition and a *model.TransitionError.
func (s *Store) TransitionLead(ctx context.Context, id string, to model.LeadStatus, meta TransitionMeta) (model.LeadTransition, error) {
	var tr model.LeadTransition
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		tr, err = s.transitionLead(ctx, tx, id, to, meta)
		return err
	})
	return tr, err
}

func (s *Store) transitionLead(ctx context.Context, tx *sql.Tx, id string, to model.LeadStatus, meta TransitionMeta) (model.LeadTransition, error) {
	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM leads_quarantine WHERE id = ?`, id).Scan(&raw); err != nil {
		return model.LeadTransition{}, wrapDBError("transition lead "+id, err)
	}
	from, err := model.ParseLeadStatus(raw)
	if err != nil {
		return model.LeadTransition{}, fmt.Errorf("transition lead %s: %w", id, err)
	}
	if err := model.CheckTransition(id, from, to); err != nil {
		return model.LeadTransition{}, fmt.Errorf("transition lead: %w: %w", ErrInvalidTransition, err)
	}

	now := s.now().UTC()
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(to), formatTime(now)}
	if meta.Validation != nil {
		sets = append(sets, "validation = ?")
		args = append(args, payloadColumn(*meta.Validation))
	}
	if to == model.LeadRejected {
		sets = append(sets, "rejection_reason = ?")
		args = append(args, meta.Reason)
	}
	if to == model.LeadDuplicate && meta.DuplicateOf != "" {
		sets = append(sets, "duplicate_of = ?")
		args = append(args, meta.DuplicateOf)
	}
	args = append(args, id, string(from))

	res, err := tx.ExecContext(ctx,
		`UPDATE leads_quarantine SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return model.LeadTransition{}, wrapDBError("transition lead "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.LeadTransition{}, fmt.Errorf("transition lead %s: status changed concurrently: %w", id, ErrConflict)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO lead_transitions (lead_id, from_status, to_status, reason, flow_token, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(from), string(to), meta.Reason, meta.FlowToken, formatTime(now))
	if err != nil {
		return model.LeadTransition{}, wrapDBError("log transition", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return model.LeadTransition{}, fmt.Errorf("log transition: %w", err)
	}

	return model.LeadTransition{
		Seq:        seq,
		LeadID:     id,
		From:       from,
		To:         to,
		Reason:     meta.Reason,
		FlowToken:  meta.FlowToken,
		OccurredAt: now,
	}, nil
}

// LeadTransitions returns the status log of one lead in seq order.
func (s *Store) LeadTransitions(ctx context.Context, leadID string) ([]model.LeadTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, lead_id, from_status, to_status, reason, flow_token, occurred_at
		FROM lead_transitions
		WHERE lead_id = ?
		ORDER BY seq ASC
	`, leadID)
	if err != nil {
		return nil, wrapDBError("lead transitions", err)
	}
	return collectRows(rows, "transitions", scanTransition)
}

// AllTransitions returns the full status log in seq order.
func (s *Store) AllTransitions(ctx context.Context) ([]model.LeadTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, lead_id, from_status, to_status, reason, flow_token, occurred_at
		FROM lead_transitions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, wrapDBError("all transitions", err)
	}
	return collectRows(rows, "transitions", scanTransition)
}

func scanTransition(row scanner) (model.LeadTransition, error) {
	var (
		t              model.LeadTransition
		from, to, when string
	)
	if err := row.Scan(&t.Seq, &t.LeadID, &from, &to, &t.Reason, &t.FlowToken, &when); err != nil {
		return model.LeadTransition{}, err
	}
	var err error
	if t.From, err = model.ParseLeadStatus(from); err != nil {
		return model.LeadTransition{}, fmt.Errorf("transition %d: %w", t.Seq, err)
	}
	if t.To, err = model.ParseLeadStatus(to); err != nil {
		return model.LeadTransition{}, fmt.Errorf("transition %d: %w", t.Seq, err)
	}
	t.OccurredAt, err = parseTime(when)
	return t, err
}
