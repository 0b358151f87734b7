package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/salesmachine/internal/model"
)

var signalTables = map[model.SignalKind]string{
	model.SignalIntent:     "intent_signals",
	model.SignalBuying:     "buying_signals",
	model.SignalGovernance: "governance_signals",
}

func signalTable(kind model.SignalKind) (string, error) {
	table, ok := signalTables[kind]
	if !ok {
		return "", &model.EnumError{Type: "signal kind", Value: string(kind)}
	}
	return table, nil
}

// RecordSignal stores a detected signal in the table of its kind.
func (s *Store) RecordSignal(ctx context.Context, sig model.Signal) (model.Signal, error) {
	table, err := signalTable(sig.Kind)
	if err != nil {
		return model.Signal{}, fmt.Errorf("record signal: %w", err)
	}
	if !sig.Priority.IsValid() {
		return model.Signal{}, fmt.Errorf("record signal: %w", &model.EnumError{Type: "signal priority", Value: string(sig.Priority)})
	}
	if !sig.Confidence.IsValid() {
		return model.Signal{}, fmt.Errorf("record signal: confidence %d out of range", sig.Confidence)
	}
	if sig.ID == "" {
		sig.ID = s.newID()
	}
	if sig.DetectedAt.IsZero() {
		sig.DetectedAt = s.now().UTC()
	}
	if sig.Metadata.Data == nil {
		sig.Metadata = model.EmptyPayload()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+`
		(id, company_id, signal_type, confidence, priority, source_url, metadata, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.CompanyID, sig.SignalType, int64(sig.Confidence), string(sig.Priority),
		sig.SourceURL, payloadColumn(sig.Metadata), formatTime(sig.DetectedAt))
	if err != nil {
		return model.Signal{}, wrapDBError("record signal", err)
	}
	return sig, nil
}

// ListSignals returns a company's signals of one kind, newest first.
func (s *Store) ListSignals(ctx context.Context, companyID string, kind model.SignalKind) ([]model.Signal, error) {
	table, err := signalTable(kind)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, signal_type, confidence, priority, source_url, metadata, detected_at
		FROM `+table+`
		WHERE company_id = ?
		ORDER BY detected_at DESC, id COLLATE BINARY ASC
	`, companyID)
	if err != nil {
		return nil, wrapDBError("list signals", err)
	}
	return collectRows(rows, "signals", func(r scanner) (model.Signal, error) {
		var (
			sig                      model.Signal
			confidence               int64
			priority, metadata, when string
		)
		if err := r.Scan(&sig.ID, &sig.CompanyID, &sig.SignalType, &confidence, &priority,
			&sig.SourceURL, &metadata, &when); err != nil {
			return model.Signal{}, err
		}
		sig.Kind = kind
		var err error
		if sig.Confidence, err = model.ParseScore(confidence); err != nil {
			return model.Signal{}, fmt.Errorf("signal %s: %w", sig.ID, err)
		}
		if sig.Priority, err = model.ParseSignalPriority(priority); err != nil {
			return model.Signal{}, fmt.Errorf("signal %s: %w", sig.ID, err)
		}
		if sig.Metadata, err = model.ParsePayload(metadata); err != nil {
			return model.Signal{}, fmt.Errorf("signal %s: metadata: %w", sig.ID, err)
		}
		sig.DetectedAt, err = parseTime(when)
		return sig, err
	})
}

// UpsertMonitoring creates or replaces a company's monitoring settings.
func (s *Store) UpsertMonitoring(ctx context.Context, m model.Monitoring) error {
	if m.FrequencyDays < 1 {
		return fmt.Errorf("upsert monitoring: frequency must be at least one day")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company_monitoring (company_id, enabled, frequency_days, last_checked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			enabled = excluded.enabled,
			frequency_days = excluded.frequency_days
	`, m.CompanyID, boolInt(m.Enabled), m.FrequencyDays, formatNullTime(m.LastCheckedAt))
	if err != nil {
		return wrapDBError("upsert monitoring", err)
	}
	return nil
}

// GetMonitoring returns a company's monitoring settings.
func (s *Store) GetMonitoring(ctx context.Context, companyID string) (model.Monitoring, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT company_id, enabled, frequency_days, last_checked_at
		FROM company_monitoring WHERE company_id = ?
	`, companyID)
	m, err := scanMonitoring(row)
	if err != nil {
		return model.Monitoring{}, wrapDBError("get monitoring "+companyID, err)
	}
	return m, nil
}

// MarkChecked stamps the last monitoring check of a company.
func (s *Store) MarkChecked(ctx context.Context, companyID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE company_monitoring SET last_checked_at = ? WHERE company_id = ?`,
		s.timestamp(), companyID)
	if err != nil {
		return wrapDBError("mark checked", err)
	}
	return requireAffected(res, "mark checked "+companyID)
}

// DueMonitoring returns enabled monitors that were never checked or whose
// last check is at least FrequencyDays before now.
func (s *Store) DueMonitoring(ctx context.Context) ([]model.Monitoring, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, enabled, frequency_days, last_checked_at
		FROM company_monitoring
		WHERE enabled = 1
		ORDER BY company_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, wrapDBError("due monitoring", err)
	}
	all, err := collectRows(rows, "monitoring", scanMonitoring)
	if err != nil {
		return nil, err
	}

	now := s.now()
	due := []model.Monitoring{}
	for _, m := range all {
		if m.LastCheckedAt == nil || !now.Before(m.LastCheckedAt.Add(time.Duration(m.FrequencyDays)*24*time.Hour)) {
			due = append(due, m)
		}
	}
	return due, nil
}

func scanMonitoring(row scanner) (model.Monitoring, error) {
	var (
		m       model.Monitoring
		enabled int64
		last    sql.NullString
	)
	if err := row.Scan(&m.CompanyID, &enabled, &m.FrequencyDays, &last); err != nil {
		return model.Monitoring{}, err
	}
	m.Enabled = enabled == 1
	var err error
	m.LastCheckedAt, err = parseNullTime(last)
	return m, err
}
