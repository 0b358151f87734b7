package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/salesmachine/internal/model"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullScore(s *model.Score) any {
	if s == nil {
		return nil
	}
	return int64(*s)
}

func scanNullScore(n sql.NullInt64) (*model.Score, error) {
	if !n.Valid {
		return nil, nil
	}
	s, err := model.ParseScore(n.Int64)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// collectRows drains rows with scan, returning an empty slice rather than nil.
func collectRows[T any](rows *sql.Rows, what string, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

// payloadColumn serializes a payload, storing the zero value as "{}".
func payloadColumn(p model.Payload) string {
	if p.SchemaVersion == 0 && p.Producer == "" && len(p.Data) == 0 {
		return "{}"
	}
	return p.String()
}
