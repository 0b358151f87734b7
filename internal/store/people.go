package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/salesmachine/internal/model"
)

// AddContact inserts a contact for an existing company.
func (s *Store) AddContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.Contact{}, fmt.Errorf("add contact: name is required")
	}
	if c.ID == "" {
		c.ID = s.newID()
	}
	c.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, company_id, name, email, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.CompanyID, c.Name, strings.ToLower(strings.TrimSpace(c.Email)), c.Phone, c.Role, formatTime(c.CreatedAt))
	if err != nil {
		return model.Contact{}, wrapDBError("add contact", err)
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c, nil
}

// ListContacts returns a company's contacts ordered by name.
func (s *Store) ListContacts(ctx context.Context, companyID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, email, phone, role, created_at
		FROM contacts
		WHERE company_id = ?
		ORDER BY name ASC, id COLLATE BINARY ASC
	`, companyID)
	if err != nil {
		return nil, wrapDBError("list contacts", err)
	}
	return collectRows(rows, "contacts", func(r scanner) (model.Contact, error) {
		var c model.Contact
		var createdAt string
		if err := r.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.Role, &createdAt); err != nil {
			return model.Contact{}, err
		}
		t, err := parseTime(createdAt)
		c.CreatedAt = t
		return c, err
	})
}

// AddDecisionMaker inserts a decision maker for an existing company.
func (s *Store) AddDecisionMaker(ctx context.Context, d model.DecisionMaker) (model.DecisionMaker, error) {
	if strings.TrimSpace(d.Name) == "" {
		return model.DecisionMaker{}, fmt.Errorf("add decision maker: name is required")
	}
	if d.ID == "" {
		d.ID = s.newID()
	}
	d.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_makers (id, company_id, name, title, linkedin_url, seniority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.CompanyID, d.Name, d.Title, d.LinkedInURL, d.Seniority, formatTime(d.CreatedAt))
	if err != nil {
		return model.DecisionMaker{}, wrapDBError("add decision maker", err)
	}
	return d, nil
}

// ListDecisionMakers returns a company's decision makers ordered by name.
func (s *Store) ListDecisionMakers(ctx context.Context, companyID string) ([]model.DecisionMaker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, title, linkedin_url, seniority, created_at
		FROM decision_makers
		WHERE company_id = ?
		ORDER BY name ASC, id COLLATE BINARY ASC
	`, companyID)
	if err != nil {
		return nil, wrapDBError("list decision makers", err)
	}
	return collectRows(rows, "decision makers", func(r scanner) (model.DecisionMaker, error) {
		var d model.DecisionMaker
		var createdAt string
		if err := r.Scan(&d.ID, &d.CompanyID, &d.Name, &d.Title, &d.LinkedInURL, &d.Seniority, &createdAt); err != nil {
			return model.DecisionMaker{}, err
		}
		t, err := parseTime(createdAt)
		d.CreatedAt = t
		return d, err
	})
}

// LogActivity records an interaction. OccurredAt defaults to now.
func (s *Store) LogActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	if !a.Kind.IsValid() {
		return model.Activity{}, fmt.Errorf("log activity: %w", &model.EnumError{Type: "activity kind", Value: string(a.Kind)})
	}
	return s.logActivity(ctx, s.db, a)
}

func (s *Store) logActivity(ctx context.Context, db execer, a model.Activity) (model.Activity, error) {
	if a.ID == "" {
		a.ID = s.newID()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = s.now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (id, company_id, deal_id, kind, summary, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.CompanyID, nullString(a.DealID), string(a.Kind), a.Summary, formatTime(a.OccurredAt))
	if err != nil {
		return model.Activity{}, wrapDBError("log activity", err)
	}
	return a, nil
}

// ListActivities returns a company's activities, oldest first.
func (s *Store) ListActivities(ctx context.Context, companyID string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, COALESCE(deal_id, ''), kind, summary, occurred_at
		FROM activities
		WHERE company_id = ?
		ORDER BY occurred_at ASC, id COLLATE BINARY ASC
	`, companyID)
	if err != nil {
		return nil, wrapDBError("list activities", err)
	}
	return collectRows(rows, "activities", func(r scanner) (model.Activity, error) {
		var a model.Activity
		var kind, occurredAt string
		if err := r.Scan(&a.ID, &a.CompanyID, &a.DealID, &kind, &a.Summary, &occurredAt); err != nil {
			return model.Activity{}, err
		}
		k, err := model.ParseActivityKind(kind)
		if err != nil {
			return model.Activity{}, fmt.Errorf("activity %s: %w", a.ID, err)
		}
		a.Kind = k
		a.OccurredAt, err = parseTime(occurredAt)
		return a, err
	})
}
