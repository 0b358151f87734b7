package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/salesmachine/internal/model"
)

// CreateCanvas creates a canvas for a company and makes owner its owner.
func (s *Store) CreateCanvas(ctx context.Context, companyID, title, owner string) (model.Canvas, error) {
	if strings.TrimSpace(title) == "" || owner == "" {
		return model.Canvas{}, fmt.Errorf("create canvas: title and owner are required")
	}
	c := model.Canvas{
		ID:        s.newID(),
		CompanyID: companyID,
		Title:     strings.TrimSpace(title),
		CreatedBy: owner,
		CreatedAt: s.now().UTC(),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO canvas (id, company_id, title, created_by, created_at) VALUES (?, ?, ?, ?, ?)
		`, c.ID, c.CompanyID, c.Title, c.CreatedBy, formatTime(c.CreatedAt))
		if err != nil {
			return wrapDBError("create canvas", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO canvas_permissions (canvas_id, user_id, role) VALUES (?, ?, 'owner')
		`, c.ID, owner)
		if err != nil {
			return wrapDBError("create canvas: owner", err)
		}
		return nil
	})
	if err != nil {
		return model.Canvas{}, err
	}
	return c, nil
}

// CanvasRole returns the role of user on a canvas, or ErrForbidden when the
// user has none.
func (s *Store) CanvasRole(ctx context.Context, canvasID, user string) (model.CanvasRole, error) {
	return canvasRole(ctx, s.db, canvasID, user)
}

func canvasRole(ctx context.Context, db execer, canvasID, user string) (model.CanvasRole, error) {
	var raw string
	err := db.QueryRowContext(ctx, `
		SELECT role FROM canvas_permissions WHERE canvas_id = ? AND user_id = ?
	`, canvasID, user).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("canvas %s: %s has no access: %w", canvasID, user, ErrForbidden)
	}
	if err != nil {
		return "", wrapDBError("canvas role", err)
	}
	return model.ParseCanvasRole(raw)
}

func requireRole(ctx context.Context, db execer, canvasID, user string, need model.CanvasRole) error {
	have, err := canvasRole(ctx, db, canvasID, user)
	if err != nil {
		return err
	}
	if !have.Allows(need) {
		return fmt.Errorf("canvas %s: %s is %s, needs %s: %w", canvasID, user, have, need, ErrForbidden)
	}
	return nil
}

// GrantCanvasRole sets the role of user. Only owners may grant, and a
// canvas always keeps at least one owner.
func (s *Store) GrantCanvasRole(ctx context.Context, canvasID, actor, user string, role model.CanvasRole) error {
	if !role.IsValid() {
		return fmt.Errorf("grant canvas role: %w", &model.EnumError{Type: "canvas role", Value: string(role)})
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, canvasID, actor, model.RoleOwner); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO canvas_permissions (canvas_id, user_id, role) VALUES (?, ?, ?)
			ON CONFLICT(canvas_id, user_id) DO UPDATE SET role = excluded.role
		`, canvasID, user, string(role))
		if err != nil {
			return wrapDBError("grant canvas role", err)
		}
		var owners int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM canvas_permissions WHERE canvas_id = ? AND role = 'owner'
		`, canvasID).Scan(&owners); err != nil {
			return wrapDBError("grant canvas role: owners", err)
		}
		if owners == 0 {
			return fmt.Errorf("canvas %s: %s is the last owner: %w", canvasID, user, ErrConflict)
		}
		return nil
	})
}

// CanvasPermissions lists the grants of a canvas.
func (s *Store) CanvasPermissions(ctx context.Context, canvasID string) ([]model.CanvasPermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT canvas_id, user_id, role FROM canvas_permissions
		WHERE canvas_id = ?
		ORDER BY user_id COLLATE BINARY ASC
	`, canvasID)
	if err != nil {
		return nil, wrapDBError("canvas permissions", err)
	}
	return collectRows(rows, "permissions", func(r scanner) (model.CanvasPermission, error) {
		var (
			p    model.CanvasPermission
			role string
		)
		if err := r.Scan(&p.CanvasID, &p.UserID, &role); err != nil {
			return model.CanvasPermission{}, err
		}
		var err error
		p.Role, err = model.ParseCanvasRole(role)
		return p, err
	})
}

// AddBlock appends a block to a canvas. Requires editor.
func (s *Store) AddBlock(ctx context.Context, canvasID, actor string, kind model.BlockKind, content string) (model.CanvasBlock, error) {
	if !kind.IsValid() {
		return model.CanvasBlock{}, fmt.Errorf("add block: %w", &model.EnumError{Type: "block kind", Value: string(kind)})
	}
	b := model.CanvasBlock{ID: s.newID(), CanvasID: canvasID, Kind: kind, Content: content}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, canvasID, actor, model.RoleEditor); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(position), 0) + 1 FROM canvas_blocks WHERE canvas_id = ?
		`, canvasID).Scan(&b.Position); err != nil {
			return wrapDBError("add block: position", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO canvas_blocks (id, canvas_id, position, kind, content) VALUES (?, ?, ?, ?, ?)
		`, b.ID, canvasID, b.Position, string(kind), content)
		if err != nil {
			return wrapDBError("add block", err)
		}
		return nil
	})
	if err != nil {
		return model.CanvasBlock{}, err
	}
	return b, nil
}

// UpdateBlock replaces a block's content. Requires editor.
func (s *Store) UpdateBlock(ctx context.Context, canvasID, actor, blockID, content string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, canvasID, actor, model.RoleEditor); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE canvas_blocks SET content = ? WHERE id = ? AND canvas_id = ?`,
			content, blockID, canvasID)
		if err != nil {
			return wrapDBError("update block", err)
		}
		return requireAffected(res, "update block "+blockID)
	})
}

// ListBlocks returns a canvas's blocks in position order. Requires viewer.
func (s *Store) ListBlocks(ctx context.Context, canvasID, actor string) ([]model.CanvasBlock, error) {
	if err := requireRole(ctx, s.db, canvasID, actor, model.RoleViewer); err != nil {
		return nil, err
	}
	return listBlocks(ctx, s.db, canvasID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listBlocks(ctx context.Context, db querier, canvasID string) ([]model.CanvasBlock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, canvas_id, position, kind, content FROM canvas_blocks
		WHERE canvas_id = ?
		ORDER BY position ASC
	`, canvasID)
	if err != nil {
		return nil, wrapDBError("list blocks", err)
	}
	return collectRows(rows, "blocks", func(r scanner) (model.CanvasBlock, error) {
		var (
			b    model.CanvasBlock
			kind string
		)
		if err := r.Scan(&b.ID, &b.CanvasID, &b.Position, &kind, &b.Content); err != nil {
			return model.CanvasBlock{}, err
		}
		var err error
		b.Kind, err = model.ParseBlockKind(kind)
		return b, err
	})
}

// SnapshotCanvas appends a version holding the canonical JSON of the canvas
// title and blocks. When nothing changed since the latest version, that
// version is returned and no row is written. Requires editor.
func (s *Store) SnapshotCanvas(ctx context.Context, canvasID, actor string) (model.CanvasVersion, error) {
	var v model.CanvasVersion
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, canvasID, actor, model.RoleEditor); err != nil {
			return err
		}
		var title string
		if err := tx.QueryRowContext(ctx, `SELECT title FROM canvas WHERE id = ?`, canvasID).Scan(&title); err != nil {
			return wrapDBError("snapshot canvas", err)
		}
		blocks, err := listBlocks(ctx, tx, canvasID)
		if err != nil {
			return err
		}

		items := make([]any, len(blocks))
		for i, b := range blocks {
			items[i] = map[string]any{
				"position": b.Position,
				"kind":     string(b.Kind),
				"content":  b.Content,
			}
		}
		snapshot, err := model.MarshalCanonical(map[string]any{"title": title, "blocks": items})
		if err != nil {
			return fmt.Errorf("snapshot canvas: %w", err)
		}
		hash := model.SnapshotHash(snapshot)

		latest, err := scanVersion(tx.QueryRowContext(ctx, `
			SELECT id, canvas_id, version, snapshot, hash, created_by, created_at
			FROM canvas_versions WHERE canvas_id = ?
			ORDER BY version DESC LIMIT 1
		`, canvasID))
		switch {
		case err == nil && latest.Hash == hash:
			v = latest
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return wrapDBError("snapshot canvas: latest", err)
		}

		v = model.CanvasVersion{
			ID:        s.newID(),
			CanvasID:  canvasID,
			Version:   latest.Version + 1,
			Snapshot:  string(snapshot),
			Hash:      hash,
			CreatedBy: actor,
			CreatedAt: s.now().UTC(),
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO canvas_versions (id, canvas_id, version, snapshot, hash, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, v.ID, v.CanvasID, v.Version, v.Snapshot, v.Hash, v.CreatedBy, formatTime(v.CreatedAt))
		if err != nil {
			return wrapDBError("snapshot canvas", err)
		}
		return nil
	})
	return v, err
}

// CanvasVersions returns every version of a canvas, oldest first. Requires viewer.
func (s *Store) CanvasVersions(ctx context.Context, canvasID, actor string) ([]model.CanvasVersion, error) {
	if err := requireRole(ctx, s.db, canvasID, actor, model.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canvas_id, version, snapshot, hash, created_by, created_at
		FROM canvas_versions WHERE canvas_id = ?
		ORDER BY version ASC
	`, canvasID)
	if err != nil {
		return nil, wrapDBError("canvas versions", err)
	}
	return collectRows(rows, "versions", scanVersion)
}

func scanVersion(row scanner) (model.CanvasVersion, error) {
	var (
		v    model.CanvasVersion
		when string
	)
	if err := row.Scan(&v.ID, &v.CanvasID, &v.Version, &v.Snapshot, &v.Hash, &v.CreatedBy, &when); err != nil {
		return model.CanvasVersion{}, err
	}
	var err error
	v.CreatedAt, err = parseTime(when)
	return v, err
}

// Comment adds a comment to a canvas, optionally anchored to one of its
// blocks. Requires commenter.
func (s *Store) Comment(ctx context.Context, canvasID, actor, blockID, body string) (model.CanvasComment, error) {
	if strings.TrimSpace(body) == "" {
		return model.CanvasComment{}, fmt.Errorf("comment: body is required")
	}
	c := model.CanvasComment{
		ID:        s.newID(),
		CanvasID:  canvasID,
		BlockID:   blockID,
		Author:    actor,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, canvasID, actor, model.RoleCommenter); err != nil {
			return err
		}
		if blockID != "" {
			var one int
			err := tx.QueryRowContext(ctx, `
				SELECT 1 FROM canvas_blocks WHERE id = ? AND canvas_id = ?
			`, blockID, canvasID).Scan(&one)
			if err != nil {
				return wrapDBError(fmt.Sprintf("comment: block %s on canvas %s", blockID, canvasID), err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO canvas_comments (id, canvas_id, block_id, author, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, c.CanvasID, nullString(c.BlockID), c.Author, c.Body, formatTime(c.CreatedAt))
		if err != nil {
			return wrapDBError("comment", err)
		}
		return nil
	})
	if err != nil {
		return model.CanvasComment{}, err
	}
	return c, nil
}

// ListComments returns a canvas's comments, oldest first. Requires viewer.
func (s *Store) ListComments(ctx context.Context, canvasID, actor string) ([]model.CanvasComment, error) {
	if err := requireRole(ctx, s.db, canvasID, actor, model.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canvas_id, COALESCE(block_id, ''), author, body, created_at
		FROM canvas_comments WHERE canvas_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, canvasID)
	if err != nil {
		return nil, wrapDBError("list comments", err)
	}
	return collectRows(rows, "comments", func(r scanner) (model.CanvasComment, error) {
		var (
			c    model.CanvasComment
			when string
		)
		if err := r.Scan(&c.ID, &c.CanvasID, &c.BlockID, &c.Author, &c.Body, &when); err != nil {
			return model.CanvasComment{}, err
		}
		var err error
		c.CreatedAt, err = parseTime(when)
		return c, err
	})
}
