package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alibekd/taskboard/internal/model"
)

// ProjectRepo provides persistence for projects and their member sets.
type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

const projectColumns = "id, owner_id, name, description, visibility, created_at, updated_at"

// Create inserts a project and returns its ID.  The owner is not listed
// in project_members; ownership is its own policy tier.
func (r *ProjectRepo) Create(ctx context.Context, ownerID uint64, name, description, visibility string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO projects (owner_id, name, description, visibility) VALUES (?,?,?,?)",
		ownerID, name, description, visibility)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads a project together with its member ids, which the access
// policy needs as one tuple.
func (r *ProjectRepo) GetByID(ctx context.Context, id uint64) (model.Project, error) {
	var p model.Project
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Visibility, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, ErrNotFound
	}
	if err != nil {
		return model.Project{}, err
	}
	members, err := r.memberIDs(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	p.MemberIDs = members
	return p, nil
}

// Update changes name, description and visibility in one statement.
func (r *ProjectRepo) Update(ctx context.Context, id uint64, name, description, visibility string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE projects SET name=?, description=?, visibility=? WHERE id=?",
		name, description, visibility, id)
	return err
}

// Delete removes the project; member rows and tasks go with it via
// ON DELETE CASCADE.
func (r *ProjectRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM projects WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember inserts a membership row.  Adding an existing member is a
// no-op; a target user (or project) that does not exist trips the
// foreign key and maps to ErrNotFound.
func (r *ProjectRepo) AddMember(ctx context.Context, projectID, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO project_members (project_id, user_id) VALUES (?,?)",
		projectID, userID)
	if err != nil {
		lower := strings.ToLower(err.Error())
		switch {
		case strings.Contains(lower, "1062"): // already a member
			return nil
		case strings.Contains(lower, "1452"): // FK: no such user or project
			return ErrNotFound
		}
		return err
	}
	return nil
}

// RemoveMember deletes a membership row.  Removing a non-member is a no-op.
func (r *ProjectRepo) RemoveMember(ctx context.Context, projectID, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id=? AND user_id=?",
		projectID, userID)
	return err
}

// ListVisibleTo returns every project the principal can read: owned,
// public, or team projects they are a member of.  Admins see everything.
// The filter mirrors policy.CanAccess so listings and direct reads can
// never disagree.
func (r *ProjectRepo) ListVisibleTo(ctx context.Context, p model.Principal) ([]model.Project, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if p.Role == model.RoleAdmin {
		rows, err = r.DB.QueryContext(ctx,
			"SELECT "+projectColumns+" FROM projects ORDER BY id")
	} else {
		rows, err = r.DB.QueryContext(ctx,
			`SELECT `+projectColumns+` FROM projects
			 WHERE owner_id=? OR visibility='public'
			    OR (visibility='team' AND id IN (SELECT project_id FROM project_members WHERE user_id=?))
			 ORDER BY id`, p.ID, p.ID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var pr model.Project
		if err := rows.Scan(&pr.ID, &pr.OwnerID, &pr.Name, &pr.Description, &pr.Visibility, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) memberIDs(ctx context.Context, projectID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT user_id FROM project_members WHERE project_id=? ORDER BY user_id", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
