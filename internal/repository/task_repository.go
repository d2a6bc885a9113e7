package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alibekd/taskboard/internal/model"
)

// TaskRepo provides persistence for the `tasks` table.  Tasks carry no
// visibility of their own; access control always goes through the parent
// project's tuple.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

const taskColumns = "id, project_id, title, description, status, assignee_id, created_at, updated_at"

// Create inserts a task and returns its ID.
func (r *TaskRepo) Create(ctx context.Context, projectID uint64, title, description, status string, assigneeID *uint64) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tasks (project_id, title, description, status, assignee_id) VALUES (?,?,?,?,?)",
		projectID, title, description, status, assigneeID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a task by id.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	var (
		t        model.Task
		assignee sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &assignee, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	if assignee.Valid {
		v := uint64(assignee.Int64)
		t.AssigneeID = &v
	}
	return t, nil
}

// ListByProject returns all tasks in a project.
func (r *TaskRepo) ListByProject(ctx context.Context, projectID uint64) ([]model.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE project_id=? ORDER BY id", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var (
			t        model.Task
			assignee sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &assignee, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if assignee.Valid {
			v := uint64(assignee.Int64)
			t.AssigneeID = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update changes title, description, status and assignee in one statement.
func (r *TaskRepo) Update(ctx context.Context, id uint64, title, description, status string, assigneeID *uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET title=?, description=?, status=?, assignee_id=? WHERE id=?",
		title, description, status, assigneeID, id)
	return err
}

// Delete removes a task.
func (r *TaskRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
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
