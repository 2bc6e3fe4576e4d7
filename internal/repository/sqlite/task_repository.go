package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"task-server/internal/apperr"
	"task-server/internal/domain"
	"task-server/internal/query"
	"task-server/internal/repository"
)

const createTasksSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	owner_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
`

const taskColumns = `id, description, completed, owner_id, created_at, updated_at`

var taskSchema = tableSchema{
	"id":          {name: "id", kind: colText},
	"description": {name: "description", kind: colText},
	"completed":   {name: "completed", kind: colBool},
	"ownerId":     {name: "owner_id", kind: colText},
	"createdAt":   {name: "created_at", kind: colTime},
	"updatedAt":   {name: "updated_at", kind: colTime},
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksSchema); err != nil {
		return fmt.Errorf("create tasks schema: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (id, description, completed, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Description,
		boolToInt(task.Completed),
		task.OwnerID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return apperr.Storage("insert task", err)
	}
	return nil
}

func (r *TaskRepository) FindOne(ctx context.Context, filter repository.Filter) (*domain.Task, error) {
	where, args, err := compileWhere(taskSchema, filter, nil)
	if err != nil {
		return nil, apperr.Storage("compile task filter", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where, args...)
	return scanTask(row)
}

func (r *TaskRepository) Find(ctx context.Context, base repository.Filter, plan query.Plan) ([]domain.Task, error) {
	where, args, err := compileWhere(taskSchema, base, plan.Filter)
	if err != nil {
		return nil, apperr.Storage("compile task filter", err)
	}
	limit, limitArgs := compileLimit(plan)
	args = append(args, limitArgs...)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks`+where+compileOrder(taskSchema, plan.Sort)+limit,
		args...,
	)
	if err != nil {
		return nil, apperr.Storage("query tasks", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate tasks", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET description = ?, completed = ?, updated_at = ?
WHERE id = ?`,
		task.Description,
		boolToInt(task.Completed),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return apperr.Storage("update task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no task found with that ID")
	}
	return nil
}

func (r *TaskRepository) DeleteOne(ctx context.Context, filter repository.Filter) error {
	where, args, err := compileWhere(taskSchema, filter, nil)
	if err != nil {
		return apperr.Storage("compile task filter", err)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks`+where, args...)
	if err != nil {
		return apperr.Storage("delete task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no task found with that ID")
	}
	return nil
}

func (r *TaskRepository) DeleteMany(ctx context.Context, filter repository.Filter) error {
	where, args, err := compileWhere(taskSchema, filter, nil)
	if err != nil {
		return apperr.Storage("compile task filter", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks`+where, args...); err != nil {
		return apperr.Storage("delete tasks", err)
	}
	return nil
}

func scanTask(row interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var (
		task      domain.Task
		completed int
	)
	if err := row.Scan(
		&task.ID,
		&task.Description,
		&completed,
		&task.OwnerID,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("no task found with that ID")
		}
		return nil, apperr.Storage("scan task", err)
	}
	task.Completed = completed != 0
	return &task, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
