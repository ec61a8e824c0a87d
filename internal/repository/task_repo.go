package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskflow/internal/model"
	"taskflow/pkg/metrics"
)

// TaskFilter narrows and orders a task listing. All filter terms are optional
// and AND-combined; the owner id is always applied by the query itself.
type TaskFilter struct {
	Status   *model.Status
	Priority *model.Priority
	Search   string
	SortBy   string // validated against sortColumns before use
	SortDesc bool
	Limit    int
	Offset   int
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *model.Status
	Priority    *model.Priority
	DueDate     *time.Time
}

// sortColumns whitelists ORDER BY targets; anything else falls back to created_at.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"priority":   "priority",
	"title":      "title",
}

const taskColumns = `id, user_id, title, description, status, priority, due_date, completed_at, created_at, updated_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create inserts a task for its owner and fills in store-assigned fields.
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	start := time.Now()
	query := `
        INSERT INTO tasks (user_id, title, description, status, priority, due_date, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.UserID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CompletedAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert task", zap.Int64("user_id", t.UserID), zap.Error(err))
		return err
	}
	metrics.RecordDBQueryDuration("insert", "tasks", time.Since(start))
	return nil
}

// FindByID returns the task only when it belongs to userID.
func (r *TaskRepository) FindByID(ctx context.Context, id, userID int64) (*model.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 AND user_id = $2`, taskColumns)
	return r.scanTask(r.db.QueryRow(ctx, query, id, userID))
}

// List returns one page of the user's tasks plus the unpaged total.
func (r *TaskRepository) List(ctx context.Context, userID int64, f TaskFilter) ([]model.Task, int64, error) {
	start := time.Now()

	where := []string{"user_id = $1"}
	args := []any{userID}

	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != nil {
		args = append(args, *f.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM tasks WHERE " + cond
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("failed to count tasks", zap.Int64("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	sortCol, ok := sortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	args = append(args, f.Limit)
	limitIdx := len(args)
	args = append(args, f.Offset)
	offsetIdx := len(args)

	pageQuery := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE %s ORDER BY %s %s, id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, cond, sortCol, dir, limitIdx, offsetIdx,
	)

	rows, err := r.db.Query(ctx, pageQuery, args...)
	if err != nil {
		r.logger.Error("failed to query tasks", zap.Int64("user_id", userID), zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := scanTaskFields(rows, &t); err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	metrics.RecordDBQueryDuration("list", "tasks", time.Since(start))
	return tasks, total, nil
}

// Update applies a partial update scoped to the owner and returns the new row.
// completed_at tracks status: set on entering completed (keeping the original
// stamp when already completed), cleared on leaving it.
func (r *TaskRepository) Update(ctx context.Context, id, userID int64, p TaskPatch) (*model.Task, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}

	if p.Title != nil {
		args = append(args, *p.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if p.Description != nil {
		args = append(args, *p.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if p.Status != nil {
		args = append(args, *p.Status)
		n := len(args)
		sets = append(sets, fmt.Sprintf("status = $%d", n))
		sets = append(sets, fmt.Sprintf(
			"completed_at = CASE WHEN $%d::text = 'completed' THEN COALESCE(completed_at, now()) ELSE NULL END", n))
	}
	if p.Priority != nil {
		args = append(args, *p.Priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}
	if p.DueDate != nil {
		args = append(args, *p.DueDate)
		sets = append(sets, fmt.Sprintf("due_date = $%d", len(args)))
	}

	args = append(args, id)
	idIdx := len(args)
	args = append(args, userID)
	userIdx := len(args)

	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), idIdx, userIdx, taskColumns,
	)
	return r.scanTask(r.db.QueryRow(ctx, query, args...))
}

// Delete removes the task when owned by userID.
func (r *TaskRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.Error("failed to delete task", zap.Int64("task_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes the caller's tasks among ids; foreign ids simply match
// nothing.
func (r *TaskRepository) DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		r.logger.Error("failed to bulk delete tasks", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateMany applies status and/or priority to the caller's tasks among ids.
func (r *TaskRepository) UpdateMany(ctx context.Context, userID int64, ids []int64, status *model.Status, priority *model.Priority) (int64, error) {
	sets := []string{"updated_at = now()"}
	args := []any{userID, ids}

	if status != nil {
		args = append(args, *status)
		n := len(args)
		sets = append(sets, fmt.Sprintf("status = $%d", n))
		sets = append(sets, fmt.Sprintf(
			"completed_at = CASE WHEN $%d::text = 'completed' THEN COALESCE(completed_at, now()) ELSE NULL END", n))
	}
	if priority != nil {
		args = append(args, *priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}

	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE user_id = $1 AND id = ANY($2)`,
		strings.Join(sets, ", "),
	)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to bulk update tasks", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Stats aggregates the user's counts in one pass. Overdue is evaluated
// against the database clock at query time.
func (r *TaskRepository) Stats(ctx context.Context, userID int64) (*model.TaskStats, error) {
	start := time.Now()
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'pending'),
            COUNT(*) FILTER (WHERE status = 'in_progress'),
            COUNT(*) FILTER (WHERE status = 'completed'),
            COUNT(*) FILTER (WHERE due_date IS NOT NULL AND due_date < now() AND status <> 'completed')
        FROM tasks
        WHERE user_id = $1
    `
	var s model.TaskStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.Total, &s.Pending, &s.InProgress, &s.Completed, &s.Overdue,
	)
	if err != nil {
		r.logger.Error("failed to aggregate task stats", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	metrics.RecordDBQueryDuration("stats", "tasks", time.Since(start))
	return &s, nil
}

func (r *TaskRepository) scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	if err := scanTaskFields(row, &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to scan task row", zap.Error(err))
		return nil, err
	}
	return &t, nil
}

func scanTaskFields(row pgx.Row, t *model.Task) error {
	return row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
