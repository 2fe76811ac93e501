package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kmayer/taskflow/internal/model"
)

const taskColumns = `id, title, description, customer_name, customer_email, company,
	so_number, po_number, quote_number, priority, due_date, status,
	source_email_id, created_at, updated_at`

// CreateTask inserts a new task. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	prepareTask(task)

	if _, err := s.db.ExecContext(ctx, insertTaskSQL, taskArgs(task)...); err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

const insertTaskSQL = `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// prepareTask fills in generated and defaulted fields before insert.
func prepareTask(task *model.Task) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.Status == "" {
		task.Status = model.StatusScheduled
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
}

func taskArgs(task *model.Task) []interface{} {
	var due interface{}
	if task.DueDate != nil {
		due = task.DueDate.UTC()
	}
	return []interface{}{
		task.ID, task.Title, task.Description,
		task.CustomerName, task.CustomerEmail, task.Company,
		task.SONumber, task.PONumber, task.QuoteNumber,
		task.Priority, due, task.Status,
		task.SourceEmailID, task.CreatedAt, task.UpdatedAt,
	}
}

// GetTaskByID retrieves a single task by ID, including its subtasks.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	subtasks, err := s.GetSubtasks(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Subtasks = subtasks

	return &task, nil
}

// GetTasks retrieves tasks matching the provided filter, ordered by due
// date (soonest first, undated last) then creation time descending.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions,
			"(title LIKE ? OR customer_name LIKE ? OR company LIKE ? OR po_number LIKE ? OR so_number LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q, q, q, q)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY due_date IS NULL, due_date ASC, created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTaskStatus sets a task's status and returns the previous one.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id, status string) (string, error) {
	var oldStatus string
	err := s.db.GetContext(ctx, &oldStatus, "SELECT status FROM tasks WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("task %s not found", id)
		}
		return "", fmt.Errorf("reading task %s status: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return "", fmt.Errorf("updating task %s status: %w", id, err)
	}

	return oldStatus, nil
}

// DeleteTask removes a task by ID. Cascades to subtasks.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// DeleteAllTasks removes every task and clears the processed-email
// ledger and scan log, so a rescan can recreate tasks from the mailbox.
func (s *SQLiteStore) DeleteAllTasks(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM tasks")
	if err != nil {
		return 0, fmt.Errorf("deleting tasks: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed_emails"); err != nil {
		return 0, fmt.Errorf("clearing processed emails: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM email_scan_logs"); err != nil {
		return 0, fmt.Errorf("clearing scan logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete-all: %w", err)
	}

	return int(deleted), nil
}

// FindThreadTask looks up an existing task belonging to the same email
// conversation: the title must contain titleSubstr case-insensitively
// and the customer email must match exactly. Returns nil when no task
// matches. An empty titleSubstr never matches; it would otherwise
// wildcard against every task.
func (s *SQLiteStore) FindThreadTask(ctx context.Context, titleSubstr, email string) (*model.Task, error) {
	if titleSubstr == "" {
		return nil, nil
	}

	row := s.db.QueryRowxContext(ctx,
		"SELECT "+taskColumns+` FROM tasks
		WHERE LOWER(title) LIKE ? AND customer_email = ?
		LIMIT 1`,
		"%"+strings.ToLower(titleSubstr)+"%", email,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding thread task: %w", err)
	}

	return &task, nil
}

// TasksCreatedSince lists tasks created at or after since, newest first.
func (s *SQLiteStore) TasksCreatedSince(ctx context.Context, since time.Time) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE created_at >= ? ORDER BY created_at DESC",
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// scanner abstracts sqlx.Row and sqlx.Rows for task scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTask scans one task row in taskColumns order.
func scanTask(row scanner) (model.Task, error) {
	var (
		task    model.Task
		dueDate sql.NullTime
	)

	err := row.Scan(
		&task.ID, &task.Title, &task.Description,
		&task.CustomerName, &task.CustomerEmail, &task.Company,
		&task.SONumber, &task.PONumber, &task.QuoteNumber,
		&task.Priority, &dueDate, &task.Status,
		&task.SourceEmailID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}

	return task, nil
}
