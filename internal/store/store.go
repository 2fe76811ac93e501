package store

import (
	"context"
	"time"

	"github.com/kmayer/taskflow/internal/model"
)

// TaskFilter controls filtering for task queries. Nil fields match
// everything.
type TaskFilter struct {
	Status   *string
	Priority *string
	Query    *string // search title, customer, company, PO/SO numbers
	Limit    int
}

// Store defines the persistence interface for tasks, the processed-email
// ledger, the scan log, subtask templates, and runtime settings.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) (oldStatus string, err error)
	DeleteTask(ctx context.Context, id string) error

	// DeleteAllTasks removes every task and clears the processed-email
	// ledger and scan log so a rescan can recreate tasks.
	DeleteAllTasks(ctx context.Context) (int, error)

	// FindThreadTask returns a task whose title contains titleSubstr
	// case-insensitively and whose customer email equals email exactly,
	// or nil when none matches.
	FindThreadTask(ctx context.Context, titleSubstr, email string) (*model.Task, error)

	// === Subtasks and templates ===

	GetSubtasks(ctx context.Context, taskID string) ([]model.Subtask, error)
	GetTemplates(ctx context.Context) ([]model.SubtaskTemplate, error)

	// ApplyTemplate appends the template's steps to the task as ordered
	// pending subtasks. An empty templateID selects the default template.
	ApplyTemplate(ctx context.Context, taskID, templateID string) error

	// === Scan ledger and log ===

	// IsProcessed reports whether a processed-email record exists for
	// the id. An empty id is always unprocessed: malformed messages
	// must never dedup against each other.
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// RecordScan atomically appends a scan log entry and, when
	// processed is non-nil, inserts the processed-email record.
	RecordScan(ctx context.Context, processed *model.ProcessedEmail, entry *model.ScanLogEntry) error

	// CreateTaskFromScan atomically creates the task, inserts the
	// processed-email record, and appends the scan log entry. A failure
	// partway rolls back all three.
	CreateTaskFromScan(ctx context.Context, task *model.Task, processed *model.ProcessedEmail, entry *model.ScanLogEntry) error

	GetScanLogs(ctx context.Context, limit int) ([]model.ScanLogEntry, error)
	ClearScanLogs(ctx context.Context) error

	// TasksCreatedSince lists tasks created at or after the given time,
	// newest first.
	TasksCreatedSince(ctx context.Context, since time.Time) ([]model.Task, error)

	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}
