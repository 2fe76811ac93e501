package model

import "time"

// Task priority levels. The scanner only ever assigns high or medium;
// low is reachable through manual edits.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task status constants.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusUrgent     = "urgent"
	StatusOverdue    = "overdue"
	StatusCompleted  = "completed"
)

// Task is a work item, created either from a scanned email or manually.
type Task struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerEmail string     `json:"customer_email" db:"customer_email"`
	Company       string     `json:"company" db:"company"`

	// SONumber is the sales order reference, PONumber the customer
	// purchase order, QuoteNumber the quote reference. Empty when the
	// email carried none.
	SONumber    string `json:"so_number" db:"so_number"`
	PONumber    string `json:"po_number" db:"po_number"`
	QuoteNumber string `json:"quote_number" db:"quote_number"`

	Priority string     `json:"priority" db:"priority"`
	DueDate  *time.Time `json:"due_date,omitempty" db:"due_date"`
	Status   string     `json:"status" db:"status"`

	// SourceEmailID is the Message-ID of the email this task was
	// created from; empty for manually created tasks.
	SourceEmailID string `json:"source_email_id" db:"source_email_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Subtasks is populated by queries that join with subtasks.
	Subtasks []Subtask `json:"subtasks,omitempty" db:"-"`
}

// Subtask status constants.
const (
	SubtaskPending   = "pending"
	SubtaskCompleted = "completed"
)

// Subtask is an ordered checklist entry within a task. Its lifecycle is
// bound to the parent task (CASCADE delete).
type Subtask struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Title     string    `json:"title" db:"title"`
	Status    string    `json:"status" db:"status"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SubtaskTemplate is a reusable ordered list of subtask titles for
// quick task setup.
type SubtaskTemplate struct {
	ID    string   `json:"id" db:"id"`
	Name  string   `json:"name" db:"name"`
	Steps []string `json:"steps" db:"-"`
}
