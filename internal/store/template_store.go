package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kmayer/taskflow/internal/model"
)

// defaultTemplateName and defaultTemplateSteps are seeded on first run.
const defaultTemplateName = "Standard Manufacturing Project"

var defaultTemplateSteps = []string{
	"Respond with clarifying questions",
	"Start design phase",
	"Contact suppliers for pricing",
	"Send CAD files and BOM",
	"Finalize revisions with customer",
	"Create pricing in MAP BOM Calculator",
	"Send QuickBooks quote",
	"Receive PO (update SO# and PO#)",
	"Create QuickBooks Sales Order",
	"Input into MAP MRP",
	"Order materials / Contact vendors",
	"Print BOM & create job traveller",
	"Manufacturing (tracked in MAP MRP)",
	"Ship and send tracking number",
}

// seedDefaultTemplate creates the built-in subtask template when the
// templates table is empty.
func (s *SQLiteStore) seedDefaultTemplate() error {
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM subtask_templates"); err != nil {
		return fmt.Errorf("counting templates: %w", err)
	}
	if count > 0 {
		return nil
	}

	data, err := json.Marshal(defaultTemplateSteps)
	if err != nil {
		return fmt.Errorf("marshaling default template: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO subtask_templates (id, name, template_data) VALUES (?, ?, ?)",
		uuid.New().String(), defaultTemplateName, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting default template: %w", err)
	}
	return nil
}

// GetTemplates lists all subtask templates.
func (s *SQLiteStore) GetTemplates(ctx context.Context) ([]model.SubtaskTemplate, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, name, template_data FROM subtask_templates ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var templates []model.SubtaskTemplate
	for rows.Next() {
		var (
			tpl  model.SubtaskTemplate
			data string
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &data); err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &tpl.Steps); err != nil {
				return nil, fmt.Errorf("unmarshaling template %s: %w", tpl.ID, err)
			}
		}
		templates = append(templates, tpl)
	}

	return templates, rows.Err()
}

// ApplyTemplate appends the template's steps to the task as ordered
// pending subtasks, after any existing ones. An empty templateID
// selects the default template.
func (s *SQLiteStore) ApplyTemplate(ctx context.Context, taskID, templateID string) error {
	var taskCount int
	if err := s.db.GetContext(ctx, &taskCount,
		"SELECT COUNT(*) FROM tasks WHERE id = ?", taskID); err != nil {
		return fmt.Errorf("checking task %s: %w", taskID, err)
	}
	if taskCount == 0 {
		return fmt.Errorf("task %s not found", taskID)
	}

	steps, err := s.templateSteps(ctx, templateID)
	if err != nil {
		return err
	}

	var maxOrder int
	if err := s.db.GetContext(ctx, &maxOrder,
		"SELECT COALESCE(MAX(sort_order), 0) FROM subtasks WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("getting max sort_order: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, step := range steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subtasks (id, task_id, title, status, sort_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), taskID, step, model.SubtaskPending, maxOrder+i+1, now,
		)
		if err != nil {
			return fmt.Errorf("inserting subtask %q: %w", step, err)
		}
	}

	return tx.Commit()
}

// templateSteps resolves the step list for a template id, or the
// default template when the id is empty.
func (s *SQLiteStore) templateSteps(ctx context.Context, templateID string) ([]string, error) {
	if templateID == "" {
		return defaultTemplateSteps, nil
	}

	var data string
	err := s.db.GetContext(ctx, &data,
		"SELECT template_data FROM subtask_templates WHERE id = ?", templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s not found", templateID)
		}
		return nil, fmt.Errorf("reading template %s: %w", templateID, err)
	}

	var steps []string
	if err := json.Unmarshal([]byte(data), &steps); err != nil {
		return nil, fmt.Errorf("unmarshaling template %s: %w", templateID, err)
	}
	return steps, nil
}

// GetSubtasks lists a task's subtasks in sort order.
func (s *SQLiteStore) GetSubtasks(ctx context.Context, taskID string) ([]model.Subtask, error) {
	var subtasks []model.Subtask
	err := s.db.SelectContext(ctx, &subtasks,
		"SELECT id, task_id, title, status, sort_order, created_at FROM subtasks WHERE task_id = ? ORDER BY sort_order",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying subtasks for %s: %w", taskID, err)
	}
	return subtasks, nil
}
