package scan

import "github.com/kmayer/taskflow/internal/model"

// Result aggregates the outcome of one scan run. Callers always receive
// a Result; expected conditions (no trigger match, marketing mail,
// duplicates) are counters, never errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	TasksCreated     int `json:"tasks_created"`
	EmailsScanned    int `json:"emails_scanned"`
	SkippedMarketing int `json:"skipped_marketing"`
	SkippedNoTrigger int `json:"skipped_no_trigger"`
	SkippedDuplicate int `json:"skipped_duplicate"`

	// Errors lists per-message failures that were recovered from.
	// Always non-nil; empty when every message was processed cleanly.
	Errors []string `json:"errors"`

	// Created holds the tasks this run created, in creation order. The
	// scheduler notifies from this exact list rather than re-querying
	// recently created tasks.
	Created []model.Task `json:"-"`
}

// failure builds a short-circuit result for a run that could not start.
func failure(message string) Result {
	return Result{
		Success: false,
		Message: message,
		Errors:  []string{},
	}
}
