// Package tasks wraps store-level task maintenance with the side
// effects the store itself must not own, such as status-change
// notifications.
package tasks

import (
	"context"

	"go.uber.org/zap"

	"github.com/kmayer/taskflow/internal/model"
	"github.com/kmayer/taskflow/internal/notify"
	"github.com/kmayer/taskflow/internal/store"
)

// Service performs task maintenance operations.
type Service struct {
	store    store.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewService creates a task service.
func NewService(st store.Store, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{store: st, notifier: notifier, logger: logger}
}

// UpdateStatus transitions a task to the given status and announces the
// change on the notification channel. Notification failures are logged,
// never returned: the status update already happened.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*model.Task, error) {
	oldStatus, err := s.store.UpdateTaskStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	task, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if oldStatus != status && s.notifier.Configured(ctx) {
		if nerr := s.notifier.NotifyStatusChange(ctx, *task, oldStatus); nerr != nil {
			s.logger.Warn("status-change notification failed",
				zap.String("task_id", id), zap.Error(nerr))
		}
	}

	return task, nil
}

// ApplyTemplate appends a subtask template's steps to a task. An empty
// templateID selects the default template.
func (s *Service) ApplyTemplate(ctx context.Context, taskID, templateID string) error {
	return s.store.ApplyTemplate(ctx, taskID, templateID)
}

// DeleteAll removes every task and resets the scan state so the mailbox
// can be rescanned from scratch.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	return s.store.DeleteAllTasks(ctx)
}
