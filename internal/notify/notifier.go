// Package notify delivers best-effort task notifications to an external
// chat channel. Failures are reported to the caller for logging, never
// retried, and never escalate into scan failures.
package notify

import (
	"context"

	"github.com/kmayer/taskflow/internal/model"
)

// Notifier sends task event notifications. Implementations are
// fire-and-forget: an error means the message did not go out, nothing
// more.
type Notifier interface {
	// Configured reports whether the channel has enough configuration
	// to send anything.
	Configured(ctx context.Context) bool

	// NotifyNewTask announces a freshly created task.
	NotifyNewTask(ctx context.Context, task model.Task) error

	// NotifyStatusChange announces a task status transition.
	NotifyStatusChange(ctx context.Context, task model.Task, oldStatus string) error
}

// Nop is a Notifier that silently drops everything. Used when no
// channel is configured.
type Nop struct{}

func (Nop) Configured(context.Context) bool { return false }

func (Nop) NotifyNewTask(context.Context, model.Task) error { return nil }

func (Nop) NotifyStatusChange(context.Context, model.Task, string) error { return nil }
