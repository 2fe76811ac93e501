package scan

import (
	"context"

	"github.com/kmayer/taskflow/internal/model"
	"github.com/kmayer/taskflow/internal/store"
)

// ThreadMatcher decides whether an email belongs to a conversation that
// already produced a task. It is a pluggable strategy: the default is a
// title-substring heuristic, and a smarter correlation (e.g. mail
// thread headers) can be substituted without touching the scanner.
type ThreadMatcher interface {
	// Match returns the existing task for the thread, or nil when the
	// email starts a new conversation.
	Match(ctx context.Context, normalizedSubject, customerEmail string) (*model.Task, error)
}

// titleMatcher matches a thread when an existing task's title contains
// the normalized subject case-insensitively and the customer email is
// identical. This is a deliberately approximate heuristic: unrelated
// tasks with overlapping titles from the same sender will collide.
type titleMatcher struct {
	store store.Store
}

// NewTitleThreadMatcher returns the default store-backed thread
// matcher.
func NewTitleThreadMatcher(s store.Store) ThreadMatcher {
	return &titleMatcher{store: s}
}

func (m *titleMatcher) Match(ctx context.Context, normalizedSubject, customerEmail string) (*model.Task, error) {
	// An empty subject must not wildcard-match every task.
	if normalizedSubject == "" {
		return nil, nil
	}
	return m.store.FindThreadTask(ctx, normalizedSubject, customerEmail)
}
