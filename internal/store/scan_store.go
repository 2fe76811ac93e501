package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kmayer/taskflow/internal/model"
)

// IsProcessed reports whether a processed-email record exists for the
// given message id. An empty id is always unprocessed: malformed
// messages carry no usable identity and must never dedup against each
// other.
func (s *SQLiteStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM processed_emails WHERE message_id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("checking processed email: %w", err)
	}

	return count > 0, nil
}

// RecordScan appends a scan log entry and, when processed is non-nil,
// inserts the processed-email record, in one transaction.
func (s *SQLiteStore) RecordScan(
	ctx context.Context,
	processed *model.ProcessedEmail,
	entry *model.ScanLogEntry,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if processed != nil {
		if err := insertProcessed(ctx, tx, processed); err != nil {
			return err
		}
	}
	if err := insertScanLog(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateTaskFromScan creates the task, inserts the processed-email
// record, and appends the scan log entry as one atomic unit. A failure
// partway rolls back everything, so a task never exists without its
// processed-record or vice versa.
func (s *SQLiteStore) CreateTaskFromScan(
	ctx context.Context,
	task *model.Task,
	processed *model.ProcessedEmail,
	entry *model.ScanLogEntry,
) error {
	prepareTask(task)
	entry.TaskID = task.ID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertTaskSQL, taskArgs(task)...); err != nil {
		return fmt.Errorf("creating task from scan: %w", err)
	}
	if err := insertProcessed(ctx, tx, processed); err != nil {
		return err
	}
	if err := insertScanLog(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// insertProcessed inserts the processed-email record idempotently.
func insertProcessed(ctx context.Context, tx *sqlx.Tx, rec *model.ProcessedEmail) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_emails (message_id, folder, processed_at) VALUES (?, ?, ?)",
		rec.MessageID, rec.Folder, rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("recording processed email: %w", err)
	}
	return nil
}

func insertScanLog(ctx context.Context, tx *sqlx.Tx, entry *model.ScanLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ScanTime.IsZero() {
		entry.ScanTime = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO email_scan_logs (id, scan_time, message_id, subject, from_address, result, reason, task_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ScanTime, entry.MessageID, entry.Subject,
		entry.FromAddress, entry.Result, entry.Reason, entry.TaskID,
	)
	if err != nil {
		return fmt.Errorf("appending scan log: %w", err)
	}
	return nil
}

// GetScanLogs lists scan log entries, newest first.
func (s *SQLiteStore) GetScanLogs(ctx context.Context, limit int) ([]model.ScanLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []model.ScanLogEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT id, scan_time, message_id, subject, from_address, result, reason, task_id FROM email_scan_logs ORDER BY scan_time DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying scan logs: %w", err)
	}

	return entries, nil
}

// ClearScanLogs deletes every scan log entry.
func (s *SQLiteStore) ClearScanLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM email_scan_logs"); err != nil {
		return fmt.Errorf("clearing scan logs: %w", err)
	}
	return nil
}
