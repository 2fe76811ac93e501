package model

import "time"

// ProcessedEmail marks a message as already handled so later scans skip
// it. Existence of a record does not imply a task was created: marketing
// and thread-duplicate messages are recorded here too.
type ProcessedEmail struct {
	MessageID   string    `json:"message_id" db:"message_id"`
	Folder      string    `json:"folder" db:"folder"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}

// Scan log result constants.
const (
	ScanResultCreated          = "created"
	ScanResultSkippedMarketing = "skipped_marketing"
	ScanResultSkippedNoTrigger = "skipped_no_trigger"
	ScanResultSkippedDuplicate = "skipped_duplicate"
	ScanResultSkippedThread    = "skipped_thread"
)

// ScanLogEntry is one append-only audit record of a per-message scan
// decision.
type ScanLogEntry struct {
	ID          string    `json:"id" db:"id"`
	ScanTime    time.Time `json:"scan_time" db:"scan_time"`
	MessageID   string    `json:"message_id" db:"message_id"`
	Subject     string    `json:"subject" db:"subject"`
	FromAddress string    `json:"from_address" db:"from_address"`
	Result      string    `json:"result" db:"result"`
	Reason      string    `json:"reason" db:"reason"`

	// TaskID back-references the task this entry created or matched;
	// empty for skips without an associated task.
	TaskID string `json:"task_id" db:"task_id"`
}
