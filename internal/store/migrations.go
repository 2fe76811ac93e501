package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	customer_name   TEXT NOT NULL DEFAULT '',
	customer_email  TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL DEFAULT '',
	so_number       TEXT NOT NULL DEFAULT '',
	po_number       TEXT NOT NULL DEFAULT '',
	quote_number    TEXT NOT NULL DEFAULT '',
	priority        TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('high', 'medium', 'low')),
	due_date        DATETIME,
	status          TEXT NOT NULL DEFAULT 'scheduled',
	source_email_id TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS subtasks (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'completed')),
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS subtask_templates (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	template_data TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS processed_emails (
	message_id   TEXT PRIMARY KEY,
	folder       TEXT NOT NULL DEFAULT '',
	processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS email_scan_logs (
	id           TEXT PRIMARY KEY,
	scan_time    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	message_id   TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	from_address TEXT NOT NULL DEFAULT '',
	result       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	task_id      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_customer_email ON tasks(customer_email);
CREATE INDEX IF NOT EXISTS idx_subtasks_task_id ON subtasks(task_id);
CREATE INDEX IF NOT EXISTS idx_scan_logs_scan_time ON email_scan_logs(scan_time);
CREATE INDEX IF NOT EXISTS idx_scan_logs_message_id ON email_scan_logs(message_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
