package store

import "fmt"

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// taskTableDDL is shared by the active and archived collections, which have
// identical shapes. AUTOINCREMENT keeps local ids from ever being reused.
const taskTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	local_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	remote_id        TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL CHECK(length(trim(title)) > 0),
	category         TEXT NOT NULL DEFAULT 'Other',
	priority         TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('low', 'medium', 'high')),
	due_date         TEXT,
	status           TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'inprogress', 'completed')),
	sync_status      TEXT NOT NULL DEFAULT 'pending' CHECK(sync_status IN ('pending', 'synced', 'error')),
	updated_at       DATETIME NOT NULL,
	origin_remote_id TEXT NOT NULL DEFAULT '',
	sync_attempts    INTEGER NOT NULL DEFAULT 0,
	last_attempt_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_remote_id ON %[1]s(remote_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_category ON %[1]s(category);
CREATE INDEX IF NOT EXISTS idx_%[1]s_due_date ON %[1]s(due_date);
CREATE INDEX IF NOT EXISTS idx_%[1]s_priority ON %[1]s(priority);
CREATE INDEX IF NOT EXISTS idx_%[1]s_status ON %[1]s(status);
CREATE INDEX IF NOT EXISTS idx_%[1]s_updated_at ON %[1]s(updated_at);
CREATE INDEX IF NOT EXISTS idx_%[1]s_sync_status ON %[1]s(sync_status);
`

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
` + fmt.Sprintf(taskTableDDL, tableTasks) + fmt.Sprintf(taskTableDDL, tableArchived) + `
INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	collection  TEXT NOT NULL DEFAULT '',
	local_id    INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL,
	read        INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS time_blocks (
	id         TEXT PRIMARY KEY,
	remote_id  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL,
	date       TEXT NOT NULL,
	time       TEXT NOT NULL,
	duration   TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'focus',
	completed  INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	task_ids   TEXT NOT NULL DEFAULT '[]',
	synced     INTEGER NOT NULL DEFAULT 0 CHECK(synced IN (0, 1)),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_time_blocks_date ON time_blocks(date);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
