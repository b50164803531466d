package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. The DDL sticks to
// the subset shared by SQLite and PostgreSQL.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'todo'
		CHECK(status IN ('backlog', 'todo', 'in_progress', 'review', 'done')),
	priority     TEXT NOT NULL DEFAULT 'medium'
		CHECK(priority IN ('low', 'medium', 'high', 'urgent')),
	due_date     TEXT,
	created_by   TEXT NOT NULL DEFAULT '',
	metadata     TEXT,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_log (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	task_id      TEXT,
	user_id      TEXT,
	action       TEXT NOT NULL,
	entity_type  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_workspace_id ON tasks(workspace_id);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
CREATE INDEX IF NOT EXISTS idx_activity_action_created ON activity_log(action, created_at);
CREATE INDEX IF NOT EXISTS idx_activity_task_id ON activity_log(task_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS integrations (
	id           TEXT PRIMARY KEY,
	provider     TEXT NOT NULL,
	tenant_id    TEXT NOT NULL,
	site_host    TEXT NOT NULL DEFAULT '',
	workspace_id TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	UNIQUE(provider, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_integrations_host ON integrations(provider, site_host);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
