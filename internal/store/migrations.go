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

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	job           TEXT NOT NULL DEFAULT '',
	field_id      TEXT NOT NULL DEFAULT '',
	value         TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	result        TEXT NOT NULL CHECK(result IN ('success', 'unstable', 'failure')),
	error         TEXT NOT NULL DEFAULT '',
	updated_count INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	failed_count  INTEGER NOT NULL DEFAULT 0,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_tickets (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	issue_key    TEXT NOT NULL,
	outcome      TEXT NOT NULL CHECK(outcome IN ('updated', 'skipped', 'failed')),
	reason       TEXT NOT NULL DEFAULT '',
	status_code  INTEGER NOT NULL DEFAULT 0,
	field_values TEXT NOT NULL DEFAULT '[]',
	error        TEXT NOT NULL DEFAULT '',
	position     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_job ON runs(job);
CREATE INDEX IF NOT EXISTS idx_run_tickets_run_id ON run_tickets(run_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_run_tickets_issue_key ON run_tickets(issue_key);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
