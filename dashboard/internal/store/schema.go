package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hazyhaar/devlens/dbopen"
)

// Schema is written for SQLite. Timestamps are unix milliseconds; JSON
// columns hold encoded text.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                TEXT PRIMARY KEY,
    email             TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    password_hash     TEXT NOT NULL,
    api_key           TEXT NOT NULL UNIQUE,
    subscription_tier TEXT NOT NULL DEFAULT 'free',
    created_at        BIGINT NOT NULL,
    updated_at        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name       TEXT NOT NULL,
    domains    TEXT NOT NULL DEFAULT '[]',
    local_path TEXT NOT NULL DEFAULT '',
    api_key    TEXT NOT NULL UNIQUE,
    is_active  INTEGER NOT NULL DEFAULT 1,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, created_at);

CREATE TABLE IF NOT EXISTS feedbacks (
    id               TEXT PRIMARY KEY,
    project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    page_url         TEXT NOT NULL,
    page_title       TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL,
    element_selector TEXT NOT NULL DEFAULT '',
    element_tag_name TEXT NOT NULL DEFAULT '',
    element_box      TEXT NOT NULL DEFAULT '',
    element          TEXT NOT NULL DEFAULT '',
    console_errors   TEXT NOT NULL DEFAULT '[]',
    browser_info     TEXT NOT NULL DEFAULT '{}',
    status           TEXT NOT NULL DEFAULT 'pending',
    priority         TEXT NOT NULL DEFAULT 'medium',
    resolution_note  TEXT NOT NULL DEFAULT '',
    created_at       BIGINT NOT NULL,
    updated_at       BIGINT NOT NULL,
    resolved_at      BIGINT
);
CREATE INDEX IF NOT EXISTS idx_feedbacks_user ON feedbacks(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_feedbacks_project ON feedbacks(project_id, status);

CREATE TABLE IF NOT EXISTS screenshots (
    feedback_id  TEXT PRIMARY KEY REFERENCES feedbacks(id) ON DELETE CASCADE,
    content_type TEXT NOT NULL,
    data         BLOB NOT NULL
);
`

// SchemaFor returns Schema adjusted for driver.
func SchemaFor(driver string) string {
	if driver == dbopen.Postgres {
		return strings.ReplaceAll(Schema, " BLOB ", " BYTEA ")
	}
	return Schema
}

// ApplySchema creates all tables and indexes. Statements are executed one
// by one so that drivers without multi-statement support work too.
func ApplySchema(db *sql.DB, driver string) error {
	for _, stmt := range strings.Split(SchemaFor(driver), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}
