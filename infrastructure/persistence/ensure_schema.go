package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var postgresSchema = []struct {
	name string
	ddl  string
}{
	{"credential_records", `CREATE TABLE IF NOT EXISTS credential_records (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NULL,
		expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		identity TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform)
	)`},
	{"scheduled_tasks", `CREATE TABLE IF NOT EXISTS scheduled_tasks (
		task_id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		target_id VARCHAR(128) NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		hashtags TEXT NOT NULL DEFAULT '[]',
		media TEXT NOT NULL DEFAULT '[]',
		schedule_time TIMESTAMPTZ NOT NULL,
		cron_expression VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		result_post_id VARCHAR(255) NULL,
		error_message TEXT NULL,
		executed_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`},
	{"idx_scheduled_tasks_user", `CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_user ON scheduled_tasks (user_id, created_at DESC)`},
	{"idx_scheduled_tasks_status", `CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_status ON scheduled_tasks (status, schedule_time)`},
}

// EnsureSchema creates the credential and task tables on PostgreSQL when missing.
func EnsureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range postgresSchema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}
