package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureSchemaMSSQL creates the credential and task tables for SQL Server if they do not exist.
func EnsureSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createIfMissing := func(table, ddl string) error {
		q := fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.%s') AND type in (N'U'))
BEGIN
%s
END`, table, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create %s (mssql): %w", table, err)
		}
		return nil
	}

	if err := createIfMissing("credential_records", `    CREATE TABLE dbo.[credential_records] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NULL,
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL,
        identity_json NVARCHAR(MAX) NOT NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_credential_records_user_platform ON dbo.[credential_records](user_id, platform);`); err != nil {
		return err
	}
	return createIfMissing("scheduled_tasks", `    CREATE TABLE dbo.[scheduled_tasks] (
        task_id NVARCHAR(64) NOT NULL PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        target_id NVARCHAR(128) NOT NULL,
        title NVARCHAR(MAX) NOT NULL,
        description NVARCHAR(MAX) NOT NULL,
        hashtags NVARCHAR(MAX) NOT NULL,
        media NVARCHAR(MAX) NOT NULL,
        schedule_time DATETIME2 NOT NULL,
        cron_expression NVARCHAR(64) NOT NULL,
        status NVARCHAR(16) NOT NULL,
        result_post_id NVARCHAR(255) NULL,
        error_message NVARCHAR(MAX) NULL,
        executed_at DATETIME2 NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE INDEX IX_scheduled_tasks_user ON dbo.[scheduled_tasks](user_id, created_at);
    CREATE INDEX IX_scheduled_tasks_status ON dbo.[scheduled_tasks](status, schedule_time);`)
}
