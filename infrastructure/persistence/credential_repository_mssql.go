package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"social-publisher/domain/model"
)

type CredentialRepositoryMSSQL struct{ db *sql.DB }

func NewCredentialRepositoryMSSQL(db *sql.DB) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db}
}

func (r *CredentialRepositoryMSSQL) Upsert(ctx context.Context, rec *model.CredentialRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	identity, err := json.Marshal(rec.Identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	// MERGE upsert by (user_id, platform)
	q := `MERGE dbo.[credential_records] AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    access_token=@p3,
    refresh_token=@p4,
    expires_at=@p5,
    scopes=@p6,
    identity_json=@p7,
    updated_at=@p9
WHEN NOT MATCHED THEN
    INSERT (user_id, platform, access_token, refresh_token, expires_at, scopes, identity_json, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9);`
	_, err = r.db.ExecContext(ctx, q,
		rec.UserID, string(rec.Platform),
		rec.AccessTokenCipher,
		nullString(rec.RefreshTokenCipher),
		nullTime(rec.ExpiresAt),
		rec.Scopes,
		string(identity),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *CredentialRepositoryMSSQL) Get(ctx context.Context, userID string, platform model.Platform) (*model.CredentialRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, platform, access_token, refresh_token, expires_at, scopes, identity_json, created_at, updated_at FROM dbo.[credential_records] WHERE user_id=@p1 AND platform=@p2`, userID, string(platform))
	return scanCredential(row)
}
