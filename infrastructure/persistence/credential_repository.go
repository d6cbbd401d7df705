package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
)

// CredentialRepository stores encrypted grants in PostgreSQL.
type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) *CredentialRepository { return &CredentialRepository{db: db} }

func (r *CredentialRepository) Upsert(ctx context.Context, rec *model.CredentialRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	identity, err := json.Marshal(rec.Identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	q := `INSERT INTO credential_records (user_id, platform, access_token, refresh_token, expires_at, scopes, identity, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			identity=EXCLUDED.identity,
			updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, rec.UserID, string(rec.Platform), rec.AccessTokenCipher, nullString(rec.RefreshTokenCipher),
		nullTime(rec.ExpiresAt), rec.Scopes, string(identity), rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *CredentialRepository) Get(ctx context.Context, userID string, platform model.Platform) (*model.CredentialRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, platform, access_token, refresh_token, expires_at, scopes, identity, created_at, updated_at FROM credential_records WHERE user_id=$1 AND platform=$2`, userID, string(platform))
	return scanCredential(row)
}

func scanCredential(row *sql.Row) (*model.CredentialRecord, error) {
	rec := &model.CredentialRecord{}
	var platform, identity string
	var refresh sql.NullString
	var exp sql.NullTime
	if err := row.Scan(&rec.ID, &rec.UserID, &platform, &rec.AccessTokenCipher, &refresh, &exp, &rec.Scopes, &identity, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("credential not found")
		}
		return nil, err
	}
	rec.Platform = model.Platform(platform)
	if refresh.Valid {
		v := refresh.String
		rec.RefreshTokenCipher = &v
	}
	if exp.Valid {
		t := exp.Time
		rec.ExpiresAt = &t
	}
	if identity != "" {
		if err := json.Unmarshal([]byte(identity), &rec.Identity); err != nil {
			return nil, fmt.Errorf("unmarshal identity: %w", err)
		}
	}
	return rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
