package repository

import (
	"context"

	"social-publisher/domain/model"
)

// ICredential persists encrypted platform grants keyed by (user, platform).
type ICredential interface {
	// Upsert replaces any record for the same (UserID, Platform).
	Upsert(ctx context.Context, rec *model.CredentialRecord) error
	// Get returns apperror.ErrNotFound when nothing is stored.
	Get(ctx context.Context, userID string, platform model.Platform) (*model.CredentialRecord, error)
}
