package persistence

import (
	"context"

	"social-publisher/domain/model"

	"gorm.io/gorm"
)

// PublishAttemptRepository writes the audit log through GORM (MySQL).
type PublishAttemptRepository struct {
	db *gorm.DB
}

func NewPublishAttemptRepository(db *gorm.DB) *PublishAttemptRepository {
	return &PublishAttemptRepository{db: db}
}

func (r *PublishAttemptRepository) Migrate() error {
	return r.db.AutoMigrate(&model.PublishAttempt{})
}

func (r *PublishAttemptRepository) Record(ctx context.Context, attempt *model.PublishAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *PublishAttemptRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.PublishAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var attempts []model.PublishAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}
