package repository

import (
	"context"

	"gorm.io/gorm"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/id"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = id.New()
	}
	return wrapErr(r.db.WithContext(ctx).Create(entry).Error, "audit log")
}

// ListByTarget returns the audit trail of one entity, oldest first.
func (r *AuditLogRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, wrapErr(err, "audit logs")
	}
	return out, nil
}

func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.AuditLog
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapErr(err, "audit logs")
	}
	return out, nil
}
