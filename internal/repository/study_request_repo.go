package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/id"
)

type StudyRequestRepository struct {
	db *gorm.DB
}

func NewStudyRequestRepository(db *gorm.DB) *StudyRequestRepository {
	return &StudyRequestRepository{db: db}
}

type StudyFilter struct {
	ClientID     string
	ConsultantID string
	Unclaimed    bool
	Statuses     []domain.StudyStatus
}

func (r *StudyRequestRepository) Create(ctx context.Context, s *domain.StudyRequest) error {
	if s.ID == "" {
		s.ID = id.New()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	s.Attachments = nonNil(s.Attachments)
	s.Deliverables = nonNil(s.Deliverables)
	return wrapErr(r.db.WithContext(ctx).Create(s).Error, "study request")
}

func (r *StudyRequestRepository) GetByID(ctx context.Context, studyID string) (*domain.StudyRequest, error) {
	var s domain.StudyRequest
	if err := r.db.WithContext(ctx).Where("id = ?", studyID).First(&s).Error; err != nil {
		return nil, wrapErr(err, "study request")
	}
	return &s, nil
}

// UpdateCAS persists the workflow fields of s guarded by its version.
func (r *StudyRequestRepository) UpdateCAS(ctx context.Context, s *domain.StudyRequest, expected int64) error {
	deliverables, err := json.Marshal(nonNil(s.Deliverables))
	if err != nil {
		return fmt.Errorf("%w: encode deliverables: %w", domain.ErrValidation, err)
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.StudyRequest{}).
		Where("id = ? AND version = ?", s.ID, expected).
		Updates(map[string]interface{}{
			"consultant_id":    s.ConsultantID,
			"status":           s.Status,
			"price":            s.Price,
			"duration_days":    s.DurationDays,
			"deliverables":     string(deliverables),
			"rejection_reason": s.RejectionReason,
			"quoted_at":        s.QuotedAt,
			"approved_at":      s.ApprovedAt,
			"completed_at":     s.CompletedAt,
			"version":          expected + 1,
			"updated_at":       now,
		})
	if res.Error != nil {
		return wrapErr(res.Error, "study request")
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&domain.StudyRequest{}).Where("id = ?", s.ID).Count(&n).Error; err != nil {
			return wrapErr(err, "study request")
		}
		if n == 0 {
			return wrapErr(gorm.ErrRecordNotFound, "study request")
		}
		return fmt.Errorf("%w: study request %s was modified concurrently", domain.ErrConflict, s.ID)
	}
	s.Version = expected + 1
	s.UpdatedAt = now
	return nil
}

func (r *StudyRequestRepository) List(ctx context.Context, f StudyFilter) ([]domain.StudyRequest, error) {
	q := r.db.WithContext(ctx).Model(&domain.StudyRequest{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ConsultantID != "" {
		q = q.Where("consultant_id = ?", f.ConsultantID)
	}
	if f.Unclaimed {
		q = q.Where("consultant_id IS NULL")
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var out []domain.StudyRequest
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, wrapErr(err, "study requests")
	}
	return out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
