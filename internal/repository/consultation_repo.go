package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/id"
)

type ConsultationRepository struct {
	db *gorm.DB
}

func NewConsultationRepository(db *gorm.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// ConsultationFilter narrows List. Zero fields are ignored.
type ConsultationFilter struct {
	ClientID     string
	ConsultantID string
	Type         domain.ConsultationType
	Statuses     []domain.ConsultationStatus
}

// CreateWithPayment inserts the consultation and its initial payment in one
// transaction.
func (r *ConsultationRepository) CreateWithPayment(ctx context.Context, c *domain.Consultation, p *domain.Payment) error {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if p.ID == "" {
		p.ID = id.New()
	}
	p.RelatedID = c.ID
	p.RelatedType = domain.RelatedConsultation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Create(p).Error
	})
	return wrapErr(err, "consultation")
}

func (r *ConsultationRepository) GetByID(ctx context.Context, consultationID string) (*domain.Consultation, error) {
	var c domain.Consultation
	if err := r.db.WithContext(ctx).Where("id = ?", consultationID).First(&c).Error; err != nil {
		return nil, wrapErr(err, "consultation")
	}
	return &c, nil
}

// UpdateCAS writes the mutable fields of c only if the stored version still
// equals expected. A lost race yields domain.ErrConflict.
func (r *ConsultationRepository) UpdateCAS(ctx context.Context, c *domain.Consultation, expected int64) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Where("id = ? AND version = ?", c.ID, expected).
		Updates(map[string]interface{}{
			"consultant_id": c.ConsultantID,
			"status":        c.Status,
			"meeting_link":  c.MeetingLink,
			"completed_at":  c.CompletedAt,
			"version":       expected + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return wrapErr(res.Error, "consultation")
	}
	if res.RowsAffected == 0 {
		return r.casMiss(ctx, c.ID)
	}
	c.Version = expected + 1
	c.UpdatedAt = now
	return nil
}

func (r *ConsultationRepository) casMiss(ctx context.Context, consultationID string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Consultation{}).Where("id = ?", consultationID).Count(&n).Error; err != nil {
		return wrapErr(err, "consultation")
	}
	if n == 0 {
		return wrapErr(gorm.ErrRecordNotFound, "consultation")
	}
	return fmt.Errorf("%w: consultation %s was modified concurrently", domain.ErrConflict, consultationID)
}

// List returns matching consultations, newest first.
func (r *ConsultationRepository) List(ctx context.Context, f ConsultationFilter) ([]domain.Consultation, error) {
	q := r.db.WithContext(ctx).Model(&domain.Consultation{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ConsultantID != "" {
		q = q.Where("consultant_id = ?", f.ConsultantID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var out []domain.Consultation
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, wrapErr(err, "consultations")
	}
	return out, nil
}
