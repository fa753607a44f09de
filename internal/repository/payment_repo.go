package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/id"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = id.New()
	}
	return wrapErr(r.db.WithContext(ctx).Create(p).Error, "payment")
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&p).Error; err != nil {
		return nil, wrapErr(err, "payment")
	}
	return &p, nil
}

// MarkCompleted moves a pending payment to completed under a row lock. It
// reports changed=false when the payment was already completed, and
// domain.ErrInvalidTransition for failed or refunded payments.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID, confirmedBy string, at time.Time) (*domain.Payment, bool, error) {
	var (
		p       domain.Payment
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", paymentID).First(&p).Error; err != nil {
			return err
		}
		switch p.Status {
		case domain.PaymentCompleted:
			return nil
		case domain.PaymentPending:
		default:
			return fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
		}

		res := tx.Model(&domain.Payment{}).
			Where("id = ? AND status = ?", paymentID, domain.PaymentPending).
			Updates(map[string]interface{}{
				"status":       domain.PaymentCompleted,
				"confirmed_by": confirmedBy,
				"confirmed_at": at,
				"updated_at":   at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payment %s changed while confirming", domain.ErrConflict, paymentID)
		}
		p.Status = domain.PaymentCompleted
		p.ConfirmedBy = &confirmedBy
		p.ConfirmedAt = &at
		p.UpdatedAt = at
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrConflict) {
			return nil, false, err
		}
		return nil, false, wrapErr(err, "payment")
	}
	return &p, changed, nil
}

// ListByRelated returns every payment of one engagement, newest first.
func (r *PaymentRepository) ListByRelated(ctx context.Context, relatedID string, t domain.RelatedType) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("related_id = ? AND related_type = ?", relatedID, t).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, wrapErr(err, "payments")
	}
	return out, nil
}

// ListByRelatedIDs is the batch form of ListByRelated, newest first.
func (r *PaymentRepository) ListByRelatedIDs(ctx context.Context, relatedIDs []string, t domain.RelatedType) ([]domain.Payment, error) {
	relatedIDs = uniqueNonEmpty(relatedIDs)
	if len(relatedIDs) == 0 {
		return nil, nil
	}
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("related_id IN ? AND related_type = ?", relatedIDs, t).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, wrapErr(err, "payments")
	}
	return out, nil
}

// LatestCompleted returns the effective payment of an engagement.
func (r *PaymentRepository) LatestCompleted(ctx context.Context, relatedID string, t domain.RelatedType) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Where("related_id = ? AND related_type = ? AND status = ?", relatedID, t, domain.PaymentCompleted).
		Order("created_at DESC").Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, wrapErr(err, "completed payment")
	}
	return &p, nil
}

// CompletedRelatedIDs returns the subset of relatedIDs that have at least one
// completed payment.
func (r *PaymentRepository) CompletedRelatedIDs(ctx context.Context, relatedIDs []string, t domain.RelatedType) (map[string]bool, error) {
	out := make(map[string]bool)
	relatedIDs = uniqueNonEmpty(relatedIDs)
	if len(relatedIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Distinct("related_id").
		Where("related_id IN ? AND related_type = ? AND status = ?", relatedIDs, t, domain.PaymentCompleted).
		Pluck("related_id", &ids).Error
	if err != nil {
		return nil, wrapErr(err, "payments")
	}
	for _, v := range ids {
		out[v] = true
	}
	return out, nil
}
