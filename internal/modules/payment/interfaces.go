package payment

import (
	"context"
	"time"

	"jadwa/internal/domain"
)

type paymentRepo interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	MarkCompleted(ctx context.Context, paymentID, confirmedBy string, at time.Time) (*domain.Payment, bool, error)
	ListByRelated(ctx context.Context, relatedID string, t domain.RelatedType) ([]domain.Payment, error)
	LatestCompleted(ctx context.Context, relatedID string, t domain.RelatedType) (*domain.Payment, error)
	CompletedRelatedIDs(ctx context.Context, relatedIDs []string, t domain.RelatedType) (map[string]bool, error)
}

type consultationReader interface {
	GetByID(ctx context.Context, consultationID string) (*domain.Consultation, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, title, message, category, actionRef string)
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any)
}
