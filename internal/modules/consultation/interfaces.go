package consultation

import (
	"context"

	"jadwa/internal/domain"
	"jadwa/internal/repository"
)

type consultationRepo interface {
	CreateWithPayment(ctx context.Context, c *domain.Consultation, p *domain.Payment) error
	GetByID(ctx context.Context, consultationID string) (*domain.Consultation, error)
	UpdateCAS(ctx context.Context, c *domain.Consultation, expected int64) error
	List(ctx context.Context, f repository.ConsultationFilter) ([]domain.Consultation, error)
}

type userDirectory interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	SummariesByIDs(ctx context.Context, ids []string) (map[string]domain.UserSummary, error)
}

// PaymentGate is the payment precondition every confirmation passes through.
type PaymentGate interface {
	IsCompleted(ctx context.Context, engagementID string, t domain.RelatedType) (bool, error)
	CompletedSet(ctx context.Context, engagementIDs []string, t domain.RelatedType) (map[string]bool, error)
}

type paymentHistory interface {
	ListByRelatedIDs(ctx context.Context, relatedIDs []string, t domain.RelatedType) ([]domain.Payment, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, title, message, category, actionRef string)
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any)
}
