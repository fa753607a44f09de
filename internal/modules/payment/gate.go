package payment

import (
	"context"
	"errors"

	"jadwa/internal/domain"
)

// Gate answers whether an engagement has been paid for. The effective
// payment is the most recently created completed one.
type Gate struct {
	payments paymentRepo
}

func NewGate(payments paymentRepo) *Gate {
	return &Gate{payments: payments}
}

func (g *Gate) IsCompleted(ctx context.Context, engagementID string, t domain.RelatedType) (bool, error) {
	p, err := g.Effective(ctx, engagementID, t)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Effective returns nil, nil when the engagement has no completed payment.
func (g *Gate) Effective(ctx context.Context, engagementID string, t domain.RelatedType) (*domain.Payment, error) {
	p, err := g.payments.LatestCompleted(ctx, engagementID, t)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// CompletedSet is the batch form of IsCompleted used by listings.
func (g *Gate) CompletedSet(ctx context.Context, engagementIDs []string, t domain.RelatedType) (map[string]bool, error) {
	return g.payments.CompletedRelatedIDs(ctx, engagementIDs, t)
}
