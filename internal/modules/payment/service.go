package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jadwa/internal/domain"
)

type Service struct {
	payments      paymentRepo
	consultations consultationReader
	notifier      Notifier
	audit         AuditRecorder
	currency      string
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(payments paymentRepo, consultations consultationReader, notifier Notifier, audit AuditRecorder, currency string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if currency == "" {
		currency = "SAR"
	}
	return &Service{
		payments:      payments,
		consultations: consultations,
		notifier:      notifier,
		audit:         audit,
		currency:      currency,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Confirm marks a payment completed on behalf of an administrator. It does
// not move the engagement; it only unblocks approval and assignment.
// Confirming an already completed payment returns it unchanged.
func (s *Service) Confirm(ctx context.Context, actor *domain.Identity, paymentID string) (*domain.Payment, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only active administrators can confirm payments", domain.ErrForbidden)
	}

	p, changed, err := s.payments.MarkCompleted(ctx, paymentID, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.Info("payment already completed", "payment_id", p.ID)
		return p, nil
	}

	s.logger.Info("payment confirmed",
		"payment_id", p.ID,
		"related_id", p.RelatedID,
		"related_type", p.RelatedType,
		"admin_id", actor.UserID,
	)

	s.audit.Record(ctx, actor.UserID, domain.AuditConfirmPayment, "payment", p.ID, map[string]any{
		"payment_id":   p.ID,
		"amount":       p.Amount,
		"related_id":   p.RelatedID,
		"related_type": string(p.RelatedType),
	})
	s.notifier.Notify(ctx, p.UserID,
		"Payment Confirmed",
		fmt.Sprintf("Your payment of %.2f %s has been confirmed.", p.Amount, p.Currency),
		domain.NotifyCategoryPayment,
		"/dashboard/client/payments",
	)
	return p, nil
}

// Create records an additional pending payment against a consultation the
// client owns.
func (s *Service) Create(ctx context.Context, actor *domain.Identity, req CreatePaymentRequest) (*domain.Payment, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.HasRole(domain.RoleClient) {
		return nil, fmt.Errorf("%w: only clients can create payments", domain.ErrForbidden)
	}
	if req.ConsultationID == "" {
		return nil, fmt.Errorf("%w: consultation_id is required", domain.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	c, err := s.consultations.GetByID(ctx, req.ConsultationID)
	if err != nil {
		return nil, err
	}
	// Someone else's consultation looks the same as a missing one.
	if c.ClientID != actor.UserID {
		return nil, fmt.Errorf("%w: consultation %s", domain.ErrNotFound, req.ConsultationID)
	}

	p := &domain.Payment{
		UserID:        actor.UserID,
		RelatedID:     c.ID,
		RelatedType:   domain.RelatedConsultation,
		Amount:        req.Amount,
		Currency:      s.currency,
		Status:        domain.PaymentPending,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListForEngagement returns a consultation's payments, newest first, to its
// participants and administrators.
func (s *Service) ListForEngagement(ctx context.Context, actor *domain.Identity, consultationID string) ([]domain.Payment, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !c.IsParticipant(actor.UserID) {
		return nil, fmt.Errorf("%w: not a participant of consultation %s", domain.ErrForbidden, consultationID)
	}
	return s.payments.ListByRelated(ctx, consultationID, domain.RelatedConsultation)
}
