// Package consultation runs the lifecycle of video and chat consultations:
// booking, payment-gated approval and assignment, status moves and the
// participant listings that hide unpaid or unassigned chats.
package consultation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/validator"
)

const defaultDurationMinutes = 60

type Deps struct {
	Consultations consultationRepo
	Users         userDirectory
	Gate          PaymentGate
	Payments      paymentHistory
	Notifier      Notifier
	Audit         AuditRecorder
	Currency      string
	Logger        *slog.Logger
}

type Service struct {
	consultations consultationRepo
	users         userDirectory
	gate          PaymentGate
	payments      paymentHistory
	notifier      Notifier
	audit         AuditRecorder
	currency      string
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Currency == "" {
		d.Currency = "SAR"
	}
	return &Service{
		consultations: d.Consultations,
		users:         d.Users,
		gate:          d.Gate,
		payments:      d.Payments,
		notifier:      d.Notifier,
		audit:         d.Audit,
		currency:      d.Currency,
		logger:        d.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Book creates a pending consultation and its pending payment atomically.
// Video consultations name their consultant up front; chat consultations may
// leave it for an administrator to assign.
func (s *Service) Book(ctx context.Context, actor *domain.Identity, req BookRequest) (*BookResult, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.HasRole(domain.RoleClient) {
		return nil, fmt.Errorf("%w: only clients can book consultations", domain.ErrForbidden)
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if req.Type == domain.ConsultationVideo && req.ConsultantID == "" {
		return nil, fmt.Errorf("%w: consultant_id is required for video consultations", domain.ErrValidation)
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	var consultantID *string
	if req.ConsultantID != "" {
		if _, err := s.activeConsultant(ctx, req.ConsultantID); err != nil {
			return nil, err
		}
		consultantID = &req.ConsultantID
	}

	c := &domain.Consultation{
		ClientID:        actor.UserID,
		ConsultantID:    consultantID,
		Type:            req.Type,
		Status:          domain.ConsultationPending,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Notes:           req.Notes,
	}
	p := &domain.Payment{
		UserID:   actor.UserID,
		Amount:   req.Price,
		Currency: s.currency,
		Status:   domain.PaymentPending,
	}
	if err := s.consultations.CreateWithPayment(ctx, c, p); err != nil {
		return nil, err
	}

	s.logger.Info("consultation booked",
		"consultation_id", c.ID,
		"payment_id", p.ID,
		"type", c.Type,
		"client_id", c.ClientID,
	)
	return &BookResult{Consultation: c, Payment: p}, nil
}

// Get returns one consultation to its participants or an administrator.
func (s *Service) Get(ctx context.Context, actor *domain.Identity, consultationID string) (*domain.Consultation, error) {
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
	return s.withSummaries(ctx, c)
}

// ApproveOrAssign confirms a paid pending consultation. A chat consultation
// without a consultant is bound to consultantID in the same write; an
// already bound one keeps its consultant.
func (s *Service) ApproveOrAssign(ctx context.Context, actor *domain.Identity, consultationID, consultantID string) (*domain.Consultation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	expected := c.Version

	switch {
	case c.Status == domain.ConsultationPending:
	case c.Status == domain.ConsultationConfirmed && !c.HasConsultant():
	default:
		return nil, fmt.Errorf("%w: consultation is %s", domain.ErrInvalidTransition, c.Status)
	}

	if err := s.requirePaid(ctx, c.ID, "approving"); err != nil {
		return nil, err
	}

	assigned := false
	if consultantID != "" && !c.HasConsultant() {
		if _, err := s.activeConsultant(ctx, consultantID); err != nil {
			return nil, err
		}
		c.ConsultantID = &consultantID
		assigned = true
	}
	if !c.HasConsultant() {
		return nil, fmt.Errorf("%w: consultant_id is required to approve an unassigned consultation", domain.ErrValidation)
	}

	c.Status = domain.ConsultationConfirmed
	if err := s.consultations.UpdateCAS(ctx, c, expected); err != nil {
		return nil, err
	}

	s.logger.Info("consultation approved",
		"consultation_id", c.ID,
		"consultant_id", *c.ConsultantID,
		"assigned", assigned,
		"admin_id", actor.UserID,
	)

	details := map[string]any{"consultation_id": c.ID}
	if assigned {
		details["consultant_id"] = *c.ConsultantID
		s.notifier.Notify(ctx, c.ClientID,
			"Consultation Approved",
			fmt.Sprintf("Your %s consultation has been approved and a consultant has been assigned.", c.Type),
			domain.NotifyCategoryConsultation,
			clientRef(c),
		)
		s.notifyAssignment(ctx, c)
	} else {
		s.notifier.Notify(ctx, c.ClientID,
			"Consultation Approved",
			fmt.Sprintf("Your %s consultation has been approved.", c.Type),
			domain.NotifyCategoryConsultation,
			clientRef(c),
		)
	}
	s.audit.Record(ctx, actor.UserID, domain.AuditApproveConsultation, "consultation", c.ID, details)

	return s.withSummaries(ctx, c)
}

// AssignConsultant binds a consultant to a paid chat consultation that has
// none yet and confirms it.
func (s *Service) AssignConsultant(ctx context.Context, actor *domain.Identity, consultationID, consultantID string) (*domain.Consultation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if consultantID == "" {
		return nil, fmt.Errorf("%w: consultant_id is required", domain.ErrValidation)
	}

	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	expected := c.Version

	if c.HasConsultant() {
		return nil, fmt.Errorf("%w: consultation already has a consultant", domain.ErrPrecondition)
	}
	if c.Status != domain.ConsultationPending && c.Status != domain.ConsultationConfirmed {
		return nil, fmt.Errorf("%w: consultation is %s", domain.ErrInvalidTransition, c.Status)
	}
	if err := s.requirePaid(ctx, c.ID, "assigning a consultant"); err != nil {
		return nil, err
	}
	if _, err := s.activeConsultant(ctx, consultantID); err != nil {
		return nil, err
	}

	c.ConsultantID = &consultantID
	c.Status = domain.ConsultationConfirmed
	if err := s.consultations.UpdateCAS(ctx, c, expected); err != nil {
		return nil, err
	}

	s.logger.Info("consultant assigned",
		"consultation_id", c.ID,
		"consultant_id", consultantID,
		"admin_id", actor.UserID,
	)

	s.notifier.Notify(ctx, c.ClientID,
		"Consultant Assigned",
		fmt.Sprintf("A consultant has been assigned to your %s consultation.", c.Type),
		domain.NotifyCategoryConsultation,
		clientRef(c),
	)
	s.notifyAssignment(ctx, c)
	s.audit.Record(ctx, actor.UserID, domain.AuditAssignConsultant, "consultation", c.ID, map[string]any{
		"consultation_id": c.ID,
		"consultant_id":   consultantID,
	})

	return s.withSummaries(ctx, c)
}

// UpdateStatus applies an actor-scoped status move. The row is re-read and
// written back with compare-and-swap, so a concurrent writer makes this call
// fail with domain.ErrConflict instead of overwriting.
func (s *Service) UpdateStatus(ctx context.Context, actor *domain.Identity, consultationID string, req UpdateStatusRequest) (*domain.Consultation, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, req.Status)
	}

	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	expected := c.Version
	from := c.Status

	if !mayRequest(actor, c, req.Status) {
		return nil, fmt.Errorf("%w: not allowed to move consultation to %s", domain.ErrForbidden, req.Status)
	}
	if !canTransition(from, req.Status, actor.IsAdmin()) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, req.Status)
	}
	if requiresPayment(req.Status) {
		if c.Type == domain.ConsultationChat && !c.HasConsultant() {
			return nil, fmt.Errorf("%w: a consultant must be assigned first", domain.ErrPrecondition)
		}
		if err := s.requirePaid(ctx, c.ID, "confirming"); err != nil {
			return nil, err
		}
	}

	c.Status = req.Status
	if req.MeetingLink != nil {
		c.MeetingLink = *req.MeetingLink
	}
	if req.Status == domain.ConsultationCompleted {
		now := s.now()
		c.CompletedAt = &now
	}
	if err := s.consultations.UpdateCAS(ctx, c, expected); err != nil {
		return nil, err
	}

	s.logger.Info("consultation status updated",
		"consultation_id", c.ID,
		"from", from,
		"to", c.Status,
		"actor_id", actor.UserID,
	)

	s.notifyStatusChange(ctx, actor, c)
	if actor.IsAdmin() {
		s.audit.Record(ctx, actor.UserID, domain.AuditUpdateConsultation, "consultation", c.ID, map[string]any{
			"from": string(from),
			"to":   string(c.Status),
		})
	}

	return s.withSummaries(ctx, c)
}

func (s *Service) requirePaid(ctx context.Context, consultationID, action string) error {
	paid, err := s.gate.IsCompleted(ctx, consultationID, domain.RelatedConsultation)
	if err != nil {
		return err
	}
	if !paid {
		return fmt.Errorf("%w: payment must be confirmed before %s", domain.ErrPrecondition, action)
	}
	return nil
}

// activeConsultant loads a user that may be bound to a consultation.
func (s *Service) activeConsultant(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: consultant %s does not exist", domain.ErrValidation, userID)
		}
		return nil, err
	}
	if u.Role != domain.RoleConsultant || u.Status != domain.UserActive {
		return nil, fmt.Errorf("%w: invalid or inactive consultant", domain.ErrValidation)
	}
	return u, nil
}

func (s *Service) notifyAssignment(ctx context.Context, c *domain.Consultation) {
	s.notifier.Notify(ctx, *c.ConsultantID,
		"New Consultation Assignment",
		fmt.Sprintf("You have been assigned to a %s consultation.", c.Type),
		domain.NotifyCategoryConsultation,
		fmt.Sprintf("/dashboard/consultant/%s", c.Type),
	)
}

// notifyStatusChange tells every participant other than the actor.
func (s *Service) notifyStatusChange(ctx context.Context, actor *domain.Identity, c *domain.Consultation) {
	msg := fmt.Sprintf("Your %s consultation is now %s.", c.Type, c.Status)
	if !actor.Is(c.ClientID) {
		s.notifier.Notify(ctx, c.ClientID, "Consultation Updated", msg, domain.NotifyCategoryConsultation, clientRef(c))
	}
	if c.HasConsultant() && !actor.Is(*c.ConsultantID) {
		s.notifier.Notify(ctx, *c.ConsultantID, "Consultation Updated", msg, domain.NotifyCategoryConsultation,
			fmt.Sprintf("/dashboard/consultant/%s", c.Type))
	}
}

func clientRef(c *domain.Consultation) string {
	return fmt.Sprintf("/dashboard/client/%s", c.Type)
}

func requireAdmin(actor *domain.Identity) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only active administrators can approve or assign", domain.ErrForbidden)
	}
	return nil
}
