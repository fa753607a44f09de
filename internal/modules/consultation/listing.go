package consultation

import (
	"context"
	"fmt"

	"jadwa/internal/domain"
	"jadwa/internal/repository"
)

var activeStatuses = []domain.ConsultationStatus{
	domain.ConsultationConfirmed,
	domain.ConsultationInProgress,
	domain.ConsultationCompleted,
}

// List returns the caller's consultations, newest first. Consultants see the
// ones bound to them; everyone else sees the ones they booked. Chat rows are
// dropped unless a consultant is bound, a payment has completed and the
// status is active, whatever the filter asked for.
func (s *Service) List(ctx context.Context, actor *domain.Identity, filter ListFilter) ([]domain.Consultation, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown consultation type %q", domain.ErrValidation, filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, filter.Status)
	}

	f := repository.ConsultationFilter{Type: filter.Type}
	if filter.Status != "" {
		f.Statuses = []domain.ConsultationStatus{filter.Status}
	}
	if actor.Role == domain.RoleConsultant {
		f.ConsultantID = actor.UserID
	} else {
		f.ClientID = actor.UserID
	}

	rows, err := s.consultations.List(ctx, f)
	if err != nil {
		return nil, err
	}
	rows, err = s.visible(ctx, rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachSummaries(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// visible filters out chat consultations whose room is not open.
func (s *Service) visible(ctx context.Context, rows []domain.Consultation) ([]domain.Consultation, error) {
	var chatIDs []string
	for _, c := range rows {
		if c.Type == domain.ConsultationChat {
			chatIDs = append(chatIDs, c.ID)
		}
	}
	if len(chatIDs) == 0 {
		return rows, nil
	}

	paid, err := s.gate.CompletedSet(ctx, chatIDs, domain.RelatedConsultation)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, c := range rows {
		if c.Type == domain.ConsultationChat && !c.RoomOpen(paid[c.ID]) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// CanAccessRoom reports whether identity may read or write the message room
// of a consultation. Administrators always may; participants only once the
// room is open.
func (s *Service) CanAccessRoom(ctx context.Context, identity *domain.Identity, consultationID string) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return err
	}
	if identity.IsAdmin() {
		return nil
	}
	if !c.IsParticipant(identity.UserID) {
		return fmt.Errorf("%w: not a participant of consultation %s", domain.ErrForbidden, consultationID)
	}

	paid, err := s.gate.IsCompleted(ctx, c.ID, domain.RelatedConsultation)
	if err != nil {
		return err
	}
	if !c.RoomOpen(paid) {
		return fmt.Errorf("%w: conversation opens after payment and consultant assignment", domain.ErrPrecondition)
	}
	return nil
}

// AdminList is the administrator's board. Requests are pending rows, active
// rows are confirmed or later. Each row carries its most recent payment.
func (s *Service) AdminList(ctx context.Context, actor *domain.Identity, view AdminView) ([]AdminConsultation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var f repository.ConsultationFilter
	switch view {
	case ViewRequests:
		f.Statuses = []domain.ConsultationStatus{domain.ConsultationPending}
	case ViewActive:
		f.Statuses = activeStatuses
	case ViewAll, "":
	default:
		return nil, fmt.Errorf("%w: unknown view %q", domain.ErrValidation, view)
	}

	rows, err := s.consultations.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.attachSummaries(ctx, rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.ID)
	}
	payments, err := s.payments.ListByRelatedIDs(ctx, ids, domain.RelatedConsultation)
	if err != nil {
		return nil, err
	}
	// newest first, so the first one seen per consultation wins
	latest := make(map[string]*domain.Payment, len(payments))
	for i := range payments {
		if _, ok := latest[payments[i].RelatedID]; !ok {
			latest[payments[i].RelatedID] = &payments[i]
		}
	}

	out := make([]AdminConsultation, 0, len(rows))
	for _, c := range rows {
		out = append(out, AdminConsultation{Consultation: c, Payment: latest[c.ID]})
	}
	return out, nil
}

func (s *Service) withSummaries(ctx context.Context, c *domain.Consultation) (*domain.Consultation, error) {
	rows := []domain.Consultation{*c}
	if err := s.attachSummaries(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Service) attachSummaries(ctx context.Context, rows []domain.Consultation) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows)*2)
	for _, c := range rows {
		ids = append(ids, c.ClientID)
		if c.HasConsultant() {
			ids = append(ids, *c.ConsultantID)
		}
	}
	summaries, err := s.users.SummariesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if u, ok := summaries[rows[i].ClientID]; ok {
			rows[i].Client = &u
		}
		if rows[i].HasConsultant() {
			if u, ok := summaries[*rows[i].ConsultantID]; ok {
				rows[i].Consultant = &u
			}
		}
	}
	return nil
}
