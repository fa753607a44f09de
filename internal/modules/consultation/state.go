package consultation

import (
	"slices"

	"jadwa/internal/domain"
)

// transitions lists the moves any authorized actor may make.
var transitions = map[domain.ConsultationStatus][]domain.ConsultationStatus{
	domain.ConsultationPending:    {domain.ConsultationConfirmed, domain.ConsultationCancelled},
	domain.ConsultationConfirmed:  {domain.ConsultationInProgress, domain.ConsultationCancelled},
	domain.ConsultationInProgress: {domain.ConsultationCompleted},
}

// adminSkips are forward jumps reserved for administrators.
var adminSkips = map[domain.ConsultationStatus][]domain.ConsultationStatus{
	domain.ConsultationPending:   {domain.ConsultationInProgress, domain.ConsultationCompleted},
	domain.ConsultationConfirmed: {domain.ConsultationCompleted},
}

func canTransition(from, to domain.ConsultationStatus, admin bool) bool {
	if from.Terminal() {
		return false
	}
	if slices.Contains(transitions[from], to) {
		return true
	}
	return admin && slices.Contains(adminSkips[from], to)
}

// requiresPayment reports whether entering status needs a completed payment.
func requiresPayment(status domain.ConsultationStatus) bool {
	switch status {
	case domain.ConsultationConfirmed, domain.ConsultationInProgress, domain.ConsultationCompleted:
		return true
	}
	return false
}

var consultantTargets = []domain.ConsultationStatus{
	domain.ConsultationConfirmed,
	domain.ConsultationInProgress,
	domain.ConsultationCompleted,
	domain.ConsultationCancelled,
}

// mayRequest decides whether actor may ask for the move to target at all;
// reachability is checked separately.
func mayRequest(actor *domain.Identity, c *domain.Consultation, target domain.ConsultationStatus) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.Role == domain.RoleConsultant && c.HasConsultant() && *c.ConsultantID == actor.UserID:
		return slices.Contains(consultantTargets, target)
	case actor.Role == domain.RoleClient && c.ClientID == actor.UserID:
		return target == domain.ConsultationCancelled
	}
	return false
}
