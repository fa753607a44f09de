package consultation

import (
	"time"

	"jadwa/internal/domain"
)

type BookRequest struct {
	Type            domain.ConsultationType `json:"type" validate:"required,oneof=video chat"`
	ConsultantID    string                  `json:"consultant_id" validate:"omitempty,max=36"`
	ScheduledAt     *time.Time              `json:"scheduled_at"`
	DurationMinutes int                     `json:"duration_minutes" validate:"gte=0,lte=480"`
	Price           float64                 `json:"price" validate:"gt=0"`
	Notes           string                  `json:"notes" validate:"max=2000"`
}

type BookResult struct {
	Consultation *domain.Consultation `json:"consultation"`
	Payment      *domain.Payment      `json:"payment"`
}

type UpdateStatusRequest struct {
	Status      domain.ConsultationStatus `json:"status"`
	MeetingLink *string                   `json:"meeting_link"`
}

type AssignRequest struct {
	ConsultantID string `json:"consultant_id"`
}

type ListFilter struct {
	Type   domain.ConsultationType
	Status domain.ConsultationStatus
}

// AdminView selects the administrator listing.
type AdminView string

const (
	ViewRequests AdminView = "requests"
	ViewActive   AdminView = "active"
	ViewAll      AdminView = "all"
)

// AdminConsultation is a consultation together with its most recent payment
// in any status.
type AdminConsultation struct {
	domain.Consultation
	Payment *domain.Payment `json:"payment"`
}
