package domain

import "time"

type ConsultationType string

const (
	ConsultationVideo ConsultationType = "video"
	ConsultationChat  ConsultationType = "chat"
)

func (t ConsultationType) Valid() bool {
	return t == ConsultationVideo || t == ConsultationChat
}

type ConsultationStatus string

const (
	ConsultationPending    ConsultationStatus = "pending"
	ConsultationConfirmed  ConsultationStatus = "confirmed"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
	ConsultationCancelled  ConsultationStatus = "cancelled"
)

func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationPending, ConsultationConfirmed, ConsultationInProgress,
		ConsultationCompleted, ConsultationCancelled:
		return true
	}
	return false
}

func (s ConsultationStatus) Terminal() bool {
	return s == ConsultationCompleted || s == ConsultationCancelled
}

// Consultation is a booked video or chat engagement between a client and a
// consultant. Version increments on every write and backs compare-and-swap.
type Consultation struct {
	ID              string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ClientID        string             `json:"client_id" gorm:"type:varchar(36);not null;index"`
	ConsultantID    *string            `json:"consultant_id" gorm:"type:varchar(36);index"`
	Type            ConsultationType   `json:"type" gorm:"type:varchar(16);not null;index"`
	Status          ConsultationStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	ScheduledAt     *time.Time         `json:"scheduled_at,omitempty"`
	DurationMinutes int                `json:"duration_minutes"`
	Price           float64            `json:"price"`
	Notes           string             `json:"notes,omitempty" gorm:"type:text"`
	MeetingLink     string             `json:"meeting_link,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Version         int64              `json:"version" gorm:"not null;default:1"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	Client     *UserSummary `json:"client,omitempty" gorm:"-"`
	Consultant *UserSummary `json:"consultant,omitempty" gorm:"-"`
}

func (Consultation) TableName() string {
	return "consultations"
}

func (c *Consultation) HasConsultant() bool {
	return c.ConsultantID != nil && *c.ConsultantID != ""
}

func (c *Consultation) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return c.ClientID == userID || (c.HasConsultant() && *c.ConsultantID == userID)
}

// RoomOpen reports whether the engagement's conversation may be shown to its
// participants: a consultant is bound, payment has completed and the status
// is confirmed or later (but not cancelled).
func (c *Consultation) RoomOpen(paid bool) bool {
	if !paid || !c.HasConsultant() {
		return false
	}
	switch c.Status {
	case ConsultationConfirmed, ConsultationInProgress, ConsultationCompleted:
		return true
	}
	return false
}
