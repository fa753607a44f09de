package domain

import (
	"time"

	"gorm.io/datatypes"
)

type StudyType string

const (
	StudyFeasibility StudyType = "feasibility_study"
	StudyEconomic    StudyType = "economic_analysis"
	StudyFinancial   StudyType = "financial_report"
)

func (t StudyType) Valid() bool {
	switch t {
	case StudyFeasibility, StudyEconomic, StudyFinancial:
		return true
	}
	return false
}

type StudyStatus string

const (
	StudyPending   StudyStatus = "pending"
	StudyQuoted    StudyStatus = "quoted"
	StudyApproved  StudyStatus = "approved"
	StudyRejected  StudyStatus = "rejected"
	StudyCompleted StudyStatus = "completed"
)

func (s StudyStatus) Terminal() bool {
	return s == StudyRejected || s == StudyCompleted
}

// StudyRequest is a client's request for a research study, quoted by a
// consultant who then owns it for the rest of its life.
type StudyRequest struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ClientID        string         `json:"client_id" gorm:"type:varchar(36);not null;index"`
	ConsultantID    *string        `json:"consultant_id" gorm:"type:varchar(36);index"`
	Type            StudyType      `json:"type" gorm:"type:varchar(32);not null"`
	Title           string         `json:"title" gorm:"not null"`
	Description     string         `json:"description" gorm:"type:text;not null"`
	Details         datatypes.JSON `json:"details,omitempty" gorm:"type:json"`
	Attachments     []string       `json:"attachments" gorm:"serializer:json;type:text"`
	Status          StudyStatus    `json:"status" gorm:"type:varchar(16);not null;index"`
	Price           *float64       `json:"price,omitempty"`
	DurationDays    *int           `json:"duration_days,omitempty"`
	Deliverables    []string       `json:"deliverables" gorm:"serializer:json;type:text"`
	RejectionReason string         `json:"rejection_reason,omitempty" gorm:"type:text"`
	QuotedAt        *time.Time     `json:"quoted_at,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Version         int64          `json:"version" gorm:"not null;default:1"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Client     *UserSummary `json:"client,omitempty" gorm:"-"`
	Consultant *UserSummary `json:"consultant,omitempty" gorm:"-"`
}

func (StudyRequest) TableName() string {
	return "study_requests"
}

func (s *StudyRequest) HasConsultant() bool {
	return s.ConsultantID != nil && *s.ConsultantID != ""
}
