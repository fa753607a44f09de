package study

import (
	"encoding/json"

	"jadwa/internal/domain"
)

type CreateRequest struct {
	Type        domain.StudyType `json:"type" validate:"required,oneof=feasibility_study economic_analysis financial_report"`
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description" validate:"required"`
	Details     json.RawMessage  `json:"details"`
	Attachments []string         `json:"attachments" validate:"omitempty,dive,required"`
}

// QuoteRequest carries the consultant's offer. ConsultantID is honoured
// only for administrators quoting a request nobody has claimed.
type QuoteRequest struct {
	Price        *float64 `json:"price" validate:"required,gte=0"`
	DurationDays *int     `json:"duration_days" validate:"required,gt=0"`
	ConsultantID string   `json:"consultant_id"`
}

type CompleteRequest struct {
	Deliverables []string `json:"deliverables" validate:"omitempty,dive,required"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}
