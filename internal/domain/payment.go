package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type RelatedType string

const (
	RelatedConsultation RelatedType = "consultation"
	RelatedStudy        RelatedType = "study"
)

// Payment is a record against a consultation or study. An engagement may
// carry several; the most recent completed one is the effective payment.
type Payment struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string        `json:"user_id" gorm:"type:varchar(36);not null;index"`
	RelatedID     string        `json:"related_id" gorm:"type:varchar(36);not null;index:idx_payments_related"`
	RelatedType   RelatedType   `json:"related_type" gorm:"type:varchar(16);not null;index:idx_payments_related"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency" gorm:"type:varchar(3);not null"`
	Status        PaymentStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	ConfirmedBy   *string       `json:"confirmed_by,omitempty" gorm:"type:varchar(36)"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
