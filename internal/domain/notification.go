package domain

import "time"

const (
	NotifyCategoryConsultation = "consultation"
	NotifyCategoryStudy        = "study"
	NotifyCategoryPayment      = "payment"
)

type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Title     string    `json:"title" gorm:"not null"`
	Message   string    `json:"message" gorm:"type:text"`
	Category  string    `json:"category" gorm:"type:varchar(32)"`
	ActionRef string    `json:"action_ref,omitempty"`
	IsRead    bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
