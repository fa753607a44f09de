package domain

import "time"

// Message is one persisted chat line inside a consultation room. Seq is a
// time-ordered id that breaks ties between equal CreatedAt values.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConsultationID string    `json:"consultation_id" gorm:"type:varchar(36);not null;index:idx_messages_room_order,priority:1"`
	Seq            int64     `json:"seq" gorm:"not null;index:idx_messages_room_order,priority:3"`
	SenderID       string    `json:"sender_id" gorm:"type:varchar(36);not null"`
	Body           string    `json:"message" gorm:"type:text"`
	FileURL        *string   `json:"file_url,omitempty"`
	FileName       *string   `json:"file_name,omitempty"`
	Read           bool      `json:"read" gorm:"column:is_read;not null;default:false"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_messages_room_order,priority:2"`

	Sender *UserSummary `json:"sender,omitempty" gorm:"-"`
}

func (Message) TableName() string {
	return "messages"
}
