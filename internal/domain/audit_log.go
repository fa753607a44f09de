package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditApproveConsultation = "approve_consultation"
	AuditAssignConsultant    = "assign_consultant"
	AuditConfirmPayment      = "confirm_payment"
	AuditUpdateConsultation  = "update_consultation_status"
	AuditUpdateStudy         = "update_study_status"
)

// AuditLog records an administrative action. Details carries action-specific
// context as JSON.
type AuditLog struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ActorID    string         `json:"actor_id" gorm:"type:varchar(36);not null;index"`
	Action     string         `json:"action" gorm:"type:varchar(64);not null;index"`
	TargetType string         `json:"target_type" gorm:"type:varchar(32)"`
	TargetID   string         `json:"target_id" gorm:"type:varchar(36);index"`
	Details    datatypes.JSON `json:"details,omitempty" gorm:"type:json"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
