package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateObject  = "CREATE_OBJECT"
	ActionDeleteObject  = "DELETE_OBJECT"
	ActionCreateQueue   = "CREATE_QUEUE"
	ActionDeleteQueue   = "DELETE_QUEUE"
	ActionCreateSection = "CREATE_SECTION"
	ActionDeleteSection = "DELETE_SECTION"

	ActionImportSchedule = "IMPORT_SCHEDULE"
	ActionDeleteXmlFile  = "DELETE_XML_FILE"

	// Volume workflow actions
	ActionAssignWork       = "ASSIGN_WORK"
	ActionCancelAssignment = "CANCEL_ASSIGNMENT"
	ActionSubmitWork       = "SUBMIT_WORK"
	ActionApproveWork      = "APPROVE_WORK"
	ActionRejectWork       = "REJECT_WORK"
)

// AuditLog tracks Who, What, and When for every volume-affecting change
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for CLI and cron
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
