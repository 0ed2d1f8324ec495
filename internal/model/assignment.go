package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssignmentStatus is the lifecycle state of an Assignment. It only moves forward.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentRejected   AssignmentStatus = "rejected"

	// AssignmentLegacyPending is what older databases stored instead of "assigned".
	AssignmentLegacyPending AssignmentStatus = "pending"
)

// NonTerminalAssignmentStatuses are the states that still hold volume on their work item.
var NonTerminalAssignmentStatuses = []AssignmentStatus{AssignmentAssigned, AssignmentInProgress}

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentAssigned, AssignmentInProgress, AssignmentCompleted, AssignmentRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further reports or approvals may change the assignment.
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case AssignmentCompleted, AssignmentRejected:
		return true
	case AssignmentAssigned, AssignmentInProgress:
		return false
	}
	return true
}

// Assignment hands part of a work item's volume to one subcontractor.
// ApprovedVolume is the running total of approved reports against it.
type Assignment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	WorkItemID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"work_item_id"`
	WorkItem        *WorkItem        `gorm:"foreignKey:WorkItemID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"work_item,omitempty"`
	SubcontractorID uuid.UUID        `gorm:"type:uuid;not null;index" json:"subcontractor_id"`
	Subcontractor   *User            `gorm:"foreignKey:SubcontractorID" json:"-"`
	ForemanID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"foreman_id"`
	Foreman         *User            `gorm:"foreignKey:ForemanID" json:"-"`
	AssignedVolume  decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"assigned_volume"`
	ApprovedVolume  decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"approved_volume"`
	Status          AssignmentStatus `gorm:"type:varchar(20);not null;default:'assigned';index" json:"status"`
	AssignedAt      time.Time        `gorm:"not null" json:"assigned_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Outstanding is the part of the assignment not yet covered by approvals.
func (a *Assignment) Outstanding() decimal.Decimal {
	out := a.AssignedVolume.Sub(a.ApprovedVolume)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	return nil
}
