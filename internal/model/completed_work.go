package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CompletedWorkStatus is the review state of a report. Approved and rejected are final.
type CompletedWorkStatus string

const (
	CompletedWorkSubmitted CompletedWorkStatus = "submitted"
	CompletedWorkApproved  CompletedWorkStatus = "approved"
	CompletedWorkRejected  CompletedWorkStatus = "rejected"
)

func (s CompletedWorkStatus) Valid() bool {
	switch s {
	case CompletedWorkSubmitted, CompletedWorkApproved, CompletedWorkRejected:
		return true
	}
	return false
}

func (s CompletedWorkStatus) IsTerminal() bool {
	switch s {
	case CompletedWorkApproved, CompletedWorkRejected:
		return true
	case CompletedWorkSubmitted:
		return false
	}
	return true
}

// CompletedWork is a subcontractor's report of volume done on an assignment.
type CompletedWork struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"assignment_id"`
	Assignment      *Assignment         `gorm:"foreignKey:AssignmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"assignment,omitempty"`
	CompletedVolume decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"completed_volume"`
	AdjustedVolume  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"adjusted_volume"`
	WorkDate        time.Time           `gorm:"not null;index" json:"work_date"`
	Notes           string              `gorm:"type:text" json:"notes"`
	SubmittedBy     uuid.UUID           `gorm:"type:uuid;not null;index" json:"submitted_by"`
	VerifiedBy      *uuid.UUID          `gorm:"type:uuid" json:"verified_by"`
	VerifiedAt      *time.Time          `json:"verified_at"`
	Status          CompletedWorkStatus `gorm:"type:varchar(20);not null;default:'submitted';index" json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// EffectiveVolume is the volume the report contributes once approved.
func (c *CompletedWork) EffectiveVolume() decimal.Decimal {
	if c.AdjustedVolume.Valid {
		return c.AdjustedVolume.Decimal
	}
	return c.CompletedVolume
}

func (c *CompletedWork) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
