package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkItem is one (floor, work type) line of a section schedule.
// CompletedVolume only ever grows, and only through approved reports.
type WorkItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_work_item_key,priority:1" json:"section_id"`
	Section         *Section        `gorm:"foreignKey:SectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	XmlFileID       *uuid.UUID      `gorm:"type:uuid;index" json:"xml_file_id"`
	XmlFile         *XmlFile        `gorm:"foreignKey:XmlFileID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Floor           string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_work_item_key,priority:2" json:"floor"`
	WorkType        string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_work_item_key,priority:3" json:"work_type"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	TotalVolume     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_volume"`
	CompletedVolume decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"completed_volume"`
	Unit            string          `gorm:"type:varchar(50)" json:"unit"`
	DailyTarget     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"daily_target"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (w *WorkItem) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
