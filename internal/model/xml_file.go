package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// XmlFileStatus is the lifecycle state of an uploaded schedule file.
type XmlFileStatus string

const (
	XmlFileActive   XmlFileStatus = "active"
	XmlFileReplaced XmlFileStatus = "replaced"
	XmlFileDeleted  XmlFileStatus = "deleted"
)

// Valid reports whether s is a known file status.
func (s XmlFileStatus) Valid() bool {
	switch s {
	case XmlFileActive, XmlFileReplaced, XmlFileDeleted:
		return true
	}
	return false
}

// XmlFile records one uploaded schedule. A section has at most one active file.
type XmlFile struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"section_id"`
	Section     *Section      `gorm:"foreignKey:SectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Filename    string        `gorm:"type:varchar(255);not null" json:"filename"`
	StoragePath string        `gorm:"type:varchar(512)" json:"storage_path"`
	Size        int64         `gorm:"not null;default:0" json:"size"`
	UploadedBy  *uuid.UUID    `gorm:"type:uuid" json:"uploaded_by"`
	Uploader    *User         `gorm:"foreignKey:UploadedBy" json:"-"`
	UploadedAt  time.Time     `gorm:"not null;index" json:"uploaded_at"`
	Status      XmlFileStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
}

func (f *XmlFile) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
