package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Object is a construction site. Deleting it removes every queue, section,
// schedule file, work item, assignment and report below it.
type Object struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Queue is a construction stage of an Object, numbered within it.
type Queue struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ObjectID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_queue_object_number,priority:1" json:"object_id"`
	Object    *Object    `gorm:"foreignKey:ObjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Number    int        `gorm:"not null;uniqueIndex:idx_queue_object_number,priority:2" json:"number"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Section is a block within a Queue. Schedules are uploaded per section.
type Section struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	QueueID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_section_queue_number,priority:1" json:"queue_id"`
	Queue     *Queue     `gorm:"foreignKey:QueueID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Number    int        `gorm:"not null;uniqueIndex:idx_section_queue_number,priority:2" json:"number"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (o *Object) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (q *Queue) BeforeCreate(*gorm.DB) error {
	ensureID(&q.ID)
	return nil
}

func (s *Section) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
