package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles recognised by the role middleware and the services.
const (
	RolePlanner       = "planner"
	RoleForeman       = "foreman"
	RoleSubcontractor = "subcontractor"
)

// ValidRole reports whether role is one of the three site roles.
func ValidRole(role string) bool {
	switch role {
	case RolePlanner, RoleForeman, RoleSubcontractor:
		return true
	}
	return false
}

// User is a site participant: planners import schedules, foremen hand out
// and review work, subcontractors report it.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username    string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Password    string    `gorm:"type:varchar(255);not null" json:"-"`
	Role        string    `gorm:"type:varchar(50);not null;index" json:"role"` // planner, foreman, subcontractor
	CompanyName string    `gorm:"type:varchar(255)" json:"company_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
