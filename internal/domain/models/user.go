package models

import (
	"strings"
	"time"
)

// Role gates what an authenticated user may do.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleRecordKeeper Role = "RECORD_KEEPER"
)

// ParseRole normalises a role name, falling back to RECORD_KEEPER for unknown values.
func ParseRole(value string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleRecordKeeper
	}
}

// User is a person allowed to log in to the system.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"size:32;not null;default:RECORD_KEEPER" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName pins the table name used by gorm.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
