package model

import (
	"time"
)

// Role distinguishes administrators from ticket-handling advisers.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAdviser Role = "adviser"
)

// User is an operator account. Only active advisers participate in
// round-robin assignment.
type User struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
