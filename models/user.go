package models

import "time"

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
	RoleGuest Role = "Guest"
)

// User is the durable account row. Live-connection state deliberately does
// not live here; the presence registry owns it.
type User struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FullName  string     `json:"fullName"`
	Email     string     `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	Role      Role       `gorm:"type:varchar(10);default:'User'" json:"role"`
	AvatarURL string     `json:"avatar,omitempty"`
	LastLogin *time.Time `gorm:"default:NULL" json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
