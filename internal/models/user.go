package models

import (
	"time"
)

// User represents a registered customer or administrator.
type User struct {
	BaseModel
	Email           string  `gorm:"uniqueIndex" json:"email"`
	PasswordHash    string  `json:"-"`
	FullName        string  `json:"full_name"`
	Phone           string  `json:"phone"`
	Address         string  `json:"address"`
	City            string  `json:"city"`
	District        string  `json:"district"`
	Ward            string  `json:"ward"`
	Role            string  `gorm:"default:user" json:"role"`
	IsEmailVerified bool    `json:"is_email_verified"`
	Orders          []Order `json:"orders,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// EmailVerification keeps track of confirmation codes sent at registration.
type EmailVerification struct {
	BaseModel
	Email     string     `gorm:"index" json:"email"`
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expires_at"`
	Verified  bool       `json:"verified"`
	UsedAt    *time.Time `json:"used_at"`
}

// PasswordResetToken stores one-time password reset codes.
type PasswordResetToken struct {
	BaseModel
	Email     string     `gorm:"index" json:"email"`
	Token     string     `gorm:"uniqueIndex" json:"token"`
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expires_at"`
	Verified  bool       `json:"verified"`
	UsedAt    *time.Time `json:"used_at"`
}
