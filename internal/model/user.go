package model

import "time"

// Role controls access to administrative operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account allowed to upload and review posts once approved and verified.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Name                string     `json:"name"`
	Role                Role       `json:"role"`
	Approved            bool       `json:"approved"`
	EmailVerified       bool       `json:"emailVerified"`
	VerificationToken   *string    `json:"-"`
	VerificationExpires *time.Time `json:"-"`
	ResetToken          *string    `json:"-"`
	ResetExpires        *time.Time `json:"-"`
	LoginAttempts       int        `json:"-"`
	LockUntil           *time.Time `json:"-"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// IsLocked reports whether the account is locked out at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
