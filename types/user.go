package types

import "time"

// Global account roles.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Presence statuses stored on UserLog.
const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
	StatusAway    = "AWAY"
	StatusBusy    = "BUSY"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique login identifier of the user.
	Email string `json:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Role is the global authorization level ("ADMIN" or "USER").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Log is the user's activity record. It is created together with the user
	// and removed when the user is deleted.
	Log *UserLog `json:"log,omitempty" db:"-"`
}

// IsAdmin reports whether the user holds the global admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserLog tracks presence, rank and session state for a user.
type UserLog struct {
	UserID                int        `json:"user_id" db:"user_id"`
	ProfileImageID        *int       `json:"profile_image_id,omitempty" db:"profile_image_id"`
	Rank                  int        `json:"rank" db:"rank"`
	Status                string     `json:"status" db:"status"`
	LastLoggedIn          *time.Time `json:"last_logged_in,omitempty" db:"last_logged_in"`
	LastLoggedOut         *time.Time `json:"last_logged_out,omitempty" db:"last_logged_out"`
	RefreshToken          *string    `json:"-" db:"refresh_token"`
	RefreshTokenExpiresAt *time.Time `json:"-" db:"refresh_token_expires_at"`
}

// ValidStatus reports whether status is one of the accepted presence values.
func ValidStatus(status string) bool {
	switch status {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	default:
		return false
	}
}
