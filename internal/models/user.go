package models

import (
	"time"
)

// UserStatus represents a user's presence status.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "ONLINE"
	UserStatusAway    UserStatus = "AWAY"
	UserStatusOffline UserStatus = "OFFLINE"
)

// IsValidUserStatus checks if a status value is one of the known states.
func IsValidUserStatus(s string) bool {
	switch UserStatus(s) {
	case UserStatusOnline, UserStatusAway, UserStatusOffline:
		return true
	}
	return false
}

// User represents an account in the system.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           *string    `json:"email,omitempty" db:"email"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	Name            string     `json:"name" db:"name"`
	ProfileImageURL *string    `json:"profile_image_url,omitempty" db:"profile_image_url"`
	Status          UserStatus `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// NameInitial returns the first character of the display name, used as
// an avatar fallback when no profile image is set. Works on the first
// codepoint so multi-byte names (Hangul) produce a full character.
func (u *User) NameInitial() string {
	for _, r := range u.Name {
		return string(r)
	}
	return "?"
}

// PublicProfile is the user shape exposed to other users.
type PublicProfile struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	ProfileImageURL *string    `json:"profile_image_url,omitempty"`
	NameInitial     string     `json:"name_initial"`
	Status          UserStatus `json:"status"`
}

// Public projects a User into its public shape.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:              u.ID,
		Name:            u.Name,
		ProfileImageURL: u.ProfileImageURL,
		NameInitial:     u.NameInitial(),
		Status:          u.Status,
	}
}
