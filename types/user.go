package types

import "time"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the opaque unique identifier of the user.
	ID string `json:"id" db:"id" bson:"_id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username" bson:"username"`

	// Email is the user's normalized, unique email address.
	Email string `json:"email" db:"email" bson:"email"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role" bson:"role"`

	// Avatar is an optional URL of the user's profile picture.
	Avatar string `json:"avatar,omitempty" db:"avatar" bson:"avatar,omitempty"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"password,omitempty"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// Sanitized returns a copy of the user without the password hash.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}
