package dto

import "time"

// UserRef identifies a participant wherever a full profile is not needed.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserProfile describes a marketplace user.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	RecordIDs []string  `json:"record_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest is the body for POST /users/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the bearer token issued at login/registration.
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}
