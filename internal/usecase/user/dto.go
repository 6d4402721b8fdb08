package user

import (
	"time"

	domain "account-service/internal/domain/user"
)

// RegisterRequest carries the raw, untrimmed registration form fields.
type RegisterRequest struct {
	Username          string
	Email             string
	Password          string
	ConfirmedPassword string
}

// LoginRequest carries the raw, untrimmed login form fields.
type LoginRequest struct {
	Username string
	Password string
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID string
}

// ListUsersRequest represents the request payload for listing users.
// Query matches a fragment of the username or email.
type ListUsersRequest struct {
	Query string
	Page  int64
	Limit int64
}

// ListUsersResponse represents one page of users.
type ListUsersResponse struct {
	Users      []Profile
	Pagination *domain.Pagination
}

func toProfile(u *domain.User) *Profile {
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
