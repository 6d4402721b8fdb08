package user

import (
	"context"

	domain "account-service/internal/domain/user"
)

// Service defines the credential workflows and user views exposed to transports.
type Service interface {
	Register(ctx context.Context, in RegisterRequest) (*RegistrationResult, error)
	Login(ctx context.Context, in LoginRequest) (*LoginResult, error)
	GetUser(ctx context.Context, in GetUserRequest) (*Profile, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
}

// Repository is the user record store. Create must enforce username uniqueness
// atomically and report a collision as domain.ErrDuplicateUsername.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)                        // Insert; assigns ID and timestamps
	FindByUsername(ctx context.Context, username string) (*domain.User, error)               // nil, nil when absent
	GetByID(ctx context.Context, id string) (*domain.User, error)                            // domain.ErrNotFound when absent
	List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) // Page of users and total count
}

// PasswordHasher hashes and verifies passwords. A mismatch is (false, nil).
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encodedHash string) (bool, error)
}

// Recorder receives workflow outcomes, e.g. for metrics.
type Recorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRegistration(string) {}
func (noopRecorder) RecordLogin(string)        {}
