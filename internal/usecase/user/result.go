package user

import (
	"fmt"

	apperrors "account-service/pkg/errors"
)

// MsgInvalidCredentials is shown for both unknown usernames and wrong passwords.
const MsgInvalidCredentials = "Invalid username or password."

// RegistrationStatus is the terminal state of a registration attempt.
type RegistrationStatus int

const (
	RegistrationRegistered RegistrationStatus = iota + 1
	RegistrationValidationFailed
	RegistrationDuplicateUsername
)

func (s RegistrationStatus) String() string {
	switch s {
	case RegistrationRegistered:
		return "registered"
	case RegistrationValidationFailed:
		return "validation_failed"
	case RegistrationDuplicateUsername:
		return "duplicate_username"
	default:
		return "unknown"
	}
}

// RegistrationResult is the outcome of Register. Exactly one of User or
// Validation is set for the Registered and ValidationFailed states; Username is
// the name that collided for DuplicateUsername.
type RegistrationResult struct {
	Status          RegistrationStatus
	User            *Profile
	Username        string
	DisplayUsername string
	Validation      *ValidationResult
}

// Err converts a failed outcome into the typed error transports render.
// It returns nil for a successful registration.
func (r *RegistrationResult) Err() error {
	switch r.Status {
	case RegistrationValidationFailed:
		return r.Validation.Err()
	case RegistrationDuplicateUsername:
		return apperrors.NewAlreadyExistsError("user",
			fmt.Sprintf("Sorry, the username %s already exists.", r.DisplayUsername))
	default:
		return nil
	}
}

// LoginStatus is the terminal state of a login attempt.
type LoginStatus int

const (
	LoginAuthenticated LoginStatus = iota + 1
	LoginValidationFailed
	LoginUserNotFound
	LoginPasswordMismatch
)

func (s LoginStatus) String() string {
	switch s {
	case LoginAuthenticated:
		return "authenticated"
	case LoginValidationFailed:
		return "validation_failed"
	case LoginUserNotFound:
		return "user_not_found"
	case LoginPasswordMismatch:
		return "password_mismatch"
	default:
		return "unknown"
	}
}

// LoginResult is the outcome of Login. UserNotFound and PasswordMismatch stay
// distinct here; Err renders them identically.
type LoginResult struct {
	Status     LoginStatus
	User       *Profile
	Validation *ValidationResult
}

// Err converts a failed outcome into the typed error transports render.
// It returns nil for a successful login.
func (r *LoginResult) Err() error {
	switch r.Status {
	case LoginValidationFailed:
		return r.Validation.Err()
	case LoginUserNotFound, LoginPasswordMismatch:
		return apperrors.NewUnauthenticatedError(MsgInvalidCredentials)
	default:
		return nil
	}
}
