package user

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "account-service/pkg/errors"
	"account-service/pkg/security"
)

// User-facing validation messages. A lone confirmation mismatch gets its own
// message; every other failure collapses into the general rule.
const (
	MsgInvalidRegistration = "Invalid input. Email address must be valid, and the username and password must be 6 - 24 characters long."
	MsgInvalidLogin        = "Invalid input. The username and password must be completed and be 6 - 24 characters long."
	MsgPasswordMismatch    = "The password and confirmation password do not match."
)

const ruleMismatch = "eqfield"

// FieldViolation names one rejected field and why.
type FieldViolation struct {
	Field  string
	Rule   string
	Reason string
}

// NormalizedFields holds trimmed input. The Display fields are HTML-escaped
// copies for echoing back to users; Password is never escaped or displayed.
type NormalizedFields struct {
	Username        string
	Email           string
	Password        string
	DisplayUsername string
	DisplayEmail    string
}

// ValidationResult is either a normalized field set (no violations) or the
// list of violations with the message to show.
type ValidationResult struct {
	Fields     NormalizedFields
	Violations []FieldViolation
	Mismatch   bool
	Message    string
}

// Valid reports whether every rule passed.
func (r *ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns the violations as a typed validation error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid() {
		return nil
	}
	ve := apperrors.NewValidationError("", r.Message)
	for _, v := range r.Violations {
		ve.WithViolations(apperrors.FieldViolation{Field: v.Field, Description: v.Reason})
	}
	return ve
}

type registrationInput struct {
	Username          string `json:"username" validate:"required,min=6,max=24"`
	Email             string `json:"email" validate:"required,max=128,email"`
	Password          string `json:"password" validate:"required,min=6,max=24,bcryptlen"`
	ConfirmedPassword string `json:"confirmedpassword" validate:"required,min=6,max=24,eqfield=Password"`
}

type loginInput struct {
	Username string `json:"username" validate:"required,min=6,max=24"`
	Password string `json:"password" validate:"required,min=6,max=24,bcryptlen"`
}

// Validator checks credential form fields. It holds no request state and is
// safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator. Field names in violations follow the form
// field names (username, email, password, confirmedpassword).
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= security.BcryptMaxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

// ValidateRegistration trims and checks registration fields.
func (v *Validator) ValidateRegistration(in RegisterRequest) *ValidationResult {
	input := registrationInput{
		Username:          strings.TrimSpace(in.Username),
		Email:             strings.TrimSpace(in.Email),
		Password:          strings.TrimSpace(in.Password),
		ConfirmedPassword: strings.TrimSpace(in.ConfirmedPassword),
	}

	res := &ValidationResult{
		Fields:     normalize(input.Username, input.Email, input.Password),
		Violations: collectViolations(v.validate.Struct(input)),
	}

	switch {
	case res.Valid():
	case len(res.Violations) == 1 && res.Violations[0].Rule == ruleMismatch:
		res.Mismatch = true
		res.Message = MsgPasswordMismatch
	default:
		res.Message = MsgInvalidRegistration
	}
	return res
}

// ValidateLogin trims and checks login fields.
func (v *Validator) ValidateLogin(in LoginRequest) *ValidationResult {
	input := loginInput{
		Username: strings.TrimSpace(in.Username),
		Password: strings.TrimSpace(in.Password),
	}

	res := &ValidationResult{
		Fields:     normalize(input.Username, "", input.Password),
		Violations: collectViolations(v.validate.Struct(input)),
	}
	if !res.Valid() {
		res.Message = MsgInvalidLogin
	}
	return res
}

func normalize(username, email, password string) NormalizedFields {
	return NormalizedFields{
		Username:        username,
		Email:           email,
		Password:        password,
		DisplayUsername: html.EscapeString(username),
		DisplayEmail:    html.EscapeString(email),
	}
}

// collectViolations turns validator errors into human-readable violations.
func collectViolations(err error) []FieldViolation {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldViolation{{Rule: "invalid", Reason: err.Error()}}
	}

	violations := make([]FieldViolation, 0, len(validationErrors))
	for _, e := range validationErrors {
		var reason string
		switch e.Tag() {
		case "required":
			reason = fmt.Sprintf("%s is required", e.Field())
		case "email":
			reason = fmt.Sprintf("%s must be a valid email", e.Field())
		case "min":
			reason = fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
		case "max":
			reason = fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
		case "bcryptlen":
			reason = fmt.Sprintf("%s must be at most %d bytes", e.Field(), security.BcryptMaxPasswordBytes)
		case ruleMismatch:
			reason = fmt.Sprintf("%s must match %s", e.Field(), strings.ToLower(e.Param()))
		default:
			reason = fmt.Sprintf("%s is invalid", e.Field())
		}
		violations = append(violations, FieldViolation{Field: e.Field(), Rule: e.Tag(), Reason: reason})
	}
	return violations
}
