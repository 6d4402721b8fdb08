package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "account-service/pkg/errors"
)

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:          "alice1",
		Email:             "a@x.com",
		Password:          "secret1",
		ConfirmedPassword: "secret1",
	}
}

func TestValidateRegistration_Valid(t *testing.T) {
	v := NewValidator()

	res := v.ValidateRegistration(validRegistration())

	require.True(t, res.Valid())
	assert.Empty(t, res.Message)
	assert.False(t, res.Mismatch)
	assert.Equal(t, "alice1", res.Fields.Username)
	assert.Equal(t, "a@x.com", res.Fields.Email)
	assert.Equal(t, "secret1", res.Fields.Password)
	assert.NoError(t, res.Err())
}

func TestValidateRegistration_UsernameLength(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{"empty", "", false},
		{"five characters", "abcde", false},
		{"six characters", "abcdef", true},
		{"twenty four characters", strings.Repeat("a", 24), true},
		{"twenty five characters", strings.Repeat("a", 25), false},
		{"short after trim", "   ab   ", false},
		{"padded but valid", "  alice1  ", true},
		{"multibyte counts runes", strings.Repeat("é", 6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration()
			req.Username = tt.username
			reg := v.ValidateRegistration(req)
			login := v.ValidateLogin(LoginRequest{Username: tt.username, Password: "secret1"})

			assert.Equal(t, tt.valid, reg.Valid())
			assert.Equal(t, tt.valid, login.Valid())
			if !tt.valid {
				assert.Equal(t, MsgInvalidRegistration, reg.Message)
				assert.Equal(t, MsgInvalidLogin, login.Message)
				require.Len(t, reg.Violations, 1)
				assert.Equal(t, "username", reg.Violations[0].Field)
			}
		})
	}
}

func TestValidateRegistration_PasswordLength(t *testing.T) {
	v := NewValidator()

	for _, pw := range []string{"", "12345", strings.Repeat("p", 25)} {
		req := validRegistration()
		req.Password = pw
		req.ConfirmedPassword = pw

		res := v.ValidateRegistration(req)

		assert.False(t, res.Valid(), "password %q", pw)
		assert.Equal(t, MsgInvalidRegistration, res.Message)
		assert.False(t, res.Mismatch)
	}
}

func TestValidateRegistration_MismatchOnly(t *testing.T) {
	v := NewValidator()
	req := validRegistration()
	req.ConfirmedPassword = "secret2"

	res := v.ValidateRegistration(req)

	require.False(t, res.Valid())
	assert.True(t, res.Mismatch)
	assert.Equal(t, MsgPasswordMismatch, res.Message)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "confirmedpassword", res.Violations[0].Field)
	assert.Equal(t, "confirmedpassword must match password", res.Violations[0].Reason)
}

func TestValidateRegistration_MismatchWithOtherViolations(t *testing.T) {
	v := NewValidator()
	req := validRegistration()
	req.Email = "not-an-email"
	req.ConfirmedPassword = "secret2"

	res := v.ValidateRegistration(req)

	require.False(t, res.Valid())
	assert.False(t, res.Mismatch)
	assert.Equal(t, MsgInvalidRegistration, res.Message)
	assert.Len(t, res.Violations, 2)
}

func TestValidateRegistration_ConfirmationComparedAfterTrim(t *testing.T) {
	v := NewValidator()
	req := validRegistration()
	req.ConfirmedPassword = "  secret1 "

	res := v.ValidateRegistration(req)

	assert.True(t, res.Valid())
}

func TestValidateRegistration_Email(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"plain", "bob@example.com", true},
		{"trimmed", "  bob@example.com  ", true},
		{"missing", "", false},
		{"no at sign", "bob.example.com", false},
		{"too long", strings.Repeat("b", 120) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration()
			req.Email = tt.email
			res := v.ValidateRegistration(req)
			assert.Equal(t, tt.valid, res.Valid())
			if !tt.valid {
				assert.Equal(t, "email", res.Violations[0].Field)
			}
		})
	}
}

func TestValidateRegistration_EscapesDisplayFields(t *testing.T) {
	v := NewValidator()
	req := validRegistration()
	req.Username = "<b>bob</b>"
	req.Email = "o'neil@example.com"

	res := v.ValidateRegistration(req)

	require.True(t, res.Valid())
	assert.Equal(t, "<b>bob</b>", res.Fields.Username)
	assert.Equal(t, "&lt;b&gt;bob&lt;/b&gt;", res.Fields.DisplayUsername)
	assert.Equal(t, "o&#39;neil@example.com", res.Fields.DisplayEmail)
}

func TestValidate_PasswordOverBcryptLimit(t *testing.T) {
	v := NewValidator()
	// 24 runes, 96 bytes
	pw := strings.Repeat("😀", 24)

	req := validRegistration()
	req.Password = pw
	req.ConfirmedPassword = pw
	reg := v.ValidateRegistration(req)
	login := v.ValidateLogin(LoginRequest{Username: "alice1", Password: pw})

	require.Len(t, reg.Violations, 1)
	assert.Equal(t, "bcryptlen", reg.Violations[0].Rule)
	assert.Equal(t, MsgInvalidRegistration, reg.Message)
	assert.False(t, login.Valid())
}

func TestValidateLogin(t *testing.T) {
	v := NewValidator()

	res := v.ValidateLogin(LoginRequest{Username: " alice1 ", Password: " secret1 "})
	require.True(t, res.Valid())
	assert.Equal(t, "alice1", res.Fields.Username)
	assert.Equal(t, "secret1", res.Fields.Password)

	res = v.ValidateLogin(LoginRequest{Username: "alice1"})
	require.False(t, res.Valid())
	assert.Equal(t, MsgInvalidLogin, res.Message)
	assert.Equal(t, "password is required", res.Violations[0].Reason)
}

func TestValidationResult_Err(t *testing.T) {
	v := NewValidator()
	req := validRegistration()
	req.Username = "al"

	err := v.ValidateRegistration(req).Err()

	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgInvalidRegistration, ve.Message)
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, "username", ve.Violations[0].Field)
	assert.Equal(t, "username must be at least 6 characters", ve.Violations[0].Description)
}
