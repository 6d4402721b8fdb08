package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "account-service/internal/domain/user"
	usecase "account-service/internal/usecase/user"
	apperrors "account-service/pkg/errors"
)

// MockService is a mock implementation of user.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, req usecase.RegisterRequest) (*usecase.RegistrationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RegistrationResult), args.Error(1)
}

func (m *MockService) Login(ctx context.Context, req usecase.LoginRequest) (*usecase.LoginResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.LoginResult), args.Error(1)
}

func (m *MockService) GetUser(ctx context.Context, req usecase.GetUserRequest) (*usecase.Profile, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Profile), args.Error(1)
}

func (m *MockService) ListUsers(ctx context.Context, req usecase.ListUsersRequest) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func setupTest(t *testing.T) (*gin.Engine, *MockService) {
	gin.SetMode(gin.TestMode)
	svc := new(MockService)
	h := NewUserHandler(svc, zaptest.NewLogger(t))

	r := gin.New()
	r.POST("/v1/register", h.Register)
	r.POST("/v1/login", h.Login)
	r.GET("/v1/users", h.ListUsers)
	r.GET("/v1/users/:id", h.GetUser)
	return r, svc
}

func profile() *usecase.Profile {
	return &usecase.Profile{
		ID:        "7f1c2b7e-9a43-4f59-b3de-1f6d8c0a2e11",
		Username:  "alice1",
		Email:     "a@x.com",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRegister(t *testing.T) {
	registerReq := usecase.RegisterRequest{
		Username: "alice1", Email: "a@x.com", Password: "secret1", ConfirmedPassword: "secret1",
	}
	body := map[string]string{
		"username": "alice1", "email": "a@x.com", "password": "secret1", "confirmedpassword": "secret1",
	}

	t.Run("Success", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, registerReq).Return(&usecase.RegistrationResult{
			Status:          usecase.RegistrationRegistered,
			User:            profile(),
			Username:        "alice1",
			DisplayUsername: "alice1",
		}, nil)

		w := postJSON(r, "/v1/register", body)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp AccountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "alice1", resp.User.Username)
		assert.Contains(t, resp.Message, "Welcome, alice1")
		assert.NotContains(t, w.Body.String(), "secret1")
		svc.AssertExpectations(t)
	})

	t.Run("Form data", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, registerReq).Return(&usecase.RegistrationResult{
			Status: usecase.RegistrationRegistered, User: profile(), DisplayUsername: "alice1",
		}, nil)

		form := url.Values{}
		for k, v := range body {
			form.Set(k, v)
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/register", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Password mismatch", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, mock.Anything).Return(&usecase.RegistrationResult{
			Status: usecase.RegistrationValidationFailed,
			Validation: &usecase.ValidationResult{
				Violations: []usecase.FieldViolation{{Field: "confirmedpassword", Rule: "eqfield", Reason: "confirmedpassword must match password"}},
				Mismatch:   true,
				Message:    usecase.MsgPasswordMismatch,
			},
		}, nil)

		w := postJSON(r, "/v1/register", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "invalid_argument", resp.Error)
		assert.Equal(t, usecase.MsgPasswordMismatch, resp.Message)
		require.Len(t, resp.Violations, 1)
		assert.Equal(t, "confirmedpassword", resp.Violations[0].Field)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, mock.Anything).Return(&usecase.RegistrationResult{
			Status:          usecase.RegistrationDuplicateUsername,
			Username:        "alice1",
			DisplayUsername: "alice1",
		}, nil)

		w := postJSON(r, "/v1/register", body)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Sorry, the username alice1 already exists.", decodeError(t, w).Message)
	})

	t.Run("Storage failure is opaque", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewStorageError("create user", errors.New("pq: connection refused")))

		w := postJSON(r, "/v1/register", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decodeError(t, w).Message)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("Confirmed password alias", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, registerReq).Return(&usecase.RegistrationResult{
			Status: usecase.RegistrationRegistered, User: profile(), DisplayUsername: "alice1",
		}, nil)

		w := postJSON(r, "/v1/register", map[string]string{
			"username": "alice1", "email": "a@x.com", "password": "secret1", "confirmed_password": "secret1",
		})

		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("Canonical field wins over alias", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, registerReq).Return(&usecase.RegistrationResult{
			Status: usecase.RegistrationRegistered, User: profile(), DisplayUsername: "alice1",
		}, nil)

		form := url.Values{}
		for k, v := range body {
			form.Set(k, v)
		}
		form.Set("confirmed_password", "ignored")
		req := httptest.NewRequest(http.MethodPost, "/v1/register", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Canceled request", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("register: %w", context.Canceled))

		w := postJSON(r, "/v1/register", body)

		assert.Equal(t, statusClientClosedRequest, w.Code)
		assert.Equal(t, "canceled", decodeError(t, w).Error)
	})

	t.Run("Deadline exceeded", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewHashingError("acquire hash worker", context.DeadlineExceeded))

		w := postJSON(r, "/v1/register", body)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("Malformed body", func(t *testing.T) {
		r, svc := setupTest(t)
		req := httptest.NewRequest(http.MethodPost, "/v1/register", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	body := map[string]string{"username": "alice1", "password": "secret1"}

	t.Run("Success", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Login", mock.Anything, usecase.LoginRequest{Username: "alice1", Password: "secret1"}).
			Return(&usecase.LoginResult{Status: usecase.LoginAuthenticated, User: profile()}, nil)

		w := postJSON(r, "/v1/login", body)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp AccountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, profile().ID, resp.User.ID)
	})

	t.Run("Unknown user and wrong password look the same", func(t *testing.T) {
		var bodies []string
		for _, status := range []usecase.LoginStatus{usecase.LoginUserNotFound, usecase.LoginPasswordMismatch} {
			r, svc := setupTest(t)
			svc.On("Login", mock.Anything, mock.Anything).Return(&usecase.LoginResult{Status: status}, nil)

			w := postJSON(r, "/v1/login", body)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			bodies = append(bodies, w.Body.String())
		}
		assert.Equal(t, bodies[0], bodies[1])
		assert.Contains(t, bodies[0], usecase.MsgInvalidCredentials)
	})

	t.Run("Validation failed", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Login", mock.Anything, mock.Anything).Return(&usecase.LoginResult{
			Status: usecase.LoginValidationFailed,
			Validation: &usecase.ValidationResult{
				Violations: []usecase.FieldViolation{{Field: "password", Rule: "required", Reason: "password is required"}},
				Message:    usecase.MsgInvalidLogin,
			},
		}, nil)

		w := postJSON(r, "/v1/login", map[string]string{"username": "alice1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, usecase.MsgInvalidLogin, decodeError(t, w).Message)
	})

	t.Run("Hashing failure is opaque", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("Login", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewHashingError("verify password", errors.New("boom")))

		w := postJSON(r, "/v1/login", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGetUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: profile().ID}).Return(profile(), nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/"+profile().ID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "alice1", resp.Username)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("Not found", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("GetUser", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("user", "user not found"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/"+profile().ID, nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Invalid id", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: "abc"}).Return(nil, apperrors.NewValidationError("id", "invalid user id"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users/abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		require.Len(t, resp.Violations, 1)
		assert.Equal(t, "id", resp.Violations[0].Field)
	})
}

func TestListUsers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("ListUsers", mock.Anything, usecase.ListUsersRequest{Query: "ali", Page: 2, Limit: 5}).
			Return(&usecase.ListUsersResponse{
				Users:      []usecase.Profile{*profile()},
				Pagination: domain.NewPagination(6, 2, 5),
			}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users?q=ali&page=2&limit=5", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ListUsersResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Users, 1)
		require.NotNil(t, resp.Pagination)
		assert.Equal(t, int64(2), resp.Pagination.TotalPages)
	})

	t.Run("Bad page", func(t *testing.T) {
		r, svc := setupTest(t)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users?page=abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
	})

	t.Run("Invalid query", func(t *testing.T) {
		r, svc := setupTest(t)
		svc.On("ListUsers", mock.Anything, mock.Anything).Return(nil, apperrors.NewValidationError("query", "search query contains invalid characters"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/users?q=%27", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
