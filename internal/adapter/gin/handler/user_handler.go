package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"account-service/internal/usecase/user"
	apperrors "account-service/pkg/errors"
	"account-service/pkg/logger"
)

// UserHandler handles HTTP requests for the account workflows
type UserHandler struct {
	svc user.Service
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(svc user.Service, log *zap.Logger) *UserHandler {
	return &UserHandler{
		svc: svc,
		log: log,
	}
}

// RegisterRequest is the registration form, accepted as JSON or form data.
// Fields are checked by the usecase, not by binding tags.
type RegisterRequest struct {
	Username          string `json:"username" form:"username"`
	Email             string `json:"email" form:"email"`
	Password          string `json:"password" form:"password"`
	ConfirmedPassword string `json:"confirmedpassword" form:"confirmedpassword"`
	// ConfirmedPasswordAlias is read when confirmedpassword is empty.
	ConfirmedPasswordAlias string `json:"confirmed_password" form:"confirmed_password"`
}

func (r RegisterRequest) confirmation() string {
	if r.ConfirmedPassword != "" {
		return r.ConfirmedPassword
	}
	return r.ConfirmedPasswordAlias
}

// statusClientClosedRequest is the de facto status for a client that went away.
const statusClientClosedRequest = 499

// LoginRequest is the login form, accepted as JSON or form data.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// ListUsersQuery holds the query parameters of GET /v1/users
type ListUsersQuery struct {
	Query string `form:"q"`
	Page  int64  `form:"page" binding:"omitempty,gte=1"`
	Limit int64  `form:"limit" binding:"omitempty,gte=1"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountResponse wraps the user returned by register and login
type AccountResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// ListUsersResponse represents the HTTP response for listing users
type ListUsersResponse struct {
	Users      []UserResponse `json:"users"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

// Pagination represents pagination information
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	TotalPages int64 `json:"total_pages"`
}

// FieldViolation names a rejected field
type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string           `json:"error"`
	Message    string           `json:"message,omitempty"`
	Violations []FieldViolation `json:"violations,omitempty"`
}

// Register handles POST /v1/register
func (h *UserHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warn("Invalid register request", zap.Error(err))
		h.badRequest(c, "malformed request body")
		return
	}

	res, err := h.svc.Register(ctx, user.RegisterRequest{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		ConfirmedPassword: req.confirmation(),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := res.Err(); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AccountResponse{
		Message: "Registration successful. Welcome, " + res.DisplayUsername + ".",
		User:    toUserResponse(res.User),
	})
}

// Login handles POST /v1/login
func (h *UserHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warn("Invalid login request", zap.Error(err))
		h.badRequest(c, "malformed request body")
		return
	}

	res, err := h.svc.Login(ctx, user.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := res.Err(); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, AccountResponse{
		Message: "Login successful.",
		User:    toUserResponse(res.User),
	})
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	profile, err := h.svc.GetUser(c.Request.Context(), user.GetUserRequest{ID: c.Param("id")})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(profile))
}

// ListUsers handles GET /v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	var q ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.WithContext(ctx, h.log).Warn("Invalid list users query", zap.Error(err))
		h.badRequest(c, "page and limit must be positive integers")
		return
	}

	resp, err := h.svc.ListUsers(ctx, user.ListUsersRequest{
		Query: q.Query,
		Page:  q.Page,
		Limit: q.Limit,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i := range resp.Users {
		users[i] = toUserResponse(&resp.Users[i])
	}

	var pagination *Pagination
	if resp.Pagination != nil {
		pagination = &Pagination{
			Total:      resp.Pagination.Total,
			Page:       resp.Pagination.Page,
			Limit:      resp.Pagination.Limit,
			TotalPages: resp.Pagination.TotalPages,
		}
	}

	c.JSON(http.StatusOK, ListUsersResponse{
		Users:      users,
		Pagination: pagination,
	})
}

func (h *UserHandler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_argument",
		Message: message,
	})
}

// handleError converts usecase errors to HTTP responses. Infrastructure
// failures are logged in full and returned as an opaque 500.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	var (
		validationErr *apperrors.ValidationError
		existsErr     *apperrors.AlreadyExistsError
		authErr       *apperrors.UnauthenticatedError
		notFoundErr   *apperrors.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		resp := ErrorResponse{Error: "invalid_argument", Message: validationErr.Message}
		for _, v := range validationErr.Violations {
			resp.Violations = append(resp.Violations, FieldViolation{Field: v.Field, Description: v.Description})
		}
		if len(resp.Violations) == 0 && validationErr.Field != "" {
			resp.Violations = []FieldViolation{{Field: validationErr.Field, Description: validationErr.Message}}
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &existsErr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already_exists", Message: existsErr.Message})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: authErr.Message})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: notFoundErr.Message})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "deadline_exceeded", Message: "request timed out"})
	case errors.Is(err, context.Canceled):
		logger.WithContext(c.Request.Context(), h.log).Info("request canceled", zap.String("path", c.FullPath()))
		c.JSON(statusClientClosedRequest, ErrorResponse{Error: "canceled", Message: "request canceled"})
	default:
		logger.WithContext(c.Request.Context(), h.log).Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		})
	}
}

func toUserResponse(p *user.Profile) UserResponse {
	return UserResponse{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
	}
}
