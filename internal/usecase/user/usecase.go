package user

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "account-service/internal/domain/user"
	apperrors "account-service/pkg/errors"
	"account-service/pkg/logger"
	"account-service/pkg/security"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// maxOffset bounds (page-1)*limit so the store offset never overflows.
	maxOffset = math.MaxInt32

	decoyPassword = "account-service-decoy"
)

// Usecase implements the registration and login workflows over a Repository
// and a PasswordHasher. It keeps no per-request state.
type Usecase struct {
	repo      Repository     // Store of user records
	hasher    PasswordHasher // Salted password hashing
	validator *Validator     // Field rules
	log       *zap.Logger    // Logger for structured logging
	recorder  Recorder       // Outcome sink

	decoyMu sync.Mutex
	decoy   string // Hash verified against when the username is unknown
}

// Option configures a Usecase.
type Option func(*Usecase)

// WithRecorder reports workflow outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(uc *Usecase) {
		if r != nil {
			uc.recorder = r
		}
	}
}

// WithDecoyHash sets the hash Login verifies against for unknown usernames.
// Without it the decoy is hashed on first use.
func WithDecoyHash(hash string) Option {
	return func(uc *Usecase) {
		uc.decoy = hash
	}
}

// New creates a Usecase. All collaborators are explicit; there is no shared
// package-level state.
func New(r Repository, h PasswordHasher, v *Validator, log *zap.Logger, opts ...Option) *Usecase {
	uc := &Usecase{
		repo:      r,
		hasher:    h,
		validator: v,
		log:       log,
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Register validates the fields, rejects taken usernames, hashes the password
// and inserts the user. The lookup only saves hashing work for names that are
// already taken; the store's unique index decides concurrent races.
func (uc *Usecase) Register(ctx context.Context, in RegisterRequest) (*RegistrationResult, error) {
	log := logger.WithContext(ctx, uc.log)

	vr := uc.validator.ValidateRegistration(in)
	if !vr.Valid() {
		log.Warn("registration validation failed",
			zap.Bool("mismatch", vr.Mismatch),
			zap.Int("violations", len(vr.Violations)),
		)
		return uc.registration(&RegistrationResult{Status: RegistrationValidationFailed, Validation: vr}), nil
	}
	f := vr.Fields

	existing, err := uc.repo.FindByUsername(ctx, f.Username)
	if err != nil {
		log.Error("failed to look up username", zap.String("username", f.Username), zap.Error(err))
		return nil, apperrors.NewStorageError("find user by username", err)
	}
	if existing != nil {
		log.Warn("username already exists", zap.String("username", f.Username))
		return uc.registration(duplicate(f)), nil
	}

	hash, err := uc.hasher.Hash(ctx, f.Password)
	if err != nil {
		log.Error("failed to hash password", zap.String("username", f.Username), zap.Error(err))
		return nil, hashingError("hash password", err)
	}

	// A caller that gave up while we were hashing gets nothing persisted.
	if err := ctx.Err(); err != nil {
		log.Warn("registration abandoned before insert", zap.String("username", f.Username), zap.Error(err))
		return nil, fmt.Errorf("register: %w", err)
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		Username:     f.Username,
		Email:        f.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			log.Warn("username claimed by a concurrent registration", zap.String("username", f.Username))
			return uc.registration(duplicate(f)), nil
		}
		log.Error("failed to create user", zap.String("username", f.Username), zap.Error(err))
		return nil, apperrors.NewStorageError("create user", err)
	}

	log.Info("user registered", zap.String("id", created.ID), zap.String("username", created.Username))
	return uc.registration(&RegistrationResult{
		Status:          RegistrationRegistered,
		User:            toProfile(created),
		Username:        created.Username,
		DisplayUsername: f.DisplayUsername,
	}), nil
}

// Login validates the fields, loads the user and verifies the password.
func (uc *Usecase) Login(ctx context.Context, in LoginRequest) (*LoginResult, error) {
	log := logger.WithContext(ctx, uc.log)

	vr := uc.validator.ValidateLogin(in)
	if !vr.Valid() {
		log.Warn("login validation failed", zap.Int("violations", len(vr.Violations)))
		return uc.login(&LoginResult{Status: LoginValidationFailed, Validation: vr}), nil
	}
	f := vr.Fields

	u, err := uc.repo.FindByUsername(ctx, f.Username)
	if err != nil {
		log.Error("failed to look up username", zap.String("username", f.Username), zap.Error(err))
		return nil, apperrors.NewStorageError("find user by username", err)
	}
	if u == nil {
		// Pay for one verify so unknown usernames answer as slowly as known ones.
		if decoy := uc.decoyHash(ctx); decoy != "" {
			_, _ = uc.hasher.Verify(ctx, f.Password, decoy)
		}
		log.Info("login for unknown username", zap.String("username", f.Username))
		return uc.login(&LoginResult{Status: LoginUserNotFound}), nil
	}

	ok, err := uc.hasher.Verify(ctx, f.Password, u.PasswordHash)
	if err != nil {
		log.Error("failed to verify password", zap.String("id", u.ID), zap.Error(err))
		return nil, hashingError("verify password", err)
	}
	if !ok {
		log.Info("login password mismatch", zap.String("id", u.ID))
		return uc.login(&LoginResult{Status: LoginPasswordMismatch}), nil
	}

	log.Info("user authenticated", zap.String("id", u.ID), zap.String("username", u.Username))
	return uc.login(&LoginResult{Status: LoginAuthenticated, User: toProfile(u)}), nil
}

// GetUser returns the public profile of one user.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*Profile, error) {
	log := logger.WithContext(ctx, uc.log)

	if _, err := uuid.Parse(in.ID); err != nil {
		log.Warn("get user validation failed", zap.String("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user", "user not found")
		}
		log.Error("failed to get user", zap.String("id", in.ID), zap.Error(err))
		return nil, apperrors.NewStorageError("get user", err)
	}
	return toProfile(u), nil
}

// ListUsers returns a page of public profiles, optionally filtered by a
// username or email fragment.
func (uc *Usecase) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.Page <= 0 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = defaultPageSize
	}
	if in.Limit > maxPageSize {
		in.Limit = maxPageSize
	}
	if in.Page > maxOffset/in.Limit+1 {
		log.Warn("list users validation failed", zap.Int64("page", in.Page), zap.String("reason", "page out of range"))
		return nil, apperrors.NewValidationError("page", "page is out of range")
	}

	query, err := security.ValidateSearchQuery(in.Query)
	if err != nil {
		log.Warn("invalid search query", zap.String("query", in.Query), zap.Error(err))
		return nil, apperrors.NewValidationError("query", err.Error())
	}

	users, total, err := uc.repo.List(ctx, query, in.Page, in.Limit)
	if err != nil {
		log.Error("failed to list users", zap.String("query", query), zap.Int64("page", in.Page), zap.Int64("limit", in.Limit), zap.Error(err))
		return nil, apperrors.NewStorageError("list users", err)
	}

	profiles := make([]Profile, len(users))
	for i := range users {
		profiles[i] = *toProfile(&users[i])
	}

	return &ListUsersResponse{
		Users:      profiles,
		Pagination: domain.NewPagination(total, in.Page, in.Limit),
	}, nil
}

// decoyHash returns the decoy hash, hashing it with the configured algorithm on
// first use. It returns "" when hashing fails.
func (uc *Usecase) decoyHash(ctx context.Context) string {
	uc.decoyMu.Lock()
	defer uc.decoyMu.Unlock()
	if uc.decoy == "" {
		h, err := uc.hasher.Hash(ctx, decoyPassword)
		if err != nil {
			logger.WithContext(ctx, uc.log).Warn("failed to prepare decoy hash", zap.Error(err))
			return ""
		}
		uc.decoy = h
	}
	return uc.decoy
}

func (uc *Usecase) registration(r *RegistrationResult) *RegistrationResult {
	uc.recorder.RecordRegistration(r.Status.String())
	return r
}

func (uc *Usecase) login(r *LoginResult) *LoginResult {
	uc.recorder.RecordLogin(r.Status.String())
	return r
}

func duplicate(f NormalizedFields) *RegistrationResult {
	return &RegistrationResult{
		Status:          RegistrationDuplicateUsername,
		Username:        f.Username,
		DisplayUsername: f.DisplayUsername,
	}
}

func hashingError(op string, err error) error {
	var he *apperrors.HashingError
	if errors.As(err, &he) {
		return err
	}
	return apperrors.NewHashingError(op, err)
}
