package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"account-service/internal/domain/user"
	"account-service/pkg/security"
)

// UserRepoPG implements the user record store on GORM. It runs against
// PostgreSQL in production and SQLite in tests and local development.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
// The unique index on username is the only guard against duplicate accounts.
type UserSchema struct {
	ID           string    `gorm:"primaryKey;size:36"`                              // UUID assigned on insert
	Username     string    `gorm:"size:24;not null;uniqueIndex:idx_users_username"` // Case-sensitive login name
	Email        string    `gorm:"size:128;not null"`                               // Contact address, not unique
	PasswordHash string    `gorm:"column:password_hash;not null"`                   // Salted hash, never plaintext
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime"`       // Set on insert
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`       // Set on insert and update
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// AutoMigrate creates or updates the users table and its indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// Create inserts a new user. A username collision is reported as
// user.ErrDuplicateUsername, whichever concurrent insert loses.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := UserSchema{
		ID:           uuid.NewString(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("username rejected by unique index", zap.String("username", u.Username))
			return nil, fmt.Errorf("failed to create user %q: %w", u.Username, user.ErrDuplicateUsername)
		}
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("username", u.Username))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.log.Info("user created in db", zap.String("id", model.ID))
	return toEntity(&model), nil
}

// FindByUsername returns the user with exactly this username, or nil, nil.
func (r *UserRepoPG) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found by username", zap.String("username", username))
			return nil, nil
		}
		r.log.Error("failed to get user by username from db", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return toEntity(&model), nil
}

// GetByID retrieves a user by ID, or user.ErrNotFound.
func (r *UserRepoPG) GetByID(ctx context.Context, id string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("user not found", zap.String("id", id))
			return nil, fmt.Errorf("id=%s: %w", id, user.ErrNotFound)
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toEntity(&model), nil
}

// List returns one page of users whose username or email contains query,
// ordered by username, and the total number of matches.
func (r *UserRepoPG) List(ctx context.Context, query string, page, limit int64) ([]user.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&UserSchema{})
	if query != "" {
		pattern := "%" + security.SanitizeSearchString(query) + "%"
		tx = tx.Where(`username LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		r.log.Error("failed to count users in db", zap.Error(err), zap.String("query", query))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var models []UserSchema
	if err := tx.Order("username ASC").Offset(int((page - 1) * limit)).Limit(int(limit)).Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.String("query", query), zap.Int64("page", page), zap.Int64("limit", limit))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *toEntity(&models[i])
	}

	return users, total, nil
}

// Ping checks the database connection.
func (r *UserRepoPG) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func toEntity(m *UserSchema) *user.User {
	return &user.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// isUniqueViolation recognises a unique-constraint failure from either driver,
// translated by GORM or not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
