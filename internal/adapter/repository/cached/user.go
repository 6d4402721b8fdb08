package cached

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"account-service/internal/adapter/cache"
	domain "account-service/internal/domain/user"
	"account-service/internal/usecase/user"
)

// CachedUserRepository wraps a persistent repository with a read-through
// cache for lookups by ID. Username lookups and inserts always go to the
// store, so the unique index and stored hashes stay authoritative. Users
// returned by GetByID carry no PasswordHash.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

// Create inserts through the store and warms the cache with the new user.
func (r *CachedUserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	created, err := r.dbRepo.Create(ctx, u)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, created); err != nil {
			r.log.Warn("failed to cache new user", zap.String("id", created.ID), zap.Error(err))
		}
	}
	return created, nil
}

// FindByUsername delegates to the store.
func (r *CachedUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.dbRepo.FindByUsername(ctx, username)
}

// GetByID retrieves a user by ID using the cache-aside pattern.
func (r *CachedUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			r.log.Warn("cache get error, falling back to database", zap.String("id", id), zap.Error(err))
		} else if cachedUser != nil {
			return cachedUser, nil
		}
	}

	// Collapse concurrent misses for the same ID into one store read.
	result, err, shared := r.group.Do(id, func() (any, error) {
		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, u); err != nil {
				r.log.Warn("failed to cache user", zap.String("id", id), zap.Error(err))
			}
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log.Debug("user lookup shared with concurrent request", zap.String("id", id))
	}

	u := *result.(*domain.User)
	u.PasswordHash = ""
	return &u, nil
}

// List delegates to the store.
func (r *CachedUserRepository) List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) {
	return r.dbRepo.List(ctx, query, page, limit)
}
