package security

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	apperrors "account-service/pkg/errors"
)

// Pool bounds how many hash computations run at once so CPU-bound hashing
// cannot starve request handling. Waiting for a slot honours ctx.
type Pool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
	size   int
}

// NewPool wraps hasher with a pool of size workers. size <= 0 means runtime.NumCPU().
func NewPool(hasher PasswordHasher, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
	}
}

// Size returns the number of concurrent workers.
func (p *Pool) Size() int {
	return p.size
}

// Hash hashes password once a worker slot is free.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", apperrors.NewHashingError("acquire hash worker", err)
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(password)
}

// Verify checks password against encodedHash once a worker slot is free.
func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, apperrors.NewHashingError("acquire hash worker", err)
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(password, encodedHash)
}
