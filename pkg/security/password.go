package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	apperrors "account-service/pkg/errors"
)

// Algorithm names a supported password hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultBcryptCost matches the work factor existing accounts were created with.
const DefaultBcryptCost = 10

// BcryptMaxPasswordBytes is the longest input bcrypt accepts.
const BcryptMaxPasswordBytes = 72

// argon2id parameters (OWASP baseline).
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

var (
	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrUnknownHashFormat is returned when a stored hash matches no supported scheme.
	ErrUnknownHashFormat = errors.New("unrecognised password hash format")
)

// PasswordHasher hashes and verifies passwords. Every Hash call draws a fresh
// salt and embeds it in the returned string, so Verify needs only the plaintext
// and the stored hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns (false, nil) on mismatch; an error means the hash could not be checked.
	Verify(password, encodedHash string) (bool, error)
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher. A zero cost selects DefaultBcryptCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", apperrors.NewHashingError("bcrypt hash", ErrEmptyPassword)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", apperrors.NewHashingError("bcrypt hash", err)
	}
	return string(b), nil
}

// Verify checks the password against a bcrypt hash in constant time.
func (h *BcryptHasher) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperrors.NewHashingError("bcrypt verify", err)
	}
}

// Argon2idHasher implements PasswordHasher using argon2id with PHC-encoded output.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", apperrors.NewHashingError("argon2id hash", ErrEmptyPassword)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", apperrors.NewHashingError("argon2id salt", err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the argon2id key with the parameters stored in the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	invalid := func(err error) (bool, error) {
		return false, apperrors.NewHashingError("argon2id verify", err)
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != string(AlgorithmArgon2id) {
		return invalid(ErrUnknownHashFormat)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return invalid(err)
	}
	if version != argon2.Version {
		return invalid(fmt.Errorf("unsupported argon2 version %d", version))
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return invalid(err)
	}
	if threads == 0 || threads > 255 {
		return invalid(fmt.Errorf("threads value %d out of range", threads))
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return invalid(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return invalid(err)
	}
	if len(expected) == 0 || len(expected) > 1024 {
		return invalid(fmt.Errorf("invalid key length %d", len(expected)))
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// Hasher hashes with one configured algorithm and verifies hashes of any
// supported algorithm, so changing the default does not lock out existing users.
type Hasher struct {
	primary Algorithm
	bcrypt  *BcryptHasher
	argon2  *Argon2idHasher
}

// NewHasher creates a Hasher whose Hash uses alg.
func NewHasher(alg Algorithm, bcryptCost int) (*Hasher, error) {
	bh, err := NewBcryptHasher(bcryptCost)
	if err != nil {
		return nil, err
	}

	switch alg {
	case "":
		alg = AlgorithmBcrypt
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", alg)
	}

	return &Hasher{
		primary: alg,
		bcrypt:  bh,
		argon2:  NewArgon2idHasher(),
	}, nil
}

// Algorithm reports which scheme new hashes use.
func (h *Hasher) Algorithm() Algorithm {
	return h.primary
}

// Hash hashes with the configured algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if h.primary == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify dispatches on the hash prefix.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return h.argon2.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return h.bcrypt.Verify(password, encodedHash)
	default:
		return false, apperrors.NewHashingError("verify", ErrUnknownHashFormat)
	}
}
