package user

import "time"

// User is the persisted credential record. Username is unique and immutable;
// PasswordHash never leaves the store and hasher boundary.
type User struct {
	ID           string    // ID is assigned by the store on insert
	Username     string    // Username is the trimmed, case-sensitive login name
	Email        string    // Email is the contact address (not unique)
	PasswordHash string    // PasswordHash is the salted hash of the password
	CreatedAt    time.Time // CreatedAt is set by the store on insert
	UpdatedAt    time.Time // UpdatedAt is set by the store on insert and update
}
