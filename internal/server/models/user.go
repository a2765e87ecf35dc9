// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. Admins may create shared spaces.
type User struct {
	ID           string
	UserName     string
	PasswordSalt []byte
	PasswordHash []byte
	IsAdmin      bool
	// TwoFactorSeed holds a sealed blob produced by cryptox.Cipher, or "".
	TwoFactorSeed string
	CreatedAt     time.Time
}
