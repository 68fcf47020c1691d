// Package users stores the bot's registered users and answers who is an
// administrator.
package users

import (
	"context"
	"time"
)

// User is a registered bot user
type User struct {
	ID          int64     `json:"id"`
	TelegramID  int64     `json:"telegram_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Language    string    `json:"language"`
	PhoneNumber string    `json:"phone_number"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store defines the interface for user persistence
type Store interface {
	// IsAdmin reports whether the user exists and is an administrator
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)

	// Admins returns every administrator, ordered by telegram id
	Admins(ctx context.Context) ([]User, error)

	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)

	// Register creates the user unless one with the same telegram id
	// exists. It returns the stored user and whether it was created.
	Register(ctx context.Context, u User) (*User, bool, error)

	// SetAdmin grants or revokes administrator rights. Granting to an
	// unknown telegram id creates a placeholder user.
	SetAdmin(ctx context.Context, telegramID int64, isAdmin bool) error
}
