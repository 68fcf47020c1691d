package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "subgate-bot/internal/errors"
	"subgate-bot/internal/storage"
)

const userColumns = `id, telegram_id, first_name, last_name, language, phone_number, is_admin, created_at, updated_at`

// SQLStore implements Store on SQLite or PostgreSQL
type SQLStore struct {
	db  *storage.DB
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a user store on an opened database
func NewSQLStore(db *storage.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.FirstName,
		&u.LastName,
		&u.Language,
		&u.PhoneNumber,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// IsAdmin checks if a user is an administrator
func (s *SQLStore) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT 1 FROM users WHERE telegram_id = ? AND is_admin = ?`,
	), telegramID, true).Scan(&exists)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check admin status: %w", err)
	}
	return true, nil
}

// Admins lists all administrators
func (s *SQLStore) Admins(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE is_admin = ? ORDER BY telegram_id`,
	), true)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list admins: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return out, nil
}

// GetByTelegramID retrieves a user by telegram id
func (s *SQLStore) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`,
	), telegramID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %d: %w", telegramID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return u, nil
}

// Register stores a user on first contact
func (s *SQLStore) Register(ctx context.Context, u User) (*User, bool, error) {
	if u.TelegramID == 0 {
		return nil, false, fmt.Errorf("register user: telegram id is required")
	}
	if u.Language == "" {
		u.Language = "en"
	}
	now := s.now().UTC().Truncate(time.Microsecond)

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (telegram_id, first_name, last_name, language, phone_number, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO NOTHING
	`), u.TelegramID, strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName), u.Language, u.PhoneNumber, false, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("register user %d: %w", u.TelegramID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("register user %d: %w", u.TelegramID, err)
	}

	stored, err := s.GetByTelegramID(ctx, u.TelegramID)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

// SetAdmin grants or revokes administrator rights
func (s *SQLStore) SetAdmin(ctx context.Context, telegramID int64, isAdmin bool) error {
	now := s.now().UTC().Truncate(time.Microsecond)

	if isAdmin {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO users (telegram_id, first_name, is_admin, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (telegram_id) DO UPDATE SET
				is_admin = excluded.is_admin,
				updated_at = excluded.updated_at
		`), telegramID, "", true, now, now)
		if err != nil {
			return fmt.Errorf("grant admin %d: %w", telegramID, err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET is_admin = ?, updated_at = ? WHERE telegram_id = ?`,
	), false, now, telegramID)
	if err != nil {
		return fmt.Errorf("revoke admin %d: %w", telegramID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke admin %d: %w", telegramID, err)
	}
	if n == 0 {
		return fmt.Errorf("revoke admin %d: %w", telegramID, apperrors.ErrNotFound)
	}
	return nil
}
