package channels

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

const requirementColumns = `id, name, link, channel_id, is_active, expires_at, created_at, updated_at`

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// sortColumns lists the columns an administrator may order by
var sortColumns = map[string]bool{
	"id":         true,
	"name":       true,
	"channel_id": true,
	"expires_at": true,
	"created_at": true,
	"updated_at": true,
}

// filterColumns lists the boolean columns usable as a list filter
var filterColumns = map[string]bool{
	"is_active": true,
}

// SQLStore implements Store on SQLite or PostgreSQL
type SQLStore struct {
	db  *storage.DB
	now func() time.Time
}

// Compile-time check that SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a channel store on an opened database
func NewSQLStore(db *storage.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row rowScanner) (*Requirement, error) {
	var r Requirement
	if err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Link,
		&r.ExternalID,
		&r.IsActive,
		&r.ExpiresAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func (s *SQLStore) queryRequirements(ctx context.Context, db storage.Executor, query string, args ...any) ([]Requirement, error) {
	rows, err := db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Requirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveRequirements returns requirements with is_active and expires_at > now
func (s *SQLStore) ActiveRequirements(ctx context.Context, now time.Time) ([]Requirement, error) {
	reqs, err := s.queryRequirements(ctx, s.db, `
		SELECT `+requirementColumns+`
		FROM channels
		WHERE is_active = ? AND expires_at > ?
		ORDER BY id
	`, true, normalizeTime(now))
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	return reqs, nil
}

// LapsedRequirements returns requirements with is_active and expires_at < now
func (s *SQLStore) LapsedRequirements(ctx context.Context, now time.Time) ([]Requirement, error) {
	reqs, err := s.queryRequirements(ctx, s.db, `
		SELECT `+requirementColumns+`
		FROM channels
		WHERE is_active = ? AND expires_at < ?
		ORDER BY id
	`, true, normalizeTime(now))
	if err != nil {
		return nil, fmt.Errorf("list lapsed channels: %w", err)
	}
	return reqs, nil
}

// Create inserts a new requirement
func (s *SQLStore) Create(ctx context.Context, in CreateInput) (*Requirement, error) {
	r, err := in.requirement(s.now())
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, s.db.Rebind(`
		INSERT INTO channels (name, link, channel_id, is_active, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), r.Name, r.Link, r.ExternalID, r.IsActive, r.ExpiresAt, r.CreatedAt, r.UpdatedAt).Scan(&r.ID)
	if err != nil {
		if s.db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create channel %d: %w", r.ExternalID, apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return &r, nil
}

// Get retrieves a requirement by id
func (s *SQLStore) Get(ctx context.Context, id int64) (*Requirement, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQLStore) get(ctx context.Context, db storage.Executor, id int64) (*Requirement, error) {
	row := db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+requirementColumns+` FROM channels WHERE id = ?`), id)
	r, err := scanRequirement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get channel %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %d: %w", id, err)
	}
	return r, nil
}

// GetByExternalID retrieves a requirement by its stored chat id
func (s *SQLStore) GetByExternalID(ctx context.Context, externalID int64) (*Requirement, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+requirementColumns+` FROM channels WHERE channel_id = ?`), externalID)
	r, err := scanRequirement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get channel by chat id %d: %w", externalID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel by chat id %d: %w", externalID, err)
	}
	return r, nil
}

// List returns a page of requirements for administration
func (s *SQLStore) List(ctx context.Context, params ListParams) ([]Requirement, error) {
	var (
		where []string
		args  []any
	)
	if search := strings.TrimSpace(params.Search); search != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	if col, want, ok := parseFilterClause(params.Filter); ok {
		where = append(where, col+" = ?")
		args = append(args, want)
	}

	query := `SELECT ` + requirementColumns + ` FROM channels`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + parseSortClause(params.Sort) + ` LIMIT ? OFFSET ?`

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	reqs, err := s.queryRequirements(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return reqs, nil
}

// Update applies a partial update inside a transaction
func (s *SQLStore) Update(ctx context.Context, id int64, in UpdateInput) (*Requirement, error) {
	var updated *Requirement
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		r, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := in.apply(r, s.now()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			UPDATE channels
			SET name = ?, link = ?, channel_id = ?, is_active = ?, expires_at = ?, updated_at = ?
			WHERE id = ?
		`), r.Name, r.Link, r.ExternalID, r.IsActive, r.ExpiresAt, r.UpdatedAt, r.ID)
		if err != nil {
			if s.db.IsUniqueViolation(err) {
				return fmt.Errorf("update channel %d: %w", id, apperrors.ErrConflict)
			}
			return fmt.Errorf("update channel %d: %w", id, err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a requirement
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM channels WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete channel %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete channel %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete channel %d: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// parseSortClause maps "-col" / "col" to an ORDER BY clause, falling back
// to id order for anything not whitelisted.
func parseSortClause(sort string) string {
	sort = strings.TrimSpace(sort)
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	if !sortColumns[col] {
		return "id ASC"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if col == "id" {
		return "id " + dir
	}
	return col + " " + dir + ", id ASC"
}

func parseFilterClause(filter string) (string, bool, bool) {
	filter = strings.TrimSpace(filter)
	want := !strings.HasPrefix(filter, "-")
	col := strings.TrimPrefix(filter, "-")
	if !filterColumns[col] {
		return "", false, false
	}
	return col, want, true
}
