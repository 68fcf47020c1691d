// Package channels persists the channel requirements users must join
// before the bot serves them.
package channels

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput is returned when a create or update payload is incomplete
var ErrInvalidInput = errors.New("invalid channel input")

// Requirement is a channel a user must be a member of while it is in force
type Requirement struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Link       string    `json:"link"`
	ExternalID int64     `json:"channel_id"`
	IsActive   bool      `json:"is_active"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InForce reports whether users must satisfy the requirement at now
func (r Requirement) InForce(now time.Time) bool {
	return r.IsActive && r.ExpiresAt.After(now)
}

// Lapsed reports whether the requirement is still active but past its expiry
func (r Requirement) Lapsed(now time.Time) bool {
	return r.IsActive && r.ExpiresAt.Before(now)
}

// CreateInput is the payload for a new requirement.
// ChannelID is the id as supplied by an administrator; it is negated
// before storage to match Telegram's chat id convention for channels.
type CreateInput struct {
	Name      string
	Link      string
	ChannelID int64
	IsActive  *bool
	ExpiresAt *time.Time
}

func (in CreateInput) requirement(now time.Time) (Requirement, error) {
	name := strings.TrimSpace(in.Name)
	link := strings.TrimSpace(in.Link)
	if name == "" {
		return Requirement{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if link == "" {
		return Requirement{}, fmt.Errorf("%w: link is required", ErrInvalidInput)
	}
	if in.ChannelID == 0 {
		return Requirement{}, fmt.Errorf("%w: channel id is required", ErrInvalidInput)
	}

	now = normalizeTime(now)
	r := Requirement{
		Name:       name,
		Link:       link,
		ExternalID: storedChannelID(in.ChannelID),
		IsActive:   true,
		ExpiresAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if in.ExpiresAt != nil {
		r.ExpiresAt = normalizeTime(*in.ExpiresAt)
	}
	return r, nil
}

// UpdateInput carries a partial update; nil fields are left untouched
type UpdateInput struct {
	Name      *string
	Link      *string
	ChannelID *int64
	IsActive  *bool
	ExpiresAt *time.Time
}

func (in UpdateInput) apply(r *Requirement, now time.Time) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		r.Name = name
	}
	if in.Link != nil {
		link := strings.TrimSpace(*in.Link)
		if link == "" {
			return fmt.Errorf("%w: link must not be empty", ErrInvalidInput)
		}
		r.Link = link
	}
	if in.ChannelID != nil {
		if *in.ChannelID == 0 {
			return fmt.Errorf("%w: channel id must not be zero", ErrInvalidInput)
		}
		r.ExternalID = storedChannelID(*in.ChannelID)
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if in.ExpiresAt != nil {
		r.ExpiresAt = normalizeTime(*in.ExpiresAt)
	}
	r.UpdatedAt = normalizeTime(now)
	return nil
}

// ListParams drives the administrative listing
type ListParams struct {
	Offset int
	Limit  int
	// Search matches the name case-insensitively
	Search string
	// Sort is a column name, prefixed with - for descending order
	Sort string
	// Filter is a boolean column name, prefixed with - to select false
	Filter string
}

func storedChannelID(supplied int64) int64 {
	return -supplied
}

// SQLite compares timestamps as text, so every value written or
// compared goes through the same UTC, microsecond representation.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
