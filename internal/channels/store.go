package channels

import (
	"context"
	"time"
)

// Store defines the interface for channel requirement persistence
type Store interface {
	// ActiveRequirements returns requirements in force at now, ordered by id
	ActiveRequirements(ctx context.Context, now time.Time) ([]Requirement, error)

	// LapsedRequirements returns active requirements that expired before now
	LapsedRequirements(ctx context.Context, now time.Time) ([]Requirement, error)

	Create(ctx context.Context, in CreateInput) (*Requirement, error)
	Get(ctx context.Context, id int64) (*Requirement, error)

	// GetByExternalID looks a requirement up by its stored (negated) chat id
	GetByExternalID(ctx context.Context, externalID int64) (*Requirement, error)

	List(ctx context.Context, params ListParams) ([]Requirement, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*Requirement, error)
	Delete(ctx context.Context, id int64) error
}
