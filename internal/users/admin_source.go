package users

import (
	"context"
	"slices"
	"sync"
	"time"
)

// AdminLookup is the part of Store that AdminSource reads
type AdminLookup interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	Admins(ctx context.Context) ([]User, error)
}

type cachedAnswer struct {
	isAdmin bool
	expires time.Time
}

// AdminSource merges the administrators from configuration with those
// flagged in the database. With a positive TTL, database answers are reused
// for that long; with 0 every call reads the database.
type AdminSource struct {
	static map[int64]struct{}
	lookup AdminLookup
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[int64]cachedAnswer
}

// NewAdminSource creates an admin source
func NewAdminSource(staticIDs []int64, lookup AdminLookup, ttl time.Duration) *AdminSource {
	static := make(map[int64]struct{}, len(staticIDs))
	for _, id := range staticIDs {
		static[id] = struct{}{}
	}
	return &AdminSource{
		static: static,
		lookup: lookup,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[int64]cachedAnswer),
	}
}

// IsAdmin checks the static list first, then the database
func (a *AdminSource) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if _, ok := a.static[userID]; ok {
		return true, nil
	}
	if a.lookup == nil {
		return false, nil
	}

	if a.ttl > 0 {
		a.mu.Lock()
		c, ok := a.cache[userID]
		a.mu.Unlock()
		if ok && a.now().Before(c.expires) {
			return c.isAdmin, nil
		}
	}

	isAdmin, err := a.lookup.IsAdmin(ctx, userID)
	if err != nil {
		return false, err
	}

	if a.ttl > 0 {
		a.mu.Lock()
		a.cache[userID] = cachedAnswer{isAdmin: isAdmin, expires: a.now().Add(a.ttl)}
		a.mu.Unlock()
	}
	return isAdmin, nil
}

// AdminIDs returns every administrator id, static and stored, sorted
func (a *AdminSource) AdminIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(a.static))
	for id := range a.static {
		ids = append(ids, id)
	}
	if a.lookup != nil {
		admins, err := a.lookup.Admins(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range admins {
			if _, ok := a.static[u.TelegramID]; !ok {
				ids = append(ids, u.TelegramID)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}
