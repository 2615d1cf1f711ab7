package memory

import (
	"context"
	"sync"

	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
)

// Cache store operation names for fault injection.
const (
	OpSaveSession = "SaveSession"
	OpGetSession  = "GetSession"
	OpSetMirror   = "SetProgressMirror"
	OpGetMirror   = "GetProgressMirror"
	OpGetMirrors  = "GetProgressMirrors"
	OpFlushAll    = "FlushAll"
)

// CacheStore keeps sessions and progress mirrors in maps. No TTLs.
type CacheStore struct {
	*Faults

	mu       sync.RWMutex
	sessions map[string]session.Record
	mirrors  map[string]session.ProgressMirror
}

var _ session.Store = (*CacheStore)(nil)

// NewCacheStore creates an empty cache.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		Faults:   newFaults(),
		sessions: make(map[string]session.Record),
		mirrors:  make(map[string]session.ProgressMirror),
	}
}

// Ping always succeeds.
func (c *CacheStore) Ping(context.Context) error { return nil }

// SaveSession stores the session record.
func (c *CacheStore) SaveSession(_ context.Context, record session.Record) error {
	if err := c.hit(OpSaveSession); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[record.UserID] = record
	return nil
}

// GetSession returns the session record.
func (c *CacheStore) GetSession(_ context.Context, userID string) (*session.Record, error) {
	if err := c.hit(OpGetSession); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.sessions[userID]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return &r, nil
}

// SetProgressMirror stores the mirror.
func (c *CacheStore) SetProgressMirror(_ context.Context, m session.ProgressMirror) error {
	if err := c.hit(OpSetMirror); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirrors[mirrorKey(m.UserID, m.CourseID)] = m
	return nil
}

// GetProgressMirror returns the mirror or a not-found error.
func (c *CacheStore) GetProgressMirror(_ context.Context, userID, courseID string) (*session.ProgressMirror, error) {
	if err := c.hit(OpGetMirror); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.mirrors[mirrorKey(userID, courseID)]
	if !ok {
		return nil, shared.NewDomainError("cache", "GetProgressMirror", shared.ErrNotFound, "progress mirror not found")
	}
	return &m, nil
}

// GetProgressMirrors returns the mirrors that exist for the given courses.
func (c *CacheStore) GetProgressMirrors(_ context.Context, userID string, courseIDs []string) (map[string]session.ProgressMirror, error) {
	if err := c.hit(OpGetMirrors); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]session.ProgressMirror)
	for _, id := range courseIDs {
		if m, ok := c.mirrors[mirrorKey(userID, id)]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// FlushAll drops everything, sessions included.
func (c *CacheStore) FlushAll(_ context.Context) error {
	if err := c.hit(OpFlushAll); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]session.Record)
	c.mirrors = make(map[string]session.ProgressMirror)
	return nil
}

func mirrorKey(userID, courseID string) string {
	return "user:" + userID + ":course:" + courseID
}
