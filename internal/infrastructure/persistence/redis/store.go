package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
)

const (
	fieldStatus   = "status"
	fieldProgress = "progress"
)

// Store implements session.Store.
//
// Sessions are JSON strings at session:{userId} with no TTL. Progress mirrors
// are hashes at user:{userId}:course:{courseId} with status and progress.
type Store struct {
	cache *Cache
}

var _ session.Store = (*Store)(nil)

// NewStore creates a cache store on top of a Cache.
func NewStore(cache *Cache) *Store {
	return &Store{cache: cache}
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// SaveSession writes the session record without expiry.
func (s *Store) SaveSession(ctx context.Context, record session.Record) error {
	if err := s.cache.Set(ctx, SessionKey(record.UserID), record, 0); err != nil {
		return unavailable("SaveSession", err)
	}
	return nil
}

// GetSession returns the session record or shared.ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, userID string) (*session.Record, error) {
	var record session.Record
	if err := s.cache.Get(ctx, SessionKey(userID), &record); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, unavailable("GetSession", err)
	}
	return &record, nil
}

// SetProgressMirror writes the status and progress fields.
func (s *Store) SetProgressMirror(ctx context.Context, m session.ProgressMirror) error {
	err := s.cache.Client().HSet(ctx, ProgressKey(m.UserID, m.CourseID),
		fieldStatus, m.Status,
		fieldProgress, strconv.FormatFloat(m.Progress, 'f', -1, 64),
	).Err()
	if err != nil {
		return unavailable("SetProgressMirror", err)
	}
	return nil
}

// GetProgressMirror returns the mirror or a NotFound error on a miss.
func (s *Store) GetProgressMirror(ctx context.Context, userID, courseID string) (*session.ProgressMirror, error) {
	fields, err := s.cache.Client().HGetAll(ctx, ProgressKey(userID, courseID)).Result()
	if err != nil {
		return nil, unavailable("GetProgressMirror", err)
	}
	m, ok := mirrorFromFields(userID, courseID, fields)
	if !ok {
		return nil, ErrCacheMiss
	}
	return &m, nil
}

// GetProgressMirrors reads several mirrors in one pipeline round trip.
func (s *Store) GetProgressMirrors(ctx context.Context, userID string, courseIDs []string) (map[string]session.ProgressMirror, error) {
	out := make(map[string]session.ProgressMirror, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}

	pipe := s.cache.Client().Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(courseIDs))
	for i, courseID := range courseIDs {
		cmds[i] = pipe.HGetAll(ctx, ProgressKey(userID, courseID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("GetProgressMirrors", err)
	}

	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			continue
		}
		if m, ok := mirrorFromFields(userID, courseIDs[i], fields); ok {
			out[courseIDs[i]] = m
		}
	}
	return out, nil
}

// FlushAll clears the whole database, sessions included.
func (s *Store) FlushAll(ctx context.Context) error {
	if err := s.cache.FlushDB(ctx); err != nil {
		return unavailable("FlushAll", err)
	}
	return nil
}

func mirrorFromFields(userID, courseID string, fields map[string]string) (session.ProgressMirror, bool) {
	status, ok := fields[fieldStatus]
	if !ok {
		return session.ProgressMirror{}, false
	}
	progress, err := strconv.ParseFloat(fields[fieldProgress], 64)
	if err != nil {
		return session.ProgressMirror{}, false
	}
	return session.ProgressMirror{
		UserID:   userID,
		CourseID: courseID,
		Status:   status,
		Progress: progress,
	}, true
}

func unavailable(op string, err error) error {
	return shared.StoreUnavailable(shared.StoreCache, op, err)
}
