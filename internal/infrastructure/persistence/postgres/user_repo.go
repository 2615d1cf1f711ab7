package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT password_hash, doc FROM users WHERE id = $1`, id)
	return r.scanUser(row, "FindUser")
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT password_hash, doc FROM users WHERE email = $1`, email)
	return r.scanUser(row, "FindUserByEmail")
}

// Create inserts a new user. The unique email index reports duplicates.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, doc, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return storeError("CreateUser", err)
	}
	return nil
}

// UpsertProgress changes one progress entry while holding the user's row
// lock. Concurrent updates for other courses of the same user queue on the
// lock and each rewrites the doc it read under it, so no entry is lost.
func (r *UserRepository) UpsertProgress(ctx context.Context, userID, courseID string, progress float64, now time.Time) (user.ProgressEntry, bool, error) {
	var (
		entry   user.ProgressEntry
		created bool
	)
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var doc []byte
		err := tx.QueryRow(ctx, `SELECT doc FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&doc)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrUserNotFound
			}
			return err
		}

		var next []byte
		next, entry, created, err = applyProgress(doc, courseID, progress, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE users SET doc = $2, updated_at = $3 WHERE id = $1`, userID, next, now)
		return err
	})
	if err != nil {
		return user.ProgressEntry{}, false, storeError("UpsertProgress", err)
	}
	return entry, created, nil
}

// applyProgress upserts one entry into a stored user doc and re-encodes it.
func applyProgress(doc []byte, courseID string, progress float64, now time.Time) ([]byte, user.ProgressEntry, bool, error) {
	u, err := decodeUser(doc, "")
	if err != nil {
		return nil, user.ProgressEntry{}, false, err
	}
	entry, created := u.UpsertProgress(courseID, progress, now)
	next, err := json.Marshal(u)
	if err != nil {
		return nil, user.ProgressEntry{}, false, fmt.Errorf("marshal user: %w", err)
	}
	return next, entry, created, nil
}

// InsertMany upserts users in a single batch round trip.
func (r *UserRepository) InsertMany(ctx context.Context, users []*user.User) error {
	if len(users) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range users {
		doc, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user %s: %w", u.ID, err)
		}
		batch.Queue(`
			INSERT INTO users (id, email, password_hash, doc, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email,
				password_hash = EXCLUDED.password_hash,
				doc = EXCLUDED.doc,
				updated_at = EXCLUDED.updated_at
		`, u.ID, u.Email, u.PasswordHash, doc, u.CreatedAt, u.UpdatedAt)
	}

	if err := r.conn.SendBatch(ctx, batch).Close(); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return storeError("InsertUsers", err)
	}
	return nil
}

// ListIDs returns the ids of every user.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, storeError("ListUserIDs", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError("ListUserIDs", err)
	}
	return ids, nil
}

func (r *UserRepository) scanUser(row pgx.Row, op string) (*user.User, error) {
	var (
		hash string
		doc  []byte
	)
	if err := row.Scan(&hash, &doc); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, storeError(op, err)
	}
	return decodeUser(doc, hash)
}

func decodeUser(doc []byte, hash string) (*user.User, error) {
	var u user.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u.PasswordHash = hash
	if u.CoursesProgress == nil {
		u.CoursesProgress = []user.ProgressEntry{}
	}
	return &u, nil
}
