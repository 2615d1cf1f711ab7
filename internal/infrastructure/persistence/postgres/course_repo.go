package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

var _ course.Repository = (*CourseRepository)(nil)

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// FindByID returns a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*course.Course, error) {
	var doc []byte
	err := r.conn.QueryRow(ctx, `SELECT doc FROM courses WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, storeError("FindCourse", err)
	}
	return decodeCourse(doc)
}

// List returns every course in creation order.
func (r *CourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	rows, err := r.conn.Query(ctx, `SELECT doc FROM courses ORDER BY created_at, id`)
	if err != nil {
		return nil, storeError("ListCourses", err)
	}
	defer rows.Close()

	var courses []*course.Course
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, storeError("ListCourses", err)
		}
		c, err := decodeCourse(doc)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ListCourses", err)
	}
	return courses, nil
}

// ListIDs returns the ids of every course.
func (r *CourseRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM courses ORDER BY id`)
	if err != nil {
		return nil, storeError("ListCourseIDs", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError("ListCourseIDs", err)
	}
	return ids, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal course: %w", err)
	}

	_, err = r.conn.Exec(ctx,
		`INSERT INTO courses (id, doc, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		c.ID, doc, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrCourseAlreadyExists
		}
		return storeError("CreateCourse", err)
	}
	return nil
}

// InsertMany upserts courses in a single batch round trip.
func (r *CourseRepository) InsertMany(ctx context.Context, courses []*course.Course) error {
	if len(courses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range courses {
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal course %s: %w", c.ID, err)
		}
		batch.Queue(`
			INSERT INTO courses (id, doc, created_at, updated_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
		`, c.ID, doc, c.CreatedAt, c.UpdatedAt)
	}

	if err := r.conn.SendBatch(ctx, batch).Close(); err != nil {
		return storeError("InsertCourses", err)
	}
	return nil
}

// UpdateRating patches the rating field of the course document only.
func (r *CourseRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE courses
		SET doc = jsonb_set(doc, '{rating}', to_jsonb($2::double precision)), updated_at = NOW()
		WHERE id = $1
	`, id, rating)
	if err != nil {
		return storeError("UpdateRating", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}

func decodeCourse(doc []byte) (*course.Course, error) {
	var c course.Course
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode course: %w", err)
	}
	return &c, nil
}
