package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
)

// Document store operation names for fault injection.
const (
	OpFindCourse     = "FindCourse"
	OpListCourses    = "ListCourses"
	OpCreateCourse   = "CreateCourse"
	OpUpdateRating   = "UpdateRating"
	OpFindUser       = "FindUser"
	OpFindUserEmail  = "FindUserByEmail"
	OpCreateUser     = "CreateUser"
	OpUpsertProgress = "UpsertProgress"
	OpListUsers      = "ListUsers"
)

// DocumentStore holds courses and users. Records are copied on the way in
// and out so callers never share memory with the store.
type DocumentStore struct {
	*Faults

	mu      sync.RWMutex
	courses map[string]*course.Course
	users   map[string]*user.User
	emails  map[string]string

	Courses *CourseRepository
	Users   *UserRepository
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	s := &DocumentStore{
		Faults:  newFaults(),
		courses: make(map[string]*course.Course),
		users:   make(map[string]*user.User),
		emails:  make(map[string]string),
	}
	s.Courses = &CourseRepository{s: s}
	s.Users = &UserRepository{s: s}
	return s
}

// Ping always succeeds.
func (s *DocumentStore) Ping(context.Context) error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository.
type CourseRepository struct {
	s *DocumentStore
}

var _ course.Repository = (*CourseRepository)(nil)

// FindByID returns a copy of the course.
func (r *CourseRepository) FindByID(_ context.Context, id string) (*course.Course, error) {
	if err := r.s.hit(OpFindCourse); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return cloneCourse(c), nil
}

// List returns all courses ordered by creation time.
func (r *CourseRepository) List(_ context.Context) ([]*course.Course, error) {
	if err := r.s.hit(OpListCourses); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*course.Course, 0, len(r.s.courses))
	for _, c := range r.s.courses {
		out = append(out, cloneCourse(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListIDs returns every course id.
func (r *CourseRepository) ListIDs(ctx context.Context) ([]string, error) {
	courses, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	return ids, nil
}

// Create stores a new course.
func (r *CourseRepository) Create(_ context.Context, c *course.Course) error {
	if err := r.s.hit(OpCreateCourse); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.courses[c.ID]; exists {
		return shared.ErrCourseAlreadyExists
	}
	r.s.courses[c.ID] = cloneCourse(c)
	return nil
}

// InsertMany stores courses, replacing any with the same id.
func (r *CourseRepository) InsertMany(_ context.Context, courses []*course.Course) error {
	if err := r.s.hit(OpCreateCourse); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range courses {
		r.s.courses[c.ID] = cloneCourse(c)
	}
	return nil
}

// UpdateRating sets the rating field only.
func (r *CourseRepository) UpdateRating(_ context.Context, id string, rating float64) error {
	if err := r.s.hit(OpUpdateRating); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.courses[id]
	if !ok {
		return shared.ErrCourseNotFound
	}
	c.Rating = rating
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository.
type UserRepository struct {
	s *DocumentStore
}

var _ user.Repository = (*UserRepository)(nil)

// FindByID returns a copy of the user.
func (r *UserRepository) FindByID(_ context.Context, id string) (*user.User, error) {
	if err := r.s.hit(OpFindUser); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// FindByEmail returns a copy of the user registered with email.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*user.User, error) {
	if err := r.s.hit(OpFindUserEmail); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return cloneUser(r.s.users[id]), nil
}

// Create stores a new user, enforcing email uniqueness.
func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	if err := r.s.hit(OpCreateUser); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.emails[u.Email]; taken {
		return shared.ErrEmailTaken
	}
	r.s.users[u.ID] = cloneUser(u)
	r.s.emails[u.Email] = u.ID
	return nil
}

// UpsertProgress changes one progress entry of the stored user under the
// store lock. Other entries are left as they are.
func (r *UserRepository) UpsertProgress(_ context.Context, userID, courseID string, progress float64, now time.Time) (user.ProgressEntry, bool, error) {
	if err := r.s.hit(OpUpsertProgress); err != nil {
		return user.ProgressEntry{}, false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[userID]
	if !ok {
		return user.ProgressEntry{}, false, shared.ErrUserNotFound
	}
	entry, created := stored.UpsertProgress(courseID, progress, now)
	return entry, created, nil
}

// InsertMany stores users, replacing any with the same id.
func (r *UserRepository) InsertMany(_ context.Context, users []*user.User) error {
	if err := r.s.hit(OpCreateUser); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range users {
		r.s.users[u.ID] = cloneUser(u)
		r.s.emails[u.Email] = u.ID
	}
	return nil
}

// ListIDs returns every user id in lexical order.
func (r *UserRepository) ListIDs(_ context.Context) ([]string, error) {
	if err := r.s.hit(OpListUsers); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]string, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COPY HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func cloneCourse(c *course.Course) *course.Course {
	out := *c
	out.Units = make([]course.Unit, len(c.Units))
	for i, u := range c.Units {
		u.Lessons = append([]course.Lesson(nil), u.Lessons...)
		out.Units[i] = u
	}
	return &out
}

func cloneUser(u *user.User) *user.User {
	out := *u
	out.CoursesProgress = append([]user.ProgressEntry{}, u.CoursesProgress...)
	return &out
}
