package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/internal/infrastructure/security"
	"github.com/coursehub/coursehub/pkg/logger"
)

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	pub := &recordingPublisher{}
	h := NewRegisterUserHandler(s.docs.Users, security.NewPasswordHasher(bcrypt.MinCost), pub, logger.Discard())

	res, err := h.Handle(ctx, RegisterUserCommand{Email: "Bob@Example.com", Password: "hunter22", Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", res.User.Email)
	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventUserRegistered, pub.events[0].EventType())

	stored, err := s.docs.Users.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.NotNil(t, stored.CoursesProgress)

	_, err = h.Handle(ctx, RegisterUserCommand{Email: "bob@example.com", Password: "another1", Name: "Bob 2"})
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestRegisterUser_Validation(t *testing.T) {
	s := newStores(t)
	h := NewRegisterUserHandler(s.docs.Users, security.NewPasswordHasher(bcrypt.MinCost), nil, logger.Discard())

	tests := []RegisterUserCommand{
		{Email: "not-an-email", Password: "hunter22", Name: "Bob"},
		{Email: "bob@example.com", Password: "12345", Name: "Bob"},
		{Email: "bob@example.com", Password: "hunter22", Name: "  "},
	}
	for _, cmd := range tests {
		_, err := h.Handle(context.Background(), cmd)
		assert.True(t, shared.IsValidation(err), "%+v", cmd)
	}
	assert.Equal(t, 1, s.docs.Calls(memory.OpCreateUser), "only the fixture user was created")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	tokens := security.NewTokenManager("secret", "coursehub", time.Hour)

	_, err := NewRegisterUserHandler(s.docs.Users, hasher, nil, logger.Discard()).
		Handle(ctx, RegisterUserCommand{Email: "bob@example.com", Password: "hunter22", Name: "Bob"})
	require.NoError(t, err)

	h := NewLoginHandler(s.docs.Users, s.cache, hasher, tokens, logger.Discard())

	res, err := h.Handle(ctx, LoginCommand{Email: "BOB@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	claims, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	record, err := s.cache.GetSession(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", record.Name)

	_, err = h.Handle(ctx, LoginCommand{Email: "bob@example.com", Password: "wrong-one"})
	assert.True(t, shared.IsUnauthorized(err))

	_, err = h.Handle(ctx, LoginCommand{Email: "nobody@example.com", Password: "hunter22"})
	assert.True(t, shared.IsUnauthorized(err))

	s.cache.FailOn(memory.OpSaveSession, shared.StoreUnavailable(shared.StoreCache, "SaveSession", assert.AnError))
	_, err = h.Handle(ctx, LoginCommand{Email: "bob@example.com", Password: "hunter22"})
	assert.True(t, shared.IsStoreUnavailable(err))
}

func TestCreateCourse(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	h := NewCreateCourseHandler(s.docs.Courses, logger.Discard())

	c, err := h.Handle(ctx, CreateCourseCommand{Name: "Distributed Systems", Units: sixLessonCourse("x").Units})
	require.NoError(t, err)
	assert.Equal(t, 6, c.TotalLessons())
	assert.Zero(t, c.Rating)

	_, err = h.Handle(ctx, CreateCourseCommand{Name: ""})
	assert.True(t, shared.IsValidation(err))

	before := s.docs.Calls(memory.OpCreateCourse)
	_, err = h.Import(ctx, []CreateCourseCommand{{Name: "A"}, {Name: ""}})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, before, s.docs.Calls(memory.OpCreateCourse))

	imported, err := h.Import(ctx, []CreateCourseCommand{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	assert.Len(t, imported, 2)

	all, err := s.docs.Courses.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
