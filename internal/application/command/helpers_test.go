package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
)

var fixedNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

type stores struct {
	docs  *memory.DocumentStore
	graph *memory.GraphStore
	cache *memory.CacheStore
}

func newStores(t *testing.T) *stores {
	t.Helper()
	s := &stores{
		docs:  memory.NewDocumentStore(),
		graph: memory.NewGraphStore(),
		cache: memory.NewCacheStore(),
	}
	ctx := context.Background()
	require.NoError(t, s.docs.Users.Create(ctx, &user.User{ID: "u1", Email: "ann@example.com", Name: "Ann", PasswordHash: "x"}))
	require.NoError(t, s.docs.Courses.Create(ctx, sixLessonCourse("c1")))
	return s
}

// sixLessonCourse has two units of three lessons each.
func sixLessonCourse(id string) *course.Course {
	c := &course.Course{ID: id, Name: "Go in Practice"}
	for u := 1; u <= 2; u++ {
		unit := course.Unit{Name: fmt.Sprintf("Unit %d", u), Order: u}
		for l := 1; l <= 3; l++ {
			unit.Lessons = append(unit.Lessons, course.Lesson{Name: fmt.Sprintf("Lesson %d.%d", u, l), Order: l})
		}
		c.Units = append(c.Units, unit)
	}
	return c
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}
