package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE COURSE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateCourseCommand contains the data to create a course.
type CreateCourseCommand struct {
	ID               string
	Name             string
	ShortDescription string
	Description      string
	ImageURL         string
	BannerURL        string
	Units            []course.Unit
}

func (c CreateCourseCommand) params() course.NewCourseParams {
	return course.NewCourseParams{
		ID:               c.ID,
		Name:             c.Name,
		ShortDescription: c.ShortDescription,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		BannerURL:        c.BannerURL,
		Units:            c.Units,
	}
}

// CreateCourseHandler creates catalog entries.
type CreateCourseHandler struct {
	courses course.Repository
	logger  *slog.Logger
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(courses course.Repository, log *slog.Logger) *CreateCourseHandler {
	return &CreateCourseHandler{
		courses: courses,
		logger:  logger.OrDefault(log).With(logger.Component("create_course")),
	}
}

// Handle creates a single course with a zero rating.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*course.Course, error) {
	c, err := course.NewCourse(cmd.params())
	if err != nil {
		return nil, fmt.Errorf("create_course: %w", err)
	}
	if err := h.courses.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create_course: %w", err)
	}

	h.logger.InfoContext(ctx, "course created",
		logger.CourseID(c.ID),
		slog.Int("lessons", c.TotalLessons()),
	)
	return c, nil
}

// Import validates every course first and then inserts them in one batch.
// Nothing is written if any course is invalid.
func (h *CreateCourseHandler) Import(ctx context.Context, cmds []CreateCourseCommand) ([]*course.Course, error) {
	courses := make([]*course.Course, 0, len(cmds))
	for i, cmd := range cmds {
		c, err := course.NewCourse(cmd.params())
		if err != nil {
			return nil, fmt.Errorf("import_courses: course %d: %w", i, err)
		}
		courses = append(courses, c)
	}
	if len(courses) == 0 {
		return courses, nil
	}

	if err := h.courses.InsertMany(ctx, courses); err != nil {
		return nil, fmt.Errorf("import_courses: %w", err)
	}

	h.logger.InfoContext(ctx, "courses imported", slog.Int("count", len(courses)))
	return courses, nil
}
