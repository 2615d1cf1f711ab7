package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS QUERIES
// Источник истины - документное хранилище. Кэш используется только для
// быстрого чтения прогресса по одному курсу и чинится при промахе.
// ══════════════════════════════════════════════════════════════════════════════

// UserCourseDTO - курс пользователя вместе с прогрессом.
type UserCourseDTO struct {
	Course    course.Summary `json:"course"`
	Status    string         `json:"status"`
	Progress  float64        `json:"progress"`
	StartDate time.Time      `json:"startDate"`
}

// GetUserCoursesQuery - параметры запроса курсов пользователя.
type GetUserCoursesQuery struct {
	UserID string
}

// GetUserCoursesHandler возвращает все курсы, по которым у пользователя есть прогресс.
type GetUserCoursesHandler struct {
	users   user.Repository
	courses course.Repository
	logger  *slog.Logger
}

// NewGetUserCoursesHandler создаёт новый обработчик.
func NewGetUserCoursesHandler(users user.Repository, courses course.Repository, log *slog.Logger) *GetUserCoursesHandler {
	return &GetUserCoursesHandler{
		users:   users,
		courses: courses,
		logger:  logger.OrDefault(log).With(logger.Component("get_user_courses")),
	}
}

// Handle выполняет запрос. Записи о курсах, которых больше нет в каталоге,
// пропускаются.
func (h *GetUserCoursesHandler) Handle(ctx context.Context, q GetUserCoursesQuery) ([]UserCourseDTO, error) {
	if _, err := shared.ParseID("user", q.UserID); err != nil {
		return nil, fmt.Errorf("get_user_courses: %w", err)
	}

	u, err := h.users.FindByID(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_courses: %w", err)
	}

	out := make([]UserCourseDTO, 0, len(u.CoursesProgress))
	for _, entry := range u.CoursesProgress {
		c, err := h.courses.FindByID(ctx, entry.CourseID)
		if err != nil {
			if shared.IsNotFound(err) {
				h.logger.DebugContext(ctx, "skipping progress for removed course",
					logger.UserID(u.ID), logger.CourseID(entry.CourseID))
				continue
			}
			return nil, fmt.Errorf("get_user_courses: %w", err)
		}
		out = append(out, UserCourseDTO{
			Course:    c.Summary(),
			Status:    entry.Status.String(),
			Progress:  entry.Progress,
			StartDate: entry.StartDate,
		})
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// GET COURSE PROGRESS
// ──────────────────────────────────────────────────────────────────────────────

// Источники ответа GetCourseProgress.
const (
	SourceCache    = "cache"
	SourceDocument = "document"
)

// GetCourseProgressQuery - параметры запроса прогресса по курсу.
type GetCourseProgressQuery struct {
	UserID   string
	CourseID string
}

// CourseProgressDTO - прогресс пользователя по одному курсу.
type CourseProgressDTO struct {
	UserID   string  `json:"userId"`
	CourseID string  `json:"courseId"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Source   string  `json:"source"`
}

// GetCourseProgressHandler читает прогресс: сначала кэш, затем документ.
type GetCourseProgressHandler struct {
	users  user.Repository
	cache  session.Store
	logger *slog.Logger
}

// NewGetCourseProgressHandler создаёт новый обработчик.
func NewGetCourseProgressHandler(users user.Repository, cache session.Store, log *slog.Logger) *GetCourseProgressHandler {
	return &GetCourseProgressHandler{
		users:  users,
		cache:  cache,
		logger: logger.OrDefault(log).With(logger.Component("get_course_progress")),
	}
}

// Handle выполняет запрос. При промахе кэша зеркало восстанавливается из
// документа; ошибка восстановления только логируется.
func (h *GetCourseProgressHandler) Handle(ctx context.Context, q GetCourseProgressQuery) (*CourseProgressDTO, error) {
	if _, err := shared.ParseID("user", q.UserID); err != nil {
		return nil, fmt.Errorf("get_course_progress: %w", err)
	}
	if _, err := shared.ParseID("course", q.CourseID); err != nil {
		return nil, fmt.Errorf("get_course_progress: %w", err)
	}

	mirror, err := h.cache.GetProgressMirror(ctx, q.UserID, q.CourseID)
	if err == nil {
		return &CourseProgressDTO{
			UserID:   q.UserID,
			CourseID: q.CourseID,
			Status:   mirror.Status,
			Progress: mirror.Progress,
			Source:   SourceCache,
		}, nil
	}
	if !shared.IsNotFound(err) {
		h.logger.WarnContext(ctx, "progress mirror read failed, using document store",
			logger.UserID(q.UserID), logger.CourseID(q.CourseID), logger.Err(err))
	}

	u, err := h.users.FindByID(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_course_progress: %w", err)
	}
	entry, ok := u.ProgressFor(q.CourseID)
	if !ok {
		return nil, fmt.Errorf("get_course_progress: %w",
			shared.NewDomainError("user", "ProgressFor", shared.ErrNotFound, "no progress for course"))
	}

	repaired := session.ProgressMirror{
		UserID:   u.ID,
		CourseID: entry.CourseID,
		Status:   entry.Status.String(),
		Progress: entry.Progress,
	}
	// Зеркало могло появиться после промаха: сверщик пишет документ и кэш
	// уже после нашего чтения. Восстанавливаем только всё ещё отсутствующее
	// зеркало. Запись сверщика между этой проверкой и SetProgressMirror всё
	// равно может быть перезаписана старым значением; такое расхождение
	// исправит следующий запуск repair_progress_mirrors.
	if _, err := h.cache.GetProgressMirror(ctx, u.ID, q.CourseID); shared.IsNotFound(err) {
		if err := h.cache.SetProgressMirror(ctx, repaired); err != nil {
			h.logger.WarnContext(ctx, "progress mirror repair failed",
				logger.Store(shared.StoreCache), logger.UserID(u.ID), logger.CourseID(q.CourseID), logger.Err(err))
		}
	}

	return &CourseProgressDTO{
		UserID:   u.ID,
		CourseID: entry.CourseID,
		Status:   entry.Status.String(),
		Progress: entry.Progress,
		Source:   SourceDocument,
	}, nil
}
