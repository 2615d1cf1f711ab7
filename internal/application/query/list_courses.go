package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// CatalogItemDTO - элемент каталога. Для авторизованного пользователя
// дополняется зеркалом прогресса из кэша, если оно есть.
type CatalogItemDTO struct {
	course.Summary
	Status   string   `json:"status,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

// ListCoursesQuery - параметры запроса каталога. UserID необязателен.
type ListCoursesQuery struct {
	UserID string
}

// ListCoursesHandler возвращает каталог курсов.
type ListCoursesHandler struct {
	courses course.Repository
	cache   session.Store
	logger  *slog.Logger
}

// NewListCoursesHandler создаёт новый обработчик.
func NewListCoursesHandler(courses course.Repository, cache session.Store, log *slog.Logger) *ListCoursesHandler {
	return &ListCoursesHandler{
		courses: courses,
		cache:   cache,
		logger:  logger.OrDefault(log).With(logger.Component("list_courses")),
	}
}

// Handle выполняет запрос. Недоступный кэш не ломает каталог: курсы
// возвращаются без прогресса.
func (h *ListCoursesHandler) Handle(ctx context.Context, q ListCoursesQuery) ([]CatalogItemDTO, error) {
	courses, err := h.courses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_courses: %w", err)
	}

	items := make([]CatalogItemDTO, 0, len(courses))
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		items = append(items, CatalogItemDTO{Summary: c.Summary()})
		ids = append(ids, c.ID)
	}
	if q.UserID == "" || len(ids) == 0 {
		return items, nil
	}

	mirrors, err := h.cache.GetProgressMirrors(ctx, q.UserID, ids)
	if err != nil {
		h.logger.WarnContext(ctx, "progress mirrors unavailable", logger.UserID(q.UserID), logger.Err(err))
		return items, nil
	}
	for i := range items {
		m, ok := mirrors[items[i].ID]
		if !ok {
			continue
		}
		progress := m.Progress
		items[i].Status = m.Status
		items[i].Progress = &progress
	}
	return items, nil
}

// GetCourseDetailQuery - параметры запроса карточки курса.
type GetCourseDetailQuery struct {
	CourseID string
}

// CourseDetailDTO - курс с комментариями и текущим рейтингом.
type CourseDetailDTO struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"shortDescription"`
	Description      string        `json:"description"`
	ImageURL         string        `json:"imageUrl,omitempty"`
	BannerURL        string        `json:"bannerUrl,omitempty"`
	Units            []course.Unit `json:"units"`
	TotalLessons     int           `json:"totalLessons"`
	Rating           float64       `json:"rating"`
	TotalRatings     int           `json:"totalRatings"`
	Comments         []CommentDTO  `json:"comments"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// GetCourseDetailHandler собирает карточку курса из документа и графа.
type GetCourseDetailHandler struct {
	courses course.Repository
	graph   social.Graph
}

// NewGetCourseDetailHandler создаёт новый обработчик.
func NewGetCourseDetailHandler(courses course.Repository, graph social.Graph) *GetCourseDetailHandler {
	return &GetCourseDetailHandler{courses: courses, graph: graph}
}

// Handle выполняет запрос. Рейтинг считается по тем же комментариям, что
// попали в ответ, поэтому они всегда согласованы между собой.
func (h *GetCourseDetailHandler) Handle(ctx context.Context, q GetCourseDetailQuery) (*CourseDetailDTO, error) {
	if _, err := shared.ParseID("course", q.CourseID); err != nil {
		return nil, fmt.Errorf("get_course_detail: %w", err)
	}
	c, err := h.courses.FindByID(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_detail: %w", err)
	}

	comments, err := h.graph.CourseComments(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_detail: %w", err)
	}
	ratings := make([]shared.Rating, 0, len(comments))
	for _, cm := range comments {
		ratings = append(ratings, cm.Rating)
	}
	summary := social.Summarize(ratings)

	return &CourseDetailDTO{
		ID:               c.ID,
		Name:             c.Name,
		ShortDescription: c.ShortDescription,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		BannerURL:        c.BannerURL,
		Units:            c.Units,
		TotalLessons:     c.TotalLessons(),
		Rating:           summary.AverageRating,
		TotalRatings:     summary.TotalRatings,
		Comments:         toCommentDTOs(comments),
		CreatedAt:        c.CreatedAt,
	}, nil
}
