package query

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE RATING QUERY
// Рейтинг считается по рёбрам графа на момент чтения и ничего не пишет.
// Сохранённое в документе значение может отставать.
// ══════════════════════════════════════════════════════════════════════════════

// RatingReader вычисляет сводку оценок без записи.
type RatingReader interface {
	Read(ctx context.Context, courseID string) (social.RatingSummary, error)
}

// GetCourseRatingQuery - параметры запроса рейтинга.
type GetCourseRatingQuery struct {
	CourseID string
}

// CourseRatingDTO - рейтинг курса.
type CourseRatingDTO struct {
	CourseID      string  `json:"courseId"`
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int     `json:"totalRatings"`
}

// GetCourseRatingHandler обрабатывает запрос рейтинга.
type GetCourseRatingHandler struct {
	courses course.Repository
	ratings RatingReader
}

// NewGetCourseRatingHandler создаёт новый обработчик.
func NewGetCourseRatingHandler(courses course.Repository, ratings RatingReader) *GetCourseRatingHandler {
	return &GetCourseRatingHandler{courses: courses, ratings: ratings}
}

// Handle выполняет запрос.
func (h *GetCourseRatingHandler) Handle(ctx context.Context, q GetCourseRatingQuery) (*CourseRatingDTO, error) {
	if _, err := shared.ParseID("course", q.CourseID); err != nil {
		return nil, fmt.Errorf("get_course_rating: %w", err)
	}
	if _, err := h.courses.FindByID(ctx, q.CourseID); err != nil {
		return nil, fmt.Errorf("get_course_rating: %w", err)
	}

	summary, err := h.ratings.Read(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_rating: %w", err)
	}
	return &CourseRatingDTO{
		CourseID:      q.CourseID,
		AverageRating: summary.AverageRating,
		TotalRatings:  summary.TotalRatings,
	}, nil
}
