// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMENT QUERIES
// Комментарии читаются из графа напрямую, без кэша. Порядок: новые первыми.
// ══════════════════════════════════════════════════════════════════════════════

// CommentDTO - комментарий со счётчиками реакций.
type CommentDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	CourseID  string    `json:"courseId"`
	Content   string    `json:"content"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Replies   int       `json:"replies"`
}

func toCommentDTOs(comments []*social.Comment) []CommentDTO {
	out := make([]CommentDTO, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentDTO{
			ID:        c.ID,
			UserID:    c.UserID,
			UserName:  c.UserName,
			CourseID:  c.CourseID,
			Content:   c.Content,
			Rating:    c.Rating.Int(),
			CreatedAt: c.CreatedAt,
			Likes:     c.Likes,
			Dislikes:  c.Dislikes,
			Replies:   c.Replies,
		})
	}
	return out
}

// GetCourseCommentsQuery - параметры запроса комментариев курса.
type GetCourseCommentsQuery struct {
	CourseID string
}

// GetCourseCommentsHandler возвращает комментарии курса.
type GetCourseCommentsHandler struct {
	courses course.Repository
	graph   social.Graph
}

// NewGetCourseCommentsHandler создаёт новый обработчик.
func NewGetCourseCommentsHandler(courses course.Repository, graph social.Graph) *GetCourseCommentsHandler {
	return &GetCourseCommentsHandler{courses: courses, graph: graph}
}

// Handle выполняет запрос. Несуществующий курс - NotFound, а не пустой список.
func (h *GetCourseCommentsHandler) Handle(ctx context.Context, q GetCourseCommentsQuery) ([]CommentDTO, error) {
	if _, err := shared.ParseID("course", q.CourseID); err != nil {
		return nil, fmt.Errorf("get_course_comments: %w", err)
	}
	if _, err := h.courses.FindByID(ctx, q.CourseID); err != nil {
		return nil, fmt.Errorf("get_course_comments: %w", err)
	}

	comments, err := h.graph.CourseComments(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_comments: %w", err)
	}
	return toCommentDTOs(comments), nil
}

// GetUserCommentsQuery - параметры запроса комментариев пользователя.
type GetUserCommentsQuery struct {
	UserID string
}

// GetUserCommentsHandler возвращает комментарии пользователя по всем курсам.
type GetUserCommentsHandler struct {
	users user.Repository
	graph social.Graph
}

// NewGetUserCommentsHandler создаёт новый обработчик.
func NewGetUserCommentsHandler(users user.Repository, graph social.Graph) *GetUserCommentsHandler {
	return &GetUserCommentsHandler{users: users, graph: graph}
}

// Handle выполняет запрос.
func (h *GetUserCommentsHandler) Handle(ctx context.Context, q GetUserCommentsQuery) ([]CommentDTO, error) {
	if _, err := shared.ParseID("user", q.UserID); err != nil {
		return nil, fmt.Errorf("get_user_comments: %w", err)
	}
	if _, err := h.users.FindByID(ctx, q.UserID); err != nil {
		return nil, fmt.Errorf("get_user_comments: %w", err)
	}

	comments, err := h.graph.UserComments(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_comments: %w", err)
	}
	return toCommentDTOs(comments), nil
}
