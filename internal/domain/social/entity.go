// Package social содержит социальный граф платформы: комментарии с оценками,
// реакции, ответы, лайки и связи записи на курс.
package social

import (
	"regexp"
	"strings"
	"time"

	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMENT
// Комментарий хранится дважды: как ребро (User)-[:COMMENTED]->(Course) с оценкой
// и как узел (:Comment {id}), на который ссылаются реакции и ответы.
// Рейтинг курса считается только по рёбрам COMMENTED.
// ══════════════════════════════════════════════════════════════════════════════

// Comment - комментарий пользователя к курсу с оценкой.
type Comment struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName,omitempty"`
	CourseID  string        `json:"courseId"`
	Content   string        `json:"content"`
	Rating    shared.Rating `json:"rating"`
	CreatedAt time.Time     `json:"createdAt"`

	// Счётчики заполняются только при чтении.
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
	Replies  int `json:"replies"`
}

// NewComment валидирует содержимое и оценку и присваивает серверные id и время.
// Несколько комментариев одной пары (user, course) допустимы.
func NewComment(userID, courseID, content string, rating int, now time.Time) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.ErrEmptyContent
	}

	r, err := shared.NewRating(rating)
	if err != nil {
		return nil, err
	}

	return &Comment{
		ID:        shared.NewID().String(),
		UserID:    userID,
		CourseID:  courseID,
		Content:   content,
		Rating:    r,
		CreatedAt: now.UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPLY / REACTION
// ══════════════════════════════════════════════════════════════════════════════

// Reply - ответ на комментарий, ребро (User)-[:REPLIED]->(Comment).
type Reply struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CommentID string    `json:"commentId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewReply создаёт ответ с серверными id и временем.
func NewReply(userID, commentID, content string, now time.Time) (*Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.ErrEmptyContent
	}
	return &Reply{
		ID:        shared.NewID().String(),
		UserID:    userID,
		CommentID: commentID,
		Content:   content,
		CreatedAt: now.UTC(),
	}, nil
}

// ReactionType - произвольный токен реакции ("insightful", "thanks", ...).
type ReactionType string

var reactionTypeRegex = regexp.MustCompile(`^[a-z_]{1,32}$`)

// NewReactionType нормализует и проверяет тип реакции.
func NewReactionType(raw string) (ReactionType, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if !reactionTypeRegex.MatchString(t) {
		return "", shared.ErrInvalidReactionType
	}
	return ReactionType(t), nil
}

// Vote - лайк или дизлайк. У пользователя на комментарий не больше одного.
type Vote string

const (
	VoteLike    Vote = "LIKED"
	VoteDislike Vote = "DISLIKED"
)

// Opposite возвращает противоположный голос.
func (v Vote) Opposite() Vote {
	if v == VoteLike {
		return VoteDislike
	}
	return VoteLike
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT / RATING
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment - зеркало прогресса в графе, ребро (User)-[:ENROLLED_IN]->(Course).
type Enrollment struct {
	UserID   string  `json:"userId"`
	CourseID string  `json:"courseId"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// RatingSummary - результат агрегирования оценок курса.
type RatingSummary struct {
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int     `json:"totalRatings"`
}

// Summarize считает среднее, округлённое до одного знака.
// Пустой набор даёт 0 / 0.
func Summarize(ratings []shared.Rating) RatingSummary {
	return RatingSummary{
		AverageRating: shared.AverageRating(ratings),
		TotalRatings:  len(ratings),
	}
}
