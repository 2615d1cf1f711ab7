package social

import (
	"context"

	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRAPH INTERFACE
// Социальный граф живёт в графовом хранилище (Neo4j или память).
// Узлы User и Course создаются через MERGE и никогда не дублируются,
// рёбра комментариев и ответов только добавляются (CREATE).
// Каждый вызов открывает и гарантированно закрывает свою сессию.
// ══════════════════════════════════════════════════════════════════════════════

// Graph определяет операции графового хранилища.
type Graph interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Comments
	// ─────────────────────────────────────────────────────────────────────────

	// CreateComment создаёт узлы User/Course (MERGE), ребро COMMENTED и узел Comment.
	CreateComment(ctx context.Context, comment *Comment) error

	// CourseComments возвращает комментарии курса, новые первыми.
	CourseComments(ctx context.Context, courseID string) ([]*Comment, error)

	// UserComments возвращает комментарии пользователя, новые первыми.
	UserComments(ctx context.Context, userID string) ([]*Comment, error)

	// CourseRatings возвращает оценки всех рёбер COMMENTED курса на момент чтения.
	CourseRatings(ctx context.Context, courseID string) ([]shared.Rating, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Reactions
	// ─────────────────────────────────────────────────────────────────────────

	// AddReaction создаёт ребро REACTED{type} (MERGE, одно на тип).
	AddReaction(ctx context.Context, userID, commentID string, reaction ReactionType) error

	// AddReply добавляет ребро REPLIED.
	AddReply(ctx context.Context, reply *Reply) error

	// SetVote ставит LIKED или DISLIKED и снимает противоположный голос.
	SetVote(ctx context.Context, userID, commentID string, vote Vote) error

	// ─────────────────────────────────────────────────────────────────────────
	// Enrollment
	// ─────────────────────────────────────────────────────────────────────────

	// UpsertEnrollment создаёт или обновляет ребро ENROLLED_IN.
	UpsertEnrollment(ctx context.Context, enrollment Enrollment) error
}
